package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/domain"
)

// The guards below are pure. Each persistent transition evaluates its guard
// on the row read inside the transaction and repeats the predicate in the
// UPDATE that applies it.

func taskStateError(code apperr.Code, t domain.Task, msg string) error {
	return apperr.WithMetadata(code, msg, map[string]string{
		"task_id": t.ID,
		"state":   string(t.State()),
	})
}

func taskCompleted(t domain.Task) error {
	return taskStateError(apperr.CodeTaskCompleted, t, fmt.Sprintf("task %s is already completed", t.ID))
}

// CanAccept requires the task to be new.
func CanAccept(t domain.Task) error {
	switch t.State() {
	case domain.TaskStateNew:
		return nil
	case domain.TaskStateCompleted:
		return taskCompleted(t)
	default:
		return taskStateError(apperr.CodeTaskNotNew, t, fmt.Sprintf("task %s is already accepted", t.ID))
	}
}

// CanAbandon requires the task to be accepted and open.
func CanAbandon(t domain.Task) error {
	switch t.State() {
	case domain.TaskStateAccepted:
		return nil
	case domain.TaskStateCompleted:
		return taskCompleted(t)
	default:
		return taskStateError(apperr.CodeTaskNotAccepted, t, fmt.Sprintf("task %s is not accepted", t.ID))
	}
}

// CanEdit allows any task that is not completed.
func CanEdit(t domain.Task) error {
	if t.State() == domain.TaskStateCompleted {
		return taskCompleted(t)
	}
	return nil
}

// CanToggle allows flipping an existing objective of a task that is not
// completed.
func CanToggle(t domain.Task, index int) error {
	if err := CanEdit(t); err != nil {
		return err
	}
	if index < 0 || index >= len(t.Objectives) {
		return apperr.WithMetadata(apperr.CodeTaskObjectiveIndex,
			fmt.Sprintf("invalid objective index %d", index),
			map[string]string{"index": strconv.Itoa(index), "objectives": strconv.Itoa(len(t.Objectives))})
	}
	return nil
}

// CanComplete requires an accepted, open task whose objectives are all done.
// The acceptance check runs first.
func CanComplete(t domain.Task) error {
	switch t.State() {
	case domain.TaskStateCompleted:
		return taskCompleted(t)
	case domain.TaskStateNew:
		return taskStateError(apperr.CodeTaskNotAccepted, t, fmt.Sprintf("task %s is not accepted", t.ID))
	}
	if n := t.IncompleteObjectives(); n > 0 {
		return apperr.WithMetadata(apperr.CodeTaskObjectivesIncomplete,
			fmt.Sprintf("cannot complete task: %d objective(s) remain incomplete", n),
			map[string]string{"task_id": t.ID, "incomplete": strconv.Itoa(n)})
	}
	return nil
}

// validateTask checks the schema-level invariants of a task.
func validateTask(t domain.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return apperr.New(apperr.CodeTaskTitleEmpty, "title is required")
	}
	if !t.Priority.Valid() {
		return apperr.WithMetadata(apperr.CodeTaskInvalidPriority,
			fmt.Sprintf("invalid priority %q", t.Priority),
			map[string]string{"priority": string(t.Priority)})
	}
	if t.Complexity < domain.MinComplexity || t.Complexity > domain.MaxComplexity {
		return apperr.WithMetadata(apperr.CodeTaskInvalidComplexity,
			fmt.Sprintf("complexity must be between %d and %d", domain.MinComplexity, domain.MaxComplexity),
			map[string]string{"complexity": strconv.Itoa(t.Complexity)})
	}
	for i, o := range t.Objectives {
		if strings.TrimSpace(o.Title) == "" {
			return apperr.WithMetadata(apperr.CodeInvalidArgument,
				fmt.Sprintf("objective %d has an empty title", i),
				map[string]string{"index": strconv.Itoa(i)})
		}
	}
	return nil
}
