package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/events"
	"github.com/feunard/roadmap/internal/progression"
	"github.com/feunard/roadmap/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	Package     string
	Priority    domain.Priority
	Complexity  int
	Objectives  []domain.Objective
	ActorID     string
}

// TaskEditOptions carries the fields to change; nil leaves a field as is.
type TaskEditOptions struct {
	ID          string
	Title       *string
	Description *string
	Package     *string
	Priority    *domain.Priority
	Complexity  *int
	Objectives  *[]domain.Objective
	ActorID     string
}

// TaskListOptions filters ListTasks.
type TaskListOptions struct {
	ProjectID  string
	Status     string
	Search     string
	AcceptedBy string
	Package    string
	Limit      int
	CursorTS   string
	CursorID   string
}

// CompletionResult is the outcome of a completed task.
type CompletionResult struct {
	Task        domain.Task        `json:"task"`
	Character   domain.Character   `json:"character"`
	Reward      progression.Reward `json:"reward"`
	LevelBefore int                `json:"level_before"`
	LevelAfter  int                `json:"level_after"`
	LeveledUp   bool               `json:"leveled_up"`
}

func taskNotFound(err error, id string) error {
	return notFound(err, apperr.CodeTaskNotFound, "task", id)
}

func cloneObjectives(in []domain.Objective) []domain.Objective {
	out := make([]domain.Objective, 0, len(in))
	for _, o := range in {
		out = append(out, domain.Objective{Title: strings.TrimSpace(o.Title), Completed: o.Completed})
	}
	return out
}

// registerPackage adds pkg to the project's package list when it is new.
func (e Engine) registerPackage(ctx context.Context, tx *sql.Tx, projectID, pkg string) error {
	if pkg == "" {
		return nil
	}
	p, err := e.Repo.GetProjectTx(ctx, tx, projectID)
	if err != nil {
		return notFound(err, apperr.CodeProjectNotFound, "project", projectID)
	}
	if p.HasPackage(pkg) {
		return nil
	}
	p.Packages = append(p.Packages, pkg)
	p.UpdatedAt = e.timestamp()
	return e.Repo.UpdateProject(ctx, tx, p)
}

// guardFailed explains a guarded UPDATE that matched no row by re-reading the
// task inside the same transaction.
func (e Engine) guardFailed(ctx context.Context, tx *sql.Tx, id string, guard func(domain.Task) error) error {
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return taskNotFound(err, id)
	}
	if err := guard(t); err != nil {
		return err
	}
	return apperr.WithMetadata(apperr.CodeTaskStateChanged,
		fmt.Sprintf("task %s changed concurrently", id), map[string]string{"task_id": id})
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (_ domain.Task, err error) {
	ctx, end := startSpan(ctx, "CreateTask", attribute.String("project.id", opts.ProjectID))
	defer end(&err)
	if err := requireActor(opts.ActorID); err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	t := domain.Task{
		ID:          uuid.NewString(),
		ProjectID:   opts.ProjectID,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Package:     strings.TrimSpace(opts.Package),
		Priority:    opts.Priority,
		Complexity:  opts.Complexity,
		Objectives:  cloneObjectives(opts.Objectives),
		History:     []domain.HistoryEntry{},
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateTask(t); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, t.ProjectID); err != nil {
		return domain.Task{}, notFound(err, apperr.CodeProjectNotFound, "project", t.ProjectID)
	}
	if err := e.registerPackage(ctx, tx, t.ProjectID, t.Package); err != nil {
		return domain.Task{}, err
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.TaskCreated, t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{
		"title":      t.Title,
		"priority":   t.Priority,
		"complexity": t.Complexity,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// AcceptTask moves a new task to accepted and assigns it to the actor. Of
// two concurrent accepts exactly one succeeds.
func (e Engine) AcceptTask(ctx context.Context, id, actorID string) (_ domain.Task, err error) {
	ctx, end := startSpan(ctx, "AcceptTask", attribute.String("task.id", id))
	defer end(&err)
	if err := requireActor(actorID); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, taskNotFound(err, id)
	}
	if err := CanAccept(t); err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	ok, err := e.Repo.AcceptTask(ctx, tx, id, actorID, now)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, e.guardFailed(ctx, tx, id, CanAccept)
	}
	if err := e.Repo.AppendHistory(ctx, tx, id, domain.HistoryEntry{At: now, By: actorID, Action: domain.ActionAssigned}); err != nil {
		return domain.Task{}, err
	}
	if err := e.appendEvent(ctx, tx, events.TaskAccepted, t.ProjectID, "task", id, actorID, nil); err != nil {
		return domain.Task{}, err
	}
	t, err = e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// AbandonTask returns an accepted task to new.
func (e Engine) AbandonTask(ctx context.Context, id, actorID string) (_ domain.Task, err error) {
	ctx, end := startSpan(ctx, "AbandonTask", attribute.String("task.id", id))
	defer end(&err)
	if err := requireActor(actorID); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, taskNotFound(err, id)
	}
	if err := CanAbandon(t); err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	ok, err := e.Repo.AbandonTask(ctx, tx, id, now)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, e.guardFailed(ctx, tx, id, CanAbandon)
	}
	if err := e.Repo.AppendHistory(ctx, tx, id, domain.HistoryEntry{At: now, By: actorID, Action: domain.ActionUnassigned}); err != nil {
		return domain.Task{}, err
	}
	payload := events.EventPayload{}
	if t.AcceptedBy != nil {
		payload["accepted_by"] = *t.AcceptedBy
	}
	if err := e.appendEvent(ctx, tx, events.TaskAbandoned, t.ProjectID, "task", id, actorID, payload); err != nil {
		return domain.Task{}, err
	}
	t, err = e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ToggleObjective flips one objective. Only the flip to completed is written
// to the task history.
func (e Engine) ToggleObjective(ctx context.Context, id string, index int, actorID string) (_ domain.Task, err error) {
	ctx, end := startSpan(ctx, "ToggleObjective", attribute.String("task.id", id), attribute.Int("objective.index", index))
	defer end(&err)
	if err := requireActor(actorID); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, taskNotFound(err, id)
	}
	if err := CanToggle(t, index); err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	t.Objectives[index].Completed = !t.Objectives[index].Completed
	completed := t.Objectives[index].Completed
	t.UpdatedAt = now
	ok, err := e.Repo.UpdateTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, e.guardFailed(ctx, tx, id, CanEdit)
	}
	if completed {
		if err := e.Repo.AppendHistory(ctx, tx, id, domain.HistoryEntry{At: now, By: actorID, Action: domain.ActionObjectiveCompleted}); err != nil {
			return domain.Task{}, err
		}
	}
	if err := e.appendEvent(ctx, tx, events.TaskObjective, t.ProjectID, "task", id, actorID, events.EventPayload{
		"index":     index,
		"completed": completed,
	}); err != nil {
		return domain.Task{}, err
	}
	t, err = e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// EditTask applies field changes to a task that is not completed and records
// an "updated" history entry.
func (e Engine) EditTask(ctx context.Context, opts TaskEditOptions) (_ domain.Task, err error) {
	ctx, end := startSpan(ctx, "EditTask", attribute.String("task.id", opts.ID))
	defer end(&err)
	if err := requireActor(opts.ActorID); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Task{}, taskNotFound(err, opts.ID)
	}
	if err := CanEdit(t); err != nil {
		return domain.Task{}, err
	}
	var changed []string
	if opts.Title != nil {
		t.Title = strings.TrimSpace(*opts.Title)
		changed = append(changed, "title")
	}
	if opts.Description != nil {
		t.Description = *opts.Description
		changed = append(changed, "description")
	}
	if opts.Package != nil {
		t.Package = strings.TrimSpace(*opts.Package)
		changed = append(changed, "package")
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
		changed = append(changed, "priority")
	}
	if opts.Complexity != nil {
		t.Complexity = *opts.Complexity
		changed = append(changed, "complexity")
	}
	if opts.Objectives != nil {
		t.Objectives = cloneObjectives(*opts.Objectives)
		changed = append(changed, "objectives")
	}
	if err := validateTask(t); err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	t.UpdatedAt = now
	if opts.Package != nil {
		if err := e.registerPackage(ctx, tx, t.ProjectID, t.Package); err != nil {
			return domain.Task{}, err
		}
	}
	ok, err := e.Repo.UpdateTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, e.guardFailed(ctx, tx, opts.ID, CanEdit)
	}
	if err := e.Repo.AppendHistory(ctx, tx, t.ID, domain.HistoryEntry{At: now, By: opts.ActorID, Action: domain.ActionUpdated}); err != nil {
		return domain.Task{}, err
	}
	if err := e.appendEvent(ctx, tx, events.TaskUpdated, t.ProjectID, "task", t.ID, opts.ActorID, events.EventPayload{"fields": changed}); err != nil {
		return domain.Task{}, err
	}
	t, err = e.Repo.GetTaskTx(ctx, tx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ReplaceObjectives swaps the whole objective list.
func (e Engine) ReplaceObjectives(ctx context.Context, id string, objectives []domain.Objective, actorID string) (domain.Task, error) {
	if objectives == nil {
		objectives = []domain.Objective{}
	}
	return e.EditTask(ctx, TaskEditOptions{ID: id, Objectives: &objectives, ActorID: actorID})
}

// CompleteTask completes an accepted task and credits the reward to the
// actor's character in the same transaction. On any failure neither write is
// applied.
func (e Engine) CompleteTask(ctx context.Context, id, actorID string) (_ CompletionResult, err error) {
	ctx, end := startSpan(ctx, "CompleteTask", attribute.String("task.id", id))
	defer end(&err)
	if err := requireActor(actorID); err != nil {
		return CompletionResult{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return CompletionResult{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return CompletionResult{}, taskNotFound(err, id)
	}
	if err := CanComplete(t); err != nil {
		return CompletionResult{}, err
	}
	now := e.timestamp()
	ok, err := e.Repo.CompleteTask(ctx, tx, t, actorID, now)
	if err != nil {
		return CompletionResult{}, err
	}
	if !ok {
		return CompletionResult{}, e.guardFailed(ctx, tx, id, CanComplete)
	}
	c, err := e.Repo.FindCharacterTx(ctx, tx, actorID, t.ProjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CompletionResult{}, apperr.WithMetadata(apperr.CodeCharacterNotFound,
				fmt.Sprintf("user %s has no character in project %s", actorID, t.ProjectID),
				map[string]string{"user_id": actorID, "project_id": t.ProjectID})
		}
		return CompletionResult{}, err
	}
	_, reward := progression.ApplyCompletion(c, t)
	stored, err := e.Repo.RewardCharacter(ctx, tx, c.ID, reward.XP, reward.Currency, now)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("reward character: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.TaskCompleted, t.ProjectID, "task", id, actorID, events.EventPayload{
		"xp":       reward.XP,
		"currency": reward.Currency,
	}); err != nil {
		return CompletionResult{}, err
	}
	if err := e.appendEvent(ctx, tx, events.CharacterRewarded, t.ProjectID, "character", c.ID, actorID, events.EventPayload{
		"task_id": id,
		"xp":      stored.XP,
		"balance": stored.Balance,
	}); err != nil {
		return CompletionResult{}, err
	}
	t, err = e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return CompletionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return CompletionResult{}, err
	}

	res := CompletionResult{
		Task:        t,
		Character:   stored,
		Reward:      reward,
		LevelBefore: progression.LevelForXP(c.XP),
		LevelAfter:  progression.LevelForXP(stored.XP),
	}
	res.LeveledUp = res.LevelAfter > res.LevelBefore
	e.logf("task %s completed by %s: +%d xp +%d currency", id, actorID, reward.XP, reward.Currency)
	if res.LeveledUp {
		e.logf("character %s reached level %d", stored.ID, res.LevelAfter)
	}
	return res, nil
}

// DeleteTask removes a task in any state together with its history.
func (e Engine) DeleteTask(ctx context.Context, id, actorID string) (err error) {
	ctx, end := startSpan(ctx, "DeleteTask", attribute.String("task.id", id))
	defer end(&err)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return taskNotFound(err, id)
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return taskNotFound(err, id)
	}
	if err := e.appendEvent(ctx, tx, events.TaskDeleted, t.ProjectID, "task", id, actorID, events.EventPayload{"title": t.Title}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, taskNotFound(err, id)
	}
	return t, nil
}

// ListTasks returns tasks matching the filter, newest first.
func (e Engine) ListTasks(ctx context.Context, opts TaskListOptions) ([]domain.Task, error) {
	switch domain.TaskState(opts.Status) {
	case "", domain.TaskStateNew, domain.TaskStateAccepted, domain.TaskStateCompleted:
	default:
		return nil, apperr.WithMetadata(apperr.CodeTaskInvalidStatusFilter,
			fmt.Sprintf("invalid status %q; expected new, accepted or completed", opts.Status),
			map[string]string{"status": opts.Status})
	}
	return e.Repo.ListTasks(ctx, repo.TaskFilters{
		ProjectID:  opts.ProjectID,
		Status:     opts.Status,
		Search:     opts.Search,
		AcceptedBy: opts.AcceptedBy,
		Package:    opts.Package,
		Limit:      opts.Limit,
		CursorTS:   opts.CursorTS,
		CursorID:   opts.CursorID,
	})
}

// MyActiveTasks returns the open tasks the user has accepted in a project.
func (e Engine) MyActiveTasks(ctx context.Context, projectID, userID string) ([]domain.Task, error) {
	return e.ListTasks(ctx, TaskListOptions{
		ProjectID:  projectID,
		Status:     string(domain.TaskStateAccepted),
		AcceptedBy: userID,
	})
}
