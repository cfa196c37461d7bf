package domain

import "strings"

// Priority is the task priority enum.
type Priority string

const (
	PriorityOptional Priority = "optional"
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
)

// Priorities lists the accepted priority values in ascending order.
var Priorities = []Priority{PriorityOptional, PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityOptional, PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority normalizes user input; it does not validate.
func ParsePriority(s string) Priority {
	return Priority(strings.ToLower(strings.TrimSpace(s)))
}

const (
	MinComplexity = 1
	MaxComplexity = 5
)

// TaskState is derived from the acceptance and completion timestamps.
type TaskState string

const (
	TaskStateNew       TaskState = "new"
	TaskStateAccepted  TaskState = "accepted"
	TaskStateCompleted TaskState = "completed"
)

// HistoryAction is the closed set of audited task actions.
type HistoryAction string

const (
	ActionUpdated            HistoryAction = "updated"
	ActionAssigned           HistoryAction = "assigned"
	ActionUnassigned         HistoryAction = "unassigned"
	ActionObjectiveCompleted HistoryAction = "objective_completed"
)

type Project struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Public    bool     `json:"public"`
	CreatedBy string   `json:"created_by"`
	Packages  []string `json:"packages"`
	CreatedAt string   `json:"created_at" format:"date-time"`
	UpdatedAt string   `json:"updated_at" format:"date-time"`
}

// HasPackage reports whether name is already registered on the project.
func (p Project) HasPackage(name string) bool {
	for _, pkg := range p.Packages {
		if pkg == name {
			return true
		}
	}
	return false
}

type Objective struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type HistoryEntry struct {
	At     string        `json:"at" format:"date-time"`
	By     string        `json:"by"`
	Action HistoryAction `json:"action" enum:"updated,assigned,unassigned,objective_completed"`
}

type Task struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Package     string         `json:"package,omitempty"`
	Priority    Priority       `json:"priority" enum:"optional,low,medium,high"`
	Complexity  int            `json:"complexity" minimum:"1" maximum:"5"`
	AcceptedAt  *string        `json:"accepted_at,omitempty" format:"date-time"`
	AcceptedBy  *string        `json:"accepted_by,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty" format:"date-time"`
	CompletedBy *string        `json:"completed_by,omitempty"`
	Objectives  []Objective    `json:"objectives"`
	History     []HistoryEntry `json:"history,omitempty"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   string         `json:"created_at" format:"date-time"`
	UpdatedAt   string         `json:"updated_at" format:"date-time"`
}

// State derives the lifecycle state. A completion timestamp wins over
// acceptance so a completed task is always terminal.
func (t Task) State() TaskState {
	switch {
	case t.CompletedAt != nil:
		return TaskStateCompleted
	case t.AcceptedAt != nil:
		return TaskStateAccepted
	default:
		return TaskStateNew
	}
}

// IncompleteObjectives counts objectives not yet completed.
func (t Task) IncompleteObjectives() int {
	n := 0
	for _, o := range t.Objectives {
		if !o.Completed {
			n++
		}
	}
	return n
}

type Character struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	XP        int    `json:"xp"`
	Balance   int    `json:"balance"`
	Owner     bool   `json:"owner"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// InvitationStatus tracks the invitation lifecycle.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

type Invitation struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	UserID    string           `json:"user_id"`
	InvitedBy string           `json:"invited_by"`
	Status    InvitationStatus `json:"status" enum:"pending,accepted,rejected"`
	CreatedAt string           `json:"created_at" format:"date-time"`
	UpdatedAt string           `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey authenticates a user without a JWT. Only the hash is stored.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
