package server

import (
	"encoding/json"

	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/progression"
)

// Request payloads

type CreateProjectRequest struct {
	Title  string `json:"title" minLength:"1"`
	Public bool   `json:"public,omitempty"`
}

type UpdateProjectRequest struct {
	Title  *string `json:"title,omitempty"`
	Public *bool   `json:"public,omitempty"`
}

type InviteRequest struct {
	UserID string `json:"user_id" minLength:"1"`
}

type ObjectiveRequest struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed,omitempty"`
}

type CreateTaskRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Package     string             `json:"package,omitempty"`
	Priority    string             `json:"priority" enum:"optional,low,medium,high"`
	Complexity  int                `json:"complexity" minimum:"1" maximum:"5"`
	Objectives  []ObjectiveRequest `json:"objectives,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string             `json:"title,omitempty"`
	Description *string             `json:"description,omitempty"`
	Package     *string             `json:"package,omitempty"`
	Priority    *string             `json:"priority,omitempty" enum:"optional,low,medium,high"`
	Complexity  *int                `json:"complexity,omitempty" minimum:"1" maximum:"5"`
	Objectives  *[]ObjectiveRequest `json:"objectives,omitempty"`
}

type SetObjectivesRequest struct {
	Objectives []ObjectiveRequest `json:"objectives"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id" minLength:"1"`
}

// Response payloads

type ProjectResponse struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Public    bool     `json:"public"`
	CreatedBy string   `json:"created_by"`
	Packages  []string `json:"packages"`
	CreatedAt string   `json:"created_at" format:"date-time"`
	UpdatedAt string   `json:"updated_at" format:"date-time"`
}

type TaskResponse struct {
	domain.Task
	State      string `json:"state" enum:"new,accepted,completed"`
	Rank       string `json:"rank"`
	Incomplete int    `json:"incomplete_objectives"`
}

type CharacterResponse struct {
	domain.Character
	Sheet progression.Sheet `json:"sheet"`
}

type CompletionResponse struct {
	Task        TaskResponse       `json:"task"`
	Character   CharacterResponse  `json:"character"`
	Reward      progression.Reward `json:"reward"`
	LevelBefore int                `json:"level_before"`
	LevelAfter  int                `json:"level_after"`
	LeveledUp   bool               `json:"leveled_up"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is only set on creation.
	Key string `json:"key,omitempty"`
}

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type paginatedTasks struct {
	Items      []TaskResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Title:     p.Title,
		Public:    p.Public,
		CreatedBy: p.CreatedBy,
		Packages:  nonNilSlice(p.Packages),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	t.Objectives = nonNilSlice(t.Objectives)
	return TaskResponse{
		Task:       t,
		State:      string(t.State()),
		Rank:       progression.Rank(t.Complexity),
		Incomplete: t.IncompleteObjectives(),
	}
}

func characterResponse(v engine.CharacterView) CharacterResponse {
	return CharacterResponse{Character: v.Character, Sheet: v.Sheet}
}

func completionResponse(res engine.CompletionResult) (CompletionResponse, error) {
	sheet, err := progression.CharacterSheet(res.Character)
	if err != nil {
		return CompletionResponse{}, err
	}
	return CompletionResponse{
		Task:        taskResponse(res.Task),
		Character:   CharacterResponse{Character: res.Character, Sheet: sheet},
		Reward:      res.Reward,
		LevelBefore: res.LevelBefore,
		LevelAfter:  res.LevelAfter,
		LeveledUp:   res.LeveledUp,
	}, nil
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		ProjectID:  e.ProjectID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt}
}

func objectives(in []ObjectiveRequest) []domain.Objective {
	out := make([]domain.Objective, 0, len(in))
	for _, o := range in {
		out = append(out, domain.Objective{Title: o.Title, Completed: o.Completed})
	}
	return out
}

func decodeJSONMap(raw string) map[string]any {
	res := map[string]any{}
	if raw == "" {
		return res
	}
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return map[string]any{}
	}
	return res
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
