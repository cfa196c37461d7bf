package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/events"
)

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	Title   string
	Public  bool
	ActorID string
}

// ProjectUpdateOptions carries the fields to change; nil leaves a field as is.
type ProjectUpdateOptions struct {
	ID      string
	Title   *string
	Public  *bool
	ActorID string
}

func (e Engine) normalizeProjectTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	lo, hi := e.Config.Projects.TitleMin, e.Config.Projects.TitleMax
	if n := utf8.RuneCountInString(title); n < lo || n > hi {
		return "", apperr.WithMetadata(apperr.CodeProjectTitleInvalid,
			fmt.Sprintf("project title must be %d to %d characters", lo, hi),
			map[string]string{"length": strconv.Itoa(n)})
	}
	return title, nil
}

// CreateProject creates a project and its owner's character.
func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (_ domain.Project, err error) {
	ctx, end := startSpan(ctx, "CreateProject")
	defer end(&err)
	if err := requireActor(opts.ActorID); err != nil {
		return domain.Project{}, err
	}
	title, err := e.normalizeProjectTitle(opts.Title)
	if err != nil {
		return domain.Project{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	count, err := e.Repo.CountProjectsCreatedBy(ctx, tx, opts.ActorID)
	if err != nil {
		return domain.Project{}, err
	}
	if limit := e.Config.Projects.MaxPerUser; count >= limit {
		return domain.Project{}, apperr.WithMetadata(apperr.CodeProjectLimitReached,
			"you have reached the maximum number of projects allowed",
			map[string]string{"limit": strconv.Itoa(limit)})
	}
	now := e.timestamp()
	p := domain.Project{
		ID:        uuid.NewString(),
		Title:     title,
		Public:    opts.Public,
		CreatedBy: opts.ActorID,
		Packages:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	owner := domain.Character{
		ID:        uuid.NewString(),
		UserID:    opts.ActorID,
		ProjectID: p.ID,
		Owner:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertCharacter(ctx, tx, owner); err != nil {
		return domain.Project{}, fmt.Errorf("insert owner character: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.ProjectCreated, p.ID, "project", p.ID, opts.ActorID, events.EventPayload{"title": p.Title, "public": p.Public}); err != nil {
		return domain.Project{}, err
	}
	if err := e.appendEvent(ctx, tx, events.CharacterCreated, p.ID, "character", owner.ID, opts.ActorID, events.EventPayload{"owner": true}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (_ domain.Project, err error) {
	ctx, end := startSpan(ctx, "UpdateProject", attribute.String("project.id", opts.ID))
	defer end(&err)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetProjectTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Project{}, notFound(err, apperr.CodeProjectNotFound, "project", opts.ID)
	}
	payload := events.EventPayload{}
	if opts.Title != nil {
		title, err := e.normalizeProjectTitle(*opts.Title)
		if err != nil {
			return domain.Project{}, err
		}
		payload["from_title"], payload["to_title"] = p.Title, title
		p.Title = title
	}
	if opts.Public != nil {
		payload["public"] = *opts.Public
		p.Public = *opts.Public
	}
	p.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, notFound(err, apperr.CodeProjectNotFound, "project", opts.ID)
	}
	if err := e.appendEvent(ctx, tx, events.ProjectUpdated, p.ID, "project", p.ID, opts.ActorID, payload); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// DeleteProject removes a project along with its tasks, characters and
// invitations.
func (e Engine) DeleteProject(ctx context.Context, id, actorID string) (err error) {
	ctx, end := startSpan(ctx, "DeleteProject", attribute.String("project.id", id))
	defer end(&err)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteProject(ctx, tx, id); err != nil {
		return notFound(err, apperr.CodeProjectNotFound, "project", id)
	}
	if err := e.appendEvent(ctx, tx, events.ProjectDeleted, id, "project", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, notFound(err, apperr.CodeProjectNotFound, "project", id)
	}
	return p, nil
}

// ListProjectsForUser returns the projects where the user has a character.
func (e Engine) ListProjectsForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	return e.Repo.ListProjectsForUser(ctx, userID)
}

// ProjectPlayers returns the project's characters, owner first.
func (e Engine) ProjectPlayers(ctx context.Context, projectID string) ([]domain.Character, error) {
	if _, err := e.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListCharacters(ctx, projectID)
}
