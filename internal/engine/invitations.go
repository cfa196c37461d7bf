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
	"github.com/feunard/roadmap/internal/repo"
)

// InviteMember creates a pending invitation for userID to join the project.
func (e Engine) InviteMember(ctx context.Context, projectID, invitedBy, userID string) (_ domain.Invitation, err error) {
	ctx, end := startSpan(ctx, "InviteMember", attribute.String("project.id", projectID))
	defer end(&err)
	userID = strings.TrimSpace(userID)
	if err := requireActor(invitedBy); err != nil {
		return domain.Invitation{}, err
	}
	if userID == "" {
		return domain.Invitation{}, apperr.New(apperr.CodeInvalidArgument, "invited user is required")
	}
	if userID == invitedBy {
		return domain.Invitation{}, apperr.New(apperr.CodeInvitationSelf, "you cannot invite yourself to a project")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invitation{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.GetProjectTx(ctx, tx, projectID); err != nil {
		return domain.Invitation{}, notFound(err, apperr.CodeProjectNotFound, "project", projectID)
	}
	_, err = e.Repo.FindCharacterTx(ctx, tx, userID, projectID)
	switch {
	case err == nil:
		return domain.Invitation{}, apperr.WithMetadata(apperr.CodeInvitationMember,
			"user is already a member of this project", map[string]string{"user_id": userID})
	case !errors.Is(err, repo.ErrNotFound):
		return domain.Invitation{}, err
	}
	_, err = e.Repo.FindPendingInvitation(ctx, tx, projectID, userID)
	switch {
	case err == nil, errors.Is(err, repo.ErrAmbiguous):
		return domain.Invitation{}, apperr.WithMetadata(apperr.CodeInvitationDuplicate,
			"an invitation has already been sent to this user for this project", map[string]string{"user_id": userID})
	case !errors.Is(err, repo.ErrNotFound):
		return domain.Invitation{}, err
	}
	now := e.timestamp()
	inv := domain.Invitation{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		InvitedBy: invitedBy,
		Status:    domain.InvitationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertInvitation(ctx, tx, inv); err != nil {
		return domain.Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}
	if err := e.appendEvent(ctx, tx, events.InvitationCreated, projectID, "invitation", inv.ID, invitedBy, events.EventPayload{"user_id": userID}); err != nil {
		return domain.Invitation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Invitation{}, err
	}
	return inv, nil
}

// pendingInvitationFor loads an invitation addressed to actorID that is
// still pending.
func (e Engine) pendingInvitationFor(ctx context.Context, tx *sql.Tx, id, actorID string) (domain.Invitation, error) {
	inv, err := e.Repo.GetInvitationTx(ctx, tx, id)
	if err != nil {
		return domain.Invitation{}, notFound(err, apperr.CodeInvitationNotFound, "invitation", id)
	}
	if inv.UserID != actorID {
		return domain.Invitation{}, notFound(repo.ErrNotFound, apperr.CodeInvitationNotFound, "invitation", id)
	}
	if inv.Status != domain.InvitationPending {
		return domain.Invitation{}, invitationNotPending(inv)
	}
	return inv, nil
}

func invitationNotPending(inv domain.Invitation) error {
	return apperr.WithMetadata(apperr.CodeInvitationNotPending,
		fmt.Sprintf("invitation %s is %s", inv.ID, inv.Status),
		map[string]string{"id": inv.ID, "status": string(inv.Status)})
}

func invitationChanged(id string) error {
	return apperr.WithMetadata(apperr.CodeInvitationNotPending,
		fmt.Sprintf("invitation %s is no longer pending", id), map[string]string{"id": id})
}

// AcceptInvitation marks the invitation accepted and returns the member's
// character, creating it when the user has none in the project yet.
func (e Engine) AcceptInvitation(ctx context.Context, id, actorID string) (_ domain.Character, err error) {
	ctx, end := startSpan(ctx, "AcceptInvitation", attribute.String("invitation.id", id))
	defer end(&err)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Character{}, err
	}
	defer tx.Rollback()

	inv, err := e.pendingInvitationFor(ctx, tx, id, actorID)
	if err != nil {
		return domain.Character{}, err
	}
	now := e.timestamp()
	ok, err := e.Repo.SetInvitationStatus(ctx, tx, inv.ID, domain.InvitationPending, domain.InvitationAccepted, now)
	if err != nil {
		return domain.Character{}, err
	}
	if !ok {
		return domain.Character{}, invitationChanged(inv.ID)
	}
	c, err := e.Repo.FindCharacterTx(ctx, tx, actorID, inv.ProjectID)
	if errors.Is(err, repo.ErrNotFound) {
		c = domain.Character{
			ID:        uuid.NewString(),
			UserID:    actorID,
			ProjectID: inv.ProjectID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := e.Repo.InsertCharacter(ctx, tx, c); err != nil {
			return domain.Character{}, fmt.Errorf("insert member character: %w", err)
		}
		if err := e.appendEvent(ctx, tx, events.CharacterCreated, inv.ProjectID, "character", c.ID, actorID, events.EventPayload{"owner": false}); err != nil {
			return domain.Character{}, err
		}
	} else if err != nil {
		return domain.Character{}, err
	}
	if err := e.appendEvent(ctx, tx, events.InvitationAccepted, inv.ProjectID, "invitation", inv.ID, actorID, nil); err != nil {
		return domain.Character{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Character{}, err
	}
	return c, nil
}

func (e Engine) RejectInvitation(ctx context.Context, id, actorID string) (err error) {
	ctx, end := startSpan(ctx, "RejectInvitation", attribute.String("invitation.id", id))
	defer end(&err)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	inv, err := e.pendingInvitationFor(ctx, tx, id, actorID)
	if err != nil {
		return err
	}
	ok, err := e.Repo.SetInvitationStatus(ctx, tx, inv.ID, domain.InvitationPending, domain.InvitationRejected, e.timestamp())
	if err != nil {
		return err
	}
	if !ok {
		return invitationChanged(inv.ID)
	}
	if err := e.appendEvent(ctx, tx, events.InvitationRejected, inv.ProjectID, "invitation", inv.ID, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListInvitations returns the invitations addressed to userID. An empty
// status lists all of them.
func (e Engine) ListInvitations(ctx context.Context, userID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	if err := checkInvitationStatus(status); err != nil {
		return nil, err
	}
	return e.Repo.ListInvitationsForUser(ctx, userID, status)
}

// ListProjectInvitations returns the invitations sent from a project, for
// its owner to follow up on.
func (e Engine) ListProjectInvitations(ctx context.Context, projectID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	if err := checkInvitationStatus(status); err != nil {
		return nil, err
	}
	if _, err := e.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListInvitationsForProject(ctx, projectID, status)
}

func checkInvitationStatus(status domain.InvitationStatus) error {
	switch status {
	case "", domain.InvitationPending, domain.InvitationAccepted, domain.InvitationRejected:
		return nil
	}
	return apperr.WithMetadata(apperr.CodeInvalidArgument,
		fmt.Sprintf("invalid invitation status %q", status), map[string]string{"status": string(status)})
}
