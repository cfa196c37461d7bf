package repo

import (
	"context"
	"database/sql"

	"github.com/feunard/roadmap/internal/domain"
)

const invitationColumns = `id,project_id,user_id,invited_by,status,created_at,updated_at`

func scanInvitation(row rowScanner) (domain.Invitation, error) {
	var inv domain.Invitation
	var status string
	err := row.Scan(&inv.ID, &inv.ProjectID, &inv.UserID, &inv.InvitedBy, &status, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return inv, ErrNotFound
	}
	inv.Status = domain.InvitationStatus(status)
	return inv, err
}

func (r Repo) InsertInvitation(ctx context.Context, tx *sql.Tx, inv domain.Invitation) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO invitations(`+invitationColumns+`) VALUES (?,?,?,?,?,?,?)`),
		inv.ID, inv.ProjectID, inv.UserID, inv.InvitedBy, string(inv.Status), inv.CreatedAt, inv.UpdatedAt)
	return err
}

func (r Repo) GetInvitationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Invitation, error) {
	return scanInvitation(tx.QueryRowContext(ctx, r.q(`SELECT `+invitationColumns+` FROM invitations WHERE id=?`), id))
}

// FindPendingInvitation returns the pending invitation of a user to a
// project. ErrAmbiguous is returned when the store holds more than one.
func (r Repo) FindPendingInvitation(ctx context.Context, tx *sql.Tx, projectID, userID string) (domain.Invitation, error) {
	rows, err := tx.QueryContext(ctx, r.q(`SELECT `+invitationColumns+` FROM invitations WHERE project_id=? AND user_id=? AND status=? LIMIT 2`),
		projectID, userID, string(domain.InvitationPending))
	if err != nil {
		return domain.Invitation{}, err
	}
	defer rows.Close()
	var found []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return domain.Invitation{}, err
		}
		found = append(found, inv)
	}
	if err := rows.Err(); err != nil {
		return domain.Invitation{}, err
	}
	switch len(found) {
	case 0:
		return domain.Invitation{}, ErrNotFound
	case 1:
		return found[0], nil
	default:
		return domain.Invitation{}, ErrAmbiguous
	}
}

// SetInvitationStatus moves an invitation out of the from status. It reports
// false when the invitation was no longer in that status.
func (r Repo) SetInvitationStatus(ctx context.Context, tx *sql.Tx, id string, from, to domain.InvitationStatus, at string) (bool, error) {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE invitations SET status=?, updated_at=? WHERE id=? AND status=?`),
		string(to), at, id, string(from))
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ListInvitationsForUser returns a user's invitations, newest first. An empty
// status lists every status.
func (r Repo) ListInvitationsForUser(ctx context.Context, userID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	return r.listInvitations(ctx, "user_id", userID, status)
}

// ListInvitationsForProject returns the invitations sent from a project,
// newest first.
func (r Repo) ListInvitationsForProject(ctx context.Context, projectID string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	return r.listInvitations(ctx, "project_id", projectID, status)
}

func (r Repo) listInvitations(ctx context.Context, column, value string, status domain.InvitationStatus) ([]domain.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE ` + column + `=?`
	args := []any{value}
	if status != "" {
		query += ` AND status=?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}
