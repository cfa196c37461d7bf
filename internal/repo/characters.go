package repo

import (
	"context"
	"database/sql"

	"github.com/feunard/roadmap/internal/domain"
)

const characterColumns = `id,user_id,project_id,xp,balance,owner,created_at,updated_at`

func scanCharacter(row rowScanner) (domain.Character, error) {
	var c domain.Character
	var owner int
	err := row.Scan(&c.ID, &c.UserID, &c.ProjectID, &c.XP, &c.Balance, &owner, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.Owner = owner != 0
	return c, err
}

func (r Repo) InsertCharacter(ctx context.Context, tx *sql.Tx, c domain.Character) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO characters(`+characterColumns+`) VALUES (?,?,?,?,?,?,?,?)`),
		c.ID, c.UserID, c.ProjectID, c.XP, c.Balance, boolInt(c.Owner), c.CreatedAt, c.UpdatedAt)
	return err
}

// FindCharacter looks up the single character of a user in a project.
func (r Repo) FindCharacter(ctx context.Context, userID, projectID string) (domain.Character, error) {
	return r.findCharacter(ctx, r.DB, userID, projectID)
}

func (r Repo) FindCharacterTx(ctx context.Context, tx *sql.Tx, userID, projectID string) (domain.Character, error) {
	return r.findCharacter(ctx, tx, userID, projectID)
}

func (r Repo) findCharacter(ctx context.Context, q Queryer, userID, projectID string) (domain.Character, error) {
	return scanCharacter(q.QueryRowContext(ctx, r.q(`SELECT `+characterColumns+` FROM characters WHERE user_id=? AND project_id=?`), userID, projectID))
}

// ListCharacters returns the project's players, owner first then by join time.
func (r Repo) ListCharacters(ctx context.Context, projectID string) ([]domain.Character, error) {
	return r.listCharacters(ctx, `project_id=?`, projectID)
}

// ListCharactersForUser returns every character a user holds.
func (r Repo) ListCharactersForUser(ctx context.Context, userID string) ([]domain.Character, error) {
	return r.listCharacters(ctx, `user_id=?`, userID)
}

func (r Repo) listCharacters(ctx context.Context, where string, arg string) ([]domain.Character, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT `+characterColumns+` FROM characters WHERE `+where+` ORDER BY owner DESC, created_at ASC, id ASC`), arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Character{}
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// RewardCharacter adds xp and currency with an in-SQL increment and returns
// the row as stored after the update.
func (r Repo) RewardCharacter(ctx context.Context, tx *sql.Tx, id string, xp, currency int, updatedAt string) (domain.Character, error) {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE characters SET xp=xp+?, balance=balance+?, updated_at=? WHERE id=?`),
		xp, currency, updatedAt, id)
	if err != nil {
		return domain.Character{}, err
	}
	if ok, err := affected(res); err != nil {
		return domain.Character{}, err
	} else if !ok {
		return domain.Character{}, ErrNotFound
	}
	return scanCharacter(tx.QueryRowContext(ctx, r.q(`SELECT `+characterColumns+` FROM characters WHERE id=?`), id))
}
