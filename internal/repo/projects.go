package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/feunard/roadmap/internal/domain"
)

const projectColumns = `id,title,public,created_by,packages_json,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (domain.Project, error) {
	var p domain.Project
	var public int
	var packages string
	err := row.Scan(&p.ID, &p.Title, &public, &p.CreatedBy, &packages, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Public = public != 0
	p.Packages = []string{}
	if packages != "" {
		if err := json.Unmarshal([]byte(packages), &p.Packages); err != nil {
			return p, fmt.Errorf("decode project packages: %w", err)
		}
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	packages, err := marshalList(p.Packages)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, r.q(`INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?)`),
		p.ID, p.Title, boolInt(p.Public), p.CreatedBy, packages, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return r.getProject(ctx, r.DB, id)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	return r.getProject(ctx, tx, id)
}

func (r Repo) getProject(ctx context.Context, q Queryer, id string) (domain.Project, error) {
	return scanProject(q.QueryRowContext(ctx, r.q(`SELECT `+projectColumns+` FROM projects WHERE id=?`), id))
}

// UpdateProject rewrites the mutable project fields.
func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	packages, err := marshalList(p.Packages)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, r.q(`UPDATE projects SET title=?, public=?, packages_json=?, updated_at=? WHERE id=?`),
		p.Title, boolInt(p.Public), packages, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes the project; characters, tasks, history and
// invitations go with it through ON DELETE CASCADE.
func (r Repo) DeleteProject(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM projects WHERE id=?`), id)
	if err != nil {
		return err
	}
	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountProjectsCreatedBy(ctx context.Context, tx *sql.Tx, userID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, r.q(`SELECT count(*) FROM projects WHERE created_by=?`), userID).Scan(&n)
	return n, err
}

// ListProjectsForUser returns projects where the user holds a character,
// newest first.
func (r Repo) ListProjectsForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT p.id,p.title,p.public,p.created_by,p.packages_json,p.created_at,p.updated_at
FROM projects p JOIN characters c ON c.project_id=p.id
WHERE c.user_id=? ORDER BY p.created_at DESC, p.id DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ListPublicProjects returns projects flagged public, newest first.
func (r Repo) ListPublicProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE public=1 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
