package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/feunard/roadmap/internal/domain"
)

const taskColumns = `id,project_id,title,description,package,priority,complexity,accepted_at,accepted_by,completed_at,completed_by,objectives_json,created_by,created_at,updated_at`

// TaskFilters narrows ListTasks. Status is one of new, accepted, completed.
type TaskFilters struct {
	ProjectID  string
	Status     string
	Search     string
	AcceptedBy string
	Package    string
	Limit      int
	CursorTS   string
	CursorID   string
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var description, pkg, acceptedAt, acceptedBy, completedAt, completedBy sql.NullString
	var priority, objectives string
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &pkg, &priority, &t.Complexity,
		&acceptedAt, &acceptedBy, &completedAt, &completedBy, &objectives, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Priority = domain.Priority(priority)
	if description.Valid {
		t.Description = description.String
	}
	if pkg.Valid {
		t.Package = pkg.String
	}
	if acceptedAt.Valid {
		t.AcceptedAt = &acceptedAt.String
	}
	if acceptedBy.Valid {
		t.AcceptedBy = &acceptedBy.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	if completedBy.Valid {
		t.CompletedBy = &completedBy.String
	}
	t.Objectives = []domain.Objective{}
	if objectives != "" {
		if err := json.Unmarshal([]byte(objectives), &t.Objectives); err != nil {
			return t, fmt.Errorf("decode task objectives: %w", err)
		}
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	objectives, err := marshalList(t.Objectives)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, r.q(`INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		t.ID, t.ProjectID, t.Title, nullable(t.Description), nullable(t.Package), string(t.Priority), t.Complexity,
		nullableStringPtr(t.AcceptedAt), nullableStringPtr(t.AcceptedBy), nullableStringPtr(t.CompletedAt), nullableStringPtr(t.CompletedBy),
		objectives, t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	return err
}

// GetTask loads a task with its history.
func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return r.getTask(ctx, tx, id)
}

func (r Repo) getTask(ctx context.Context, q Queryer, id string) (domain.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, r.q(`SELECT `+taskColumns+` FROM tasks WHERE id=?`), id))
	if err != nil {
		return t, err
	}
	t.History, err = r.listHistory(ctx, q, t.ID)
	return t, err
}

// UpdateTask rewrites editable fields unless the task has been completed.
// It reports false when the guard did not match.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) (bool, error) {
	objectives, err := marshalList(t.Objectives)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, r.q(`UPDATE tasks SET title=?, description=?, package=?, priority=?, complexity=?, objectives_json=?, updated_at=?
WHERE id=? AND completed_at IS NULL`),
		t.Title, nullable(t.Description), nullable(t.Package), string(t.Priority), t.Complexity, objectives, t.UpdatedAt, t.ID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// AcceptTask assigns a task still in the new state.
func (r Repo) AcceptTask(ctx context.Context, tx *sql.Tx, id, actorID, at string) (bool, error) {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE tasks SET accepted_at=?, accepted_by=?, updated_at=?
WHERE id=? AND accepted_at IS NULL AND completed_at IS NULL`), at, actorID, at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// AbandonTask clears the assignment of an accepted, open task.
func (r Repo) AbandonTask(ctx context.Context, tx *sql.Tx, id, at string) (bool, error) {
	res, err := tx.ExecContext(ctx, r.q(`UPDATE tasks SET accepted_at=NULL, accepted_by=NULL, updated_at=?
WHERE id=? AND accepted_at IS NOT NULL AND completed_at IS NULL`), at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// CompleteTask marks an accepted task completed. The snapshot's objectives,
// priority and complexity must still match the stored row, so the reward and
// objective checks made on the snapshot hold for the row that is written.
func (r Repo) CompleteTask(ctx context.Context, tx *sql.Tx, snapshot domain.Task, actorID, at string) (bool, error) {
	objectives, err := marshalList(snapshot.Objectives)
	if err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, r.q(`UPDATE tasks SET completed_at=?, completed_by=?, updated_at=?
WHERE id=? AND accepted_at IS NOT NULL AND completed_at IS NULL AND objectives_json=? AND priority=? AND complexity=?`),
		at, actorID, at, snapshot.ID, objectives, string(snapshot.Priority), snapshot.Complexity)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM tasks WHERE id=?`), id)
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

// ListTasks returns tasks without history. Completed listings sort by
// completion time, everything else by last update; both newest first.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	orderCol := "updated_at"
	switch domain.TaskState(f.Status) {
	case "":
	case domain.TaskStateNew:
		clauses = append(clauses, "accepted_at IS NULL AND completed_at IS NULL")
	case domain.TaskStateAccepted:
		clauses = append(clauses, "accepted_at IS NOT NULL AND completed_at IS NULL")
	case domain.TaskStateCompleted:
		clauses = append(clauses, "completed_at IS NOT NULL")
		orderCol = "completed_at"
	default:
		return nil, fmt.Errorf("invalid status filter %q", f.Status)
	}
	if f.AcceptedBy != "" {
		clauses = append(clauses, "accepted_by=?")
		args = append(args, f.AcceptedBy)
	}
	if f.Package != "" {
		clauses = append(clauses, "package=?")
		args = append(args, f.Package)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		clauses = append(clauses, `LOWER(title) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if f.CursorTS != "" && f.CursorID != "" {
		clauses = append(clauses, fmt.Sprintf("(%[1]s < ? OR (%[1]s = ? AND id < ?))", orderCol))
		args = append(args, f.CursorTS, f.CursorTS, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY ` + orderCol + ` DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
