package repo

import (
	"context"
	"database/sql"

	"github.com/feunard/roadmap/internal/domain"
)

// AppendHistory adds one audit row. Rows are never updated afterwards.
func (r Repo) AppendHistory(ctx context.Context, tx *sql.Tx, taskID string, e domain.HistoryEntry) error {
	_, err := tx.ExecContext(ctx, r.q(`INSERT INTO task_history(task_id, at, actor_id, action) VALUES (?,?,?,?)`),
		taskID, e.At, e.By, string(e.Action))
	return err
}

func (r Repo) listHistory(ctx context.Context, q Queryer, taskID string) ([]domain.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, r.q(`SELECT at, actor_id, action FROM task_history WHERE task_id=? ORDER BY id ASC`), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.HistoryEntry{}
	for rows.Next() {
		var e domain.HistoryEntry
		var action string
		if err := rows.Scan(&e.At, &e.By, &action); err != nil {
			return nil, err
		}
		e.Action = domain.HistoryAction(action)
		res = append(res, e)
	}
	return res, rows.Err()
}
