package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/feunard/roadmap/internal/db"
)

// Repo is the storage collaborator. Writes that belong to a lifecycle
// transition take the caller's *sql.Tx; reads come in plain and Tx variants.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("more than one row matched")
)

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(conn *sql.DB) Repo {
	return Repo{DB: conn, Dialect: db.DialectOf(conn)}
}

func (r Repo) q(query string) string {
	return db.Rebind(r.Dialect, query)
}

// affected reports whether a guarded write touched a row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// marshalList encodes a slice as a JSON array, never as null.
func marshalList[T any](items []T) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
