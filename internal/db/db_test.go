package db

import (
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	cases := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{SQLite, `SELECT * FROM tasks WHERE id=?`, `SELECT * FROM tasks WHERE id=?`},
		{Postgres, `SELECT * FROM tasks WHERE id=? AND project_id=?`, `SELECT * FROM tasks WHERE id=$1 AND project_id=$2`},
		{Postgres, `UPDATE tasks SET title='what?' WHERE id=?`, `UPDATE tasks SET title='what?' WHERE id=$1`},
		{Postgres, `SELECT 1`, `SELECT 1`},
	}
	for _, tc := range cases {
		if got := Rebind(tc.dialect, tc.in); got != tc.want {
			t.Fatalf("Rebind(%s, %q) = %q, want %q", tc.dialect, tc.in, got, tc.want)
		}
	}
}

func TestOpenSQLiteWorkspace(t *testing.T) {
	dir := t.TempDir()
	conn, err := Open(Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if err := conn.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if got := DialectOf(conn); got != SQLite {
		t.Fatalf("dialect %s", got)
	}
	if want := filepath.Join(dir, ".roadmap", "roadmap.db"); Path(dir) != want {
		t.Fatalf("path %s, want %s", Path(dir), want)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "mysql"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
	if _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Fatalf("expected error for postgres without dsn")
	}
}
