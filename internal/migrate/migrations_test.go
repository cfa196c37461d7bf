package migrate_test

import (
	"testing"

	"github.com/feunard/roadmap/internal/db"
	"github.com/feunard/roadmap/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v < 1 {
		t.Fatalf("expected schema version >= 1, got %d", v)
	}
	for _, table := range []string{"projects", "characters", "tasks", "task_history", "invitations", "events", "api_keys"} {
		var n int
		if err := conn.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n); err != nil {
			t.Fatalf("lookup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("table %s missing", table)
		}
	}
}

func TestTaskHistoryIsAppendOnly(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	stmts := []string{
		`INSERT INTO projects(id,title,public,created_by,packages_json,created_at,updated_at) VALUES ('p','Proj',0,'u','[]','t','t')`,
		`INSERT INTO tasks(id,project_id,title,priority,complexity,created_by,created_at,updated_at) VALUES ('t1','p','Task','low',1,'u','t','t')`,
		`INSERT INTO task_history(task_id,at,actor_id,action) VALUES ('t1','t','u','assigned')`,
	}
	for _, s := range stmts {
		if _, err := conn.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	if _, err := conn.Exec(`UPDATE task_history SET action='unassigned'`); err == nil {
		t.Fatalf("expected history update to be rejected")
	}
	if _, err := conn.Exec(`INSERT INTO tasks(id,project_id,title,priority,complexity,created_by,created_at,updated_at) VALUES ('t2','p','Bad','urgent',1,'u','t','t')`); err == nil {
		t.Fatalf("expected priority check to reject unknown value")
	}
	if _, err := conn.Exec(`INSERT INTO tasks(id,project_id,title,priority,complexity,created_by,created_at,updated_at) VALUES ('t3','p','Bad','low',6,'u','t','t')`); err == nil {
		t.Fatalf("expected complexity check to reject 6")
	}
}
