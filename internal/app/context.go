package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/feunard/roadmap/internal/config"
	"github.com/feunard/roadmap/internal/db"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/migrate"
)

// Workspace is an opened roadmap workspace: config, runtime env and a
// migrated database behind an engine.
type Workspace struct {
	Dir    string
	Config *config.Config
	Env    config.Env
	DB     *sql.DB
	Engine engine.Engine
}

// Open loads roadmap.yml (defaults when absent) and the environment, opens
// the configured store and applies migrations. ROADMAP_DATABASE_URL selects
// postgres regardless of the file.
func Open(ctx context.Context, dir string, logger *log.Logger) (*Workspace, error) {
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	dbCfg := db.Config{Workspace: dir, Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN}
	if env.DatabaseURL != "" {
		dbCfg.Driver = string(db.Postgres)
		dbCfg.DSN = env.DatabaseURL
	}
	conn, err := db.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", db.DialectOf(conn), err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	e := engine.New(conn, cfg)
	e.Logger = logger
	return &Workspace{Dir: dir, Config: cfg, Env: env, DB: conn, Engine: e}, nil
}

func (w *Workspace) Close() error {
	return w.DB.Close()
}

// ResolveProject picks the active project. It prefers the override, then the
// only project the actor plays in.
func ResolveProject(ctx context.Context, e engine.Engine, override, actorID string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	projects, err := e.ListProjectsForUser(ctx, actorID)
	if err != nil {
		return "", err
	}
	switch len(projects) {
	case 0:
		return "", fmt.Errorf("no project for %s; create one with roadmap project create", actorID)
	case 1:
		return projects[0].ID, nil
	default:
		return "", fmt.Errorf("%s plays in %d projects; use --project or roadmap project use", actorID, len(projects))
	}
}
