package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/config"
	"github.com/feunard/roadmap/internal/engine/auth"
	"github.com/feunard/roadmap/internal/events"
	"github.com/feunard/roadmap/internal/repo"
)

var tracer = otel.Tracer("github.com/feunard/roadmap/internal/engine")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Logger *log.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	r := repo.New(db)
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db, Dialect: r.Dialect},
		Auth:   auth.Service{Repo: r},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// appendEvent records an event stamped with the engine clock.
func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, evtType, projectID, entityKind, entityID, actorID, payload)
}

// startSpan opens an engine.<op> span. The returned func ends it and records
// the error left in *errp.
func startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}

func requireActor(actorID string) error {
	if actorID == "" {
		return apperr.New(apperr.CodeInvalidArgument, "actor id is required")
	}
	return nil
}

// notFound converts repo.ErrNotFound into a coded error and passes other
// errors through.
func notFound(err error, code apperr.Code, kind, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return &apperr.Error{
			Code:     code,
			Message:  fmt.Sprintf("%s %s not found", kind, id),
			Metadata: map[string]string{"id": id},
			Cause:    err,
		}
	}
	return err
}
