package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/engine/auth"
	"github.com/feunard/roadmap/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"task_not_accepted"`
	Message string         `json:"message" example:"task must be accepted before it can be completed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type output[T any] struct {
	Body T `json:"body"`
}

func respond[T any](v T) *output[T] {
	return &output[T]{Body: v}
}

const devTokenTTL = 12 * time.Hour

// New returns an HTTP handler exposing the roadmap API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine))
	hcfg := huma.DefaultConfig("Roadmap API", "0.1.0")
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerMe(group)
	registerProjects(group, cfg.Engine)
	registerInvitations(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerCharacters(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	if cfg.Auth.DevLogin {
		registerDevAuth(group, cfg.Auth)
	}
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		var details map[string]any
		if len(ae.Metadata) > 0 {
			details = make(map[string]any, len(ae.Metadata))
			for k, v := range ae.Metadata {
				details[k] = v
			}
		}
		status := ae.Code.HTTPStatus()
		if status == http.StatusInternalServerError {
			return newAPIError(status, "internal_error", "internal error", map[string]any{"error": ae.Error()})
		}
		return newAPIError(status, strings.ToLower(string(ae.Code)), ae.Message, details)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requireAccess resolves the caller and checks their access to a project.
func requireAccess(ctx context.Context, e engine.Engine, projectID string, access auth.Access) (string, error) {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return "", authErr
	}
	if _, err := e.Auth.Require(ctx, projectID, actorID, access); err != nil {
		return "", err
	}
	return actorID, nil
}

// requireTaskAccess loads a task and checks access to its project.
func requireTaskAccess(ctx context.Context, e engine.Engine, taskID string, access auth.Access) (domain.Task, string, error) {
	t, err := e.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, "", err
	}
	actorID, err := requireAccess(ctx, e, t.ProjectID, access)
	if err != nil {
		return domain.Task{}, "", err
	}
	return t, actorID, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil || oas.Components == nil || oas.Components.Schemas == nil {
		return
	}
	errSchema := oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "ApiError")
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: errSchema,
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		path.Join("/", basePath, "health"):         true,
		path.Join("/", basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Roadmap API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*output[map[string]string], error) {
		return respond(map[string]string{"status": "ok"}), nil
	})
}

func registerMe(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*output[WhoAmIResponse], error) {
		p, ok := principalFromContext(ctx)
		if !ok || p.ActorID == "" {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return respond(WhoAmIResponse{ActorID: p.ActorID, Source: p.Source}), nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*output[ProjectResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{
			Title:   input.Body.Title,
			Public:  input.Body.Public,
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(projectResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List the caller's projects",
	}, func(ctx context.Context, _ *struct{}) (*output[[]ProjectResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListProjectsForUser(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ProjectResponse, 0, len(items))
		for _, p := range items {
			res = append(res, projectResponse(p))
		}
		return respond(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*output[ProjectResponse], error) {
		if _, err := requireAccess(ctx, e, input.ProjectID, auth.Read); err != nil {
			return nil, handleError(err)
		}
		p, err := e.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(projectResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*output[ProjectResponse], error) {
		actorID, err := requireAccess(ctx, e, input.ProjectID, auth.Owner)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:      input.ProjectID,
			Title:   input.Body.Title,
			Public:  input.Body.Public,
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(projectResponse(p)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		actorID, err := requireAccess(ctx, e, input.ProjectID, auth.Owner)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteProject(ctx, input.ProjectID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-players",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/players",
		Summary:     "List project players with their progression",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*output[[]CharacterResponse], error) {
		if _, err := requireAccess(ctx, e, input.ProjectID, auth.Read); err != nil {
			return nil, handleError(err)
		}
		views, err := e.PlayerSheets(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]CharacterResponse, 0, len(views))
		for _, v := range views {
			res = append(res, characterResponse(v))
		}
		return respond(res), nil
	})
}

func registerInvitations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "invite-member",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/invitations",
		Summary:       "Invite a user to the project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string        `path:"project_id"`
		Body      InviteRequest `json:"body"`
	}) (*output[domain.Invitation], error) {
		actorID, err := requireAccess(ctx, e, input.ProjectID, auth.Owner)
		if err != nil {
			return nil, handleError(err)
		}
		inv, err := e.InviteMember(ctx, input.ProjectID, actorID, input.Body.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(inv), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-invitations",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/invitations",
		Summary:     "List invitations sent from the project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status" enum:"pending,accepted,rejected"`
	}) (*output[[]domain.Invitation], error) {
		if _, err := requireAccess(ctx, e, input.ProjectID, auth.Owner); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListProjectInvitations(ctx, input.ProjectID, domain.InvitationStatus(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-invitations",
		Method:      http.MethodGet,
		Path:        "/me/invitations",
		Summary:     "List invitations addressed to the caller",
		Errors:      []int{http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"pending,accepted,rejected"`
	}) (*output[[]domain.Invitation], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListInvitations(ctx, actorID, domain.InvitationStatus(input.Status))
		if err != nil {
			return nil, handleError(err)
		}
		return respond(items), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-invitation",
		Method:      http.MethodPost,
		Path:        "/invitations/{invitation_id}/accept",
		Summary:     "Accept an invitation and join the project",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		InvitationID string `path:"invitation_id"`
	}) (*output[CharacterResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AcceptInvitation(ctx, input.InvitationID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		view, err := e.CharacterFor(ctx, c.ProjectID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(characterResponse(view)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-invitation",
		Method:      http.MethodPost,
		Path:        "/invitations/{invitation_id}/reject",
		Summary:     "Reject an invitation",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		InvitationID string `path:"invitation_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RejectInvitation(ctx, input.InvitationID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      CreateTaskRequest `json:"body"`
	}) (*output[TaskResponse], error) {
		actorID, err := requireAccess(ctx, e, input.ProjectID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			ProjectID:   input.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Package:     input.Body.Package,
			Priority:    domain.ParsePriority(input.Body.Priority),
			Complexity:  input.Body.Complexity,
			Objectives:  objectives(input.Body.Objectives),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return respond(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/tasks",
		Summary:     "List tasks",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		Status     string `query:"status"`
		Search     string `query:"search"`
		AcceptedBy string `query:"accepted_by"`
		Mine       bool   `query:"mine"`
		Package    string `query:"package"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*output[paginatedTasks], error) {
		actorID, err := requireAccess(ctx, e, input.ProjectID, auth.Read)
		if err != nil {
			return nil, handleError(err)
		}
		cursorTS, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		opts := engine.TaskListOptions{
			ProjectID:  input.ProjectID,
			Status:     input.Status,
			Search:     input.Search,
			AcceptedBy: input.AcceptedBy,
			Package:    input.Package,
			CursorTS:   cursorTS,
			CursorID:   cursorID,
		}
		if input.Mine {
			opts.AcceptedBy = actorID
		}
		limit := normalizeLimit(input.Limit)
		opts.Limit = limit + 1
		items, err := e.ListTasks(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedTasks{Items: []TaskResponse{}}
		if len(items) > limit {
			items = items[:limit]
			last := items[limit-1]
			ts := last.UpdatedAt
			if domain.TaskState(input.Status) == domain.TaskStateCompleted && last.CompletedAt != nil {
				ts = *last.CompletedAt
			}
			resp.NextCursor = composeCursor(ts, last.ID)
		}
		for _, t := range items {
			resp.Items = append(resp.Items, taskResponse(t))
		}
		return respond(resp), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task with its history",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*output[TaskResponse], error) {
		t, _, err := requireTaskAccess(ctx, e, input.TaskID, auth.Read)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{task_id}",
		Summary:     "Edit task fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string            `path:"task_id"`
		Body   UpdateTaskRequest `json:"body"`
	}) (*output[TaskResponse], error) {
		_, actorID, err := requireTaskAccess(ctx, e, input.TaskID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		opts := engine.TaskEditOptions{
			ID:          input.TaskID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Package:     input.Body.Package,
			Complexity:  input.Body.Complexity,
			ActorID:     actorID,
		}
		if input.Body.Priority != nil {
			p := domain.ParsePriority(*input.Body.Priority)
			opts.Priority = &p
		}
		if input.Body.Objectives != nil {
			objs := objectives(*input.Body.Objectives)
			opts.Objectives = &objs
		}
		t, err := e.EditTask(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-task-objectives",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/objectives",
		Summary:     "Replace task objectives",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string               `path:"task_id"`
		Body   SetObjectivesRequest `json:"body"`
	}) (*output[TaskResponse], error) {
		_, actorID, err := requireTaskAccess(ctx, e, input.TaskID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.ReplaceObjectives(ctx, input.TaskID, objectives(input.Body.Objectives), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "toggle-task-objective",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/objectives/{index}/toggle",
		Summary:     "Toggle an objective's completion",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
		Index  int    `path:"index"`
	}) (*output[TaskResponse], error) {
		_, actorID, err := requireTaskAccess(ctx, e, input.TaskID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.ToggleObjective(ctx, input.TaskID, input.Index, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/accept",
		Summary:     "Accept a new task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*output[TaskResponse], error) {
		_, actorID, err := requireTaskAccess(ctx, e, input.TaskID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.AcceptTask(ctx, input.TaskID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "abandon-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/abandon",
		Summary:     "Return an accepted task to the board",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*output[TaskResponse], error) {
		_, actorID, err := requireTaskAccess(ctx, e, input.TaskID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.AbandonTask(ctx, input.TaskID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(taskResponse(t)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/complete",
		Summary:     "Complete a task and reward the caller's character",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*output[CompletionResponse], error) {
		_, actorID, err := requireTaskAccess(ctx, e, input.TaskID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.CompleteTask(ctx, input.TaskID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		body, err := completionResponse(res)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(body), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{task_id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct{}, error) {
		_, actorID, err := requireTaskAccess(ctx, e, input.TaskID, auth.Write)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteTask(ctx, input.TaskID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerCharacters(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "my-character",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/character",
		Summary:     "The caller's character sheet in a project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*output[CharacterResponse], error) {
		actorID, err := requireAccess(ctx, e, input.ProjectID, auth.Read)
		if err != nil {
			return nil, handleError(err)
		}
		view, err := e.CharacterFor(ctx, input.ProjectID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return respond(characterResponse(view)), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-characters",
		Method:      http.MethodGet,
		Path:        "/me/characters",
		Summary:     "Every character the caller holds",
	}, func(ctx context.Context, _ *struct{}) (*output[[]CharacterResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		views, err := e.CharactersForUser(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]CharacterResponse, 0, len(views))
		for _, v := range views {
			res = append(res, characterResponse(v))
		}
		return respond(res), nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"project,task,character,invitation"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*output[paginatedEvents], error) {
		if _, err := requireAccess(ctx, e, input.ProjectID, auth.Read); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, input.ProjectID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return respond(resp), nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/me/api-keys",
		Summary:       "Create an API key; the key is shown once",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*output[APIKeyResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, plain, err := e.CreateAPIKey(ctx, actorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		res := apiKeyResponse(key)
		res.Key = plain
		return respond(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/me/api-keys",
		Summary:     "List the caller's API keys",
	}, func(ctx context.Context, _ *struct{}) (*output[[]APIKeyResponse], error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			res = append(res, apiKeyResponse(k))
		}
		return respond(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/me/api-keys/{key_id}",
		Summary:     "Revoke an API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeAPIKey(ctx, input.KeyID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*output[DevLoginResponse], error) {
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg, actor, devTokenTTL)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return respond(DevLoginResponse{Token: token}), nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}
