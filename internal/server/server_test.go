package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feunard/roadmap/internal/config"
	"github.com/feunard/roadmap/internal/db"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/migrate"
	roadmapsdk "github.com/feunard/roadmap/sdk/go"
)

type testServer struct {
	URL string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{Engine: e, BasePath: "/v0", Auth: AuthConfig{
		JWTSecret:              "test-secret",
		Issuer:                 "roadmap",
		Audience:               "roadmap",
		AllowLegacyActorHeader: true,
		DevLogin:               true,
		Logger:                 log.New(io.Discard, "", 0),
	}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String()}
}

// as returns a client authenticating through the legacy actor header.
func (s *testServer) as(actorID string) *roadmapsdk.Client {
	c := roadmapsdk.New(s.URL)
	c.ActorID = actorID
	return c
}

func apiErr(t *testing.T, err error) *roadmapsdk.APIError {
	t.Helper()
	var ae *roadmapsdk.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected api error, got %v", err)
	}
	return ae
}

func TestHealthAndAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	res, err := http.Get(srv.URL + "/v0/health")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Get(srv.URL + "/v0/projects")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	require.Equal(t, "unauthorized", envelope.Error.Code)

	bad := roadmapsdk.New(srv.URL)
	bad.BearerToken = "not-a-token"
	_, err = bad.ListProjects(context.Background())
	require.Equal(t, "invalid_credentials", apiErr(t, err).Code)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	login := roadmapsdk.New(srv.URL)
	token, err := login.DevLogin(ctx, "owner")
	require.NoError(t, err)
	owner := roadmapsdk.New(srv.URL)
	owner.BearerToken = token

	project, err := owner.CreateProject(ctx, "Quest board", false)
	require.NoError(t, err)
	require.Equal(t, "owner", project.CreatedBy)

	task, err := owner.CreateTask(ctx, project.ID, roadmapsdk.NewTask{
		Title:      "Slay the dragon",
		Package:    "Caves",
		Priority:   "high",
		Complexity: 3,
		Objectives: []roadmapsdk.Objective{{Title: "Find the lair"}},
	})
	require.NoError(t, err)
	require.Equal(t, "new", task.State)
	require.Equal(t, 1, task.IncompleteObjectives)

	_, err = owner.CompleteTask(ctx, task.ID)
	require.Equal(t, "task_not_accepted", apiErr(t, err).Code)

	task, err = owner.AcceptTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "accepted", task.State)

	_, err = owner.CompleteTask(ctx, task.ID)
	ae := apiErr(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, ae.StatusCode)
	require.Equal(t, "task_objectives_incomplete", ae.Code)
	require.Equal(t, "cannot complete task: 1 objective(s) remain incomplete", ae.Message)

	task, err = owner.ToggleObjective(ctx, task.ID, 0)
	require.NoError(t, err)
	require.Zero(t, task.IncompleteObjectives)

	_, err = owner.ToggleObjective(ctx, task.ID, 5)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr(t, err).StatusCode)

	done, err := owner.CompleteTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "completed", done.Task.State)
	require.Equal(t, roadmapsdk.Reward{XP: 750, Currency: 320}, done.Reward)
	require.Equal(t, 750, done.Character.XP)
	require.Equal(t, 1, done.Character.Sheet.Level)
	require.Equal(t, roadmapsdk.Purse{Gold: 3, Silver: 20}, done.Character.Sheet.Purse)

	_, err = owner.AcceptTask(ctx, task.ID)
	require.Equal(t, http.StatusConflict, apiErr(t, err).StatusCode)

	got, err := owner.GetTask(ctx, task.ID)
	require.NoError(t, err)
	var actions []string
	for _, h := range got.History {
		actions = append(actions, h.Action)
	}
	require.Equal(t, []string{"assigned", "objective_completed"}, actions)

	sheet, err := owner.MyCharacter(ctx, project.ID)
	require.NoError(t, err)
	require.Equal(t, 750, sheet.XP)
	require.Equal(t, 320, sheet.Balance)

	p, err := owner.GetProject(ctx, project.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Caves"}, p.Packages)

	events, err := owner.Events(ctx, project.ID, 100)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	require.Equal(t, "character.rewarded", events[0].Type)
}

func TestInvitationsAndAccess(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	owner, friend, stranger := srv.as("owner"), srv.as("friend"), srv.as("stranger")

	project, err := owner.CreateProject(ctx, "Guild hall", false)
	require.NoError(t, err)

	_, err = stranger.GetProject(ctx, project.ID)
	require.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)
	_, err = friend.Invite(ctx, project.ID, "stranger")
	require.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)

	_, err = owner.Invite(ctx, project.ID, "owner")
	require.Equal(t, "invitation_self", apiErr(t, err).Code)

	inv, err := owner.Invite(ctx, project.ID, "friend")
	require.NoError(t, err)
	require.Equal(t, "pending", inv.Status)

	pending, err := friend.MyInvitations(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	sent, err := owner.ProjectInvitations(ctx, project.ID, "pending")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, inv.ID, sent[0].ID)
	_, err = friend.ProjectInvitations(ctx, project.ID, "")
	require.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)

	c, err := friend.AcceptInvitation(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, 1, c.Sheet.Level)
	require.False(t, c.Owner)

	players, err := friend.Players(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	require.Equal(t, "owner", players[0].UserID)

	task, err := friend.CreateTask(ctx, project.ID, roadmapsdk.NewTask{Title: "Sweep", Priority: "low", Complexity: 1})
	require.NoError(t, err)
	_, err = stranger.AcceptTask(ctx, task.ID)
	require.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)

	public := true
	_, err = friend.UpdateProject(ctx, project.ID, nil, &public)
	require.Equal(t, http.StatusForbidden, apiErr(t, err).StatusCode)
	_, err = owner.UpdateProject(ctx, project.ID, nil, &public)
	require.NoError(t, err)
	page, err := stranger.ListTasks(ctx, project.ID, roadmapsdk.TaskQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	require.NoError(t, owner.DeleteProject(ctx, project.ID))
	_, err = owner.GetProject(ctx, project.ID)
	require.Equal(t, "project_not_found", apiErr(t, err).Code)
}

func TestConcurrentAcceptOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	owner := srv.as("owner")
	project, err := owner.CreateProject(ctx, "Race track", false)
	require.NoError(t, err)
	inv, err := owner.Invite(ctx, project.ID, "rival")
	require.NoError(t, err)
	_, err = srv.as("rival").AcceptInvitation(ctx, inv.ID)
	require.NoError(t, err)
	task, err := owner.CreateTask(ctx, project.ID, roadmapsdk.NewTask{Title: "Grab the flag", Priority: "medium", Complexity: 2})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []string{"owner", "rival"} {
		wg.Add(1)
		go func(i int, actor string) {
			defer wg.Done()
			_, errs[i] = srv.as(actor).AcceptTask(ctx, task.ID)
		}(i, actor)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.Equal(t, http.StatusConflict, apiErr(t, err).StatusCode)
		conflicts++
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, conflicts)
}

func TestTaskPagination(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	owner := srv.as("owner")
	project, err := owner.CreateProject(ctx, "Long list", false)
	require.NoError(t, err)
	for _, title := range []string{"One", "Two", "Three"} {
		_, err := owner.CreateTask(ctx, project.ID, roadmapsdk.NewTask{Title: title, Priority: "optional", Complexity: 1})
		require.NoError(t, err)
	}

	first, err := owner.ListTasks(ctx, project.ID, roadmapsdk.TaskQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)

	second, err := owner.ListTasks(ctx, project.ID, roadmapsdk.TaskQuery{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	require.Empty(t, second.NextCursor)

	seen := map[string]bool{}
	for _, task := range append(first.Items, second.Items...) {
		seen[task.ID] = true
	}
	require.Len(t, seen, 3)

	_, err = owner.ListTasks(ctx, project.ID, roadmapsdk.TaskQuery{Status: "archived"})
	require.Equal(t, "task_invalid_status_filter", apiErr(t, err).Code)
	_, err = owner.ListTasks(ctx, project.ID, roadmapsdk.TaskQuery{Cursor: "garbage"})
	require.Equal(t, http.StatusBadRequest, apiErr(t, err).StatusCode)
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	owner := srv.as("owner")

	key, err := owner.CreateAPIKey(ctx, "ci")
	require.NoError(t, err)
	require.NotEmpty(t, key.Key)

	withKey := roadmapsdk.New(srv.URL)
	withKey.APIKey = key.Key
	project, err := withKey.CreateProject(ctx, "Keyed", false)
	require.NoError(t, err)
	require.Equal(t, "owner", project.CreatedBy)

	keys, err := withKey.ListAPIKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Empty(t, keys[0].Key)

	require.NoError(t, owner.RevokeAPIKey(ctx, key.ID))
	_, err = withKey.ListProjects(ctx)
	require.Equal(t, http.StatusUnauthorized, apiErr(t, err).StatusCode)
}
