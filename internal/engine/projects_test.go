package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/engine/auth"
)

func TestCreateProjectCreatesOwnerCharacter(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, "Quest board", env.Project.Title)
	players, err := env.Engine.ProjectPlayers(env.Ctx, env.Project.ID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	require.True(t, players[0].Owner)
	require.Equal(t, "owner", players[0].UserID)
	require.Zero(t, players[0].XP)
	require.Zero(t, players[0].Balance)
}

func TestCreateProjectTitleBounds(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"", "ab", "   ab   ", "a title that is far too long for it"} {
		_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: title, ActorID: "owner"})
		if apperr.GetCode(err) != apperr.CodeProjectTitleInvalid {
			t.Fatalf("title %q: expected %s, got %v", title, apperr.CodeProjectTitleInvalid, err)
		}
	}
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "  Keep  ", ActorID: "owner"})
	require.NoError(t, err)
	require.Equal(t, "Keep", p.Title)
}

func TestCreateProjectLimit(t *testing.T) {
	env := newTestEnv(t)
	// the env already created one project for owner
	for i := 1; i < env.Engine.Config.Projects.MaxPerUser; i++ {
		_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Side quest", ActorID: "owner"})
		require.NoError(t, err)
	}
	_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "One too many", ActorID: "owner"})
	require.Equal(t, apperr.CodeProjectLimitReached, apperr.GetCode(err))
	require.True(t, apperr.IsForbidden(err))

	_, err = env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Other user", ActorID: "someone"})
	require.NoError(t, err)

	projects, err := env.Engine.ListProjectsForUser(env.Ctx, "owner")
	require.NoError(t, err)
	require.Len(t, projects, env.Engine.Config.Projects.MaxPerUser)
}

func TestUpdateProject(t *testing.T) {
	env := newTestEnv(t)
	public := true
	p, err := env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: env.Project.ID, Title: strPtr("New name"), Public: &public, ActorID: "owner"})
	require.NoError(t, err)
	require.Equal(t, "New name", p.Title)
	require.True(t, p.Public)

	_, err = env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: env.Project.ID, Title: strPtr("x"), ActorID: "owner"})
	require.Equal(t, apperr.CodeProjectTitleInvalid, apperr.GetCode(err))
	_, err = env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: "missing", ActorID: "owner"})
	require.Equal(t, apperr.CodeProjectNotFound, apperr.GetCode(err))
}

func TestDeleteProjectCascades(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1, "obj")
	_, err := env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	_, err = env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "friend")
	require.NoError(t, err)

	require.NoError(t, env.Engine.DeleteProject(env.Ctx, env.Project.ID, "owner"))
	for _, table := range []string{"tasks", "task_history", "characters", "invitations"} {
		var n int
		require.NoError(t, env.Engine.DB.QueryRowContext(env.Ctx, "SELECT count(*) FROM "+table).Scan(&n))
		require.Zero(t, n, table)
	}
	err = env.Engine.DeleteProject(env.Ctx, env.Project.ID, "owner")
	require.True(t, apperr.IsNotFound(err))
}

func TestInvitationFlow(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "owner")
	require.Equal(t, apperr.CodeInvitationSelf, apperr.GetCode(err))

	inv, err := env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "friend")
	require.NoError(t, err)
	require.Equal(t, domain.InvitationPending, inv.Status)

	_, err = env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "friend")
	require.Equal(t, apperr.CodeInvitationDuplicate, apperr.GetCode(err))

	pending, err := env.Engine.ListInvitations(env.Ctx, "friend", domain.InvitationPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	sent, err := env.Engine.ListProjectInvitations(env.Ctx, env.Project.ID, "")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, "friend", sent[0].UserID)
	_, err = env.Engine.ListProjectInvitations(env.Ctx, "missing", "")
	require.Equal(t, apperr.CodeProjectNotFound, apperr.GetCode(err))
	_, err = env.Engine.ListProjectInvitations(env.Ctx, env.Project.ID, "maybe")
	require.True(t, apperr.IsValidation(err))

	_, err = env.Engine.AcceptInvitation(env.Ctx, inv.ID, "intruder")
	require.Equal(t, apperr.CodeInvitationNotFound, apperr.GetCode(err))

	c, err := env.Engine.AcceptInvitation(env.Ctx, inv.ID, "friend")
	require.NoError(t, err)
	require.False(t, c.Owner)
	require.Equal(t, "friend", c.UserID)
	require.Zero(t, c.XP)

	_, err = env.Engine.AcceptInvitation(env.Ctx, inv.ID, "friend")
	require.Equal(t, apperr.CodeInvitationNotPending, apperr.GetCode(err))

	accepted, err := env.Engine.ListProjectInvitations(env.Ctx, env.Project.ID, domain.InvitationAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	stillPending, err := env.Engine.ListProjectInvitations(env.Ctx, env.Project.ID, domain.InvitationPending)
	require.NoError(t, err)
	require.Empty(t, stillPending)

	_, err = env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "friend")
	require.Equal(t, apperr.CodeInvitationMember, apperr.GetCode(err))

	players, err := env.Engine.ProjectPlayers(env.Ctx, env.Project.ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	require.Equal(t, "owner", players[0].UserID)
	require.Equal(t, "friend", players[1].UserID)
}

func TestRejectInvitation(t *testing.T) {
	env := newTestEnv(t)
	inv, err := env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "friend")
	require.NoError(t, err)
	require.NoError(t, env.Engine.RejectInvitation(env.Ctx, inv.ID, "friend"))
	err = env.Engine.RejectInvitation(env.Ctx, inv.ID, "friend")
	require.Equal(t, apperr.CodeInvitationNotPending, apperr.GetCode(err))

	all, err := env.Engine.ListInvitations(env.Ctx, "friend", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, domain.InvitationRejected, all[0].Status)

	_, err = env.Engine.ListInvitations(env.Ctx, "friend", "maybe")
	require.True(t, apperr.IsValidation(err))

	// a new invitation is allowed after a rejection
	_, err = env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "friend")
	require.NoError(t, err)
}

func TestAccessChecks(t *testing.T) {
	env := newTestEnv(t)
	svc := env.Engine.Auth

	_, err := svc.Require(env.Ctx, env.Project.ID, "owner", auth.Owner)
	require.NoError(t, err)
	_, err = svc.Require(env.Ctx, env.Project.ID, "stranger", auth.Read)
	require.True(t, apperr.IsForbidden(err))
	_, err = svc.Require(env.Ctx, "missing", "owner", auth.Read)
	require.Equal(t, apperr.CodeProjectNotFound, apperr.GetCode(err))

	inv, err := env.Engine.InviteMember(env.Ctx, env.Project.ID, "owner", "friend")
	require.NoError(t, err)
	_, err = env.Engine.AcceptInvitation(env.Ctx, inv.ID, "friend")
	require.NoError(t, err)
	_, err = svc.RequireMember(env.Ctx, env.Project.ID, "friend")
	require.NoError(t, err)
	_, err = svc.Require(env.Ctx, env.Project.ID, "friend", auth.Owner)
	require.True(t, apperr.IsForbidden(err))

	public := true
	_, err = env.Engine.UpdateProject(env.Ctx, engine.ProjectUpdateOptions{ID: env.Project.ID, Public: &public, ActorID: "owner"})
	require.NoError(t, err)
	_, err = svc.Require(env.Ctx, env.Project.ID, "stranger", auth.Read)
	require.NoError(t, err)
	_, err = svc.RequireMember(env.Ctx, env.Project.ID, "stranger")
	require.True(t, apperr.IsForbidden(err))
}

func TestCharactersForUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Title: "Second", ActorID: "owner"})
	require.NoError(t, err)
	views, err := env.Engine.CharactersForUser(env.Ctx, "owner")
	require.NoError(t, err)
	require.Len(t, views, 2)
	for _, v := range views {
		require.Equal(t, 1, v.Sheet.Level)
		require.Equal(t, 1080, v.Sheet.RequiredLevel)
	}
	_, err = env.Engine.CharacterFor(env.Ctx, env.Project.ID, "stranger")
	require.Equal(t, apperr.CodeCharacterNotFound, apperr.GetCode(err))
}
