package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feunard/roadmap/internal/apperr"
	"github.com/feunard/roadmap/internal/config"
	"github.com/feunard/roadmap/internal/db"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/events"
	"github.com/feunard/roadmap/internal/migrate"
)

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Project domain.Project
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	p, err := eng.CreateProject(ctx, engine.ProjectCreateOptions{Title: "Quest board", ActorID: "owner"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Project: p}
}

func (env testEnv) createTask(t *testing.T, priority domain.Priority, complexity int, objectives ...string) domain.Task {
	t.Helper()
	var objs []domain.Objective
	for _, title := range objectives {
		objs = append(objs, domain.Objective{Title: title})
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID:  env.Project.ID,
		Title:      "Slay the dragon",
		Priority:   priority,
		Complexity: complexity,
		Objectives: objs,
		ActorID:    "owner",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func historyActions(task domain.Task) []domain.HistoryAction {
	var res []domain.HistoryAction
	for _, h := range task.History {
		res = append(res, h.Action)
	}
	return res
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.TaskCreateOptions
		code apperr.Code
	}{
		{"empty title", engine.TaskCreateOptions{Title: "  ", Priority: domain.PriorityLow, Complexity: 1}, apperr.CodeTaskTitleEmpty},
		{"bad priority", engine.TaskCreateOptions{Title: "x", Priority: "urgent", Complexity: 1}, apperr.CodeTaskInvalidPriority},
		{"complexity zero", engine.TaskCreateOptions{Title: "x", Priority: domain.PriorityLow, Complexity: 0}, apperr.CodeTaskInvalidComplexity},
		{"complexity six", engine.TaskCreateOptions{Title: "x", Priority: domain.PriorityLow, Complexity: 6}, apperr.CodeTaskInvalidComplexity},
	}
	for _, tc := range cases {
		tc.opts.ProjectID = env.Project.ID
		tc.opts.ActorID = "owner"
		_, err := env.Engine.CreateTask(env.Ctx, tc.opts)
		if apperr.GetCode(err) != tc.code {
			t.Fatalf("%s: expected %s, got %v", tc.name, tc.code, err)
		}
		if !apperr.IsValidation(err) {
			t.Fatalf("%s: expected validation class", tc.name)
		}
	}
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ProjectID: "missing", Title: "x", Priority: domain.PriorityLow, Complexity: 1, ActorID: "owner",
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected project not found, got %v", err)
	}
}

func TestCreateTaskRegistersPackage(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
			ProjectID: env.Project.ID, Title: "Map the caves", Package: "underground",
			Priority: domain.PriorityMedium, Complexity: 2, ActorID: "owner",
		})
		require.NoError(t, err)
	}
	p, err := env.Engine.GetProject(env.Ctx, env.Project.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"underground"}, p.Packages)
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityHigh, 5)
	require.Equal(t, domain.TaskStateNew, task.State())
	require.Empty(t, task.History)

	task, err := env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStateAccepted, task.State())
	require.Equal(t, "owner", *task.AcceptedBy)

	task, err = env.Engine.AbandonTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStateNew, task.State())
	require.Nil(t, task.AcceptedAt)
	require.Nil(t, task.AcceptedBy)

	_, err = env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	res, err := env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStateCompleted, res.Task.State())
	require.Equal(t, "owner", *res.Task.CompletedBy)
	require.Equal(t, []domain.HistoryAction{domain.ActionAssigned, domain.ActionUnassigned, domain.ActionAssigned}, historyActions(res.Task))

	// terminal
	_, err = env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.Equal(t, apperr.CodeTaskCompleted, apperr.GetCode(err))
	_, err = env.Engine.AbandonTask(env.Ctx, task.ID, "owner")
	require.True(t, apperr.IsConflict(err))
	_, err = env.Engine.EditTask(env.Ctx, engine.TaskEditOptions{ID: task.ID, Title: strPtr("renamed"), ActorID: "owner"})
	require.True(t, apperr.IsConflict(err))
	_, err = env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	require.True(t, apperr.IsConflict(err))
}

func TestAcceptAndAbandonGuards(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1)

	_, err := env.Engine.AbandonTask(env.Ctx, task.ID, "owner")
	if !apperr.IsConflict(err) && !apperr.IsNotFound(err) {
		t.Fatalf("abandon on new task: expected conflict, got %v", err)
	}
	if _, err := env.Engine.AcceptTask(env.Ctx, task.ID, "owner"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = env.Engine.AcceptTask(env.Ctx, task.ID, "other")
	if apperr.GetCode(err) != apperr.CodeTaskNotNew {
		t.Fatalf("second accept: expected %s, got %v", apperr.CodeTaskNotNew, err)
	}
	_, err = env.Engine.AcceptTask(env.Ctx, "missing", "owner")
	if apperr.GetCode(err) != apperr.CodeTaskNotFound {
		t.Fatalf("accept missing: expected not found, got %v", err)
	}
	_, err = env.Engine.AcceptTask(env.Ctx, task.ID, "")
	if !apperr.IsValidation(err) {
		t.Fatalf("expected actor validation error, got %v", err)
	}
}

func TestConcurrentAcceptIsExclusive(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityMedium, 3)

	actors := []string{"alice", "bob"}
	errs := make([]error, len(actors))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, actor := range actors {
		wg.Add(1)
		go func(i int, actor string) {
			defer wg.Done()
			<-start
			_, errs[i] = env.Engine.AcceptTask(env.Ctx, task.ID, actor)
		}(i, actor)
	}
	close(start)
	wg.Wait()

	winner := ""
	for i, err := range errs {
		if err == nil {
			if winner != "" {
				t.Fatalf("both accepts succeeded")
			}
			winner = actors[i]
			continue
		}
		if !apperr.IsConflict(err) && !apperr.IsNotFound(err) {
			t.Fatalf("loser: expected conflict, got %v", err)
		}
	}
	if winner == "" {
		t.Fatalf("no accept succeeded: %v", errs)
	}
	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, winner, *got.AcceptedBy)
	require.Equal(t, []domain.HistoryAction{domain.ActionAssigned}, historyActions(got))
}

func TestConcurrentCompleteRewardsOnce(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityHigh, 5, "a")
	_, err := env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 0, "owner")
	require.NoError(t, err)

	const workers = 4
	completeErrs := make([]error, workers)
	toggleErrs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			<-start
			_, completeErrs[i] = env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
		}(i)
		go func(i int) {
			defer wg.Done()
			<-start
			_, toggleErrs[i] = env.Engine.ToggleObjective(env.Ctx, task.ID, 0, "owner")
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range completeErrs {
		if err == nil {
			successes++
			continue
		}
		require.NotEqual(t, apperr.ClassInternal, apperr.ClassOf(err), "complete: %v", err)
	}
	for _, err := range toggleErrs {
		if err != nil {
			require.Equal(t, apperr.CodeTaskCompleted, apperr.GetCode(err), "toggle: %v", err)
		}
	}
	require.LessOrEqual(t, successes, 1)

	// Toggles may have left the objective open; close it and finish the task.
	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	if got.State() != domain.TaskStateCompleted {
		require.Zero(t, successes)
		if got.IncompleteObjectives() > 0 {
			_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 0, "owner")
			require.NoError(t, err)
		}
		_, err = env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
		require.NoError(t, err)
		successes++
		got, err = env.Engine.GetTask(env.Ctx, task.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 1, successes)
	require.Equal(t, domain.TaskStateCompleted, got.State())
	require.Zero(t, got.IncompleteObjectives())

	c, err := env.Engine.CharacterFor(env.Ctx, env.Project.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, 1050, c.XP)
	require.Equal(t, 400, c.Balance)

	completed, err := env.Engine.Repo.LatestEvents(env.Ctx, 50, env.Project.ID, events.TaskCompleted, "task", task.ID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	rewarded, err := env.Engine.Repo.LatestEvents(env.Ctx, 50, env.Project.ID, events.CharacterRewarded, "", "")
	require.NoError(t, err)
	require.Len(t, rewarded, 1)
}

func TestCompletedTaskRejectsObjectiveChanges(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1, "a", "b")
	_, err := env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 0, "owner")
	require.NoError(t, err)
	_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 1, "owner")
	require.NoError(t, err)
	res, err := env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	before := res.Task

	_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 0, "owner")
	require.Equal(t, apperr.CodeTaskCompleted, apperr.GetCode(err))
	require.True(t, apperr.IsConflict(err))

	_, err = env.Engine.ReplaceObjectives(env.Ctx, task.ID, []domain.Objective{{Title: "c"}}, "owner")
	require.Equal(t, apperr.CodeTaskCompleted, apperr.GetCode(err))
	require.True(t, apperr.IsConflict(err))

	after, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, before.Objectives, after.Objectives)
	require.Equal(t, before.History, after.History)
	require.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestCompleteObjectiveGate(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityHigh, 2, "find map", "cross river")
	_, err := env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)

	_, err = env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	require.True(t, apperr.IsValidation(err))
	require.Equal(t, "cannot complete task: 2 objective(s) remain incomplete", err.Error())
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "2", ae.Metadata["incomplete"])

	_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 0, "owner")
	require.NoError(t, err)
	_, err = env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	require.Equal(t, "cannot complete task: 1 objective(s) remain incomplete", err.Error())

	_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 1, "owner")
	require.NoError(t, err)
	res, err := env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, domain.TaskStateCompleted, res.Task.State())
}

func TestCompleteRequiresAcceptance(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1)
	_, err := env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	if apperr.GetCode(err) != apperr.CodeTaskNotAccepted {
		t.Fatalf("expected %s, got %v", apperr.CodeTaskNotAccepted, err)
	}
}

func TestCompleteRewardsCharacter(t *testing.T) {
	env := newTestEnv(t)
	first := env.createTask(t, domain.PriorityHigh, 5)
	second := env.createTask(t, domain.PriorityHigh, 5)

	_, err := env.Engine.AcceptTask(env.Ctx, first.ID, "owner")
	require.NoError(t, err)
	res, err := env.Engine.CompleteTask(env.Ctx, first.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, 1050, res.Reward.XP)
	require.Equal(t, 400, res.Reward.Currency)
	require.Equal(t, 1050, res.Character.XP)
	require.Equal(t, 400, res.Character.Balance)
	require.Equal(t, 1, res.LevelAfter)
	require.False(t, res.LeveledUp)

	_, err = env.Engine.AcceptTask(env.Ctx, second.ID, "owner")
	require.NoError(t, err)
	res, err = env.Engine.CompleteTask(env.Ctx, second.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, 2100, res.Character.XP)
	require.Equal(t, 800, res.Character.Balance)
	require.Equal(t, 1, res.LevelBefore)
	require.Equal(t, 2, res.LevelAfter)
	require.True(t, res.LeveledUp)

	view, err := env.Engine.CharacterFor(env.Ctx, env.Project.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, 2, view.Sheet.Level)
	require.Equal(t, 8, view.Sheet.Purse.Gold)
	require.Equal(t, 0, view.Sheet.Purse.Silver)
}

func TestCompleteIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityMedium, 2)
	// stranger has no character in the project
	_, err := env.Engine.AcceptTask(env.Ctx, task.ID, "stranger")
	require.NoError(t, err)
	before, err := env.Engine.CharacterFor(env.Ctx, env.Project.ID, "owner")
	require.NoError(t, err)

	_, err = env.Engine.CompleteTask(env.Ctx, task.ID, "stranger")
	require.Equal(t, apperr.CodeCharacterNotFound, apperr.GetCode(err))

	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.Nil(t, got.CompletedAt)
	require.Nil(t, got.CompletedBy)
	require.Equal(t, domain.TaskStateAccepted, got.State())
	after, err := env.Engine.CharacterFor(env.Ctx, env.Project.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, before.XP, after.XP)
	require.Equal(t, before.Balance, after.Balance)

	var events int
	require.NoError(t, env.Engine.DB.QueryRowContext(env.Ctx, `SELECT count(*) FROM events WHERE type='task.completed'`).Scan(&events))
	require.Zero(t, events)
}

func TestToggleObjectiveHistory(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1, "one", "two")

	// allowed while new
	task, err := env.Engine.ToggleObjective(env.Ctx, task.ID, 0, "owner")
	require.NoError(t, err)
	require.True(t, task.Objectives[0].Completed)
	require.Equal(t, []domain.HistoryAction{domain.ActionObjectiveCompleted}, historyActions(task))

	_, err = env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	task, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 1, "owner")
	require.NoError(t, err)
	require.Len(t, task.History, 3)
	require.Equal(t, domain.ActionObjectiveCompleted, task.History[2].Action)

	// un-completing writes no history
	task, err = env.Engine.ToggleObjective(env.Ctx, task.ID, 1, "owner")
	require.NoError(t, err)
	require.False(t, task.Objectives[1].Completed)
	require.Len(t, task.History, 3)

	for _, idx := range []int{-1, 2} {
		_, err = env.Engine.ToggleObjective(env.Ctx, task.ID, idx, "owner")
		require.Equal(t, apperr.CodeTaskObjectiveIndex, apperr.GetCode(err))
	}
}

func TestEditTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1, "old")

	prio := domain.PriorityHigh
	complexity := 4
	task, err := env.Engine.EditTask(env.Ctx, engine.TaskEditOptions{
		ID: task.ID, Title: strPtr(" Rescue the bard "), Priority: &prio, Complexity: &complexity,
		Package: strPtr("tavern"), ActorID: "owner",
	})
	require.NoError(t, err)
	require.Equal(t, "Rescue the bard", task.Title)
	require.Equal(t, domain.PriorityHigh, task.Priority)
	require.Equal(t, 4, task.Complexity)
	require.Equal(t, []domain.HistoryAction{domain.ActionUpdated}, historyActions(task))

	task, err = env.Engine.ReplaceObjectives(env.Ctx, task.ID, []domain.Objective{{Title: "a"}, {Title: "b", Completed: true}}, "owner")
	require.NoError(t, err)
	require.Len(t, task.Objectives, 2)
	require.True(t, task.Objectives[1].Completed)
	require.Len(t, task.History, 2)

	bad := 9
	_, err = env.Engine.EditTask(env.Ctx, engine.TaskEditOptions{ID: task.ID, Complexity: &bad, ActorID: "owner"})
	require.Equal(t, apperr.CodeTaskInvalidComplexity, apperr.GetCode(err))

	p, err := env.Engine.GetProject(env.Ctx, env.Project.ID)
	require.NoError(t, err)
	require.True(t, p.HasPackage("tavern"))
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1)
	_, err := env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	require.NoError(t, err)
	require.NoError(t, env.Engine.DeleteTask(env.Ctx, task.ID, "owner"))
	_, err = env.Engine.GetTask(env.Ctx, task.ID)
	require.True(t, apperr.IsNotFound(err))
	err = env.Engine.DeleteTask(env.Ctx, task.ID, "owner")
	require.True(t, apperr.IsNotFound(err))
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)
	a := env.createTask(t, domain.PriorityLow, 1)
	b := env.createTask(t, domain.PriorityLow, 1)
	c := env.createTask(t, domain.PriorityLow, 1)
	_, err := env.Engine.EditTask(env.Ctx, engine.TaskEditOptions{ID: c.ID, Title: strPtr("Find the 100% potion"), ActorID: "owner"})
	require.NoError(t, err)
	_, err = env.Engine.AcceptTask(env.Ctx, b.ID, "owner")
	require.NoError(t, err)
	_, err = env.Engine.AcceptTask(env.Ctx, a.ID, "owner")
	require.NoError(t, err)
	_, err = env.Engine.CompleteTask(env.Ctx, a.ID, "owner")
	require.NoError(t, err)

	ids := func(tasks []domain.Task) []string {
		var res []string
		for _, t := range tasks {
			res = append(res, t.ID)
		}
		return res
	}
	all, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)

	news, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID, Status: "new"})
	require.NoError(t, err)
	require.Equal(t, []string{c.ID}, ids(news))

	accepted, err := env.Engine.MyActiveTasks(env.Ctx, env.Project.ID, "owner")
	require.NoError(t, err)
	require.Equal(t, []string{b.ID}, ids(accepted))

	done, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID, Status: "completed"})
	require.NoError(t, err)
	require.Equal(t, []string{a.ID}, ids(done))

	found, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID, Search: "100%"})
	require.NoError(t, err)
	require.Equal(t, []string{c.ID}, ids(found))
	found, err = env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID, Search: "DRAGON"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	_, err = env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID, Status: "done"})
	require.Equal(t, apperr.CodeTaskInvalidStatusFilter, apperr.GetCode(err))

	page, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	last := page[1]
	rest, err := env.Engine.ListTasks(env.Ctx, engine.TaskListOptions{ProjectID: env.Project.ID, Limit: 2, CursorTS: last.UpdatedAt, CursorID: last.ID})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.NotContains(t, ids(page), rest[0].ID)
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, domain.PriorityLow, 1)
	_, _ = env.Engine.AcceptTask(env.Ctx, task.ID, "owner")
	_, _ = env.Engine.CompleteTask(env.Ctx, task.ID, "owner")
	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, env.Project.ID, "", "task", task.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	require.Equal(t, []string{"task.completed", "task.accepted", "task.created"}, types)
}

func strPtr(s string) *string { return &s }
