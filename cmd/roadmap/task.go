package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/engine/auth"
	"github.com/feunard/roadmap/internal/progression"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskEditCmd())
	task.AddCommand(taskAcceptCmd())
	task.AddCommand(taskAbandonCmd())
	task.AddCommand(taskCompleteCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskObjectiveCmd())
	task.AddCommand(taskObjectivesCmd())
	return task
}

func objectiveList(titles []string) []domain.Objective {
	out := make([]domain.Objective, 0, len(titles))
	for _, t := range titles {
		out = append(out, domain.Objective{Title: t})
	}
	return out
}

func taskCreateCmd() *cobra.Command {
	var title, description, pkg, priority string
	var complexity int
	var objectives []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task in the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), auth.Write, func(ctx context.Context, e engine.Engine, projectID string) error {
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					ProjectID:   projectID,
					Title:       title,
					Description: description,
					Package:     pkg,
					Priority:    domain.ParsePriority(priority),
					Complexity:  complexity,
					Objectives:  objectiveList(objectives),
					ActorID:     actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&pkg, "package", "", "package label")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityMedium), "optional, low, medium or high")
	cmd.Flags().IntVar(&complexity, "complexity", 1, "complexity from 1 to 5")
	cmd.Flags().StringArrayVar(&objectives, "objective", nil, "objective title (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var opts engine.TaskListOptions
	var mine bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), auth.Read, func(ctx context.Context, e engine.Engine, projectID string) error {
				opts.ProjectID = projectID
				if mine {
					opts.AcceptedBy = actorID()
				}
				tasks, err := e.ListTasks(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "State", "Priority", "Rank", "Objectives", "Accepted By"})
				for _, t := range tasks {
					done := len(t.Objectives) - t.IncompleteObjectives()
					tw.AppendRow(table.Row{
						t.ID, t.Title, t.State(), t.Priority, progression.Rank(t.Complexity),
						fmt.Sprintf("%d/%d", done, len(t.Objectives)), deref(t.AcceptedBy),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Status, "status", "", "new, accepted or completed")
	cmd.Flags().StringVar(&opts.Search, "search", "", "title substring")
	cmd.Flags().StringVar(&opts.AcceptedBy, "accepted-by", "", "accepting user")
	cmd.Flags().StringVar(&opts.Package, "package", "", "package label")
	cmd.Flags().BoolVar(&mine, "mine", false, "only tasks you accepted")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum tasks")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its objectives and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := requireTask(ctx, e, args[0], auth.Read); err != nil {
					return err
				}
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskEditCmd() *cobra.Command {
	var title, description, pkg, priority string
	var complexity int
	var objectives []string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task that is not completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskEditOptions{ID: args[0], ActorID: actorID()}
			flags := cmd.Flags()
			if flags.Changed("title") {
				opts.Title = &title
			}
			if flags.Changed("description") {
				opts.Description = &description
			}
			if flags.Changed("package") {
				opts.Package = &pkg
			}
			if flags.Changed("priority") {
				p := domain.ParsePriority(priority)
				opts.Priority = &p
			}
			if flags.Changed("complexity") {
				opts.Complexity = &complexity
			}
			if flags.Changed("objective") {
				objs := objectiveList(objectives)
				opts.Objectives = &objs
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := requireTask(ctx, e, opts.ID, auth.Write); err != nil {
					return err
				}
				t, err := e.EditTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&pkg, "package", "", "package label")
	cmd.Flags().StringVar(&priority, "priority", "", "optional, low, medium or high")
	cmd.Flags().IntVar(&complexity, "complexity", 0, "complexity from 1 to 5")
	cmd.Flags().StringArrayVar(&objectives, "objective", nil, "replace objectives (repeatable)")
	return cmd
}

// taskTransitionCmd builds the accept/abandon commands, which share a shape.
func taskTransitionCmd(use, short string, op func(engine.Engine, context.Context, string, string) (domain.Task, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := requireTask(ctx, e, args[0], auth.Write); err != nil {
					return err
				}
				t, err := op(e, ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskAcceptCmd() *cobra.Command {
	return taskTransitionCmd("accept", "Accept a new task", engine.Engine.AcceptTask)
}

func taskAbandonCmd() *cobra.Command {
	return taskTransitionCmd("abandon", "Return an accepted task to new", engine.Engine.AbandonTask)
}

func taskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an accepted task and collect its reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := requireTask(ctx, e, args[0], auth.Write); err != nil {
					return err
				}
				res, err := e.CompleteTask(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				purse := progression.SplitBalance(res.Character.Balance)
				fmt.Printf("Completed %q: +%d xp, +%d currency\n", res.Task.Title, res.Reward.XP, res.Reward.Currency)
				fmt.Printf("Level %d, %d xp, %d gold %d silver\n", res.LevelAfter, res.Character.XP, purse.Gold, purse.Silver)
				if res.LeveledUp {
					fmt.Printf("Level up! %d -> %d\n", res.LevelBefore, res.LevelAfter)
				}
				return nil
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := requireTask(ctx, e, args[0], auth.Write); err != nil {
					return err
				}
				if err := e.DeleteTask(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Printf("Deleted task %s\n", args[0])
				return nil
			})
		},
	}
}

func taskObjectiveCmd() *cobra.Command {
	obj := &cobra.Command{Use: "objective", Short: "Work on a single objective"}
	obj.AddCommand(&cobra.Command{
		Use:   "toggle <task-id> <index>",
		Short: "Flip an objective of an accepted task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := requireTask(ctx, e, args[0], auth.Write); err != nil {
					return err
				}
				t, err := e.ToggleObjective(ctx, args[0], index, actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	})
	return obj
}

func taskObjectivesCmd() *cobra.Command {
	objs := &cobra.Command{Use: "objectives", Short: "Manage a task's objective list"}
	var titles []string
	set := &cobra.Command{
		Use:   "set <task-id>",
		Short: "Replace all objectives of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := requireTask(ctx, e, args[0], auth.Write); err != nil {
					return err
				}
				t, err := e.ReplaceObjectives(ctx, args[0], objectiveList(titles), actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	set.Flags().StringArrayVar(&titles, "objective", nil, "objective title (repeatable)")
	objs.AddCommand(set)
	return objs
}

func characterCmd() *cobra.Command {
	ch := &cobra.Command{Use: "character", Short: "Inspect characters"}
	ch.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show your character in the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), auth.Read, func(ctx context.Context, e engine.Engine, projectID string) error {
				v, err := e.CharacterFor(ctx, projectID, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				return printCharacters([]engine.CharacterView{v})
			})
		},
	})
	ch.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your characters across projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				views, err := e.CharactersForUser(ctx, actorID())
				if err != nil {
					return err
				}
				return printCharacters(views)
			})
		},
	})
	return ch
}

func printCharacters(views []engine.CharacterView) error {
	if viper.GetBool("json") {
		return printJSON(views)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"User", "Project", "Level", "XP", "Progress", "Gold", "Silver", "Owner"})
	for _, v := range views {
		s := v.Sheet
		tw.AppendRow(table.Row{
			v.UserID, v.ProjectID, s.Level, s.XP,
			fmt.Sprintf("%d/%d (%d%%)", s.CurrentInLevel, s.RequiredLevel, s.Percent),
			s.Purse.Gold, s.Purse.Silver, v.Owner,
		})
	}
	tw.Render()
	return nil
}
