package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/feunard/roadmap/internal/config"
	"github.com/feunard/roadmap/internal/domain"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/engine/auth"
)

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write roadmap.yml and migrate the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Printf("%s already exists (use --force to overwrite)\n", path)
			} else if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Printf("Workspace ready: %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing roadmap.yml")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	prj.AddCommand(projectUseCmd())
	prj.AddCommand(projectPlayersCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var title string
	var public bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project and its owner character",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, engine.ProjectCreateOptions{Title: title, Public: public, ActorID: actorID()})
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "project title")
	cmd.Flags().BoolVar(&public, "public", false, "let anyone read the project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects you play in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjectsForUser(ctx, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Public", "Owner", "Packages"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.Public, p.CreatedBy, len(p.Packages)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), auth.Read, func(ctx context.Context, e engine.Engine, projectID string) error {
				p, err := e.GetProject(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var title string
	var public bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rename the active project or change its visibility",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ProjectUpdateOptions{ActorID: actorID()}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("public") {
				opts.Public = &public
			}
			return withProject(cmd.Context(), auth.Owner, func(ctx context.Context, e engine.Engine, projectID string) error {
				opts.ID = projectID
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().BoolVar(&public, "public", false, "public visibility")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the active project with its tasks and characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), auth.Owner, func(ctx context.Context, e engine.Engine, projectID string) error {
				if err := e.DeleteProject(ctx, projectID, actorID()); err != nil {
					return err
				}
				fmt.Printf("Deleted project %s\n", projectID)
				return nil
			})
		},
	}
}

func projectUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Set the default project in the workspace .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Auth.Require(ctx, id, actorID(), auth.Read); err != nil {
					return err
				}
				path := envPath(viper.GetString("workspace"))
				if err := setEnvValue(path, "ROADMAP_PROJECT", id); err != nil {
					return err
				}
				fmt.Printf("Default project set to %s in %s\n", id, path)
				return nil
			})
		},
	}
}

func projectPlayersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List the characters playing in the active project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), auth.Read, func(ctx context.Context, e engine.Engine, projectID string) error {
				views, err := e.PlayerSheets(ctx, projectID)
				if err != nil {
					return err
				}
				return printCharacters(views)
			})
		},
	}
}

func inviteCmd() *cobra.Command {
	inv := &cobra.Command{Use: "invite", Short: "Invite players and answer invitations"}
	inv.AddCommand(inviteCreateCmd())
	inv.AddCommand(inviteListCmd())
	inv.AddCommand(inviteAcceptCmd())
	inv.AddCommand(inviteRejectCmd())
	return inv
}

func inviteCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <user-id>",
		Short: "Invite a user into the active project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(cmd.Context(), auth.Owner, func(ctx context.Context, e engine.Engine, projectID string) error {
				inv, err := e.InviteMember(ctx, projectID, actorID(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
}

func inviteListCmd() *cobra.Command {
	var status string
	var sent bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invitations addressed to you, or sent from the active project with --sent",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.InvitationStatus(status)
			if sent {
				return withProject(cmd.Context(), auth.Owner, func(ctx context.Context, e engine.Engine, projectID string) error {
					items, err := e.ListProjectInvitations(ctx, projectID, st)
					if err != nil {
						return err
					}
					return printInvitations(items)
				})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListInvitations(ctx, actorID(), st)
				if err != nil {
					return err
				}
				return printInvitations(items)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "pending", "pending, accepted, rejected or empty for all")
	cmd.Flags().BoolVar(&sent, "sent", false, "list invitations sent from the active project")
	return cmd
}

func printInvitations(items []domain.Invitation) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Project", "User", "Invited By", "Status", "Created"})
	for _, inv := range items {
		tw.AppendRow(table.Row{inv.ID, inv.ProjectID, inv.UserID, inv.InvitedBy, inv.Status, inv.CreatedAt})
	}
	tw.Render()
	return nil
}

func inviteAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept an invitation and create your character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AcceptInvitation(ctx, args[0], actorID())
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func inviteRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject an invitation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RejectInvitation(ctx, args[0], actorID()); err != nil {
					return err
				}
				fmt.Printf("Rejected invitation %s\n", args[0])
				return nil
			})
		},
	}
}
