package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/feunard/roadmap/internal/app"
	"github.com/feunard/roadmap/internal/db"
	"github.com/feunard/roadmap/internal/engine"
	"github.com/feunard/roadmap/internal/engine/auth"
)

var rootCmd = &cobra.Command{
	Use:   "roadmap",
	Short: "Roadmap CLI",
	Long: `Roadmap turns project work into a small role-playing game.
Core concepts:
- Workspace: the .roadmap directory holding the sqlite database, next to roadmap.yml and an optional .env.
- Project: a board of tasks. Its creator owns it; invited players join with their own character.
- Tasks: work items with a priority, a complexity from 1 to 5 and a checklist of objectives.
  They move new -> accepted -> completed; abandoning returns an accepted task to new.
- Characters: one per player and project. Completing a task grants xp and currency to the completer.
- Levels: 17 levels with fixed xp requirements; currency is shown as gold and silver.
- Event log: diary of changes, view with 'roadmap log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return loadDotEnv(workspace)
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ROADMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides ROADMAP_PROJECT)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(inviteCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(characterCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// loadDotEnv exports workspace/.env without overriding the process env.
func loadDotEnv(workspace string) error {
	path := envPath(workspace)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func envPath(workspace string) string {
	return filepath.Join(workspace, ".env")
}

func actorID() string {
	return viper.GetString("actor-id")
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(ctx, viper.GetString("workspace"), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

// withProject resolves the active project and checks the actor's access to it.
func withProject(ctx context.Context, access auth.Access, fn func(context.Context, engine.Engine, string) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		projectID, err := app.ResolveProject(ctx, e, viper.GetString("project"), actorID())
		if err != nil {
			return err
		}
		if _, err := e.Auth.Require(ctx, projectID, actorID(), access); err != nil {
			return err
		}
		return fn(ctx, e, projectID)
	})
}

// requireTask loads a task and checks the actor's access to its project.
func requireTask(ctx context.Context, e engine.Engine, id string, access auth.Access) error {
	t, err := e.GetTask(ctx, id)
	if err != nil {
		return err
	}
	_, err = e.Auth.Require(ctx, t.ProjectID, actorID(), access)
	return err
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setEnvValue(path, key, value string) error {
	var lines []string
	seen := false
	f, err := os.Open(path)
	if err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, key+"=") {
				lines = append(lines, fmt.Sprintf("%s=%s", key, value))
				seen = true
			} else {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return err
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return err
	}
	if !seen {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}
	content := strings.Join(lines, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
