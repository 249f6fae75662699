package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/services"
)

var (
	statusJSON    bool
	logsLimit     int
	clearForce    bool
	tokenOperator string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current run status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the most recent log entries",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

var outputsCmd = &cobra.Command{
	Use:   "outputs [name]",
	Short: "List output artifacts or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOutputs,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents of every team",
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the run log, status and outputs",
	Long: `Clear removes every log entry and output artifact and resets the
status to idle. Clearing while the stored status shows an active agent
requires --force, since the run may belong to another process.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the run control endpoints",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status snapshot")
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 50, "Number of entries to show")
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Clear even if a run appears active")
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "operator", "Operator name recorded in the token")
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	status := app.log.CurrentStatus()
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Println(headerStyle.Render("Run status"))
	if !status.Active() {
		fmt.Printf("Idle (%s)\n", status.CurrentStatus)
	} else {
		fmt.Printf("Agent:   %s\n", activeStyle.Render(status.Agent()))
		fmt.Printf("Status:  %s\n", status.CurrentStatus)
		if status.StartedAt != nil {
			fmt.Printf("Elapsed: %s\n", time.Since(*status.StartedAt).Round(time.Second))
		}
	}
	if status.RunID != "" {
		fmt.Printf("Run:     %s\n", status.RunID)
	}
	fmt.Println(dimStyle.Render("Updated " + status.LastUpdate.Local().Format("2006-01-02 15:04:05")))
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	if logsLimit <= 0 {
		return errors.New("--limit must be positive")
	}

	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	entries := app.log.Tail(logsLimit)
	if len(entries) == 0 {
		fmt.Println(dimStyle.Render("No log entries"))
		return nil
	}
	for _, e := range entries {
		fmt.Println(formatLogLine(e))
	}
	return nil
}

func formatLogLine(e models.LogEntry) string {
	return fmt.Sprintf("%s %s %s %s",
		dimStyle.Render(e.Timestamp.Local().Format("15:04:05")),
		levelColor(e.Level).Render(fmt.Sprintf("%-8s", e.Level)),
		e.AgentName,
		e.Message)
}

func runOutputs(cmd *cobra.Command, args []string) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	if len(args) == 1 {
		content, err := app.artifacts.Read(args[0])
		if err != nil {
			return err
		}
		fmt.Println(content)
		return nil
	}

	names, err := app.artifacts.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println(dimStyle.Render("No outputs"))
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	teams, err := loader.NewMarkdownLoader().LoadAll(cfg.Agents.Dir)
	if err != nil {
		return err
	}

	for _, team := range teams.Names() {
		fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%d)", team, teams.Count(team))))
		for _, agent := range teams.Agents(team) {
			role := strings.TrimSpace(agent.Role)
			if role == "" {
				role = dimStyle.Render("no role")
			}
			fmt.Printf("  %-24s %s\n", agent.Name, role)
		}
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	status := app.log.CurrentStatus()
	if status.Active() && !clearForce {
		return fmt.Errorf("agent %s appears to be running, use --force to clear anyway", status.Agent())
	}

	if err := app.supervisor(cmd.Context()).ClearAll(); err != nil {
		if errors.Is(err, runtime.ErrBusy) {
			return errors.New("a run is in progress")
		}
		return err
	}
	fmt.Println(successStyle.Render("Cleared logs, status and outputs"))
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("no JWT secret configured (set MARKETING_TEAM_JWT_SECRET or auth.jwt_secret)")
	}

	jwtService, err := services.NewJWTService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenExpiration)*time.Hour)
	if err != nil {
		return err
	}
	token, err := jwtService.GenerateToken(tokenOperator)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
