package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaiwanShin/ai-marketing-team/pkg/api"
	"github.com/JaiwanShin/ai-marketing-team/pkg/dashboard"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/services"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
	"github.com/JaiwanShin/ai-marketing-team/pkg/watch"
)

const defaultQuery = "에어팟 맥스 마케팅 분석"

var (
	runQuery       string
	serveSchedule  string
	serveQuery     string
	dashboardQuery string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the workflow in the foreground",
	Long: `Run planner, data team, content team and reviewer on a request and
print the final report. The run is recorded in the run log like any other.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP dashboard API",
	Long: `Serve the dashboard API with an in-process run supervisor. Runs are
started with POST /api/v1/runs or on a cron schedule.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the terminal dashboard",
	Args:  cobra.NoArgs,
	RunE:  runDashboard,
}

func init() {
	runCmd.Flags().StringVarP(&runQuery, "query", "q", defaultQuery, "Marketing request to analyze")

	serveCmd.Flags().StringVar(&serveSchedule, "schedule", "", "Cron spec for recurring runs (5 or 6 fields)")
	serveCmd.Flags().StringVar(&serveQuery, "query", defaultQuery, "Request used by scheduled runs")

	dashboardCmd.Flags().StringVarP(&dashboardQuery, "query", "q", "", "Pre-filled request")
}

func runRun(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(runQuery)
	if query == "" {
		return errors.New("query is required")
	}

	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	team, err := app.buildTeam(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Marketing agent team"))
	fmt.Printf("Request: %s\n", query)
	for _, name := range team.Agents.Names() {
		fmt.Printf("  %s: %d agents\n", name, team.Agents.Count(name))
	}
	fmt.Println()

	start := time.Now()
	report, err := team.Engine.Run(cmd.Context(), query)
	if err != nil {
		return fmt.Errorf("workflow failed: %w", err)
	}

	fmt.Println(report)
	fmt.Println()
	fmt.Println(successStyle.Render(fmt.Sprintf("Completed in %s, report saved as %s",
		time.Since(start).Round(time.Second), storage.FinalReportName)))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := newApp(false)
	if err != nil {
		return err
	}
	defer app.Close()

	team, err := app.buildTeam(cmd.Context())
	if err != nil {
		return err
	}
	defer team.Supervisor.StopSchedules()

	deps := api.Dependencies{
		Log:        app.log,
		Artifacts:  app.artifacts,
		Agents:     team.Agents,
		Supervisor: team.Supervisor,
		Progress:   team.Engine,
		Logger:     app.logger,
	}

	if secret := app.config.Auth.JWTSecret; secret != "" {
		jwtService, err := services.NewJWTService(secret, time.Duration(app.config.Auth.TokenExpiration)*time.Hour)
		if err != nil {
			return err
		}
		deps.Tokens = jwtService
	} else {
		app.logger.Warn("No JWT secret configured, run control endpoints are open")
	}

	if fp, ok := app.provider.(*storage.FileProvider); ok {
		watcher, err := watch.New(fp.Dir(), watch.DefaultDebounce, app.logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return err
		}
		defer watcher.Stop()
		deps.Watcher = watcher
	}

	if serveSchedule != "" {
		if _, err := team.Supervisor.Schedule(serveSchedule, serveQuery); err != nil {
			return err
		}
	}

	server := api.NewServer(app.config, deps)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
		app.logger.Info("Shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			app.logger.Error("Error during shutdown", logging.Err(err))
			return err
		}
		if team.Supervisor.Active() {
			app.logger.Warn("A workflow run was still in progress at shutdown")
		}
		return nil
	}
}

func runDashboard(cmd *cobra.Command, args []string) error {
	app, err := newApp(true)
	if err != nil {
		return err
	}
	defer app.Close()

	team, err := app.buildTeam(cmd.Context())
	if err != nil {
		return err
	}

	return dashboard.Run(dashboard.Options{
		Log:       app.log,
		Artifacts: app.artifacts,
		Agents:    team.Agents,
		Control:   team.Supervisor,
		Interval:  app.config.Dashboard.PollInterval(),
		Query:     dashboardQuery,
	})
}
