// Package main is the entry point for the marketing agent team.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "marketing-team"
)

var (
	// Global flags
	configPath string
	logLevel   string
	outputDir  string
	simulate   bool
)

var rootCmd = &cobra.Command{
	Use:   AppName,
	Short: "AI marketing agent team",
	Long: `Runs a team of marketing agents defined in markdown files: a planner,
a data team, a content team and a reviewer, in that order. Progress is
recorded in a run log that the dashboard and the HTTP API poll.`,
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "Directory for logs, status and outputs (file storage)")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "Use simulated agent output instead of a model")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		stop()
		os.Exit(1)
	}
}
