// cmd/main.go

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"NIRA-Go/internal/app"
	"NIRA-Go/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "nira",
	Short: "NIRA Discord bot",
	Long: `NIRA answers slash commands with Gemini and Perplexity, posts daily
hot deals and news, and keeps a Splatoon schedule message up to date.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to Discord and run the scheduler (default)",
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired sessions and conversations once, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()
		defer a.Close()

		return a.Sweep(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd)
}

// setup loads configuration, logging and the App.
func setup() (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cleanup, err := cfg.SetupLogging()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.NewApp(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	return a.Run(cmd.Context())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error("Bot exited with error", "err", err)
		stop()
		os.Exit(1)
	}
}
