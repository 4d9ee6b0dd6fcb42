package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crewhub.dev/internal/app"
	"crewhub.dev/internal/config"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:           "crewctl",
		Short:         "Operator tooling for the crewhub employee directory",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (defaults to CREWHUB_CONFIG)")

	root.AddCommand(migrateCmd())
	root.AddCommand(resyncCmd())
	root.AddCommand(unpublishCmd())
	root.AddCommand(adminCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "crewctl:", err)
		stop()
		os.Exit(1)
	}
}

// loadApp wires the collaborators against the configured database. The
// in-memory fallback is refused since nothing would persist.
func loadApp() (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseDSN == "" {
		return nil, errors.New("no database configured: set CREWHUB_PG_DSN")
	}
	return app.Build(cfg)
}
