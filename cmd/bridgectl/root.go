package main

import (
	"context"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bridgetrack/bridgetrack/internal/config"
	"github.com/bridgetrack/bridgetrack/internal/core"
	"github.com/bridgetrack/bridgetrack/internal/logging"
	"github.com/bridgetrack/bridgetrack/internal/storage"
)

type rootOptions struct {
	envFile  string
	driver   string
	dbURL    string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "bridgectl",
		Short:         "Bulk import and export for the bridge inspection tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load if present")
	pf.StringVar(&opts.driver, "driver", "", "store driver: memory, sqlite or postgres (overrides DATABASE_DRIVER)")
	pf.StringVar(&opts.dbURL, "db", "", "sqlite path or postgres URL (overrides DATABASE_URL)")
	pf.StringVarP(&opts.logLevel, "loglevel", "l", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newImportCmd(opts),
		newCountCmd(opts),
		newExportCmd(opts),
	)
	return cmd
}

// loadConfig reads the env file and environment, then applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.envFile != "" {
		// A missing file is fine; the environment may carry everything.
		_ = godotenv.Load(o.envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.dbURL != "" {
		cfg.Database.URL = o.dbURL
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Keep stdout clean for export output.
	logging.Setup(cfg.Logging.Level, "tint")
	return cfg, nil
}

// openService opens the configured store. The caller closes the store.
func (o *rootOptions) openService(ctx context.Context) (*core.Service, core.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	core.ImportTimeout = cfg.Import.Timeout

	notifier := core.NotifierFunc(func(ev core.Event) {
		slog.Debug("change", "kind", ev.Kind)
	})
	return core.NewService(store, notifier), store, nil
}
