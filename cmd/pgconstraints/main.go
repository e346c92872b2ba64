// Command pgconstraints renders PostgreSQL exclusion constraints and
// constraint triggers from YAML definitions and generates migrations for them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stokaro/pgconstraints/cmd/check"
	"github.com/stokaro/pgconstraints/cmd/generate"
	"github.com/stokaro/pgconstraints/cmd/migrations"
	"github.com/stokaro/pgconstraints/cmd/render"
	"github.com/stokaro/pgconstraints/config"
)

var (
	configFile = ""
	logLevel   = "info"
	settings   = config.DefaultSettings()
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pgconstraints",
		Short: "Manage PostgreSQL exclusion constraints and constraint triggers",
		Long: `pgconstraints renders exclusion constraints and constraint triggers described
in a YAML definitions file, generates up/down migration files for changes and
checks a live database against the definitions.

Settings are read from --config and from PGCONSTRAINTS_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: preRun,
	}

	fs := rootCmd.PersistentFlags()
	fs.StringVar(&configFile, "config", configFile, "`file` to load settings from (YAML, TOML or JSON)")
	fs.StringVar(&logLevel, "log-level", logLevel, "log level: debug, info, warn or error")

	current := func() *config.Settings { return settings }
	rootCmd.AddCommand(render.NewRenderCommand(current))
	rootCmd.AddCommand(generate.NewGenerateCommand(current))
	rootCmd.AddCommand(migrations.NewMigrationsCommand(current))
	rootCmd.AddCommand(check.NewCheckCommand(current))
	return rootCmd
}

func preRun(_ *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	loaded, err := config.Load(configFile)
	if err != nil {
		return err
	}
	settings = loaded
	slog.Debug("Loaded settings", "config", configFile, "dialect", settings.Dialect, "definitions", settings.Definitions)
	return nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
