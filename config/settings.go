package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding settings,
// e.g. PGCONSTRAINTS_DIALECT or PGCONSTRAINTS_MIGRATIONS_DIR.
const EnvPrefix = "PGCONSTRAINTS"

// Settings configures the command line tool.
type Settings struct {
	// Dialect selects the schema editor. Only PostgreSQL aliases are accepted.
	Dialect string `mapstructure:"dialect"`
	// Definitions is the YAML file holding the desired constraints.
	Definitions string `mapstructure:"definitions"`
	// State is the YAML file recording the constraints already migrated.
	State string `mapstructure:"state"`
	// MigrationsDir receives the generated up and down files.
	MigrationsDir string `mapstructure:"migrations_dir"`
	// IgnoredConstraints is passed to CompareOptions. A comma separated
	// environment variable is split into patterns.
	IgnoredConstraints []string `mapstructure:"ignored_constraints"`
	// DatabaseURL is the PostgreSQL connection URL used by the drift check.
	DatabaseURL string `mapstructure:"database_url"`
	// DatabaseSchema is the schema whose constraints are read back.
	DatabaseSchema string `mapstructure:"database_schema"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{
		Dialect:            "postgres",
		Definitions:        "constraints.yaml",
		State:              "migrations/constraints.state.yaml",
		MigrationsDir:      "migrations",
		IgnoredConstraints: DefaultCompareOptions().IgnoredConstraints,
		DatabaseSchema:     "public",
	}
}

// Load reads settings from file (YAML, TOML or JSON, chosen by extension)
// and the environment. An empty file name skips the file. Environment
// variables take precedence over the file.
func Load(file string) (*Settings, error) {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("dialect", defaults.Dialect)
	v.SetDefault("definitions", defaults.Definitions)
	v.SetDefault("state", defaults.State)
	v.SetDefault("migrations_dir", defaults.MigrationsDir)
	v.SetDefault("ignored_constraints", defaults.IgnoredConstraints)
	v.SetDefault("database_url", defaults.DatabaseURL)
	v.SetDefault("database_schema", defaults.DatabaseSchema)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

// CompareOptions builds the comparison options described by the settings.
func (s *Settings) CompareOptions() *CompareOptions {
	return WithIgnoredConstraints(s.IgnoredConstraints...)
}
