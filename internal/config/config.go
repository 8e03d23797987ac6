// Package config loads tool configuration from config files, .env files and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem every component reads migrations and schema files
// through. Tests swap it for an in-memory filesystem.
var AppFs = afero.NewOsFs()

// Config holds the resolved tool configuration. Directories are passed
// explicitly into each component rather than read from ambient state.
type Config struct {
	DatabaseURL       string
	SchemaDir         string
	MigrationsDir     string
	MigraBinary       string
	ExcludePrivileges bool
	OnlySchema        string
	ExcludeSchema     string
}

// Load resolves configuration in increasing priority: defaults, .pgshift.yaml
// (cwd, home, ~/.config/pgshift), then PGSHIFT_* environment variables. A
// .env / .env.local in the working directory is loaded first so PG_URL can
// live there.
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName(".pgshift")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(home)
	viper.AddConfigPath(filepath.Join(home, ".config", "pgshift"))

	viper.SetEnvPrefix("PGSHIFT")
	viper.AutomaticEnv()

	viper.SetDefault("schema_dir", "schema")
	viper.SetDefault("migrations_dir", "migrations")
	viper.SetDefault("migra_binary", "migra")
	viper.SetDefault("exclude_privileges", false)

	// Missing config file is fine; everything has a default or comes from the
	// environment.
	_ = viper.ReadInConfig()

	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	cfg := &Config{
		DatabaseURL:       viper.GetString("database_url"),
		SchemaDir:         viper.GetString("schema_dir"),
		MigrationsDir:     viper.GetString("migrations_dir"),
		MigraBinary:       viper.GetString("migra_binary"),
		ExcludePrivileges: viper.GetBool("exclude_privileges"),
		OnlySchema:        viper.GetString("only_schema"),
		ExcludeSchema:     viper.GetString("exclude_schema"),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("PG_URL")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if cfg.OnlySchema != "" && cfg.ExcludeSchema != "" {
		return nil, fmt.Errorf("only_schema (%s) and exclude_schema (%s) cannot both be set",
			cfg.OnlySchema, cfg.ExcludeSchema)
	}
	return cfg, nil
}
