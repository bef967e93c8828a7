package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	dbpkg "github.com/benedict2310/storepulse/internal/db"
	"github.com/benedict2310/storepulse/internal/server"
	"github.com/benedict2310/storepulse/internal/store"
)

// storeOptions locates the event store. Flags win over the pulsed config
// file, which wins over PULSED_* environment defaults.
type storeOptions struct {
	configPath string
	driver     string
	dbPath     string
	dbURL      string
}

func (o *storeOptions) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configPath, "config", "", "Path to the pulsed config file")
	flags.StringVar(&o.driver, "driver", "", "Database driver (sqlite|postgres)")
	flags.StringVar(&o.dbPath, "db", "", "Path to the sqlite database file")
	flags.StringVar(&o.dbURL, "database-url", "", "Postgres connection URL")
}

func (o *storeOptions) resolve() (dbpkg.Options, error) {
	cfg, err := server.ReadConfig(o.configPath)
	if err != nil {
		return dbpkg.Options{}, err
	}
	if v := strings.TrimSpace(o.driver); v != "" {
		cfg.DB.Driver = v
	}
	if v := strings.TrimSpace(o.dbPath); v != "" {
		cfg.DB.Path = v
		if o.driver == "" {
			cfg.DB.Driver = string(dbpkg.DialectSQLite)
		}
	}
	if v := strings.TrimSpace(o.dbURL); v != "" {
		cfg.DB.URL = v
		if o.driver == "" {
			cfg.DB.Driver = string(dbpkg.DialectPostgres)
		}
	}
	if err := cfg.Validate(); err != nil {
		return dbpkg.Options{}, usageError(fmt.Errorf("invalid store options: %w", err))
	}
	return cfg.DBOptions(), nil
}

func (o *storeOptions) open(ctx context.Context) (*store.SQLStore, error) {
	opts, err := o.resolve()
	if err != nil {
		return nil, err
	}
	if opts.Dialect == dbpkg.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return store.Open(ctx, opts)
}
