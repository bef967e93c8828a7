package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func ParseDialect(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (expected sqlite|postgres)", value)
	}
}

type Options struct {
	Dialect       Dialect
	Path          string
	URL           string
	EnableWAL     bool
	BusyTimeoutMS int
	MaxOpenConns  int
	MaxIdleConns  int
}

func DefaultOptions(path string) Options {
	return Options{
		Dialect:       DialectSQLite,
		Path:          path,
		EnableWAL:     true,
		BusyTimeoutMS: 5000,
		MaxOpenConns:  5,
		MaxIdleConns:  5,
	}
}

func Open(opts Options) (*sql.DB, error) {
	if opts.Dialect == "" {
		opts.Dialect = DialectSQLite
	}
	if opts.BusyTimeoutMS <= 0 {
		opts.BusyTimeoutMS = 5000
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 5
	}
	if opts.MaxIdleConns < 0 {
		opts.MaxIdleConns = 0
	}

	var (
		db     *sql.DB
		target string
		err    error
	)
	switch opts.Dialect {
	case DialectSQLite:
		db, target, err = openSQLite(opts)
	case DialectPostgres:
		db, target, err = openPostgres(opts)
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", opts.Dialect)
	}
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxIdleTime(30 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s %s: %w", opts.Dialect, target, err)
	}

	return db, nil
}

func openSQLite(opts Options) (*sql.DB, string, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, "", fmt.Errorf("database path is required")
	}
	cleanPath := filepath.Clean(opts.Path)
	dsnParts := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", opts.BusyTimeoutMS),
	}
	if opts.EnableWAL {
		dsnParts = append(dsnParts, "_pragma=journal_mode(WAL)")
	}
	dsn := fmt.Sprintf("file:%s?%s", cleanPath, strings.Join(dsnParts, "&"))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open sqlite %s: %w", cleanPath, err)
	}
	return db, cleanPath, nil
}

func openPostgres(opts Options) (*sql.DB, string, error) {
	dsn := strings.TrimSpace(opts.URL)
	if dsn == "" {
		return nil, "", fmt.Errorf("database url is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open postgres: %w", err)
	}
	// The DSN can carry credentials; never echo it back in errors.
	return db, "database", nil
}
