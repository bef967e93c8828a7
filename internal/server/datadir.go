package server

import (
	"fmt"
	"os"
	"path/filepath"
)

// ensureDBDir creates the directory holding the sqlite file so the driver can
// create the database on first open.
func ensureDBDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}
