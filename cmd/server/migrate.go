package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go2b/internal/config"
	"go2b/internal/db"
	"go2b/internal/store"
)

// MigrateIfNeeded performs the one-time import of the legacy JSON data
// files into a fresh SQLite database. An existing database, or a
// deployment with no legacy files, is left untouched.
func MigrateIfNeeded(cfg config.Config) error {
	if cfg.SQLitePath == "" {
		return errors.New("sqlite path is required")
	}
	if _, err := os.Stat(cfg.SQLitePath); err == nil {
		return nil // already migrated
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check sqlite file: %w", err)
	}
	if _, err := os.Stat(cfg.CodesPath()); errors.Is(err, os.ErrNotExist) {
		return nil // fresh install, nothing to import
	}

	legacy, err := store.Open(cfg.CodesPath(), cfg.NormsPath(), cfg.LastBatchPath(), cfg.MasterCode)
	if err != nil {
		return fmt.Errorf("load legacy data files: %w", err)
	}
	codes, err := legacy.ListCodes()
	if err != nil {
		return err
	}
	norms, err := legacy.ListNorms()
	if err != nil {
		return err
	}
	lastBatch, err := legacy.LastBatch()
	if err != nil {
		return err
	}

	log.Printf("first run with sqlite store, importing legacy data from %s", cfg.DataDir)

	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	sqlDB, err := sql.Open("sqlite3", cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("warning: close sqlite db: %v", cerr)
		}
	}()
	if err := db.RunMigrations(sqlDB, ""); err != nil {
		return err
	}
	st, err := db.NewSQLiteStore(sqlDB, cfg.MasterCode)
	if err != nil {
		return err
	}
	if err := st.ImportLegacy(codes, norms, lastBatch); err != nil {
		return err
	}
	log.Printf("imported %d codes and %d corpus entries", len(codes), len(norms))
	return nil
}
