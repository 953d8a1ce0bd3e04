package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Migration System Overview:
//
// Migration files live in store/migration/{driver}/NN__description.sql and are
// applied in lexicographic order. Applied patch names are recorded in the
// migration_history table so each file runs exactly once.

//go:embed migration
var migrationFS embed.FS

const (
	// MigrateFileNameSplit is the split character between the patch number and the description in the migration file name.
	// For example, "00__init.sql".
	MigrateFileNameSplit = "__"

	migrationHistoryTable = "migration_history"
)

// validateMigrationFileName checks if a migration file follows the expected naming convention.
// Expected format: "NN__description.sql" where NN is a zero-padded number.
func validateMigrationFileName(filename string) error {
	if !strings.Contains(filename, MigrateFileNameSplit) {
		return errors.Errorf("invalid migration filename format (missing %s): %s", MigrateFileNameSplit, filename)
	}
	parts := strings.Split(filename, MigrateFileNameSplit)
	if len(parts) < 2 {
		return errors.Errorf("invalid migration filename format: %s", filename)
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return errors.Errorf("migration filename must start with a number: %s", filename)
	}
	return nil
}

// Migrate applies every pending migration file for the current driver.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.driver.GetDB()
	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, applied_ts BIGINT NOT NULL)", migrationHistoryTable)); err != nil {
		return errors.Wrap(err, "failed to create migration history table")
	}

	applied, err := s.appliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	filePaths, err := fs.Glob(migrationFS, fmt.Sprintf("migration/%s/*.sql", s.driver.Type()))
	if err != nil {
		return errors.Wrap(err, "failed to read migration files")
	}
	if len(filePaths) == 0 {
		return errors.Errorf("no migration files for driver %s", s.driver.Type())
	}
	sort.Strings(filePaths)

	for _, filePath := range filePaths {
		name := filepath.Base(filePath)
		if applied[name] {
			continue
		}
		if err := validateMigrationFileName(name); err != nil {
			return err
		}

		bytes, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file: %s", filePath)
		}

		slog.Info("applying migration", slog.String("file", filePath))
		if err := s.applyMigration(ctx, db, name, string(bytes)); err != nil {
			return errors.Wrapf(err, "failed to execute migration %s", filePath)
		}
	}
	return nil
}

func (s *Store) appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM "+migrationHistoryTable)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan migration name")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// applyMigration runs one migration file and records it in a single transaction.
func (s *Store) applyMigration(ctx context.Context, db *sql.DB, name, stmt string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	for _, part := range splitStatements(stmt) {
		if _, err := tx.ExecContext(ctx, part); err != nil {
			return err
		}
	}

	record := fmt.Sprintf("INSERT INTO %s (name, applied_ts) VALUES ('%s', %d)",
		migrationHistoryTable, strings.ReplaceAll(name, "'", ""), time.Now().Unix())
	if _, err := tx.ExecContext(ctx, record); err != nil {
		return errors.Wrap(err, "failed to record migration")
	}
	return tx.Commit()
}

// splitStatements splits a migration file on ";" terminators, dropping empty parts.
func splitStatements(stmt string) []string {
	var out []string
	for _, part := range strings.Split(stmt, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
