package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Arrogantx/slapper/internal/logging"
)

// clickHouseLedger records which migration files have been applied
const clickHouseLedger = "schema_migrations"

const createClickHouseLedger = `CREATE TABLE IF NOT EXISTS ` + clickHouseLedger + ` (
    name        String,
    statements  UInt32,
    applied_at  DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(applied_at)
ORDER BY name`

// clickHouseMigrator is the slice of ClickHouseDB the runner needs
type clickHouseMigrator interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	appliedMigrations(ctx context.Context) (map[string]bool, error)
}

// RunClickHouseMigrations applies the .sql files in migrationsPath that are not yet
// in the ledger, in name order. It returns the names it applied.
func RunClickHouseMigrations(ctx context.Context, db *ClickHouseDB, migrationsPath string) ([]string, error) {
	return runClickHouseMigrations(ctx, db, migrationsPath)
}

func runClickHouseMigrations(ctx context.Context, db clickHouseMigrator, migrationsPath string) ([]string, error) {
	logger := logging.FromContext(ctx).WithField("component", "clickhouse_migrate")

	files, err := migrationFiles(migrationsPath)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warn("No ClickHouse migration files found")
		return nil, nil
	}

	if err := db.Exec(ctx, createClickHouseLedger); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", clickHouseLedger, err)
	}
	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, name := range files {
		if applied[name] {
			continue
		}

		content, err := os.ReadFile(filepath.Join(migrationsPath, name)) // #nosec G304 - name comes from the migrations directory listing
		if err != nil {
			return ran, fmt.Errorf("failed to read %s: %w", name, err)
		}

		statements := splitSQLStatements(string(content))
		for i, stmt := range statements {
			if err := db.Exec(ctx, stmt); err != nil {
				logger.WithError(err).WithFields(map[string]interface{}{
					"file":      name,
					"statement": truncate(stmt, 80),
				}).Error("ClickHouse migration statement failed")
				return ran, fmt.Errorf("%s: statement %d: %w", name, i+1, err)
			}
		}

		if err := db.Exec(ctx, "INSERT INTO "+clickHouseLedger+" (name, statements) VALUES (?, ?)", name, uint32(len(statements))); err != nil {
			return ran, fmt.Errorf("failed to record %s: %w", name, err)
		}

		logger.WithFields(map[string]interface{}{
			"file":       name,
			"statements": len(statements),
		}).Info("Applied ClickHouse migration")
		ran = append(ran, name)
	}

	return ran, nil
}

// migrationFiles lists the .sql files in dir, sorted by name
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// splitSQLStatements splits a script on semicolons that sit outside quotes and
// drops "--" comments. Trailing semicolons are not kept.
func splitSQLStatements(content string) []string {
	var (
		statements []string
		current    strings.Builder
		quote      rune
	)

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	runes := []rune(content)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if quote != 0 {
			current.WriteRune(r)
			switch {
			case r == '\\' && i+1 < len(runes):
				i++
				current.WriteRune(runes[i])
			case r == quote:
				quote = 0
			}
			continue
		}

		switch {
		case r == '\'' || r == '"' || r == '`':
			quote = r
			current.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			current.WriteRune('\n')
		case r == ';':
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return statements
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
