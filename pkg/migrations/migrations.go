package migrations

import (
	"context"
	"fmt"
	"os"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MigrateStore applies the goose migrations found in migrationFolder and returns the applied versions.
func MigrateStore(ctx context.Context, db *gorm.DB, migrationFolder string) ([]int64, error) {
	fi, err := os.Stat(migrationFolder)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("failed to open migration folder: %s is not a folder", migrationFolder)
	}

	dialect := goose.DialectPostgres
	if db.Dialector.Name() == "sqlite" {
		dialect = goose.DialectSQLite3
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	provider, err := goose.NewProvider(dialect, sqlDB, os.DirFS(migrationFolder))
	if err != nil {
		return nil, fmt.Errorf("loading migrations from %s: %w", migrationFolder, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]int64, 0, len(results))
	for _, r := range results {
		zap.S().Named("migrations").Infow("migration applied", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}
