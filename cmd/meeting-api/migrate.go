package main

import (
	"context"
	"fmt"

	"github.com/kubev2v/meeting-intelligence/internal/config"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/pkg/log"
	"github.com/kubev2v/meeting-intelligence/pkg/migrations"
	"github.com/kubev2v/meeting-intelligence/pkg/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		undo := initLogger(cfg)
		defer undo()
		defer zap.S().Info("db migrated")

		zap.S().Info("initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		return migrate(cmd.Context(), cfg, s, db)
	},
}

// migrate runs goose when a migrations folder is configured and gorm auto-migration otherwise.
func migrate(ctx context.Context, cfg *config.Config, s store.Store, db *gorm.DB) error {
	if cfg.Service.MigrationFolder == "" {
		zap.S().Info("no migrations folder configured, running auto-migration")
		return s.InitialMigration(ctx)
	}
	zap.S().Infow("running migrations", "folder", cfg.Service.MigrationFolder)
	applied, err := migrations.MigrateStore(ctx, db, cfg.Service.MigrationFolder)
	if err != nil {
		return err
	}
	zap.S().Infow("migrations done", "applied", len(applied))
	return nil
}

func initLogger(cfg *config.Config) func() {
	logger := log.InitLog(cfg.Service.LogLevel, map[string]any{
		"version": version.Get().GitVersion,
	})
	undo := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		undo()
	}
}
