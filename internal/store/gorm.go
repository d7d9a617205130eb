package store

import (
	"fmt"
	"time"

	"github.com/kubev2v/meeting-intelligence/internal/config"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens postgres through the instrumented pgx driver, or a sqlite file for local runs and tests.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(dialector(cfg), &gorm.Config{Logger: sqlLogger(), TranslateError: true})
	if err != nil {
		zap.S().Named("gorm").Errorw("failed to connect database", "type", cfg.Database.Type, "error", err)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("configuring connection pool: %w", err)
	}

	if !isPostgres(cfg) {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	var serverVersion string
	if err := db.Raw("SELECT version()").Scan(&serverVersion).Error; err != nil {
		return nil, fmt.Errorf("querying server version: %w", err)
	}
	zap.S().Named("gorm").Infow("connected to postgres", "version", serverVersion)
	return db, nil
}

func isPostgres(cfg *config.Config) bool {
	return cfg.Database.Type == "pgsql"
}

func dialector(cfg *config.Config) gorm.Dialector {
	if !isPostgres(cfg) {
		return sqlite.Open(fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", cfg.Database.Name))
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s port=%s",
		cfg.Database.Hostname,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Port,
	)
	if cfg.Database.Name != "" {
		dsn = fmt.Sprintf("%s dbname=%s", dsn, cfg.Database.Name)
	}
	return postgres.New(postgres.Config{DriverName: instrumentedDriver(), DSN: dsn})
}

// sqlLogger reports slow and failed statements without their parameters.
func sqlLogger() logger.Interface {
	return logger.New(
		logrus.New(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}
