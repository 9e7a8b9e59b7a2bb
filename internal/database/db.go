package database

import (
	"context"
	"time"

	"stockroom/internal/model"
	"stockroom/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	connectAttempts = 5
	connectInterval = 2 * time.Second
)

// NewConnection initializes a new connection pool using GORM.
// The first ping is retried so the API can start alongside its database container.
func NewConnection(ctx context.Context, dsn string, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	attempt := 0
	ping := func() error {
		attempt++
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Warn("database not ready", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(connectInterval), connectAttempts), ctx)
	if err := backoff.Retry(ping, policy); err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Warn("failed to auto-migrate models", "error", err)
	}

	return db, nil
}

// Migrate auto-migrates core models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Product{},
		&model.Task{},
		&model.TaskItem{},
		&model.InventoryTransaction{},
		&model.AuditLog{},
	)
}
