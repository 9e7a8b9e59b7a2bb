package service

import (
	"context"
	"encoding/json"
	"errors"

	"stockroom/internal/cache"
	"stockroom/internal/model"
	"stockroom/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
)

// EventPublisher pushes realtime notifications; the websocket hub implements it
type EventPublisher interface {
	Publish(event string, data map[string]interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, map[string]interface{}) {}

// NopPublisher discards every event
var NopPublisher EventPublisher = nopPublisher{}

const (
	EventProductCreated    = "product.created"
	EventProductUpdated    = "product.updated"
	EventProductDeleted    = "product.deleted"
	EventTaskCreated       = "task.created"
	EventTaskStatusChanged = "task.status_changed"
)

func viewerUserID(viewer model.Viewer) *uuid.UUID {
	if viewer.ID == uuid.Nil {
		return nil
	}
	id := viewer.ID
	return &id
}

func auditDetails(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON(`{}`)
	}
	return datatypes.JSON(raw)
}

// invalidateStatistics runs after a committed mutation; a failure only leaves results stale until ttl
func invalidateStatistics(ctx context.Context, c cache.StatisticsCache, log *logger.Logger) {
	if err := c.Invalidate(ctx); err != nil {
		log.Warn("failed to invalidate statistics cache", "error", err)
	}
}
