package service

import (
	"context"
	"encoding/json"

	"stockroom/internal/repository"
)

type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Username   string          `json:"username"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Details    json.RawMessage `json:"details" swaggertype:"object"`
	CreatedAt  string          `json:"created_at"`
}

// AuditLogQuery pages through the audit trail, optionally narrowed to one action or entity
type AuditLogQuery struct {
	Page     int
	Limit    int
	Action   string
	EntityID string
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, query AuditLogQuery) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs returns a page of audit entries, newest first
func (s *auditService) GetAuditLogs(ctx context.Context, query AuditLogQuery) ([]AuditLogResponse, int64, error) {
	filter := repository.AuditFilter{Action: query.Action, EntityID: query.EntityID}
	logs, total, err := s.auditRepo.List(ctx, filter, query.Page, query.Limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := l.Username
		if username == "" {
			username = "System"
		}
		userID := ""
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		details := json.RawMessage(l.Details)
		if len(details) == 0 {
			details = json.RawMessage(`{}`)
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
