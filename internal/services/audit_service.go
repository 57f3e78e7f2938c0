package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Audit actions.
const (
	ActionGenerate = "GENERATE"
	ActionExport   = "EXPORT"
	ActionEmail    = "EMAIL"
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
)

type AuditService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewAuditService(db *gorm.DB, logger *zap.Logger) *AuditService {
	return &AuditService{db: db, logger: logging.OrNop(logger)}
}

func (s *AuditService) Log(ctx context.Context, userID uuid.UUID, action, resourceType string, resourceID uuid.UUID, before, after models.JSONB, ip string) error {
	entry := &models.AuditLog{
		ActorUserID:  userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Before:       before,
		After:        after,
		IP:           ip,
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

// Record logs an audit entry and only warns on failure; an audit write
// never fails the request that caused it.
func (s *AuditService) Record(ctx context.Context, userID uuid.UUID, action, resourceType string, resourceID uuid.UUID, after models.JSONB, ip string) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, userID, action, resourceType, resourceID, nil, after, ip); err != nil {
		s.logger.Warn("Failed to write audit log",
			zap.String("action", action),
			zap.String("resource_type", resourceType),
			zap.Error(err))
	}
}

// ActivityWithUser is an audit entry joined with its actor's name.
type ActivityWithUser struct {
	models.AuditLog
	UserName string `json:"user_name"`
}

func (s *AuditService) Recent(ctx context.Context, limit int) ([]ActivityWithUser, error) {
	activities := make([]ActivityWithUser, 0)
	err := s.db.WithContext(ctx).Table("audit_logs").
		Select("audit_logs.*, users.full_name as user_name").
		Joins("LEFT JOIN users ON audit_logs.actor_user_id = users.id").
		Order("audit_logs.timestamp DESC").
		Limit(limit).
		Scan(&activities).Error
	return activities, err
}
