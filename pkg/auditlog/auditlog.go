package auditlog

import (
	"context"

	"eam/pkg/models"

	"go.uber.org/zap"
)

type Repository interface {
	PersistLog(ctx context.Context, auditlog models.AuditLog, data interface{}) error
	GetResourceLog(ctx context.Context, id string, resourceType string) ([]models.AuditLog, error)
}

type Auditlog struct {
	r      Repository
	logger *zap.Logger
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

// Log records action against item. Failures are logged and never returned,
// an audit entry must not fail the operation it describes.
func (a *Auditlog) Log(ctx context.Context, action string, data interface{}, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = action

	if err := a.r.PersistLog(ctx, auditLog, data); err != nil {
		a.logger.Warn("unable to create audit log entry",
			zap.String("resource_id", auditLog.ResourceID),
			zap.String("action", action),
			zap.Error(err))
		return
	}

	a.logger.Debug("created audit log entry",
		zap.String("resource_id", auditLog.ResourceID),
		zap.String("action", action))
}

func (a *Auditlog) History(ctx context.Context, item Auditable) ([]models.AuditLog, error) {
	view := item.CreateLogView()
	return a.r.GetResourceLog(ctx, view.ResourceID, view.ResourceType)
}

func NewAuditLog(repository Repository, logger *zap.Logger) *Auditlog {
	return &Auditlog{r: repository, logger: logger}
}
