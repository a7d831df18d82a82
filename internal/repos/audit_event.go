package repos

import (
  "context"
  "gorm.io/gorm"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/types"
)

type AuditEventRepo interface {
  Create(ctx context.Context, tx *gorm.DB, events []*types.AuditEvent) ([]*types.AuditEvent, error)
}

type auditEventRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAuditEventRepo(db *gorm.DB, baseLog *logger.Logger) AuditEventRepo {
  repoLog := baseLog.Repo("AuditEventRepo")
  return &auditEventRepo{db: db, log: repoLog}
}

func (r *auditEventRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.AuditEvent) ([]*types.AuditEvent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(events) == 0 {
    return []*types.AuditEvent{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&events).Error; err != nil {
    return nil, err
  }
  return events, nil
}
