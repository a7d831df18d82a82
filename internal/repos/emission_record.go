package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/types"
)

type EmissionRecordRepo interface {
  Create(ctx context.Context, tx *gorm.DB, records []*types.EmissionRecord) ([]*types.EmissionRecord, error)
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.EmissionRecord, error)
  ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.EmissionRecord, error)
  MarkVerified(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
  DeleteByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) (int64, error)
  ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error)
}

type emissionRecordRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewEmissionRecordRepo(db *gorm.DB, baseLog *logger.Logger) EmissionRecordRepo {
  repoLog := baseLog.Repo("EmissionRecordRepo")
  return &emissionRecordRepo{db: db, log: repoLog}
}

func (r *emissionRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.EmissionRecord) ([]*types.EmissionRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(records) == 0 {
    return []*types.EmissionRecord{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&records).Error; err != nil {
    return nil, err
  }
  return records, nil
}

func (r *emissionRecordRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.EmissionRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.EmissionRecord
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *emissionRecordRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.EmissionRecord, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.EmissionRecord
  if err := transaction.WithContext(ctx).
    Scopes(ownerScope(owner)).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *emissionRecordRepo) MarkVerified(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(ids) == 0 {
    return nil
  }
  if err := transaction.WithContext(ctx).
    Model(&types.EmissionRecord{}).
    Where("id IN ?", ids).
    Updates(map[string]interface{}{
      "verified":   true,
      "updated_at": time.Now(),
    }).Error; err != nil {
    return err
  }
  return nil
}

func (r *emissionRecordRepo) DeleteByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Scopes(ownerScope(owner)).
    Delete(&types.EmissionRecord{})
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}

func (r *emissionRecordRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Model(&types.EmissionRecord{}).
    Where("session_id = ?", sessionID).
    Updates(map[string]interface{}{
      "session_id": nil,
      "user_id":    userID,
    })
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}
