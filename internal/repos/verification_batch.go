package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/types"
)

type VerificationBatchRepo interface {
  Create(ctx context.Context, tx *gorm.DB, batches []*types.VerificationBatch) ([]*types.VerificationBatch, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VerificationBatch, error)
  ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.VerificationBatch, error)
  ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error)
}

type verificationBatchRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewVerificationBatchRepo(db *gorm.DB, baseLog *logger.Logger) VerificationBatchRepo {
  repoLog := baseLog.Repo("VerificationBatchRepo")
  return &verificationBatchRepo{db: db, log: repoLog}
}

func (r *verificationBatchRepo) Create(ctx context.Context, tx *gorm.DB, batches []*types.VerificationBatch) ([]*types.VerificationBatch, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(batches) == 0 {
    return []*types.VerificationBatch{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&batches).Error; err != nil {
    return nil, err
  }
  return batches, nil
}

func (r *verificationBatchRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VerificationBatch, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var batch types.VerificationBatch
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&batch).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &batch, nil
}

func (r *verificationBatchRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.VerificationBatch, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.VerificationBatch
  if err := transaction.WithContext(ctx).
    Scopes(ownerScope(owner)).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *verificationBatchRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Model(&types.VerificationBatch{}).
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
