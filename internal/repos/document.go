package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/types"
)

type DocumentRepo interface {
  Create(ctx context.Context, tx *gorm.DB, docs []*types.Document) ([]*types.Document, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error)
  GetByHash(ctx context.Context, tx *gorm.DB, hash string) (*types.Document, error)
  GetByHashForOwner(ctx context.Context, tx *gorm.DB, hash string, owner types.Owner) (*types.Document, error)
  ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.Document, error)
  ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error)
}

type documentRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
  repoLog := baseLog.Repo("DocumentRepo")
  return &documentRepo{db: db, log: repoLog}
}

func (r *documentRepo) Create(ctx context.Context, tx *gorm.DB, docs []*types.Document) ([]*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(docs) == 0 {
    return []*types.Document{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&docs).Error; err != nil {
    return nil, err
  }
  return docs, nil
}

func (r *documentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var doc types.Document
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&doc).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &doc, nil
}

func (r *documentRepo) GetByHash(ctx context.Context, tx *gorm.DB, hash string) (*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var doc types.Document
  if err := transaction.WithContext(ctx).
    Where("content_hash = ?", hash).
    Order("created_at DESC").
    First(&doc).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &doc, nil
}

func (r *documentRepo) GetByHashForOwner(ctx context.Context, tx *gorm.DB, hash string, owner types.Owner) (*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var doc types.Document
  if err := transaction.WithContext(ctx).
    Scopes(ownerScope(owner)).
    Where("content_hash = ?", hash).
    First(&doc).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &doc, nil
}

func (r *documentRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.Document, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.Document
  if err := transaction.WithContext(ctx).
    Scopes(ownerScope(owner)).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *documentRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Model(&types.Document{}).
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
