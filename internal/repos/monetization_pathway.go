package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/types"
)

type MonetizationPathwayRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, pathways []*types.MonetizationPathway) ([]*types.MonetizationPathway, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MonetizationPathway, error)
  ListByVerificationID(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID) ([]*types.MonetizationPathway, error)
  ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.MonetizationPathway, error)
  UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
  ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error)
}

type monetizationPathwayRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMonetizationPathwayRepo(db *gorm.DB, baseLog *logger.Logger) MonetizationPathwayRepo {
  repoLog := baseLog.Repo("MonetizationPathwayRepo")
  return &monetizationPathwayRepo{db: db, log: repoLog}
}

// Upsert writes one row per (verification_id, pathway_type). Re-deriving a
// batch refreshes value and details but never duplicates rows and never
// touches status.
func (r *monetizationPathwayRepo) Upsert(ctx context.Context, tx *gorm.DB, pathways []*types.MonetizationPathway) ([]*types.MonetizationPathway, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(pathways) == 0 {
    return []*types.MonetizationPathway{}, nil
  }
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "verification_id"}, {Name: "pathway_type"}},
      DoUpdates: clause.AssignmentColumns([]string{
        "name", "partner", "estimated_value", "currency", "details", "updated_at",
      }),
    }).
    Create(&pathways).Error; err != nil {
    return nil, err
  }
  return pathways, nil
}

func (r *monetizationPathwayRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MonetizationPathway, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var pathway types.MonetizationPathway
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&pathway).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &pathway, nil
}

func (r *monetizationPathwayRepo) ListByVerificationID(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID) ([]*types.MonetizationPathway, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MonetizationPathway
  if err := transaction.WithContext(ctx).
    Where("verification_id = ?", verificationID).
    Order("pathway_type ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *monetizationPathwayRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.MonetizationPathway, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var results []*types.MonetizationPathway
  if err := transaction.WithContext(ctx).
    Scopes(ownerScope(owner)).
    Order("created_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *monetizationPathwayRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if err := transaction.WithContext(ctx).
    Model(&types.MonetizationPathway{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "status":     status,
      "updated_at": time.Now(),
    }).Error; err != nil {
    return err
  }
  return nil
}

func (r *monetizationPathwayRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  res := transaction.WithContext(ctx).
    Model(&types.MonetizationPathway{}).
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
