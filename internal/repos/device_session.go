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

type DeviceSessionRepo interface {
  Touch(ctx context.Context, tx *gorm.DB, sessionID string, deviceFingerprint string) (*types.DeviceSession, error)
  GetByID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.DeviceSession, error)
  MarkMerged(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) error
}

type deviceSessionRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDeviceSessionRepo(db *gorm.DB, baseLog *logger.Logger) DeviceSessionRepo {
  repoLog := baseLog.Repo("DeviceSessionRepo")
  return &deviceSessionRepo{db: db, log: repoLog}
}

// Touch records a session the first time it is seen. The fingerprint is
// captured once and never overwritten; a later mismatch is the merge
// refusal signal, not something to paper over.
func (r *deviceSessionRepo) Touch(ctx context.Context, tx *gorm.DB, sessionID string, deviceFingerprint string) (*types.DeviceSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  session := &types.DeviceSession{
    SessionID:         sessionID,
    DeviceFingerprint: deviceFingerprint,
  }
  if err := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "session_id"}},
      DoNothing: true,
    }).
    Create(session).Error; err != nil {
    return nil, err
  }
  return r.GetByID(ctx, tx, sessionID)
}

func (r *deviceSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.DeviceSession, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var session types.DeviceSession
  if err := transaction.WithContext(ctx).
    Where("session_id = ?", sessionID).
    First(&session).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &session, nil
}

func (r *deviceSessionRepo) MarkMerged(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if err := transaction.WithContext(ctx).
    Model(&types.DeviceSession{}).
    Where("session_id = ?", sessionID).
    Updates(map[string]interface{}{
      "merged_into": userID,
      "updated_at":  time.Now(),
    }).Error; err != nil {
    return err
  }
  return nil
}
