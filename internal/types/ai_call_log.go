package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AICallLog records one call to the completion service (extraction or
// verification scoring) for auditability.
type AICallLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CallType   string     `gorm:"column:call_type;not null" json:"call_type"`
	Model      string     `gorm:"column:model;not null" json:"model"`
	DurationMs int64      `gorm:"column:duration_ms" json:"duration_ms"`
	Success    bool       `gorm:"column:success;not null" json:"success"`
	Error      string     `gorm:"column:error" json:"error"`
	SessionID  *string    `gorm:"column:session_id;index" json:"session_id,omitempty"`
	UserID     *uuid.UUID `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
}

func (AICallLog) TableName() string { return "ai_call_logs" }

func (a *AICallLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
