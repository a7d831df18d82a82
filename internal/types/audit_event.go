package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const AuditKindOwnershipMismatch = "ownership_mismatch"

// AuditEvent records security-relevant refusals, currently device
// fingerprint mismatches on the session ownership merge.
type AuditEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind      string         `gorm:"column:kind;not null;index" json:"kind"`
	SessionID *string        `gorm:"column:session_id" json:"session_id,omitempty"`
	UserID    *uuid.UUID     `gorm:"column:user_id;type:uuid" json:"user_id,omitempty"`
	Detail    datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (AuditEvent) TableName() string { return "audit_events" }

func (a *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
