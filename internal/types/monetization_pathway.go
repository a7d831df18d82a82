package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PathwayTypeCreditSale          = "credit-sale"
	PathwayTypeGreenFinancing      = "green-financing"
	PathwayTypeGovernmentIncentive = "government-incentive"
)

const (
	PathwayStatusAvailable  = "available"
	PathwayStatusApplied    = "applied"
	PathwayStatusProcessing = "processing"
	PathwayStatusCompleted  = "completed"
)

// MonetizationPathway is one offer derived from a verified batch. At most
// one row exists per (verification_id, pathway_type); re-deriving upserts
// in place. Status only moves forward.
type MonetizationPathway struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	VerificationID uuid.UUID      `gorm:"column:verification_id;type:uuid;not null;uniqueIndex:idx_pathway_batch_type" json:"verification_id"`
	PathwayType    string         `gorm:"column:pathway_type;not null;uniqueIndex:idx_pathway_batch_type" json:"pathway_type"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Partner        string         `gorm:"column:partner" json:"partner"`
	EstimatedValue float64        `gorm:"column:estimated_value;not null" json:"estimated_value"`
	Currency       string         `gorm:"column:currency;not null" json:"currency"`
	Status         string         `gorm:"column:status;not null;default:'available'" json:"status"`
	Details        datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
	SessionID      *string        `gorm:"column:session_id;index" json:"session_id,omitempty"`
	UserID         *uuid.UUID     `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (MonetizationPathway) TableName() string { return "monetization_pathways" }

func (m *MonetizationPathway) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// PathwayDetails is the static descriptive portion of an offer, stored in
// the Details jsonb column.
type PathwayDetails struct {
	Description  string   `json:"description"`
	Eligibility  string   `json:"eligibility"`
	Timeline     string   `json:"timeline"`
	Requirements []string `json:"requirements"`
}

// PathwayStatusRank orders the forward-only status progression. Unknown
// statuses rank below available so they can never be advanced into.
func PathwayStatusRank(status string) int {
	switch status {
	case PathwayStatusAvailable:
		return 0
	case PathwayStatusApplied:
		return 1
	case PathwayStatusProcessing:
		return 2
	case PathwayStatusCompleted:
		return 3
	default:
		return -1
	}
}
