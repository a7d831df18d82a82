package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	VerificationStatusVerified    = "verified"
	VerificationStatusNeedsReview = "needs_review"
	VerificationStatusRejected    = "rejected"
)

const (
	GreenwashingRiskLow    = "low"
	GreenwashingRiskMedium = "medium"
	GreenwashingRiskHigh   = "high"
)

// VerificationBatch is the unit the verification engine scores. A row is
// written only after scoring completes, so a persisted batch is always in a
// terminal status and is never mutated. Resubmitting a rejected or
// needs_review set of records produces a new batch row.
type VerificationBatch struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EmissionIDs      datatypes.JSON `gorm:"column:emission_ids;type:jsonb;not null" json:"emission_ids"`
	TotalCO2Kg       float64        `gorm:"column:total_co2_kg;not null" json:"total_co2_kg"`
	Status           string         `gorm:"column:status;not null" json:"status"`
	Score            float64        `gorm:"column:score;not null" json:"score"`
	GreenwashingRisk string         `gorm:"column:greenwashing_risk;not null" json:"greenwashing_risk"`
	CCTSEligible     bool           `gorm:"column:ccts_eligible;not null;default:false" json:"ccts_eligible"`
	CBAMCompliant    bool           `gorm:"column:cbam_compliant;not null;default:false" json:"cbam_compliant"`
	Analysis         datatypes.JSON `gorm:"column:analysis;type:jsonb" json:"analysis"`
	SessionID        *string        `gorm:"column:session_id;index" json:"session_id,omitempty"`
	UserID           *uuid.UUID     `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	CreatedAt        time.Time      `gorm:"not null" json:"created_at"`
}

func (VerificationBatch) TableName() string { return "carbon_verifications" }

func (v *VerificationBatch) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VerificationAnalysis is the free-text portion of a scored batch, stored
// in the Analysis jsonb column.
type VerificationAnalysis struct {
	DataQuality           string   `json:"dataQuality"`
	MethodologyCompliance string   `json:"methodologyCompliance"`
	Recommendations       []string `json:"recommendations"`
	Flags                 []string `json:"flags"`
}
