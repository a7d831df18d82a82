package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DataQualityAIExtracted        = "ai_extracted"
	DataQualityManual             = "manual"
	DataQualityUnverifiedCategory = "unverified_category"
)

// EmissionRecord is one scope-classified quantity derived from a document
// (or entered manually, in which case DocumentID is nil). CO2Kg is signed:
// negative denotes an avoided/green benefit.
type EmissionRecord struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID       *uuid.UUID `gorm:"column:document_id;type:uuid;index" json:"document_id,omitempty"`
	Scope            int        `gorm:"column:scope;not null" json:"scope"`
	Category         string     `gorm:"column:category;not null" json:"category"`
	ActivityQuantity float64    `gorm:"column:activity_quantity" json:"activity_quantity"`
	ActivityUnit     string     `gorm:"column:activity_unit" json:"activity_unit"`
	EmissionFactor   float64    `gorm:"column:emission_factor" json:"emission_factor"`
	CO2Kg            float64    `gorm:"column:co2_kg;not null" json:"co2_kg"`
	DataQuality      string     `gorm:"column:data_quality;not null;default:'ai_extracted'" json:"data_quality"`
	Verified         bool       `gorm:"column:verified;not null;default:false" json:"verified"`
	SessionID        *string    `gorm:"column:session_id;index" json:"session_id,omitempty"`
	UserID           *uuid.UUID `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (EmissionRecord) TableName() string { return "emissions" }

func (e *EmissionRecord) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
