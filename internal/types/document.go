package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document is one uploaded invoice/bill/receipt. A row exists per
// (content hash, owner); byte-identical re-uploads are reads against the
// fingerprint cache and never create a second row for the same owner.
type Document struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ContentHash  string         `gorm:"column:content_hash;not null;index;uniqueIndex:idx_documents_hash_session,where:session_id IS NOT NULL;uniqueIndex:idx_documents_hash_user,where:user_id IS NOT NULL" json:"content_hash"`
	OriginalName string         `gorm:"column:original_name" json:"original_name"`
	MimeType     string         `gorm:"column:mime_type;not null" json:"mime_type"`
	SizeBytes    int64          `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey   string         `gorm:"column:storage_key" json:"storage_key,omitempty"`
	Extraction   datatypes.JSON `gorm:"column:extraction;type:jsonb;not null" json:"extraction"`
	SessionID    *string        `gorm:"column:session_id;index;uniqueIndex:idx_documents_hash_session" json:"session_id,omitempty"`
	UserID       *uuid.UUID     `gorm:"column:user_id;type:uuid;index;uniqueIndex:idx_documents_hash_user" json:"user_id,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (Document) TableName() string { return "documents" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ExtractionPayload is the structured result of one extraction call. It is
// stored verbatim on the Document row and in the fingerprint cache.
type ExtractionPayload struct {
	DocumentType     string   `json:"documentType"`
	Vendor           string   `json:"vendor,omitempty"`
	Date             string   `json:"date,omitempty"`
	InvoiceNumber    string   `json:"invoiceNumber,omitempty"`
	Amount           float64  `json:"amount,omitempty"`
	Currency         string   `json:"currency,omitempty"`
	EmissionCategory string   `json:"emissionCategory,omitempty"`
	ActivityQuantity float64  `json:"activityQuantity,omitempty"`
	ActivityUnit     string   `json:"activityUnit,omitempty"`
	EstimatedCO2Kg   float64  `json:"estimatedCO2Kg,omitempty"`
	Confidence       float64  `json:"confidence"`
	ValidationFlags  []string `json:"validationFlags,omitempty"`
}
