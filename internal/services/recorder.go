package services

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
	"github.com/verdantiq/carbonmrv-backend/internal/utils"
)

// RecorderService turns extraction payloads into scope-classified emission
// rows. It never rejects on an unknown category — the row is created as
// scope 3 / unverified_category and judgment is deferred to verification.
type RecorderService interface {
	RecordFromExtraction(ctx context.Context, tx *gorm.DB, doc *types.Document, payload *types.ExtractionPayload, owner types.Owner) ([]*types.EmissionRecord, error)
	RecordManual(ctx context.Context, owner types.Owner, input ManualEmissionInput) (*types.EmissionRecord, error)
	ListByOwner(ctx context.Context, owner types.Owner) ([]*types.EmissionRecord, error)
	ResetOwner(ctx context.Context, owner types.Owner) (int64, error)
}

type ManualEmissionInput struct {
	Category         string  `json:"category"`
	ActivityQuantity float64 `json:"activity_quantity"`
	ActivityUnit     string  `json:"activity_unit,omitempty"`
	CO2Kg            float64 `json:"co2_kg,omitempty"`
}

type recorderService struct {
	db           *gorm.DB
	log          *logger.Logger
	emissionRepo repos.EmissionRecordRepo
	taxonomy     Taxonomy
}

func NewRecorderService(db *gorm.DB, baseLog *logger.Logger, emissionRepo repos.EmissionRecordRepo) (RecorderService, error) {
	serviceLog := baseLog.Service("RecorderService")
	taxonomyPath := utils.GetEnv("EMISSION_TAXONOMY_PATH", "", baseLog)
	taxonomy, err := LoadTaxonomy(taxonomyPath)
	if err != nil {
		return nil, fmt.Errorf("Failed to load emission taxonomy: %w", err)
	}
	return &recorderService{
		db:           db,
		log:          serviceLog,
		emissionRepo: emissionRepo,
		taxonomy:     taxonomy,
	}, nil
}

func (s *recorderService) RecordFromExtraction(ctx context.Context, tx *gorm.DB, doc *types.Document, payload *types.ExtractionPayload, owner types.Owner) ([]*types.EmissionRecord, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	if payload == nil {
		return nil, fmt.Errorf("extraction payload required")
	}

	record := s.buildRecord(payload.EmissionCategory, payload.ActivityQuantity, payload.ActivityUnit, payload.EstimatedCO2Kg, owner)
	record.DataQuality = types.DataQualityAIExtracted
	if _, known := s.taxonomy.Resolve(payload.EmissionCategory); !known {
		record.DataQuality = types.DataQualityUnverifiedCategory
	}
	if doc != nil {
		record.DocumentID = &doc.ID
	}

	created, err := s.emissionRepo.Create(ctx, tx, []*types.EmissionRecord{record})
	if err != nil {
		return nil, fmt.Errorf("Failed to create emission record: %w", err)
	}
	return created, nil
}

func (s *recorderService) RecordManual(ctx context.Context, owner types.Owner, input ManualEmissionInput) (*types.EmissionRecord, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	if input.Category == "" {
		return nil, fmt.Errorf("category required")
	}

	record := s.buildRecord(input.Category, input.ActivityQuantity, input.ActivityUnit, input.CO2Kg, owner)
	record.DataQuality = types.DataQualityManual
	if _, known := s.taxonomy.Resolve(input.Category); !known {
		record.DataQuality = types.DataQualityUnverifiedCategory
	}

	created, err := s.emissionRepo.Create(ctx, nil, []*types.EmissionRecord{record})
	if err != nil {
		return nil, fmt.Errorf("Failed to create manual emission record: %w", err)
	}
	return created[0], nil
}

// buildRecord applies the taxonomy: scope, unit default, factor fallback
// when the payload carries no CO2 estimate, and the green-benefit sign.
func (s *recorderService) buildRecord(category string, quantity float64, unit string, co2Kg float64, owner types.Owner) *types.EmissionRecord {
	info, _ := s.taxonomy.Resolve(category)

	if unit == "" {
		unit = info.DefaultUnit
	}

	mass := math.Abs(co2Kg)
	if mass == 0 && quantity != 0 {
		mass = math.Abs(quantity) * info.FactorKg
	}
	if info.GreenBenefit {
		mass = -mass
	}

	return &types.EmissionRecord{
		Scope:            info.Scope,
		Category:         normalizeCategory(category),
		ActivityQuantity: quantity,
		ActivityUnit:     unit,
		EmissionFactor:   info.FactorKg,
		CO2Kg:            mass,
		SessionID:        owner.SessionID,
		UserID:           owner.UserID,
	}
}

func (s *recorderService) ListByOwner(ctx context.Context, owner types.Owner) ([]*types.EmissionRecord, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	return s.emissionRepo.ListByOwner(ctx, nil, owner)
}

func (s *recorderService) ResetOwner(ctx context.Context, owner types.Owner) (int64, error) {
	if !owner.Valid() {
		return 0, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	deleted, err := s.emissionRepo.DeleteByOwner(ctx, nil, owner)
	if err != nil {
		return 0, err
	}
	s.log.Info("emission records reset", "deleted", deleted)
	return deleted, nil
}
