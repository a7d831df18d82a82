package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
	"github.com/verdantiq/carbonmrv-backend/internal/utils"
)

type MonetizationSummary struct {
	Pathways            []*types.MonetizationPathway `json:"pathways"`
	TotalPotentialValue float64                      `json:"totalPotentialValue"`
	Currency            string                       `json:"currency"`
	VerificationScore   float64                      `json:"verificationScore"`
	CO2Tons             float64                      `json:"co2Tons"`
}

// MonetizationService derives offers from a verified batch. The math is a
// pure function of the batch's verified total, score and eligibility
// booleans, so deriving twice always produces the same pathway set; rows
// are upserted per (batch, type), never appended.
type MonetizationService interface {
	Derive(ctx context.Context, verificationID uuid.UUID, owner types.Owner) (*MonetizationSummary, error)
	Apply(ctx context.Context, pathwayID uuid.UUID, owner types.Owner) (*types.MonetizationPathway, error)
	ListByOwner(ctx context.Context, owner types.Owner) ([]*types.MonetizationPathway, error)
}

type monetizationService struct {
	db          *gorm.DB
	log         *logger.Logger
	batchRepo   repos.VerificationBatchRepo
	pathwayRepo repos.MonetizationPathwayRepo

	creditRatePerTon   float64
	financingPrincipal float64
	rateReductionPct   float64
	incentivePerTon    float64
	currency           string
}

func NewMonetizationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	batchRepo repos.VerificationBatchRepo,
	pathwayRepo repos.MonetizationPathwayRepo,
) MonetizationService {
	serviceLog := baseLog.Service("MonetizationService")
	return &monetizationService{
		db:                 db,
		log:                serviceLog,
		batchRepo:          batchRepo,
		pathwayRepo:        pathwayRepo,
		creditRatePerTon:   utils.GetEnvAsFloat("MONETIZATION_CREDIT_RATE_PER_TON", 25.0, baseLog),
		financingPrincipal: utils.GetEnvAsFloat("MONETIZATION_FINANCING_PRINCIPAL", 500000.0, baseLog),
		rateReductionPct:   utils.GetEnvAsFloat("MONETIZATION_RATE_REDUCTION_PCT", 1.5, baseLog),
		incentivePerTon:    utils.GetEnvAsFloat("MONETIZATION_INCENTIVE_PER_TON", 12.0, baseLog),
		currency:           utils.GetEnv("MONETIZATION_CURRENCY", "EUR", baseLog),
	}
}

func (s *monetizationService) Derive(ctx context.Context, verificationID uuid.UUID, owner types.Owner) (*MonetizationSummary, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}

	batch, err := s.batchRepo.GetByID(ctx, nil, verificationID)
	if err != nil {
		return nil, fmt.Errorf("load verification batch: %w", err)
	}
	if batch == nil || !sameOwner(batch.SessionID, batch.UserID, owner) {
		return nil, fmt.Errorf("verification batch %s not found", verificationID)
	}
	if batch.Status != types.VerificationStatusVerified {
		return nil, fmt.Errorf("%w: batch %s is %s", ErrNotVerified, batch.ID, batch.Status)
	}

	tons := batch.TotalCO2Kg / 1000.0
	pathways := s.buildPathways(batch, tons, owner)

	// upsert and read-back share a transaction so the summary reflects
	// exactly the rows this derive left behind, statuses included
	var persisted []*types.MonetizationPathway
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upserted, txErr := s.pathwayRepo.Upsert(ctx, tx, pathways)
		if txErr != nil {
			return fmt.Errorf("persist pathways: %w", txErr)
		}
		persisted, txErr = s.pathwayRepo.ListByVerificationID(ctx, tx, batch.ID)
		if txErr != nil {
			// fall back to what we just wrote
			persisted = upserted
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var total float64
	for _, p := range persisted {
		total += p.EstimatedValue
	}
	return &MonetizationSummary{
		Pathways:            persisted,
		TotalPotentialValue: round2(total),
		Currency:            s.currency,
		VerificationScore:   batch.Score,
		CO2Tons:             round2(tons),
	}, nil
}

// buildPathways contains all the offer math. Negative totals (a net green
// benefit) still monetize credit sales on the absolute avoided mass; the
// financing and incentive pathways require genuine eligibility signals.
func (s *monetizationService) buildPathways(batch *types.VerificationBatch, tons float64, owner types.Owner) []*types.MonetizationPathway {
	var out []*types.MonetizationPathway

	creditTons := math.Abs(tons)
	out = append(out, &types.MonetizationPathway{
		VerificationID: batch.ID,
		PathwayType:    types.PathwayTypeCreditSale,
		Name:           "Verified Carbon Credit Sale",
		Partner:        "Climate Exchange Registry",
		EstimatedValue: round2(creditTons * s.creditRatePerTon * batch.Score),
		Currency:       s.currency,
		Status:         types.PathwayStatusAvailable,
		Details: mustDetailsJSON(types.PathwayDetails{
			Description: "Sell verified emission reductions as carbon credits.",
			Eligibility: "Verified batch with score-weighted tonnage.",
			Timeline:    "4-6 weeks after registry listing",
			Requirements: []string{
				"Verified emission batch",
				"Registry account",
				"Ownership attestation",
			},
		}),
		SessionID: owner.SessionID,
		UserID:    owner.UserID,
	})

	if batch.CBAMCompliant {
		out = append(out, &types.MonetizationPathway{
			VerificationID: batch.ID,
			PathwayType:    types.PathwayTypeGreenFinancing,
			Name:           "Preferential Green Financing",
			Partner:        "GreenBank Capital",
			EstimatedValue: round2(s.financingPrincipal * s.rateReductionPct / 100.0),
			Currency:       s.currency,
			Status:         types.PathwayStatusAvailable,
			Details: mustDetailsJSON(types.PathwayDetails{
				Description: "Interest rate reduction on working capital backed by verified carbon data.",
				Eligibility: "CBAM-compliant verified reporting.",
				Timeline:    "2-3 weeks underwriting",
				Requirements: []string{
					"CBAM-compliant verification",
					"Last two annual statements",
					"KYC onboarding",
				},
			}),
			SessionID: owner.SessionID,
			UserID:    owner.UserID,
		})
	}

	if batch.CCTSEligible {
		out = append(out, &types.MonetizationPathway{
			VerificationID: batch.ID,
			PathwayType:    types.PathwayTypeGovernmentIncentive,
			Name:           "Government Decarbonization Incentive",
			Partner:        "National Climate Fund",
			EstimatedValue: round2(math.Abs(tons) * s.incentivePerTon),
			Currency:       s.currency,
			Status:         types.PathwayStatusAvailable,
			Details: mustDetailsJSON(types.PathwayDetails{
				Description: "Per-tonne subsidy for verified emission reporting under the national scheme.",
				Eligibility: "CCTS-eligible verified batch.",
				Timeline:    "Next quarterly disbursement window",
				Requirements: []string{
					"CCTS eligibility",
					"Company registration number",
					"Bank account in scheme country",
				},
			}),
			SessionID: owner.SessionID,
			UserID:    owner.UserID,
		})
	}

	return out
}

func (s *monetizationService) Apply(ctx context.Context, pathwayID uuid.UUID, owner types.Owner) (*types.MonetizationPathway, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	pathway, err := s.pathwayRepo.GetByID(ctx, nil, pathwayID)
	if err != nil {
		return nil, fmt.Errorf("load pathway: %w", err)
	}
	if pathway == nil || !sameOwner(pathway.SessionID, pathway.UserID, owner) {
		return nil, fmt.Errorf("pathway %s not found", pathwayID)
	}

	next := nextPathwayStatus(pathway.Status)
	if next == "" {
		return nil, fmt.Errorf("pathway %s is already %s", pathway.ID, pathway.Status)
	}
	if err := s.pathwayRepo.UpdateStatus(ctx, nil, pathway.ID, next); err != nil {
		return nil, fmt.Errorf("advance pathway status: %w", err)
	}
	pathway.Status = next
	s.log.Info("pathway status advanced", "pathway_id", pathway.ID, "status", next)
	return pathway, nil
}

func (s *monetizationService) ListByOwner(ctx context.Context, owner types.Owner) ([]*types.MonetizationPathway, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	return s.pathwayRepo.ListByOwner(ctx, nil, owner)
}

// nextPathwayStatus returns the single allowed successor, or "" when the
// pathway is terminal or in an unknown state. Regressions are impossible
// because the progression only ever moves one rank forward.
func nextPathwayStatus(current string) string {
	order := []string{
		types.PathwayStatusAvailable,
		types.PathwayStatusApplied,
		types.PathwayStatusProcessing,
		types.PathwayStatusCompleted,
	}
	rank := types.PathwayStatusRank(current)
	if rank < 0 || rank >= len(order)-1 {
		return ""
	}
	return order[rank+1]
}

func mustDetailsJSON(d types.PathwayDetails) datatypes.JSON {
	raw, err := json.Marshal(d)
	if err != nil {
		// PathwayDetails contains only strings and slices
		panic(err)
	}
	return datatypes.JSON(raw)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
