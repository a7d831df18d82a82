package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

// ScoreResult is what the scoring model returns for a batch: a quality
// score, a greenwashing risk tier, the two scheme eligibility booleans and
// free-text analysis. BlockingFlags are the subset of flags that force a
// rejection regardless of score.
type ScoreResult struct {
	Score         float64
	Risk          string
	CCTSEligible  bool
	CBAMCompliant bool
	Analysis      types.VerificationAnalysis
	BlockingFlags []string
}

// Scorer abstracts the completion-service call so the transition policy is
// testable with canned scores.
type Scorer interface {
	Score(ctx context.Context, records []*types.EmissionRecord, totalCO2Kg float64) (*ScoreResult, error)
}

// VerificationService runs the verification state machine. pending is
// implicit and never persisted: a batch row only exists once scoring has
// produced a terminal status, and the row is immutable from then on.
// Resubmission means a new batch row over the same record ids.
type VerificationService interface {
	Verify(ctx context.Context, emissionIDs []uuid.UUID, owner types.Owner) (*types.VerificationBatch, error)
	Get(ctx context.Context, id uuid.UUID, owner types.Owner) (*types.VerificationBatch, error)
	ListByOwner(ctx context.Context, owner types.Owner) ([]*types.VerificationBatch, error)
}

type verificationService struct {
	db           *gorm.DB
	log          *logger.Logger
	scorer       Scorer
	emissionRepo repos.EmissionRecordRepo
	batchRepo    repos.VerificationBatchRepo
}

func NewVerificationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	scorer Scorer,
	emissionRepo repos.EmissionRecordRepo,
	batchRepo repos.VerificationBatchRepo,
) VerificationService {
	return &verificationService{
		db:           db,
		log:          baseLog.Service("VerificationService"),
		scorer:       scorer,
		emissionRepo: emissionRepo,
		batchRepo:    batchRepo,
	}
}

// conservativeDefault is used when the scoring model's response does not
// parse as the expected schema: the batch degrades to human review rather
// than blocking the user or silently approving.
func conservativeDefault() *ScoreResult {
	return &ScoreResult{
		Score: 0.7,
		Risk:  types.GreenwashingRiskMedium,
		Analysis: types.VerificationAnalysis{
			DataQuality:           "not assessed",
			MethodologyCompliance: "not assessed",
			Recommendations:       []string{"automatic scoring failed; manual review required"},
			Flags:                 []string{},
		},
	}
}

func (s *verificationService) Verify(ctx context.Context, emissionIDs []uuid.UUID, owner types.Owner) (*types.VerificationBatch, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	if len(emissionIDs) == 0 {
		return nil, fmt.Errorf("verification batch must contain at least one emission record")
	}

	records, err := s.emissionRepo.GetByIDs(ctx, nil, emissionIDs)
	if err != nil {
		return nil, fmt.Errorf("load emission records: %w", err)
	}
	if len(records) != len(emissionIDs) {
		return nil, fmt.Errorf("verification batch references %d records, found %d", len(emissionIDs), len(records))
	}
	for _, rec := range records {
		if !sameOwner(rec.SessionID, rec.UserID, owner) {
			return nil, fmt.Errorf("emission record %s does not belong to the requesting owner", rec.ID)
		}
	}

	var total float64
	for _, rec := range records {
		total += rec.CO2Kg
	}

	score, err := s.scorer.Score(ctx, records, total)
	if err != nil {
		// transport failures and cancellation propagate; only malformed
		// output degrades
		if errors.Is(err, ErrServiceUnavailable) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.log.Warn("scoring output unusable, degrading to needs_review", "error", err)
		score = conservativeDefault()
	}
	if score == nil {
		score = conservativeDefault()
	}

	status := decideStatus(score)

	idsJSON, err := json.Marshal(emissionIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal emission ids: %w", err)
	}
	analysisJSON, err := json.Marshal(score.Analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	batch := &types.VerificationBatch{
		EmissionIDs:      datatypes.JSON(idsJSON),
		TotalCO2Kg:       total,
		Status:           status,
		Score:            score.Score,
		GreenwashingRisk: score.Risk,
		CCTSEligible:     score.CCTSEligible,
		CBAMCompliant:    score.CBAMCompliant,
		Analysis:         datatypes.JSON(analysisJSON),
		SessionID:        owner.SessionID,
		UserID:           owner.UserID,
	}

	// batch insert and record flagging commit together; verification is
	// the one and only path that sets EmissionRecord.verified
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, txErr := s.batchRepo.Create(ctx, tx, []*types.VerificationBatch{batch}); txErr != nil {
			return txErr
		}
		if status == types.VerificationStatusVerified {
			return s.emissionRepo.MarkVerified(ctx, tx, emissionIDs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("persist verification: %w", err)
	}

	s.log.Info("verification batch scored",
		"batch_id", batch.ID,
		"status", status,
		"score", score.Score,
		"risk", score.Risk,
		"total_co2_kg", total,
	)
	return batch, nil
}

// decideStatus applies the transition policy: any blocking flag rejects
// regardless of score; a score of at least 0.8 with low or medium risk
// verifies; everything else needs review.
func decideStatus(score *ScoreResult) string {
	if len(score.BlockingFlags) > 0 {
		return types.VerificationStatusRejected
	}
	if score.Score >= 0.8 &&
		(score.Risk == types.GreenwashingRiskLow || score.Risk == types.GreenwashingRiskMedium) {
		return types.VerificationStatusVerified
	}
	return types.VerificationStatusNeedsReview
}

func (s *verificationService) Get(ctx context.Context, id uuid.UUID, owner types.Owner) (*types.VerificationBatch, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	batch, err := s.batchRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if batch == nil || !sameOwner(batch.SessionID, batch.UserID, owner) {
		return nil, nil
	}
	return batch, nil
}

func (s *verificationService) ListByOwner(ctx context.Context, owner types.Owner) ([]*types.VerificationBatch, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	return s.batchRepo.ListByOwner(ctx, nil, owner)
}

func sameOwner(sessionID *string, userID *uuid.UUID, owner types.Owner) bool {
	if owner.IsUser() {
		return userID != nil && *userID == *owner.UserID
	}
	return sessionID != nil && *sessionID == *owner.SessionID
}
