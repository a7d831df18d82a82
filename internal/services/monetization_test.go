package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

func newTestMonetization(t *testing.T, batchRepo *fakeBatchRepo, pathwayRepo *fakePathwayRepo) *monetizationService {
	t.Helper()
	return &monetizationService{
		db:                 newTestDB(t),
		log:                testLogger(t),
		batchRepo:          batchRepo,
		pathwayRepo:        pathwayRepo,
		creditRatePerTon:   25.0,
		financingPrincipal: 500000.0,
		rateReductionPct:   1.5,
		incentivePerTon:    12.0,
		currency:           "EUR",
	}
}

func seedBatch(repo *fakeBatchRepo, owner types.Owner, status string, totalKg, score float64, ccts, cbam bool) *types.VerificationBatch {
	batch := &types.VerificationBatch{
		ID:               uuid.New(),
		Status:           status,
		TotalCO2Kg:       totalKg,
		Score:            score,
		GreenwashingRisk: types.GreenwashingRiskLow,
		CCTSEligible:     ccts,
		CBAMCompliant:    cbam,
		SessionID:        owner.SessionID,
		UserID:           owner.UserID,
	}
	repo.batches = append(repo.batches, batch)
	return batch
}

func TestDeriveRequiresVerifiedBatch(t *testing.T) {
	owner := types.SessionOwner("sess-1")
	batchRepo := &fakeBatchRepo{}
	svc := newTestMonetization(t, batchRepo, &fakePathwayRepo{})

	for _, status := range []string{types.VerificationStatusNeedsReview, types.VerificationStatusRejected} {
		batch := seedBatch(batchRepo, owner, status, 5000, 0.9, true, true)
		_, err := svc.Derive(context.Background(), batch.ID, owner)
		if !errors.Is(err, ErrNotVerified) {
			t.Fatalf("status %q: want ErrNotVerified, got %v", status, err)
		}
	}
}

func TestDeriveHidesForeignBatch(t *testing.T) {
	batchRepo := &fakeBatchRepo{}
	batch := seedBatch(batchRepo, types.SessionOwner("someone-else"), types.VerificationStatusVerified, 5000, 0.9, true, true)
	svc := newTestMonetization(t, batchRepo, &fakePathwayRepo{})

	_, err := svc.Derive(context.Background(), batch.ID, types.SessionOwner("me"))
	if err == nil {
		t.Fatalf("expected not-found error for foreign batch")
	}
	if errors.Is(err, ErrNotVerified) {
		t.Fatalf("foreign batch must read as not found, not as unverified")
	}
}

func TestDerivePathwayMath(t *testing.T) {
	owner := types.SessionOwner("sess-1")
	batchRepo := &fakeBatchRepo{}
	// 5000 kg = 5 t, score 0.9, fully eligible
	batch := seedBatch(batchRepo, owner, types.VerificationStatusVerified, 5000, 0.9, true, true)
	svc := newTestMonetization(t, batchRepo, &fakePathwayRepo{})

	summary, err := svc.Derive(context.Background(), batch.ID, owner)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(summary.Pathways) != 3 {
		t.Fatalf("pathways: want=3 got=%d", len(summary.Pathways))
	}

	byType := map[string]*types.MonetizationPathway{}
	for _, p := range summary.Pathways {
		byType[p.PathwayType] = p
	}

	// credit sale: 5 t * 25 EUR/t * score 0.9
	if got := byType[types.PathwayTypeCreditSale].EstimatedValue; math.Abs(got-112.5) > 1e-9 {
		t.Fatalf("credit sale value: want=112.5 got=%v", got)
	}
	// financing: 500000 * 1.5%
	if got := byType[types.PathwayTypeGreenFinancing].EstimatedValue; math.Abs(got-7500) > 1e-9 {
		t.Fatalf("financing value: want=7500 got=%v", got)
	}
	// incentive: 5 t * 12 EUR/t
	if got := byType[types.PathwayTypeGovernmentIncentive].EstimatedValue; math.Abs(got-60) > 1e-9 {
		t.Fatalf("incentive value: want=60 got=%v", got)
	}
	if math.Abs(summary.TotalPotentialValue-(112.5+7500+60)) > 1e-9 {
		t.Fatalf("total: want=%v got=%v", 112.5+7500+60, summary.TotalPotentialValue)
	}
	if summary.CO2Tons != 5 {
		t.Fatalf("tons: want=5 got=%v", summary.CO2Tons)
	}
	for _, p := range summary.Pathways {
		if p.Status != types.PathwayStatusAvailable {
			t.Fatalf("fresh pathway status: want=available got=%q", p.Status)
		}
	}
}

func TestDeriveSkipsIneligiblePathways(t *testing.T) {
	owner := types.SessionOwner("sess-1")
	batchRepo := &fakeBatchRepo{}
	batch := seedBatch(batchRepo, owner, types.VerificationStatusVerified, 5000, 0.9, false, false)
	svc := newTestMonetization(t, batchRepo, &fakePathwayRepo{})

	summary, err := svc.Derive(context.Background(), batch.ID, owner)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(summary.Pathways) != 1 {
		t.Fatalf("pathways: want=1 (credit sale only) got=%d", len(summary.Pathways))
	}
	if summary.Pathways[0].PathwayType != types.PathwayTypeCreditSale {
		t.Fatalf("want credit-sale, got %q", summary.Pathways[0].PathwayType)
	}
}

func TestDeriveIsIdempotentAndPreservesStatus(t *testing.T) {
	owner := types.SessionOwner("sess-1")
	batchRepo := &fakeBatchRepo{}
	pathwayRepo := &fakePathwayRepo{}
	batch := seedBatch(batchRepo, owner, types.VerificationStatusVerified, 5000, 0.9, true, true)
	svc := newTestMonetization(t, batchRepo, pathwayRepo)

	first, err := svc.Derive(context.Background(), batch.ID, owner)
	if err != nil {
		t.Fatalf("first Derive: %v", err)
	}

	// advance one pathway, then re-derive
	var creditID uuid.UUID
	for _, p := range first.Pathways {
		if p.PathwayType == types.PathwayTypeCreditSale {
			creditID = p.ID
		}
	}
	if _, err := svc.Apply(context.Background(), creditID, owner); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	second, err := svc.Derive(context.Background(), batch.ID, owner)
	if err != nil {
		t.Fatalf("second Derive: %v", err)
	}
	if len(second.Pathways) != 3 {
		t.Fatalf("re-derive must not duplicate rows: want=3 got=%d", len(second.Pathways))
	}
	for _, p := range second.Pathways {
		if p.PathwayType == types.PathwayTypeCreditSale && p.Status != types.PathwayStatusApplied {
			t.Fatalf("re-derive must not reset status: want=applied got=%q", p.Status)
		}
	}
}

func TestApplyForwardOnlyProgression(t *testing.T) {
	owner := types.SessionOwner("sess-1")
	batchRepo := &fakeBatchRepo{}
	pathwayRepo := &fakePathwayRepo{}
	batch := seedBatch(batchRepo, owner, types.VerificationStatusVerified, 1000, 0.9, false, false)
	svc := newTestMonetization(t, batchRepo, pathwayRepo)

	summary, err := svc.Derive(context.Background(), batch.ID, owner)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	id := summary.Pathways[0].ID

	want := []string{
		types.PathwayStatusApplied,
		types.PathwayStatusProcessing,
		types.PathwayStatusCompleted,
	}
	for _, expected := range want {
		p, aErr := svc.Apply(context.Background(), id, owner)
		if aErr != nil {
			t.Fatalf("Apply: %v", aErr)
		}
		if p.Status != expected {
			t.Fatalf("status: want=%q got=%q", expected, p.Status)
		}
	}

	// completed is terminal
	if _, err := svc.Apply(context.Background(), id, owner); err == nil {
		t.Fatalf("expected error applying a completed pathway")
	}
}

func TestApplyHidesForeignPathway(t *testing.T) {
	owner := types.SessionOwner("sess-1")
	batchRepo := &fakeBatchRepo{}
	pathwayRepo := &fakePathwayRepo{}
	batch := seedBatch(batchRepo, owner, types.VerificationStatusVerified, 1000, 0.9, false, false)
	svc := newTestMonetization(t, batchRepo, pathwayRepo)

	summary, err := svc.Derive(context.Background(), batch.ID, owner)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if _, err := svc.Apply(context.Background(), summary.Pathways[0].ID, types.SessionOwner("intruder")); err == nil {
		t.Fatalf("expected error applying a foreign pathway")
	}
}

func TestNextPathwayStatusUnknownIsTerminal(t *testing.T) {
	if got := nextPathwayStatus("weird"); got != "" {
		t.Fatalf("unknown status must not advance, got %q", got)
	}
}

func TestDeriveCommitsPathwayRows(t *testing.T) {
	db := newTestDB(t)
	log := testLogger(t)
	batchRepo := repos.NewVerificationBatchRepo(db, log)
	pathwayRepo := repos.NewMonetizationPathwayRepo(db, log)
	svc := &monetizationService{
		db:                 db,
		log:                log,
		batchRepo:          batchRepo,
		pathwayRepo:        pathwayRepo,
		creditRatePerTon:   25.0,
		financingPrincipal: 500000.0,
		rateReductionPct:   1.5,
		incentivePerTon:    12.0,
		currency:           "EUR",
	}

	ctx := context.Background()
	owner := types.SessionOwner("sess-derive-db")
	batch := &types.VerificationBatch{
		EmissionIDs:      mustMarshal(t, []uuid.UUID{uuid.New()}),
		TotalCO2Kg:       5000,
		Status:           types.VerificationStatusVerified,
		Score:            0.9,
		GreenwashingRisk: types.GreenwashingRiskLow,
		CCTSEligible:     true,
		CBAMCompliant:    true,
		Analysis:         []byte(`{}`),
		SessionID:        owner.SessionID,
	}
	if _, err := batchRepo.Create(ctx, nil, []*types.VerificationBatch{batch}); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	summary, err := svc.Derive(ctx, batch.ID, owner)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(summary.Pathways) != 3 {
		t.Fatalf("pathways: want=3 got=%d", len(summary.Pathways))
	}

	// re-derive after an apply: still three rows, credit-sale status kept
	var creditID uuid.UUID
	for _, p := range summary.Pathways {
		if p.PathwayType == types.PathwayTypeCreditSale {
			creditID = p.ID
		}
	}
	if _, err := svc.Apply(ctx, creditID, owner); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := svc.Derive(ctx, batch.ID, owner); err != nil {
		t.Fatalf("re-Derive: %v", err)
	}
	rows, err := pathwayRepo.ListByVerificationID(ctx, nil, batch.ID)
	if err != nil {
		t.Fatalf("ListByVerificationID: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("re-derive duplicated rows: want=3 got=%d", len(rows))
	}
	for _, p := range rows {
		if p.PathwayType == types.PathwayTypeCreditSale && p.Status != types.PathwayStatusApplied {
			t.Fatalf("re-derive must not reset status: want=%q got=%q", types.PathwayStatusApplied, p.Status)
		}
	}
}
