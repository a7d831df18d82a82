package services

import (
	"context"
	"math"
	"testing"

	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

func newTestRecorder(t *testing.T, repo *fakeEmissionRepo) *recorderService {
	t.Helper()
	taxonomy, err := LoadTaxonomy("")
	if err != nil {
		t.Fatalf("LoadTaxonomy: %v", err)
	}
	return &recorderService{
		log:          testLogger(t),
		emissionRepo: repo,
		taxonomy:     taxonomy,
	}
}

func TestRecordManualTaxonomyMapping(t *testing.T) {
	owner := types.SessionOwner("sess-1")

	cases := []struct {
		name        string
		input       ManualEmissionInput
		wantScope   int
		wantCO2Kg   float64
		wantUnit    string
		wantQuality string
	}{
		{
			name:        "diesel_factor_fallback",
			input:       ManualEmissionInput{Category: "diesel", ActivityQuantity: 100},
			wantScope:   1,
			wantCO2Kg:   268,
			wantUnit:    "liter",
			wantQuality: types.DataQualityManual,
		},
		{
			name:        "explicit_co2_wins_over_factor",
			input:       ManualEmissionInput{Category: "electricity", ActivityQuantity: 1000, CO2Kg: 500},
			wantScope:   2,
			wantCO2Kg:   500,
			wantUnit:    "kwh",
			wantQuality: types.DataQualityManual,
		},
		{
			name:        "green_benefit_negates",
			input:       ManualEmissionInput{Category: "solar_generation", ActivityQuantity: 1000},
			wantScope:   2,
			wantCO2Kg:   -420,
			wantUnit:    "kwh",
			wantQuality: types.DataQualityManual,
		},
		{
			name:        "unknown_category_scope3_unverified",
			input:       ManualEmissionInput{Category: "mystery_fuel", ActivityQuantity: 10, CO2Kg: 42},
			wantScope:   3,
			wantCO2Kg:   42,
			wantUnit:    "",
			wantQuality: types.DataQualityUnverifiedCategory,
		},
		{
			name:        "negative_input_mass_stored_absolute",
			input:       ManualEmissionInput{Category: "freight", CO2Kg: -12.5},
			wantScope:   3,
			wantCO2Kg:   12.5,
			wantUnit:    "tkm",
			wantQuality: types.DataQualityManual,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeEmissionRepo{}
			svc := newTestRecorder(t, repo)
			rec, err := svc.RecordManual(context.Background(), owner, tc.input)
			if err != nil {
				t.Fatalf("RecordManual: %v", err)
			}
			if rec.Scope != tc.wantScope {
				t.Fatalf("scope: want=%d got=%d", tc.wantScope, rec.Scope)
			}
			if math.Abs(rec.CO2Kg-tc.wantCO2Kg) > 1e-9 {
				t.Fatalf("co2_kg: want=%v got=%v", tc.wantCO2Kg, rec.CO2Kg)
			}
			if rec.ActivityUnit != tc.wantUnit {
				t.Fatalf("unit: want=%q got=%q", tc.wantUnit, rec.ActivityUnit)
			}
			if rec.DataQuality != tc.wantQuality {
				t.Fatalf("data_quality: want=%q got=%q", tc.wantQuality, rec.DataQuality)
			}
			if rec.Verified {
				t.Fatalf("new records must not be verified")
			}
		})
	}
}

func TestRecordManualRequiresCategory(t *testing.T) {
	svc := newTestRecorder(t, &fakeEmissionRepo{})
	if _, err := svc.RecordManual(context.Background(), types.SessionOwner("s"), ManualEmissionInput{}); err == nil {
		t.Fatalf("expected error for missing category")
	}
}

func TestRecordManualRejectsInvalidOwner(t *testing.T) {
	svc := newTestRecorder(t, &fakeEmissionRepo{})
	if _, err := svc.RecordManual(context.Background(), types.Owner{}, ManualEmissionInput{Category: "diesel"}); err == nil {
		t.Fatalf("expected error for invalid owner")
	}
}

func TestRecordFromExtractionLinksDocument(t *testing.T) {
	repo := &fakeEmissionRepo{}
	svc := newTestRecorder(t, repo)
	owner := types.SessionOwner("sess-1")

	doc := &types.Document{ContentHash: "abc"}
	doc.ID = mustUUID(t)
	payload := &types.ExtractionPayload{
		EmissionCategory: "Business Travel",
		ActivityQuantity: 250,
	}

	records, err := svc.RecordFromExtraction(context.Background(), nil, doc, payload, owner)
	if err != nil {
		t.Fatalf("RecordFromExtraction: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records: want=1 got=%d", len(records))
	}
	rec := records[0]
	if rec.DocumentID == nil || *rec.DocumentID != doc.ID {
		t.Fatalf("record should reference the source document")
	}
	if rec.Category != "business_travel" {
		t.Fatalf("category: want=business_travel got=%q", rec.Category)
	}
	if rec.DataQuality != types.DataQualityAIExtracted {
		t.Fatalf("data_quality: want=%q got=%q", types.DataQualityAIExtracted, rec.DataQuality)
	}
	if math.Abs(rec.CO2Kg-250*0.17) > 1e-9 {
		t.Fatalf("co2_kg: want=%v got=%v", 250*0.17, rec.CO2Kg)
	}
}

func TestResetOwnerOnlyDeletesOwnRecords(t *testing.T) {
	repo := &fakeEmissionRepo{}
	svc := newTestRecorder(t, repo)
	mine := types.SessionOwner("mine")
	other := types.SessionOwner("other")

	for _, owner := range []types.Owner{mine, mine, other} {
		if _, err := svc.RecordManual(context.Background(), owner, ManualEmissionInput{Category: "diesel", ActivityQuantity: 1}); err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	deleted, err := svc.ResetOwner(context.Background(), mine)
	if err != nil {
		t.Fatalf("ResetOwner: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("deleted: want=2 got=%d", deleted)
	}
	left, _ := svc.ListByOwner(context.Background(), other)
	if len(left) != 1 {
		t.Fatalf("other owner's records must survive: want=1 got=%d", len(left))
	}
}
