package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// newTestDB opens a per-test in-memory SQLite database with the full
// schema, so service tests can run their real transactions.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&types.Document{},
		&types.EmissionRecord{},
		&types.VerificationBatch{},
		&types.MonetizationPathway{},
		&types.DeviceSession{},
		&types.AuditEvent{},
		&types.AICallLog{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func ownerMatches(sessionID *string, userID *uuid.UUID, owner types.Owner) bool {
	if owner.SessionID != nil {
		return sessionID != nil && *sessionID == *owner.SessionID
	}
	return userID != nil && owner.UserID != nil && *userID == *owner.UserID
}

type fakeDocumentRepo struct {
	docs       []*types.Document
	createErr  error
	reassigned int64
}

func (f *fakeDocumentRepo) Create(ctx context.Context, tx *gorm.DB, docs []*types.Document) ([]*types.Document, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, d := range docs {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		f.docs = append(f.docs, d)
	}
	return docs, nil
}

func (f *fakeDocumentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDocumentRepo) GetByHash(ctx context.Context, tx *gorm.DB, hash string) (*types.Document, error) {
	for i := len(f.docs) - 1; i >= 0; i-- {
		if f.docs[i].ContentHash == hash {
			return f.docs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDocumentRepo) GetByHashForOwner(ctx context.Context, tx *gorm.DB, hash string, owner types.Owner) (*types.Document, error) {
	for i := len(f.docs) - 1; i >= 0; i-- {
		d := f.docs[i]
		if d.ContentHash == hash && ownerMatches(d.SessionID, d.UserID, owner) {
			return d, nil
		}
	}
	return nil, nil
}

func (f *fakeDocumentRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.Document, error) {
	var out []*types.Document
	for _, d := range f.docs {
		if ownerMatches(d.SessionID, d.UserID, owner) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocumentRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
	var n int64
	for _, d := range f.docs {
		if d.SessionID != nil && *d.SessionID == sessionID {
			d.SessionID = nil
			uid := userID
			d.UserID = &uid
			n++
		}
	}
	f.reassigned = n
	return n, nil
}

type fakeEmissionRepo struct {
	records   []*types.EmissionRecord
	createErr error
}

func (f *fakeEmissionRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.EmissionRecord) ([]*types.EmissionRecord, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, r := range records {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		f.records = append(f.records, r)
	}
	return records, nil
}

func (f *fakeEmissionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.EmissionRecord, error) {
	var out []*types.EmissionRecord
	for _, id := range ids {
		for _, r := range f.records {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func (f *fakeEmissionRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.EmissionRecord, error) {
	var out []*types.EmissionRecord
	for _, r := range f.records {
		if ownerMatches(r.SessionID, r.UserID, owner) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEmissionRepo) MarkVerified(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	for _, id := range ids {
		for _, r := range f.records {
			if r.ID == id {
				r.Verified = true
			}
		}
	}
	return nil
}

func (f *fakeEmissionRepo) DeleteByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) (int64, error) {
	var kept []*types.EmissionRecord
	var n int64
	for _, r := range f.records {
		if ownerMatches(r.SessionID, r.UserID, owner) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept
	return n, nil
}

func (f *fakeEmissionRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
	var n int64
	for _, r := range f.records {
		if r.SessionID != nil && *r.SessionID == sessionID {
			r.SessionID = nil
			uid := userID
			r.UserID = &uid
			n++
		}
	}
	return n, nil
}

type fakeBatchRepo struct {
	batches []*types.VerificationBatch
}

func (f *fakeBatchRepo) Create(ctx context.Context, tx *gorm.DB, batches []*types.VerificationBatch) ([]*types.VerificationBatch, error) {
	for _, b := range batches {
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		f.batches = append(f.batches, b)
	}
	return batches, nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.VerificationBatch, error) {
	for _, b := range f.batches {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBatchRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.VerificationBatch, error) {
	var out []*types.VerificationBatch
	for _, b := range f.batches {
		if ownerMatches(b.SessionID, b.UserID, owner) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBatchRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
	var n int64
	for _, b := range f.batches {
		if b.SessionID != nil && *b.SessionID == sessionID {
			b.SessionID = nil
			uid := userID
			b.UserID = &uid
			n++
		}
	}
	return n, nil
}

type fakePathwayRepo struct {
	pathways []*types.MonetizationPathway
}

func (f *fakePathwayRepo) Upsert(ctx context.Context, tx *gorm.DB, pathways []*types.MonetizationPathway) ([]*types.MonetizationPathway, error) {
	for _, p := range pathways {
		replaced := false
		for _, existing := range f.pathways {
			if existing.VerificationID == p.VerificationID && existing.PathwayType == p.PathwayType {
				existing.Name = p.Name
				existing.Partner = p.Partner
				existing.EstimatedValue = p.EstimatedValue
				existing.Currency = p.Currency
				existing.Details = p.Details
				replaced = true
				break
			}
		}
		if !replaced {
			if p.ID == uuid.Nil {
				p.ID = uuid.New()
			}
			f.pathways = append(f.pathways, p)
		}
	}
	return pathways, nil
}

func (f *fakePathwayRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MonetizationPathway, error) {
	for _, p := range f.pathways {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePathwayRepo) ListByVerificationID(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID) ([]*types.MonetizationPathway, error) {
	var out []*types.MonetizationPathway
	for _, p := range f.pathways {
		if p.VerificationID == verificationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePathwayRepo) ListByOwner(ctx context.Context, tx *gorm.DB, owner types.Owner) ([]*types.MonetizationPathway, error) {
	var out []*types.MonetizationPathway
	for _, p := range f.pathways {
		if ownerMatches(p.SessionID, p.UserID, owner) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePathwayRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	for _, p := range f.pathways {
		if p.ID == id {
			p.Status = status
		}
	}
	return nil
}

func (f *fakePathwayRepo) ReassignOwner(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) (int64, error) {
	var n int64
	for _, p := range f.pathways {
		if p.SessionID != nil && *p.SessionID == sessionID {
			p.SessionID = nil
			uid := userID
			p.UserID = &uid
			n++
		}
	}
	return n, nil
}

type fakeSessionRepo struct {
	sessions map[string]*types.DeviceSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*types.DeviceSession{}}
}

func (f *fakeSessionRepo) Touch(ctx context.Context, tx *gorm.DB, sessionID string, deviceFingerprint string) (*types.DeviceSession, error) {
	if existing, ok := f.sessions[sessionID]; ok {
		return existing, nil
	}
	s := &types.DeviceSession{SessionID: sessionID, DeviceFingerprint: deviceFingerprint}
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID string) (*types.DeviceSession, error) {
	return f.sessions[sessionID], nil
}

func (f *fakeSessionRepo) MarkMerged(ctx context.Context, tx *gorm.DB, sessionID string, userID uuid.UUID) error {
	if s, ok := f.sessions[sessionID]; ok {
		uid := userID
		s.MergedInto = &uid
	}
	return nil
}

type fakeAuditRepo struct {
	events []*types.AuditEvent
}

func (f *fakeAuditRepo) Create(ctx context.Context, tx *gorm.DB, events []*types.AuditEvent) ([]*types.AuditEvent, error) {
	f.events = append(f.events, events...)
	return events, nil
}

type fakeAILogRepo struct {
	logs []*types.AICallLog
}

func (f *fakeAILogRepo) Create(ctx context.Context, tx *gorm.DB, logs []*types.AICallLog) ([]*types.AICallLog, error) {
	f.logs = append(f.logs, logs...)
	return logs, nil
}

// fakeAIClient answers every structured-output call with the configured
// object or error.
type fakeAIClient struct {
	response map[string]any
	err      error
	calls    int
}

func (f *fakeAIClient) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeAIClient) GenerateJSONWithImage(ctx context.Context, system, user, imageB64, mimeType, schemaName string, schema map[string]any) (map[string]any, error) {
	return f.GenerateJSON(ctx, system, user, schemaName, schema)
}

func (f *fakeAIClient) Model() string { return "test-model" }

type fakeScorer struct {
	result *ScoreResult
	err    error
}

func (f *fakeScorer) Score(ctx context.Context, records []*types.EmissionRecord, totalCO2Kg float64) (*ScoreResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func mustMarshal(t *testing.T, v any) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return datatypes.JSON(raw)
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewRandom()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	return id
}

func toJSONMap(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}
