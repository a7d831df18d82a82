package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/verdantiq/carbonmrv-backend/internal/clients/openai"
	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
	"github.com/verdantiq/carbonmrv-backend/internal/utils"
)

type ExtractInput struct {
	Data         []byte
	MimeType     string
	OriginalName string
	Owner        types.Owner
}

type ExtractResult struct {
	Success      bool                     `json:"success"`
	Cached       bool                     `json:"cached"`
	IsDuplicate  bool                     `json:"isDuplicate"`
	DocumentHash string                   `json:"documentHash"`
	Document     *types.Document          `json:"document,omitempty"`
	Data         *types.ExtractionPayload `json:"data,omitempty"`
	Records      []*types.EmissionRecord  `json:"records,omitempty"`
	Error        string                   `json:"error,omitempty"`
}

// ExtractionService sends document bytes to the vision-capable completion
// service and persists the result. A fingerprint-store hit short-circuits
// the external call entirely and writes no emission rows: re-uploading the
// same bytes never doubles emissions, for any owner.
type ExtractionService interface {
	Extract(ctx context.Context, in ExtractInput) (*ExtractResult, error)
	ExtractBatch(ctx context.Context, inputs []ExtractInput) []*ExtractResult
	ListDocuments(ctx context.Context, owner types.Owner) ([]*types.Document, error)
}

type extractionService struct {
	db          *gorm.DB
	log         *logger.Logger
	ai          openai.Client
	fingerprint FingerprintService
	recorder    RecorderService
	bucket      BucketService
	docRepo     repos.DocumentRepo
	aiLogRepo   repos.AICallLogRepo

	maxConcurrency int
}

func NewExtractionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	ai openai.Client,
	fingerprint FingerprintService,
	recorder RecorderService,
	bucket BucketService,
	docRepo repos.DocumentRepo,
	aiLogRepo repos.AICallLogRepo,
) ExtractionService {
	serviceLog := baseLog.Service("ExtractionService")
	// 1 keeps bulk uploads strictly sequential; raising it parallelizes
	// across distinct hashes only
	maxConcurrency := utils.GetEnvAsInt("EXTRACT_MAX_CONCURRENCY", 1, baseLog)
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &extractionService{
		db:             db,
		log:            serviceLog,
		ai:             ai,
		fingerprint:    fingerprint,
		recorder:       recorder,
		bucket:         bucket,
		docRepo:        docRepo,
		aiLogRepo:      aiLogRepo,
		maxConcurrency: maxConcurrency,
	}
}

func isAllowedMime(m string) bool {
	m = strings.ToLower(strings.TrimSpace(m))
	if m == "" {
		return false
	}
	if strings.HasPrefix(m, "application/pdf") {
		return true
	}
	if strings.HasPrefix(m, "image/") {
		return true
	}
	if m == "text/csv" || strings.Contains(m, "excel") {
		return true
	}
	return false
}

func (s *extractionService) Extract(ctx context.Context, in ExtractInput) (*ExtractResult, error) {
	if !in.Owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if !isAllowedMime(in.MimeType) {
		return nil, &UnsupportedMimeError{MimeType: in.MimeType}
	}

	hash := s.fingerprint.Hash(in.Data)
	log := s.log.With("hash", hash)

	// Cache hit: serve the previous extraction, no model call, no new
	// emission rows. Only the owner's document row may be created if this
	// owner has never seen the hash before.
	payload, hit, err := s.fingerprint.Lookup(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("fingerprint lookup: %w", err)
	}
	if hit {
		doc, dErr := s.docRepo.GetByHashForOwner(ctx, nil, hash, in.Owner)
		if dErr != nil {
			return nil, fmt.Errorf("document lookup: %w", dErr)
		}
		if doc == nil {
			doc, dErr = s.createDocument(ctx, nil, hash, in, payload)
			if dErr != nil {
				return nil, dErr
			}
		}
		log.Info("extraction served from fingerprint cache")
		return &ExtractResult{
			Success:      true,
			Cached:       true,
			DocumentHash: hash,
			Document:     doc,
			Data:         payload,
		}, nil
	}

	// Miss: call the completion service
	payload, err = s.callModel(ctx, in)
	if err != nil {
		return nil, err
	}

	// Duplicate by business key (invoice number + vendor + amount under
	// the same owner) is a terminal block: nothing is written.
	if payload.InvoiceNumber != "" && payload.Vendor != "" {
		dup, dErr := s.hasBusinessKeyDuplicate(ctx, in.Owner, payload)
		if dErr != nil {
			return nil, dErr
		}
		if dup {
			log.Info("duplicate invoice blocked",
				"vendor", payload.Vendor,
				"invoice_number", payload.InvoiceNumber,
			)
			return &ExtractResult{
				IsDuplicate:  true,
				DocumentHash: hash,
				Data:         payload,
				Error:        ErrDuplicateBlocked.Error(),
			}, ErrDuplicateBlocked
		}
	}

	// Document and emission rows commit together, so a cancelled request
	// cannot leave a half-written record behind. The re-check under the
	// transaction catches two concurrent misses for the same bytes: the
	// second arrival finds the first one's row and degrades to a cache
	// hit instead of doubling the owner's emissions (the partial unique
	// indexes on documents back this up at the schema level).
	var doc *types.Document
	var records []*types.EmissionRecord
	var raced bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, txErr := s.docRepo.GetByHashForOwner(ctx, tx, hash, in.Owner)
		if txErr != nil {
			return txErr
		}
		if existing != nil {
			doc = existing
			raced = true
			return nil
		}
		doc, txErr = s.createDocument(ctx, tx, hash, in, payload)
		if txErr != nil {
			return txErr
		}
		records, txErr = s.recorder.RecordFromExtraction(ctx, tx, doc, payload, in.Owner)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("persist extraction: %w", err)
	}
	if raced {
		log.Info("concurrent upload of identical bytes, serving the earlier extraction")
		return &ExtractResult{
			Success:      true,
			Cached:       true,
			DocumentHash: hash,
			Document:     doc,
			Data:         payload,
		}, nil
	}

	// Write-through before returning; the documents table already holds
	// the durable copy, so a failed cache write only costs a future miss.
	if sErr := s.fingerprint.Store(ctx, hash, payload); sErr != nil {
		log.Warn("fingerprint write-through failed", "error", sErr)
	}

	// Original bytes are archived best effort; the extraction stands on
	// its own if archival fails.
	if s.bucket != nil && doc.StorageKey != "" {
		if bErr := s.bucket.UploadDocument(ctx, doc.StorageKey, bytes.NewReader(in.Data)); bErr != nil {
			log.Warn("document archival failed", "storage_key", doc.StorageKey, "error", bErr)
		}
	}

	return &ExtractResult{
		Success:      true,
		DocumentHash: hash,
		Document:     doc,
		Data:         payload,
		Records:      records,
	}, nil
}

// ExtractBatch processes uploads grouped by content hash. Distinct hashes
// may run concurrently (bounded by EXTRACT_MAX_CONCURRENCY); files sharing
// a hash stay in program order so the second sees the first's cache write
// instead of issuing a redundant external call. Results are returned in
// submission order, one per input, with failures carried per file.
func (s *extractionService) ExtractBatch(ctx context.Context, inputs []ExtractInput) []*ExtractResult {
	results := make([]*ExtractResult, len(inputs))

	groups := map[string][]int{}
	order := []string{}
	for i, in := range inputs {
		h := s.fingerprint.Hash(in.Data)
		if _, seen := groups[h]; !seen {
			order = append(order, h)
		}
		groups[h] = append(groups[h], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for _, h := range order {
		indexes := groups[h]
		g.Go(func() error {
			for _, i := range indexes {
				res, err := s.Extract(gctx, inputs[i])
				if err != nil && res == nil {
					res = &ExtractResult{Error: err.Error()}
				}
				results[i] = res
			}
			// per-file failures are carried in results, not as a group error
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *extractionService) ListDocuments(ctx context.Context, owner types.Owner) ([]*types.Document, error) {
	if !owner.Valid() {
		return nil, fmt.Errorf("invalid owner: exactly one of session id and user id must be set")
	}
	return s.docRepo.ListByOwner(ctx, nil, owner)
}

func (s *extractionService) createDocument(ctx context.Context, tx *gorm.DB, hash string, in ExtractInput, payload *types.ExtractionPayload) (*types.Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal extraction payload: %w", err)
	}
	doc := &types.Document{
		ContentHash:  hash,
		OriginalName: in.OriginalName,
		MimeType:     in.MimeType,
		SizeBytes:    int64(len(in.Data)),
		Extraction:   datatypes.JSON(raw),
		SessionID:    in.Owner.SessionID,
		UserID:       in.Owner.UserID,
	}
	if s.bucket != nil {
		doc.StorageKey = fmt.Sprintf("documents/%s", hash)
	}
	created, err := s.docRepo.Create(ctx, tx, []*types.Document{doc})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return created[0], nil
}

func (s *extractionService) hasBusinessKeyDuplicate(ctx context.Context, owner types.Owner, payload *types.ExtractionPayload) (bool, error) {
	docs, err := s.docRepo.ListByOwner(ctx, nil, owner)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	for _, doc := range docs {
		var prior types.ExtractionPayload
		if err := json.Unmarshal(doc.Extraction, &prior); err != nil {
			continue
		}
		if prior.InvoiceNumber == payload.InvoiceNumber &&
			prior.Vendor == payload.Vendor &&
			prior.Amount == payload.Amount {
			return true, nil
		}
	}
	return false, nil
}

const extractionSystemPrompt = `You are an invoice analysis engine for a carbon accounting platform.
Extract structured data from the supplied document image. Classify the
emission category using exactly one of the known category labels when the
document matches one; otherwise use a short lowercase snake_case label of
your own. Report a confidence score between 0 and 100. List validation
concerns (unreadable fields, inconsistent totals, suspicious vendor) in
validationFlags.`

var extractionSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"documentType", "confidence"},
	"properties": map[string]any{
		"documentType":     map[string]any{"type": "string", "enum": []string{"invoice", "bill", "receipt", "other"}},
		"vendor":           map[string]any{"type": "string"},
		"date":             map[string]any{"type": "string"},
		"invoiceNumber":    map[string]any{"type": "string"},
		"amount":           map[string]any{"type": "number"},
		"currency":         map[string]any{"type": "string"},
		"emissionCategory": map[string]any{"type": "string"},
		"activityQuantity": map[string]any{"type": "number"},
		"activityUnit":     map[string]any{"type": "string"},
		"estimatedCO2Kg":   map[string]any{"type": "number"},
		"confidence":       map[string]any{"type": "number", "minimum": 0, "maximum": 100},
		"validationFlags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

func (s *extractionService) callModel(ctx context.Context, in ExtractInput) (*types.ExtractionPayload, error) {
	started := time.Now()
	b64 := base64.StdEncoding.EncodeToString(in.Data)
	userPrompt := fmt.Sprintf("Document filename: %s. Extract the invoice fields.", in.OriginalName)

	obj, err := s.ai.GenerateJSONWithImage(ctx, extractionSystemPrompt, userPrompt, b64, in.MimeType, "invoice_extraction", extractionSchema)
	s.logAICall(ctx, "extraction", in.Owner, started, err)
	if err != nil {
		if errors.Is(err, openai.ErrMalformedOutput) {
			return nil, fmt.Errorf("%w: %v", ErrExtractionParse, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionParse, err)
	}
	var payload types.ExtractionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionParse, err)
	}
	if payload.Confidence < 0 {
		payload.Confidence = 0
	}
	if payload.Confidence > 100 {
		payload.Confidence = 100
	}
	return &payload, nil
}

func (s *extractionService) logAICall(ctx context.Context, callType string, owner types.Owner, started time.Time, callErr error) {
	if s.aiLogRepo == nil {
		return
	}
	entry := &types.AICallLog{
		CallType:   callType,
		Model:      s.ai.Model(),
		DurationMs: time.Since(started).Milliseconds(),
		Success:    callErr == nil,
		SessionID:  owner.SessionID,
		UserID:     owner.UserID,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if _, err := s.aiLogRepo.Create(context.WithoutCancel(ctx), nil, []*types.AICallLog{entry}); err != nil {
		s.log.Warn("ai call log write failed", "error", err)
	}
}
