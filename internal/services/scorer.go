package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/verdantiq/carbonmrv-backend/internal/clients/openai"
	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

const scoringSystemPrompt = `You are a carbon data verification engine following GHG Protocol
methodology. Score the submitted emission records on data quality,
methodology compliance and greenwashing risk. Return a quality score
between 0 and 1, a risk tier (low, medium or high), whether the data set
qualifies for CCTS credit trading and whether it is CBAM compliant.
Flags that indicate fabricated vendors, internally inconsistent totals or
impossible quantities must be prefixed with "blocking:".`

var scoringSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"score", "greenwashingRisk", "cctsEligible", "cbamCompliant", "analysis"},
	"properties": map[string]any{
		"score":            map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"greenwashingRisk": map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
		"cctsEligible":     map[string]any{"type": "boolean"},
		"cbamCompliant":    map[string]any{"type": "boolean"},
		"analysis": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"dataQuality", "methodologyCompliance", "recommendations", "flags"},
			"properties": map[string]any{
				"dataQuality":           map[string]any{"type": "string"},
				"methodologyCompliance": map[string]any{"type": "string"},
				"recommendations":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"flags":                 map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
	},
}

// AIScorer implements Scorer against the completion service.
type AIScorer struct {
	log       *logger.Logger
	ai        openai.Client
	aiLogRepo repos.AICallLogRepo
}

func NewAIScorer(baseLog *logger.Logger, ai openai.Client, aiLogRepo repos.AICallLogRepo) *AIScorer {
	return &AIScorer{
		log:       baseLog.Service("AIScorer"),
		ai:        ai,
		aiLogRepo: aiLogRepo,
	}
}

func (s *AIScorer) Score(ctx context.Context, records []*types.EmissionRecord, totalCO2Kg float64) (*ScoreResult, error) {
	summary, err := json.Marshal(struct {
		TotalCO2Kg float64                 `json:"totalCO2Kg"`
		Records    []*types.EmissionRecord `json:"records"`
	}{TotalCO2Kg: totalCO2Kg, Records: records})
	if err != nil {
		return nil, fmt.Errorf("marshal scoring input: %w", err)
	}

	started := time.Now()
	obj, err := s.ai.GenerateJSON(ctx, scoringSystemPrompt, string(summary), "verification_scoring", scoringSchema)
	s.logCall(ctx, started, err)
	if err != nil {
		if errors.Is(err, openai.ErrMalformedOutput) {
			// malformed output degrades in the caller, it is not a failure
			return nil, fmt.Errorf("%w: %v", openai.ErrMalformedOutput, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", openai.ErrMalformedOutput, err)
	}
	var parsed struct {
		Score            float64                    `json:"score"`
		GreenwashingRisk string                     `json:"greenwashingRisk"`
		CCTSEligible     bool                       `json:"cctsEligible"`
		CBAMCompliant    bool                       `json:"cbamCompliant"`
		Analysis         types.VerificationAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", openai.ErrMalformedOutput, err)
	}
	if parsed.Score < 0 || parsed.Score > 1 {
		return nil, fmt.Errorf("%w: score %v out of range", openai.ErrMalformedOutput, parsed.Score)
	}
	switch parsed.GreenwashingRisk {
	case types.GreenwashingRiskLow, types.GreenwashingRiskMedium, types.GreenwashingRiskHigh:
	default:
		return nil, fmt.Errorf("%w: unknown risk tier %q", openai.ErrMalformedOutput, parsed.GreenwashingRisk)
	}

	result := &ScoreResult{
		Score:         parsed.Score,
		Risk:          parsed.GreenwashingRisk,
		CCTSEligible:  parsed.CCTSEligible,
		CBAMCompliant: parsed.CBAMCompliant,
		Analysis:      parsed.Analysis,
	}
	for _, flag := range parsed.Analysis.Flags {
		if strings.HasPrefix(strings.ToLower(flag), "blocking:") {
			result.BlockingFlags = append(result.BlockingFlags, flag)
		}
	}
	return result, nil
}

func (s *AIScorer) logCall(ctx context.Context, started time.Time, callErr error) {
	if s.aiLogRepo == nil {
		return
	}
	entry := &types.AICallLog{
		CallType:   "verification",
		Model:      s.ai.Model(),
		DurationMs: time.Since(started).Milliseconds(),
		Success:    callErr == nil,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if _, err := s.aiLogRepo.Create(context.WithoutCancel(ctx), nil, []*types.AICallLog{entry}); err != nil {
		s.log.Warn("ai call log write failed", "error", err)
	}
}
