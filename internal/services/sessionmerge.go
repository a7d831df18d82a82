package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/verdantiq/carbonmrv-backend/internal/logger"
	"github.com/verdantiq/carbonmrv-backend/internal/repos"
	"github.com/verdantiq/carbonmrv-backend/internal/types"
)

// MergeCounts reports how many rows moved per table during an ownership
// merge. A session merged earlier reports all zeros.
type MergeCounts struct {
	Documents     int64 `json:"documents"`
	Emissions     int64 `json:"emissions"`
	Verifications int64 `json:"verifications"`
	Pathways      int64 `json:"pathways"`
}

type MergeResult struct {
	SessionID     string      `json:"session_id"`
	UserID        uuid.UUID   `json:"user_id"`
	AlreadyMerged bool        `json:"already_merged"`
	Counts        MergeCounts `json:"merged"`
}

// SessionMergeService moves everything an anonymous session produced onto
// an authenticated user. The merge is fingerprint-gated: the caller must
// present the fingerprint captured when the session was first seen.
type SessionMergeService interface {
	Merge(ctx context.Context, sessionID string, userID uuid.UUID, deviceFingerprint string) (*MergeResult, error)
}

type sessionMergeService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.DeviceSessionRepo
	docRepo     repos.DocumentRepo
	recordRepo  repos.EmissionRecordRepo
	batchRepo   repos.VerificationBatchRepo
	pathwayRepo repos.MonetizationPathwayRepo
	auditRepo   repos.AuditEventRepo
}

func NewSessionMergeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	sessionRepo repos.DeviceSessionRepo,
	docRepo repos.DocumentRepo,
	recordRepo repos.EmissionRecordRepo,
	batchRepo repos.VerificationBatchRepo,
	pathwayRepo repos.MonetizationPathwayRepo,
	auditRepo repos.AuditEventRepo,
) SessionMergeService {
	serviceLog := baseLog.Service("SessionMergeService")
	return &sessionMergeService{
		db:          db,
		log:         serviceLog,
		sessionRepo: sessionRepo,
		docRepo:     docRepo,
		recordRepo:  recordRepo,
		batchRepo:   batchRepo,
		pathwayRepo: pathwayRepo,
		auditRepo:   auditRepo,
	}
}

func (s *sessionMergeService) Merge(ctx context.Context, sessionID string, userID uuid.UUID, deviceFingerprint string) (*MergeResult, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if deviceFingerprint == "" {
		return nil, fmt.Errorf("device fingerprint is required")
	}

	session, err := s.sessionRepo.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	if session.DeviceFingerprint != deviceFingerprint {
		s.recordMismatch(ctx, session, userID, deviceFingerprint)
		return nil, fmt.Errorf("%w: device fingerprint does not match session %s", ErrOwnershipMismatch, sessionID)
	}

	if session.MergedInto != nil {
		if *session.MergedInto != userID {
			s.recordMismatch(ctx, session, userID, deviceFingerprint)
			return nil, fmt.Errorf("%w: session %s was merged into a different user", ErrOwnershipMismatch, sessionID)
		}
		// repeating the merge is a no-op
		return &MergeResult{
			SessionID:     sessionID,
			UserID:        userID,
			AlreadyMerged: true,
		}, nil
	}

	result := &MergeResult{SessionID: sessionID, UserID: userID}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		if result.Counts.Documents, txErr = s.docRepo.ReassignOwner(ctx, tx, sessionID, userID); txErr != nil {
			return fmt.Errorf("reassign documents: %w", txErr)
		}
		if result.Counts.Emissions, txErr = s.recordRepo.ReassignOwner(ctx, tx, sessionID, userID); txErr != nil {
			return fmt.Errorf("reassign emission records: %w", txErr)
		}
		if result.Counts.Verifications, txErr = s.batchRepo.ReassignOwner(ctx, tx, sessionID, userID); txErr != nil {
			return fmt.Errorf("reassign verification batches: %w", txErr)
		}
		if result.Counts.Pathways, txErr = s.pathwayRepo.ReassignOwner(ctx, tx, sessionID, userID); txErr != nil {
			return fmt.Errorf("reassign monetization pathways: %w", txErr)
		}
		if txErr = s.sessionRepo.MarkMerged(ctx, tx, sessionID, userID); txErr != nil {
			return fmt.Errorf("mark session merged: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("session merged",
		"session_id", sessionID,
		"user_id", userID,
		"documents", result.Counts.Documents,
		"emissions", result.Counts.Emissions,
		"verifications", result.Counts.Verifications,
		"pathways", result.Counts.Pathways)
	return result, nil
}

// recordMismatch writes the refusal outside any merge transaction so the
// audit row survives even though the merge itself is rejected.
func (s *sessionMergeService) recordMismatch(ctx context.Context, session *types.DeviceSession, userID uuid.UUID, presented string) {
	detail, _ := json.Marshal(map[string]string{
		"presented_fingerprint": presented,
		"stored_fingerprint":    session.DeviceFingerprint,
	})
	sid := session.SessionID
	uid := userID
	_, err := s.auditRepo.Create(context.WithoutCancel(ctx), nil, []*types.AuditEvent{{
		Kind:      types.AuditKindOwnershipMismatch,
		SessionID: &sid,
		UserID:    &uid,
		Detail:    detail,
	}})
	if err != nil {
		s.log.Error("failed to record ownership mismatch audit event", "error", err, "session_id", session.SessionID)
	}
	s.log.Warn("ownership merge refused: device fingerprint mismatch", "session_id", session.SessionID, "user_id", userID)
}
