package handlers

import (
  "fmt"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/requestdata"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
)

type SessionHandler struct {
  log          *logger.Logger
  mergeService services.SessionMergeService
}

func NewSessionHandler(baseLog *logger.Logger, mergeService services.SessionMergeService) *SessionHandler {
  return &SessionHandler{
    log:          baseLog.Handler("SessionHandler"),
    mergeService: mergeService,
  }
}

type mergeRequest struct {
  SessionID         string `json:"session_id" binding:"required"`
  DeviceFingerprint string `json:"device_fingerprint"`
}

// POST /api/sessions/merge
// Moves an anonymous session's data onto the authenticated caller. The
// fingerprint may come from the body or the usual header.
func (h *SessionHandler) Merge(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, http.StatusUnauthorized, "auth_required", fmt.Errorf("authentication required"))
    return
  }
  var req mergeRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }
  fingerprint := req.DeviceFingerprint
  if fingerprint == "" {
    fingerprint = rd.DeviceFingerprint
  }
  if fingerprint == "" {
    RespondError(c, http.StatusBadRequest, "fingerprint_required", fmt.Errorf("device fingerprint is required"))
    return
  }
  result, err := h.mergeService.Merge(c.Request.Context(), req.SessionID, rd.UserID, fingerprint)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, result)
}
