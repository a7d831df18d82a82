package handlers

import (
  "fmt"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
)

type VerificationHandler struct {
  log                 *logger.Logger
  verificationService services.VerificationService
}

func NewVerificationHandler(baseLog *logger.Logger, verificationService services.VerificationService) *VerificationHandler {
  return &VerificationHandler{
    log:                 baseLog.Handler("VerificationHandler"),
    verificationService: verificationService,
  }
}

type verifyRequest struct {
  EmissionIDs []uuid.UUID `json:"emission_ids" binding:"required,min=1"`
}

// POST /api/verifications
// Scores a set of emission records and persists the resulting batch.
func (h *VerificationHandler) Verify(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  var req verifyRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }
  batch, err := h.verificationService.Verify(c.Request.Context(), req.EmissionIDs, owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"verification": batch})
}

// GET /api/verifications
func (h *VerificationHandler) List(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  batches, err := h.verificationService.ListByOwner(c.Request.Context(), owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"verifications": batches})
}

// GET /api/verifications/:id
func (h *VerificationHandler) Get(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_id", err)
    return
  }
  batch, err := h.verificationService.Get(c.Request.Context(), id, owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  if batch == nil {
    RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("verification %s not found", id))
    return
  }
  RespondOK(c, gin.H{"verification": batch})
}
