package handlers

import (
  "fmt"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
)

type MonetizationHandler struct {
  log                 *logger.Logger
  monetizationService services.MonetizationService
}

func NewMonetizationHandler(baseLog *logger.Logger, monetizationService services.MonetizationService) *MonetizationHandler {
  return &MonetizationHandler{
    log:                 baseLog.Handler("MonetizationHandler"),
    monetizationService: monetizationService,
  }
}

// POST /api/verifications/:id/monetization
// Derives (or re-derives) the pathway offers for a verified batch.
func (h *MonetizationHandler) Derive(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  verificationID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_id", err)
    return
  }
  summary, err := h.monetizationService.Derive(c.Request.Context(), verificationID, owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, summary)
}

// POST /api/monetization/:id/apply
// Advances a pathway one step along its status progression.
func (h *MonetizationHandler) Apply(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  pathwayID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "bad_id", err)
    return
  }
  pathway, err := h.monetizationService.Apply(c.Request.Context(), pathwayID, owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"pathway": pathway})
}

// GET /api/monetization
func (h *MonetizationHandler) List(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  pathways, err := h.monetizationService.ListByOwner(c.Request.Context(), owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"pathways": pathways})
}
