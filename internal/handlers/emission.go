package handlers

import (
  "fmt"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
)

type EmissionHandler struct {
  log             *logger.Logger
  recorderService services.RecorderService
}

func NewEmissionHandler(baseLog *logger.Logger, recorderService services.RecorderService) *EmissionHandler {
  return &EmissionHandler{
    log:             baseLog.Handler("EmissionHandler"),
    recorderService: recorderService,
  }
}

// POST /api/emissions
// Manual entry for activity data that never passed through a document.
func (h *EmissionHandler) Create(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  var input services.ManualEmissionInput
  if err := c.ShouldBindJSON(&input); err != nil {
    RespondError(c, http.StatusBadRequest, "bad_request", err)
    return
  }
  record, err := h.recorderService.RecordManual(c.Request.Context(), owner, input)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"record": record})
}

// GET /api/emissions
func (h *EmissionHandler) List(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  records, err := h.recorderService.ListByOwner(c.Request.Context(), owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  var total float64
  for _, r := range records {
    total += r.CO2Kg
  }
  RespondOK(c, gin.H{"records": records, "total_co2_kg": total})
}

// DELETE /api/emissions
// Clears every record the caller owns. Used by the demo reset flow.
func (h *EmissionHandler) Reset(c *gin.Context) {
  owner, ok := ownerFromContext(c)
  if !ok {
    RespondError(c, http.StatusUnauthorized, "identity_required", fmt.Errorf("authentication or session id required"))
    return
  }
  deleted, err := h.recorderService.ResetOwner(c.Request.Context(), owner)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": deleted})
}
