package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/verdantiq/carbonmrv-backend/internal/requestdata"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
  "github.com/verdantiq/carbonmrv-backend/internal/types"
)

type APIError struct {
  Message     string	`json:"message"`
  Code	      string	`json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error	      APIError	`json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondServiceError maps the service error taxonomy onto HTTP statuses.
// Duplicate blocks never reach here: extraction reports them in-band with a
// 200 so the client can surface "already recorded" instead of a failure.
func RespondServiceError(c *gin.Context, err error) {
  var mimeErr *services.UnsupportedMimeError
  switch {
  case errors.Is(err, services.ErrServiceUnavailable):
    RespondError(c, http.StatusServiceUnavailable, "service_unavailable", err)
  case errors.Is(err, services.ErrExtractionParse):
    RespondError(c, http.StatusUnprocessableEntity, "extraction_parse", err)
  case errors.Is(err, services.ErrNotVerified):
    RespondError(c, http.StatusBadRequest, "not_verified", err)
  case errors.Is(err, services.ErrOwnershipMismatch):
    RespondError(c, http.StatusForbidden, "ownership_mismatch", err)
  case errors.Is(err, services.ErrSessionNotFound):
    RespondError(c, http.StatusNotFound, "session_not_found", err)
  case errors.As(err, &mimeErr):
    RespondError(c, http.StatusUnsupportedMediaType, "unsupported_media_type", err)
  default:
    RespondError(c, http.StatusInternalServerError, "internal", err)
  }
}

// ownerFromContext builds the request owner from resolved identity. A user
// id wins over a session id so an authenticated request never writes
// session-owned rows.
func ownerFromContext(c *gin.Context) (types.Owner, bool) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    return types.Owner{}, false
  }
  if rd.UserID != uuid.Nil {
    return types.UserOwner(rd.UserID), true
  }
  if rd.SessionID != "" {
    return types.SessionOwner(rd.SessionID), true
  }
  return types.Owner{}, false
}
