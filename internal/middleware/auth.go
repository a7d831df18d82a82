package middleware

import (
  "net/http"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/repos"
  "github.com/verdantiq/carbonmrv-backend/internal/requestdata"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
)

const (
  headerSessionID         = "X-Session-ID"
  headerDeviceFingerprint = "X-Device-Fingerprint"
)

type AuthMiddleware struct {
  log         *logger.Logger
  authService services.AuthService
  sessionRepo repos.DeviceSessionRepo
}

func NewAuthMiddleware(baseLog *logger.Logger, authService services.AuthService, sessionRepo repos.DeviceSessionRepo) *AuthMiddleware {
  middlewareLogger := baseLog.Middleware("AuthMiddleware")
  return &AuthMiddleware{log: middlewareLogger, authService: authService, sessionRepo: sessionRepo}
}

// ResolveIdentity accepts either a bearer token or an anonymous session
// header. Requests carrying neither are rejected; requests carrying a
// session id get the session registered with its device fingerprint on
// first sight.
func (am *AuthMiddleware) ResolveIdentity() gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := &requestdata.RequestData{
      SessionID:         c.GetHeader(headerSessionID),
      DeviceFingerprint: c.GetHeader(headerDeviceFingerprint),
    }
    ctx := requestdata.WithRequestData(c.Request.Context(), rd)

    tokenString := extractBearerToken(c)
    if tokenString != "" {
      var err error
      ctx, err = am.authService.SetContextFromToken(ctx, tokenString)
      if err != nil {
        c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
        return
      }
      rd = requestdata.GetRequestData(ctx)
    }

    if rd.UserID == uuid.Nil && rd.SessionID == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication or session id required"})
      return
    }

    if rd.UserID == uuid.Nil && rd.DeviceFingerprint != "" {
      if _, err := am.sessionRepo.Touch(ctx, nil, rd.SessionID, rd.DeviceFingerprint); err != nil {
        am.log.Warn("failed to register device session", "error", err, "session_id", rd.SessionID)
      }
    }

    c.Request = c.Request.WithContext(ctx)
    c.Next()
  }
}

// RequireUser rejects anonymous callers. Used for the ownership merge,
// which only makes sense for an authenticated user.
func (am *AuthMiddleware) RequireUser() gin.HandlerFunc {
  return func(c *gin.Context) {
    rd := requestdata.GetRequestData(c.Request.Context())
    if rd == nil || rd.UserID == uuid.Nil {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
      return
    }
    c.Next()
  }
}

func extractBearerToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return ""
}
