package server

import (
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
  "github.com/verdantiq/carbonmrv-backend/internal/handlers"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/middleware"
  "github.com/verdantiq/carbonmrv-backend/internal/utils"
)

type RouterConfig struct {
  Log                 *logger.Logger
  AuthMiddleware      *middleware.AuthMiddleware
  DocumentHandler     *handlers.DocumentHandler
  EmissionHandler     *handlers.EmissionHandler
  VerificationHandler *handlers.VerificationHandler
  MonetizationHandler *handlers.MonetizationHandler
  SessionHandler      *handlers.SessionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware("carbonmrv-backend"))

  // Cors
  allowedOrigins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173", cfg.Log), ",")
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowedOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Session-ID", "X-Device-Fingerprint"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)

// ===============
// || Protected ||
// ===============
  api := router.Group("/api")
  api.Use(cfg.AuthMiddleware.ResolveIdentity())
  // Documents
  api.POST("/documents/extract", cfg.DocumentHandler.Extract)
  api.GET("/documents", cfg.DocumentHandler.List)
  // Emissions
  api.POST("/emissions", cfg.EmissionHandler.Create)
  api.GET("/emissions", cfg.EmissionHandler.List)
  api.DELETE("/emissions", cfg.EmissionHandler.Reset)
  // Verification
  api.POST("/verifications", cfg.VerificationHandler.Verify)
  api.GET("/verifications", cfg.VerificationHandler.List)
  api.GET("/verifications/:id", cfg.VerificationHandler.Get)
  api.POST("/verifications/:id/monetization", cfg.MonetizationHandler.Derive)
  // Monetization
  api.GET("/monetization", cfg.MonetizationHandler.List)
  api.POST("/monetization/:id/apply", cfg.MonetizationHandler.Apply)
  // Session merge, authenticated users only
  api.POST("/sessions/merge", cfg.AuthMiddleware.RequireUser(), cfg.SessionHandler.Merge)

  return router
}
