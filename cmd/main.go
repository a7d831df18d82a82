package main

import (
  "context"
  "fmt"
  "os"
  "github.com/verdantiq/carbonmrv-backend/internal/logger"
  "github.com/verdantiq/carbonmrv-backend/internal/utils"
  "github.com/verdantiq/carbonmrv-backend/internal/db"
  "github.com/verdantiq/carbonmrv-backend/internal/clients/openai"
  "github.com/verdantiq/carbonmrv-backend/internal/clients/redis"
  "github.com/verdantiq/carbonmrv-backend/internal/observability"
  "github.com/verdantiq/carbonmrv-backend/internal/repos"
  "github.com/verdantiq/carbonmrv-backend/internal/services"
  "github.com/verdantiq/carbonmrv-backend/internal/handlers"
  "github.com/verdantiq/carbonmrv-backend/internal/middleware"
  "github.com/verdantiq/carbonmrv-backend/internal/server"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)

  // Tracing
  otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
    ServiceName: "carbonmrv-backend",
    Environment: utils.GetEnv("APP_ENV", "development", log),
    Version:     utils.GetEnv("APP_VERSION", "dev", log),
  })
  if otelShutdown != nil {
    defer otelShutdown(context.Background())
  }

  // Database
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Database init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Auto migration failed", "error", err)
    os.Exit(1)
  }
  theDB := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  documentRepo := repos.NewDocumentRepo(theDB, log)
  emissionRepo := repos.NewEmissionRecordRepo(theDB, log)
  batchRepo := repos.NewVerificationBatchRepo(theDB, log)
  pathwayRepo := repos.NewMonetizationPathwayRepo(theDB, log)
  sessionRepo := repos.NewDeviceSessionRepo(theDB, log)
  auditRepo := repos.NewAuditEventRepo(theDB, log)
  aiLogRepo := repos.NewAICallLogRepo(theDB, log)

  // Clients
  log.Info("Setting up Clients from main...")
  aiClient, err := openai.NewClient(log)
  if err != nil {
    log.Error("Could not init AI client", "error", err)
    os.Exit(1)
  }
  fingerprintCache, err := redis.NewFingerprintCache(log)
  if err != nil {
    log.Warn("Redis unavailable, using in-memory fingerprint cache", "error", err)
  }

  // Services
  log.Info("Setting up Services from main...")
  var fingerprintService services.FingerprintService
  if fingerprintCache != nil {
    defer fingerprintCache.Close()
    fingerprintService = services.NewFingerprintService(log, fingerprintCache, documentRepo)
  } else {
    fingerprintService = services.NewFingerprintService(log, services.NewMemoryFingerprintCache(), documentRepo)
  }
  bucketService, err := services.NewBucketService(log)
  if err != nil {
    log.Warn("Could not init BucketService, document archival disabled", "error", err)
  }
  recorderService, err := services.NewRecorderService(theDB, log, emissionRepo)
  if err != nil {
    log.Error("Could not init RecorderService", "error", err)
    os.Exit(1)
  }
  extractionService := services.NewExtractionService(theDB, log, aiClient, fingerprintService, recorderService, bucketService, documentRepo, aiLogRepo)
  scorer := services.NewAIScorer(log, aiClient, aiLogRepo)
  verificationService := services.NewVerificationService(theDB, log, scorer, emissionRepo, batchRepo)
  monetizationService := services.NewMonetizationService(theDB, log, batchRepo, pathwayRepo)
  mergeService := services.NewSessionMergeService(theDB, log, sessionRepo, documentRepo, emissionRepo, batchRepo, pathwayRepo, auditRepo)
  authService := services.NewAuthService(log, jwtSecretKey)

  // Handlers
  log.Info("Setting up handlers from main...")
  documentHandler := handlers.NewDocumentHandler(log, extractionService)
  emissionHandler := handlers.NewEmissionHandler(log, recorderService)
  verificationHandler := handlers.NewVerificationHandler(log, verificationService)
  monetizationHandler := handlers.NewMonetizationHandler(log, monetizationService)
  sessionHandler := handlers.NewSessionHandler(log, mergeService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService, sessionRepo)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    Log:                 log,
    AuthMiddleware:      authMiddleware,
    DocumentHandler:     documentHandler,
    EmissionHandler:     emissionHandler,
    VerificationHandler: verificationHandler,
    MonetizationHandler: monetizationHandler,
    SessionHandler:      sessionHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
