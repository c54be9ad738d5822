package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/siapepi/audit-engine/pkg/auth"
	"github.com/siapepi/audit-engine/pkg/config"
	"github.com/siapepi/audit-engine/pkg/database"
	"github.com/siapepi/audit-engine/pkg/handlers"
	"github.com/siapepi/audit-engine/pkg/narrative"
	"github.com/siapepi/audit-engine/pkg/repositories"
	"github.com/siapepi/audit-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.Host),
		zap.Bool("narrative_enabled", cfg.Narrative.IsAvailable()))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Migrations run on a plain database/sql connection; golang-migrate's
	// postgres driver does not work reliably through the pool adapter.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	scopeMiddleware := handlers.ScopeMiddleware(database.WithScopeContext(db, logger))

	var summarizer narrative.Summarizer
	if cfg.Narrative.IsAvailable() {
		client, err := narrative.NewClient(&narrative.Config{
			BaseURL: cfg.Narrative.BaseURL,
			Model:   cfg.Narrative.Model,
			APIKey:  cfg.Narrative.APIKey,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create narrative client", zap.Error(err))
		}
		summarizer = client
	}

	cycleRepo := repositories.NewCycleRepository()
	unitRepo := repositories.NewUnitAuditRepository()
	instrumentRepo := repositories.NewInstrumentRepository()
	evaluationRepo := repositories.NewEvaluationRepository()
	fieldVerifRepo := repositories.NewFieldVerificationRepository()
	documentRepo := repositories.NewDocumentRepository()
	activityRepo := repositories.NewActivityRepository()

	activityService := services.NewActivityService(activityRepo, logger)
	cycleService := services.NewCycleService(cycleRepo, unitRepo, instrumentRepo,
		evaluationRepo, fieldVerifRepo, activityService, logger)
	submissionService := services.NewSubmissionService(unitRepo, instrumentRepo, activityService, logger)
	evaluationService := services.NewEvaluationService(unitRepo, instrumentRepo,
		evaluationRepo, activityService, logger)
	fieldAuditService := services.NewFieldAuditService(unitRepo, instrumentRepo,
		evaluationRepo, fieldVerifRepo, activityService, logger)
	documentService := services.NewDocumentService(documentRepo, unitRepo, instrumentRepo,
		evaluationRepo, summarizer, activityService, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewCycleHandler(cycleService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewSubmissionHandler(submissionService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewDeskEvaluationHandler(evaluationService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewFieldAuditHandler(fieldAuditService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewDocumentHandler(documentService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewActivityHandler(activityService, logger).RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting audit-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
