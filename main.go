package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/featureplane/feature-engine/pkg/audit"
	"github.com/featureplane/feature-engine/pkg/cache"
	"github.com/featureplane/feature-engine/pkg/config"
	"github.com/featureplane/feature-engine/pkg/database"
	"github.com/featureplane/feature-engine/pkg/handlers"
	"github.com/featureplane/feature-engine/pkg/logging"
	"github.com/featureplane/feature-engine/pkg/repositories"
	"github.com/featureplane/feature-engine/pkg/sandbox"
	"github.com/featureplane/feature-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Host))

	ctx := context.Background()

	// Run migrations using database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	vectorCache, err := buildVectorCache(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize vector cache", zap.Error(err))
	}

	// Repositories
	rawTableRepo := repositories.NewRawTableRepository(db)
	featureRepo := repositories.NewFeatureRepository(db)
	versionRepo := repositories.NewFeatureVersionRepository(db)
	valueRepo := repositories.NewFeatureValueRepository(db)

	// Services
	sb := sandbox.New(sandbox.Options{
		Timeout:  cfg.Sandbox.Timeout(),
		MaxSteps: cfg.Sandbox.MaxSteps,
	})
	auditor := audit.NewSecurityAuditor(logger)
	featureService := services.NewFeatureService(rawTableRepo, featureRepo, versionRepo, sb, auditor, logger)
	vectorService := services.NewVectorService(featureRepo, versionRepo, valueRepo, vectorCache, logger)

	// Handlers
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewRawTableHandler(featureService, logger).RegisterRoutes(mux)
	handlers.NewFeatureHandler(featureService, logger).RegisterRoutes(mux)
	handlers.NewVectorHandler(vectorService, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting feature-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// buildVectorCache selects the Redis-backed cache when Redis is configured,
// otherwise the in-process LRU cache.
func buildVectorCache(cfg *config.Config, logger *zap.Logger) (cache.VectorCache, error) {
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		logger.Info("Using Redis vector cache", zap.String("addr", cfg.Redis.Addr()))
		return cache.NewRedisCache(redisClient, cfg.Cache.TTL(), logger), nil
	}
	logger.Info("Using in-process vector cache",
		zap.Int("max_entries", cfg.Cache.MaxEntries),
		zap.Duration("ttl", cfg.Cache.TTL()))
	return cache.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.TTL()), nil
}
