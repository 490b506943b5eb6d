package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"immo-backoffice/internal/auth"
	"immo-backoffice/internal/cache"
	"immo-backoffice/internal/cleanup"
	"immo-backoffice/internal/config"
	"immo-backoffice/internal/dashboard"
	"immo-backoffice/internal/database"
	"immo-backoffice/internal/handlers"
	"immo-backoffice/internal/logger"
	"immo-backoffice/internal/matching"
	"immo-backoffice/internal/ratelimit"
	"immo-backoffice/internal/scheduler"
	"immo-backoffice/internal/search"
	"immo-backoffice/internal/service"
	"immo-backoffice/internal/snapshot"
)

const jobRateLimitSweep = "ratelimit_sweep"

var (
	appConfig       *config.Config
	appLogger       *zap.Logger
	gormDB          *database.GormDB
	rawDB           *database.DB
	searchClient    *search.SearchClient
	matchCache      *cache.Redis
	rateLimiter     *ratelimit.RateLimiter
	appScheduler    *scheduler.Scheduler
	snapshotService *snapshot.Service
)

func main() {
	// Load configuration
	configPath := getEnv("CONFIG_PATH", "/app/config/config.yaml")
	var err error
	appConfig, err = config.LoadConfig(configPath)
	configErr := err
	if err != nil {
		appConfig = config.DefaultConfig()
	}

	appLogger = logger.New(appConfig.Logging)
	defer func() { _ = appLogger.Sync() }()

	if configErr != nil {
		appLogger.Warn("failed to load config, using defaults", zap.String("path", configPath), zap.Error(configErr))
	} else {
		appLogger.Info("loaded configuration", zap.String("path", configPath))
	}

	if appConfig.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := time.LoadLocation(appConfig.Timezone)
	if err != nil {
		appLogger.Warn("unknown timezone, using UTC", zap.String("timezone", appConfig.Timezone), zap.Error(err))
		loc = time.UTC
	}

	store, err := openStore()
	if err != nil {
		appLogger.Fatal("failed to connect to database", zap.String("type", appConfig.Database.Type), zap.Error(err))
	}
	defer closeStore()

	// Search
	searchClient = search.NewSearchClient(
		getEnvOrConfig(appConfig.Search.Meilisearch.Host, "MEILISEARCH_HOST", "http://meilisearch:7700"),
		getEnvOrConfig(appConfig.Search.Meilisearch.APIKey, "MEILISEARCH_KEY", ""),
		appConfig.Search.Meilisearch.Index,
		appLogger,
	)
	if err := searchClient.InitIndex(); err != nil {
		appLogger.Warn("failed to initialize search index", zap.Error(err))
	}

	// Match cache
	redisCfg := appConfig.Redis
	redisCfg.Addr = getEnvOrConfig(redisCfg.Addr, "REDIS_ADDR", "")
	redisCfg.Password = getEnvOrConfig(redisCfg.Password, "REDIS_PASSWORD", "")
	matchCache = cache.NewRedis(redisCfg, appLogger)
	defer matchCache.Close()

	rateLimiter = ratelimit.FromConfig(appConfig.RateLimit)
	appLogger.Info("rate limiter initialized",
		zap.Bool("enabled", appConfig.RateLimit.Enabled),
		zap.Int("requests_per_minute", appConfig.RateLimit.RequestsPerMinute),
		zap.Int("burst", appConfig.RateLimit.Burst))

	// Matching
	engine := matching.NewEngine(appConfig.Matching.EngineOptions())
	opts := []service.Option{service.WithCache(matchCache)}
	if gormDB != nil && appConfig.Matching.RecordSnapshots {
		snapshotService = snapshot.NewService(gormDB.DB(), appLogger)
		opts = append(opts, service.WithRecorder(snapshotService))
		appLogger.Info("match snapshots enabled")
	}
	matchService := service.NewMatchService(store, engine, appLogger, opts...)

	// Background jobs need gorm for snapshots, cleanup and dashboard
	var (
		dashboardService *dashboard.Service
		cleanupService   *cleanup.Service
	)
	appScheduler = scheduler.NewScheduler(appConfig.Scheduler, loc, appLogger)
	if gormDB != nil {
		dashboardService = dashboard.NewService(gormDB.DB(), appLogger)
		cleanupService = cleanup.NewService(gormDB.DB(), appLogger)
		registerJobs(dashboardService, cleanupService)
	}
	mustRegister(jobRateLimitSweep, "@every 10m", func(context.Context) error {
		rateLimiter.Sweep()
		return nil
	})
	appScheduler.Start()
	defer appScheduler.Stop()

	// Setup Gin router
	r := gin.New()
	r.Use(logger.GinMiddleware(appLogger), logger.Recovery(appLogger))

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     appConfig.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.RequestIDHeader},
		ExposeHeaders:    []string{logger.RequestIDHeader},
		AllowCredentials: true,
	}))

	authCfg := appConfig.Auth
	authCfg.JWTSecret = getEnvOrConfig(authCfg.JWTSecret, "JWT_SECRET", "")
	if authCfg.JWTSecret == "" {
		appLogger.Warn("no JWT secret configured, all authenticated routes will answer 401")
	}
	verifier := auth.NewVerifier(authCfg)
	requireAuth := auth.Middleware(verifier, appLogger)

	var history handlers.HistoryReader
	if snapshotService != nil {
		history = snapshotService
	}
	matchingHandler := handlers.NewMatchingHandler(matchService, history, store, appLogger)

	// Routes
	r.GET("/health", healthCheck)

	api := r.Group("/api")
	{
		api.GET("/properties/:id/matches", requireAuth, rateLimiter.Middleware(callerKey), matchingHandler.GetMatches)
		api.GET("/properties/:id/matches/history", requireAuth, matchingHandler.GetHistory)
	}

	// Search needs GetActiveProperties for reindexing, which only the gorm store provides
	if gormDB != nil {
		propertyHandler := handlers.NewPropertyHandler(searchClient, gormDB, appLogger)
		api.GET("/properties/search", requireAuth, propertyHandler.Search)
		api.POST("/search/reindex", requireAuth, auth.RequireAdmin(), propertyHandler.Reindex)

		adminHandler := handlers.NewAdminHandler(dashboardService, cleanupService, appScheduler, rateLimiter,
			cleanup.FromConfig(appConfig.Cleanup), appLogger)

		admin := api.Group("/admin", requireAuth, auth.RequireAdmin())
		{
			// Statistics
			admin.GET("/stats", adminHandler.GetStats)

			// Cleanup operations
			admin.POST("/cleanup/run", adminHandler.RunCleanup)
			admin.GET("/cleanup/logs", adminHandler.GetDeleteLogs)

			// Jobs
			admin.GET("/jobs", adminHandler.ListJobs)
			admin.POST("/jobs/:name/run", adminHandler.RunJob)
		}

		appLogger.Info("admin API routes registered at /api/admin/*")
	}

	port := getEnvOrConfig(appConfig.Server.Port, "PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		appLogger.Info("server starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore connects the configured database and returns the read store the
// match service runs on
func openStore() (service.Store, error) {
	dbType := appConfig.Database.Type
	if dbType == "" {
		dbType = getEnv("DB_TYPE", "postgres")
	}

	var err error
	switch dbType {
	case "mysql":
		appLogger.Info("using MySQL with GORM")
		mysqlCfg := appConfig.Database.MySQL
		gormDB, err = database.NewMySQL(
			getEnvOrConfig(mysqlCfg.Host, "DB_HOST", "mysql"),
			getEnvOrConfig(portString(mysqlCfg.Port), "DB_PORT", "3306"),
			getEnvOrConfig(mysqlCfg.User, "DB_USER", "immo_user"),
			getEnvOrConfig(mysqlCfg.Password, "DB_PASSWORD", ""),
			getEnvOrConfig(mysqlCfg.Database, "DB_NAME", "immo_db"),
		)
	case "sqlite":
		appLogger.Info("using SQLite with GORM")
		gormDB, err = database.NewSQLite(getEnvOrConfig(appConfig.Database.SQLitePath, "DB_PATH", "immo.db"))
	case "postgres-raw":
		appLogger.Info("using PostgreSQL through lib/pq, snapshots and jobs disabled")
		pgCfg := appConfig.Database.Postgres
		rawDB, err = database.NewDB(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
			getEnvOrConfig(portString(pgCfg.Port), "DB_PORT", "5432"),
			getEnvOrConfig(pgCfg.User, "DB_USER", "immo_user"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", ""),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "immo_db"),
			pgCfg.SSLMode,
		)
		if err != nil {
			return nil, err
		}
		return rawDB, nil
	default:
		appLogger.Info("using PostgreSQL with GORM")
		pgCfg := appConfig.Database.Postgres
		gormDB, err = database.NewPostgres(
			getEnvOrConfig(pgCfg.Host, "DB_HOST", "db"),
			getEnvOrConfig(portString(pgCfg.Port), "DB_PORT", "5432"),
			getEnvOrConfig(pgCfg.User, "DB_USER", "immo_user"),
			getEnvOrConfig(pgCfg.Password, "DB_PASSWORD", ""),
			getEnvOrConfig(pgCfg.Database, "DB_NAME", "immo_db"),
			pgCfg.SSLMode,
		)
	}
	if err != nil {
		return nil, err
	}

	// Initialize schema with GORM AutoMigrate
	if err := gormDB.InitSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return gormDB, nil
}

func closeStore() {
	if gormDB != nil {
		_ = gormDB.Close()
	}
	if rawDB != nil {
		_ = rawDB.Close()
	}
}

// registerJobs wires the cron jobs that need the gorm store
func registerJobs(d *dashboard.Service, c *cleanup.Service) {
	sched := appConfig.Scheduler
	reindex := scheduler.ReindexJob(searchClient, gormDB)

	// Reindexing picks up property edits made outside this service, so cached
	// match responses are dropped with it
	mustRegister(scheduler.JobReindex, sched.ReindexSpec, func(ctx context.Context) error {
		if err := reindex(ctx); err != nil {
			return err
		}
		return matchCache.InvalidateAll(ctx)
	})
	mustRegister(scheduler.JobDashboard, sched.DashboardSpec, scheduler.DashboardJob(d))
	mustRegister(scheduler.JobCleanup, sched.CleanupSpec, scheduler.CleanupJob(c, cleanup.FromConfig(appConfig.Cleanup)))
}

func mustRegister(name, spec string, run scheduler.JobFunc) {
	if err := appScheduler.Register(name, spec, run); err != nil {
		appLogger.Fatal("failed to register job", zap.String("job", name), zap.Error(err))
	}
}

// callerKey rate-limits per organization, falling back to the client IP
func callerKey(c *gin.Context) string {
	if caller, ok := auth.CallerFrom(c); ok && caller.OrganizationID != "" {
		return "org:" + caller.OrganizationID
	}
	return "ip:" + ratelimit.ClientIP(c)
}

func healthCheck(c *gin.Context) {
	status := gin.H{
		"status": "ok",
		"time":   time.Now(),
		"cache":  matchCache.Available(),
	}
	if appScheduler != nil {
		status["jobs"] = appScheduler.Jobs()
	}
	c.JSON(http.StatusOK, status)
}

func portString(port int) string {
	if port <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrConfig returns config value if set, otherwise falls back to environment variable, then default
func getEnvOrConfig(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	return getEnv(envKey, defaultValue)
}
