package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
	"selfiebooth/internal/core/services"
	httphandlers "selfiebooth/internal/handlers/http"
	"selfiebooth/internal/infrastructure/assets"
	backupinfra "selfiebooth/internal/infrastructure/backup"
	"selfiebooth/internal/infrastructure/camera"
	"selfiebooth/internal/infrastructure/distributed"
	"selfiebooth/internal/infrastructure/geocoding"
	"selfiebooth/internal/infrastructure/middleware"
	"selfiebooth/internal/infrastructure/monitoring"
	"selfiebooth/internal/infrastructure/preview"
	"selfiebooth/internal/infrastructure/repositories"
	"selfiebooth/pkg/backup"
	"selfiebooth/pkg/config"
	"selfiebooth/pkg/i18n"
	"selfiebooth/pkg/logger"
	"selfiebooth/pkg/retry"
	"selfiebooth/pkg/tracing"
)

func main() {
	startTime := time.Now()

	cfg, err := config.LoadFirst(config.DefaultPaths...)
	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if err != nil {
		log.Warnw("Invalid configuration, using defaults", "error", err)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "selfiebooth",
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warnw("Tracing disabled", "error", err)
		tp = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repoFactory := repositories.NewRepositoryFactory(cfg, log)
	tenantRepo := repoFactory.CreateTenantRepository()
	sessions := repoFactory.CreateSessionStore()
	userRepo := repoFactory.CreateUserRepository()

	// Settings changes reach the previews of every instance through redis.
	bus := distributed.NewEventBus(repoFactory.RedisClient(), cfg.Redis.KeyPrefix, uuid.NewString(), log)
	go bus.Listen(ctx, retry.Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	})

	collector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	catalog := i18n.Default()

	tenants := services.NewTenantService(tenantRepo, bus, cfg.Tenancy.ReservedSlugs, cfg.Tenancy.DemoEnabled, log)
	settings := services.NewSettingsService(tenantRepo, bus, log)
	users := services.NewUserAuthService(userRepo, sessions, cfg.Auth.UserSessionTTL, log)
	admins := services.NewAdminAuthService(sessions, cfg.Auth.AdminSessionTTL,
		cfg.Auth.AdminPasswordHash, cfg.Auth.TenantAdminPasswordHashes, log)
	clientTokens := services.NewClientTokenService(cfg.Auth.JWTSecret, cfg.Auth.ClientTokenTTL)

	var scheduler *backupinfra.Scheduler
	if cfg.Backup.Enabled {
		scheduler = startBackups(ctx, cfg, repoFactory, tenantRepo, log)
	}

	if cfg.Auth.SeedDemoUsers {
		if err := users.SeedDemoUsers(ctx); err != nil {
			log.Fatalw("Failed to seed demo users", "error", err)
		}
	}

	feeds := camera.NewFeedHub()
	captures := services.NewCaptureManager(feeds, services.CaptureConfig{
		Constraints: domain.Constraints{
			FacingMode:  domain.FacingUser,
			IdealWidth:  cfg.Camera.IdealWidth,
			IdealHeight: cfg.Camera.IdealHeight,
		},
		ReadyTimeout:   cfg.Camera.ReadyTimeout,
		ReleaseTimeout: cfg.Camera.ReleaseTimeout,
		Restart:        retryConfig(cfg.Camera.Restart),
	}, collector, log)

	// Sessions of pages that vanished without closing their socket or
	// calling DELETE /capture.
	go captures.RunReaper(ctx, cfg.Camera.IdleTimeout, cfg.Camera.IdleTimeout/2)

	var geocoder ports.Geocoder
	var nominatim *geocoding.Nominatim
	if cfg.Geocoding.Enabled {
		nominatim = geocoding.NewNominatim(geocoding.Config{
			Endpoint:          cfg.Geocoding.Endpoint,
			UserAgent:         cfg.Geocoding.UserAgent,
			Language:          cfg.Geocoding.Language,
			Timeout:           cfg.Geocoding.Timeout,
			RequestsPerSecond: cfg.Geocoding.RequestsPerSecond,
			MaxFailures:       cfg.Geocoding.Breaker.MaxFailures,
			ResetTimeout:      cfg.Geocoding.Breaker.ResetTimeout,
		}, nil, log)
		geocoder = nominatim
	}
	locations := services.NewLocationService(geocoder, cfg.Geocoding.CacheTTL, catalog, collector, log)

	loader := assets.NewLoader(assets.Config{
		FetchTimeout: cfg.Assets.FetchTimeout,
		MaxBytes:     cfg.Assets.MaxBytes,
		CacheTTL:     cfg.Assets.CacheTTL,
		BaseURL:      cfg.Server.PublicOrigin,
	}, nil, log)
	exports := services.NewExportService(loader, collector, log)

	previewServer := preview.NewServer(feeds, captures, locations, bus, collector, preview.Config{
		PingInterval:   cfg.Preview.PingInterval,
		PongTimeout:    cfg.Preview.PongTimeout,
		MaxFrameBytes:  cfg.Preview.MaxFrameBytes,
		AllowedOrigins: cfg.Preview.AllowedOrigins,
	}, log)

	healthChecker := monitoring.NewHealthChecker(log)
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}
	healthChecker.StartBackgroundChecks(ctx)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collector.SetCaptureSessions(captures.Count())
			}
		}
	}()

	authHandler := httphandlers.NewAuthHandler(users, admins, tenants, middleware.NewLoginRateLimitMiddleware(cfg), collector)
	boothHandler := httphandlers.NewBoothHandler(tenants, captures, exports, services.NewShareService(catalog),
		locations, previewServer, catalog, cfg.Server.PublicOrigin)
	adminHandler := httphandlers.NewAdminHandler(tenants, settings, admins, catalog, cfg.Server.PublicOrigin)
	platformHandler := httphandlers.NewPlatformHandler(users, tenants, catalog)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.AccessLogMiddleware(log),
		middleware.ErrorHandlerMiddleware(catalog, log),
		middleware.RequestContextMiddleware(catalog),
		middleware.TracingMiddleware(),
		middleware.MetricsMiddleware(collector),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ClientMiddleware(clientTokens, cfg.Auth.CookieSecure, log),
	)

	authHandler.SetupRoutes(router)
	boothHandler.SetupRoutes(router)
	adminHandler.SetupRoutes(router)
	platformHandler.SetupRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
			"previews":  previewServer.Connections(),
			"captures":  captures.Count(),
		}
		if nominatim != nil {
			stats := nominatim.Stats()
			body["geocoder"] = gin.H{
				"breaker":  stats.State.String(),
				"failures": stats.FailureCount,
			}
		}
		c.JSON(http.StatusOK, body)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}
		status := healthChecker.CheckAll(ctx)
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting selfie booth on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down selfie booth...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	// Release every camera before the stores go away.
	captures.StopAll()
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	locations.Close()
	loader.Close()

	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error flushing traces", "error", err)
		}
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("Selfie booth stopped")
}

// startBackups restores the newest snapshot into a fresh memory store and
// then snapshots the tenant store on the configured interval.
func startBackups(ctx context.Context, cfg *config.Config, factory *repositories.RepositoryFactory, tenants ports.TenantRepository, log *zap.SugaredLogger) *backupinfra.Scheduler {
	storage, err := backup.NewFileStorage(cfg.Backup.Directory)
	if err != nil {
		log.Errorw("Backups disabled", "error", err)
		return nil
	}
	backups := backup.NewBackupService(storage, "1")

	if cfg.Backup.RestoreOnStart && !factory.UsingRedis() {
		restore := backupinfra.NewRestoreService(backups, tenants, log)
		if res, ok, err := restore.RestoreLatest(ctx, backupinfra.RestoreOptions{}); err != nil {
			log.Errorw("Restore from backup failed", "error", err)
		} else if ok {
			log.Infow("Tenants restored from backup", "backup_name", res.Backup, "created", res.Created)
		}
	}

	scheduler := backupinfra.NewScheduler(backups, tenants, backupinfra.Config{
		Interval:      cfg.Backup.Interval,
		RetentionDays: cfg.Backup.RetentionDays,
		LockClient:    factory.RedisClient(),
		LockKey:       cfg.Redis.KeyPrefix + "lock:backup",
	}, log)
	go scheduler.Start(ctx)
	return scheduler
}

func retryConfig(p config.RetryPolicy) retry.Config {
	return retry.Config{
		MaxAttempts:  p.MaxAttempts,
		InitialDelay: p.InitialDelay,
		MaxDelay:     p.MaxDelay,
		Multiplier:   p.Multiplier,
	}
}
