package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/cohort/internal/featureflags"
	"github.com/yourorg/cohort/internal/handler"
	"github.com/yourorg/cohort/internal/infrastructure/logger"
	"github.com/yourorg/cohort/internal/infrastructure/redis"
	"github.com/yourorg/cohort/internal/observability/metrics"
	"github.com/yourorg/cohort/internal/observability/tracing"
	"github.com/yourorg/cohort/internal/reliability/circuitbreaker"
	"github.com/yourorg/cohort/internal/repository"
	"github.com/yourorg/cohort/internal/security/audit"
	"github.com/yourorg/cohort/internal/security/auth"
	"github.com/yourorg/cohort/internal/security/middleware"
	"github.com/yourorg/cohort/internal/service"
	"github.com/yourorg/cohort/internal/worker"
	"github.com/yourorg/cohort/pkg/cache"
	"github.com/yourorg/cohort/pkg/config"
	"github.com/yourorg/cohort/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting cohort server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	shutdownTracing, err := tracing.Init(ctx, log, "cohort", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Connect to Postgres and apply migrations
	pool, err := database.NewConnectionPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(pool.GetDB()); err != nil {
		log.Error("failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Optional Redis-backed group cache. The service degrades to direct
	// database reads when Redis is absent or the flag is off.
	var groupCache cache.Store
	var redisClient *redis.Client
	if cfg.RedisURL != "" && featureflags.Enabled("group_cache") {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		groupCache = redisClient
	}

	// 6. Initialize security components
	hasher, err := auth.NewHasher(cfg.HashSalt)
	if err != nil {
		log.Error("invalid hash salt", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokenManager := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)
	auditLogger := audit.NewLogger(log)

	// 7. Initialize repositories and services
	userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
	groupRepo := repository.NewPostgresGroupRepository(pool.GetDB(), log)

	cacheBreaker := circuitbreaker.NewCircuitBreaker(5, 2, 30*time.Second)
	cacheBreaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		log.Warn("group cache breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	accountService := service.NewAccountService(userRepo, hasher, tokenManager, log)
	groupService := service.NewGroupService(groupRepo, groupCache, cacheBreaker, log)

	// 8. Initialize handlers
	authHandler := handler.NewAuthHandler(accountService, auditLogger, log)
	userHandler := handler.NewUserHandler(accountService, log)
	groupHandler := handler.NewGroupHandler(groupService, log)

	var redisRaw *goredis.Client
	if redisClient != nil {
		redisRaw = redisClient.Raw()
	}
	healthHandler := handler.NewHealthHandler(pool.GetDB(), redisRaw, log)

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/users/{id}", userHandler.Get)
	mux.HandleFunc("PATCH /api/users/{id}", userHandler.Update)
	mux.HandleFunc("DELETE /api/users/{id}", userHandler.Delete)
	mux.HandleFunc("POST /api/groups", groupHandler.Create)
	mux.HandleFunc("GET /api/groups", groupHandler.List)
	mux.HandleFunc("GET /api/groups/{id}", groupHandler.Get)
	mux.HandleFunc("PATCH /api/groups/{id}", groupHandler.Update)
	mux.HandleFunc("DELETE /api/groups/{id}", groupHandler.Delete)
	mux.HandleFunc("GET /api/groups/{id}/members", groupHandler.Members)
	mux.HandleFunc("POST /api/groups/{id}/members", groupHandler.AddMember)
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// Report matched route patterns to the metrics middleware instead of raw
	// UUID-bearing paths.
	routes := metrics.CaptureRoutePattern(mux)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		routes.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> content type -> sanitize ->
	// identity -> CORS+routes, the whole thing wrapped in OTel instrumentation.
	rootHandler := otelhttp.NewHandler(
		withRequestID(
			metrics.HTTPMetricsMiddleware(
				middleware.ValidateJSONContentType(log)(
					middleware.SanitizeInputs(log)(
						middleware.Identity(tokenManager, log)(handlerWithCORS),
					),
				),
			),
			log,
		),
		"cohort",
	)

	// 10. Start the orphaned-group auditor in the background
	auditor := worker.NewOrphanAuditor(groupRepo, log, cfg.OrphanSweepInterval)
	go auditor.Start(ctx)

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Bool("group_cache", groupCache != nil),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop the auditor
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
