// Package main is the commerce agent entry point: it wires adapters into the core services
// and serves the webhook, invoke and dashboard routes.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/go-sql-driver/mysql"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"commerce-agent/internal/adapters/gateway"
	"commerce-agent/internal/adapters/handler"
	"commerce-agent/internal/adapters/messaging"
	"commerce-agent/internal/adapters/repository"
	"commerce-agent/internal/adapters/websocket"
	"commerce-agent/internal/config"
	"commerce-agent/internal/core/domain"
	"commerce-agent/internal/core/ports"
	"commerce-agent/internal/core/services"
)

const version = "1.0.0"

func main() {
	fmt.Println("=== Commerce Agent - Initialization ===")

	// 1. Configuration
	fmt.Println("[1/6] Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logs go to stdout and to the live dashboard stream
	logHub := websocket.NewLogHub()
	go logHub.Run(ctx)
	slog.SetDefault(slog.New(slog.NewJSONHandler(
		io.MultiWriter(os.Stdout, logHub),
		&slog.HandlerOptions{Level: cfg.App.LogLevel},
	)))
	fmt.Printf("✓ Config loaded (DB: %s@%s:%d, Redis: %s)\n",
		cfg.DB.User, cfg.DB.Host, cfg.DB.Port, cfg.Redis.Addr)

	if cfg.Facebook.AppSecret == "" {
		slog.Warn("FB_APP_SECRET is not set: webhook signature verification is DISABLED")
	}

	// 2. Datastores
	fmt.Println("[2/6] Connecting to MariaDB...")
	db := connectMariaDB(cfg.DB, 5, 2*time.Second)
	defer db.Close()
	fmt.Println("✓ MariaDB connection established")

	fmt.Println("[3/6] Connecting to Redis...")
	rdb := connectRedis(cfg.Redis, 5, 2*time.Second)
	defer rdb.Close()
	fmt.Println("✓ Redis connection established")

	mariadbRepo := repository.NewMariaDBRepository(db)
	redisRepo := repository.NewRedisRepository(rdb)
	if cfg.DB.AutoMigrate {
		if err := mariadbRepo.EnsureSchema(ctx); err != nil {
			log.Fatalf("❌ Failed to apply schema: %v", err)
		}
	}

	// 3. Execution log sinks
	fmt.Println("[4/6] Initializing execution log sinks...")
	sinks := []ports.LogSink{logHub}
	if cfg.NATS.URL != "" {
		nc, err := messaging.Connect(cfg.NATS.URL, "commerce-agent")
		if err != nil {
			slog.Error("NATS unavailable, execution logs will not be published", "error", err)
		} else {
			defer drainNATS(nc)
			sinks = append(sinks, messaging.NewNATSPublisher(nc, cfg.NATS.Subject))
			fmt.Printf("✓ Publishing execution logs to %s.*\n", cfg.NATS.Subject)
		}
	}

	// 4. Core services
	fmt.Println("[5/6] Initializing services...")
	fbClient := gateway.NewFacebookClient(cfg.Facebook.GraphBaseURL, cfg.Facebook.GraphVersion)
	fbClient.OnTokenExpired = func(ctx context.Context, accessToken string) {
		if err := mariadbRepo.DeactivateByToken(ctx, accessToken); err != nil {
			slog.Error("Failed to deactivate account after token expiry", "error", err)
		}
	}

	adapters := map[domain.AIProvider]ports.AIAdapter{
		domain.ProviderOpenAI:  gateway.NewOpenAI(cfg.AI.OpenAIBaseURL),
		domain.ProviderGemini:  gateway.NewGeminiAdapter(cfg.AI.GeminiBaseURL),
		domain.ProviderManaged: gateway.NewOpenAIAdapter(cfg.AI.ManagedBaseURL, cfg.AI.ManagedTextModel, cfg.AI.ManagedMediaModel),
	}
	credentials := services.NewCredentialResolver(mariadbRepo, cfg.AI.ManagedAPIKey, cfg.AI.ManagedBaseURL)
	aiGateway := services.NewAIGateway(adapters, credentials, cfg.AI.Timeout)

	panicMode := services.NewPanicMode()
	agent := services.NewAgent(
		services.NewPageResolver(mariadbRepo, mariadbRepo),
		credentials,
		aiGateway,
		fbClient,
		services.NewConversationStore(mariadbRepo, fbClient),
		services.NewExecutionLogger(mariadbRepo, sinks...),
		mariadbRepo,
		panicMode,
	)
	demux := services.NewDemultiplexer(agent, redisRepo)

	watchdog := services.NewWatchdog(mariadbRepo, cfg.App.LogRetention, cfg.App.DiskPath)
	go watchdog.Run(ctx)
	fmt.Println("✓ Services initialized")

	// 5. HTTP
	fmt.Println("[6/6] Initializing HTTP handlers...")
	router := newRouter(cfg,
		handler.NewWebhookHandler(demux, cfg.Facebook.AppSecret, cfg.Facebook.VerifyToken),
		handler.NewInvokeHandler(agent),
		handler.NewDashboardHandler(db, rdb, panicMode, cfg.App.DiskPath, version),
		logHub,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// webhook deliveries run the full pipeline synchronously
		WriteTimeout: cfg.AI.Timeout*2 + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("[HTTP] Server listening on %s\n", server.Addr)
		fmt.Println("[READY] Press Ctrl+C to stop")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	slog.Info("Server exited")
}

func newRouter(
	cfg *config.Config,
	webhookHandler *handler.WebhookHandler,
	invokeHandler *handler.InvokeHandler,
	dashboardHandler *handler.DashboardHandler,
	logHub *websocket.LogHub,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logging)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", dashboardHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/webhook/facebook", webhookHandler.HandleFacebookVerify)
	r.Post("/webhook/facebook", webhookHandler.HandleFacebookEvent)

	r.With(handler.RequireSecret(cfg.App.MeshSecret)).Get("/ws/logs", logHub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.App.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Correlation-ID"},
			ExposedHeaders:   []string{"X-Correlation-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))

		r.With(handler.RateLimit(cfg.App.InvokeRateLimit, cfg.App.InvokeRateWin)).
			Post("/agent/invoke", invokeHandler.HandleInvoke)
		r.Get("/system/metrics", dashboardHandler.GetSystemMetrics)

		r.Group(func(r chi.Router) {
			r.Use(handler.RequireSecret(cfg.App.MeshSecret))
			r.Get("/ai/panic", dashboardHandler.GetPanic)
			r.Post("/ai/panic", dashboardHandler.EnablePanic)
			r.Delete("/ai/panic", dashboardHandler.DisablePanic)
		})
	})

	return r
}

// connectMariaDB attempts to connect to MariaDB with retry logic
// Retries are necessary because Docker containers may still be initializing
func connectMariaDB(cfg config.DBConfig, maxRetries int, retryDelay time.Duration) *sql.DB {
	dsn := cfg.GetDSN()

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			log.Printf("  Attempt %d/%d: Failed to configure DB driver: %v", i, maxRetries, err)
			time.Sleep(retryDelay)
			continue
		}

		if err = db.Ping(); err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
			return db
		}

		log.Printf("  Attempt %d/%d: Cannot ping MariaDB: %v", i, maxRetries, err)
		db.Close()

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("❌ Cannot connect to MariaDB after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}

// connectRedis attempts to connect to Redis with retry logic
func connectRedis(cfg config.RedisConfig, maxRetries int, retryDelay time.Duration) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	var err error

	for i := 1; i <= maxRetries; i++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			return rdb
		}

		log.Printf("  Attempt %d/%d: Cannot ping Redis: %v", i, maxRetries, err)

		if i < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	log.Fatalf("❌ Cannot connect to Redis after %d attempts: %v", maxRetries, err)
	return nil // unreachable
}

func drainNATS(nc *nats.Conn) {
	if err := nc.Drain(); err != nil {
		slog.Warn("NATS drain failed", "error", err)
	}
}
