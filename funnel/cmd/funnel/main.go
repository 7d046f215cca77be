package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/techview-systems/leadpixel-stack/common/database"
	"github.com/techview-systems/leadpixel-stack/common/logging"
	natsclient "github.com/techview-systems/leadpixel-stack/common/messaging/nats"
	"github.com/techview-systems/leadpixel-stack/common/middleware"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/auth"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/capi"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/config"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/configstore"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dedupe"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/delivery"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dlq"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/flow"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/handlers"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/leads"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/ratelimit"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/secrets"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/server"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/sessions"
	"github.com/techview-systems/leadpixel-stack/funnel/pkg/tokens"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("funnel"))
	logging.SetDefault(logger)

	slog.Info("Starting Funnel service",
		slog.String("version", version),
		slog.Int("port", cfg.Server.Port),
		slog.String("database", cfg.Database.Driver),
		slog.String("delivery", cfg.CAPI.Delivery),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("nats", cfg.NATS.Enabled),
	)

	ctx := context.Background()
	health := handlers.NewHealthHandler(version)

	sealer, err := newSealer(cfg.Security.TokenKey)
	if err != nil {
		log.Fatalf("Failed to initialize token sealer: %v", err)
	}

	// Storage
	var (
		configRepo configstore.Repository
		leadRepo   leads.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		pool := connectPostgres(ctx, cfg.Database)
		defer pool.Close()
		health.Register("database", pool.Ping)
		configRepo = configstore.NewPostgres(pool, sealer)
		leadRepo = leads.NewPostgres(pool)
	default:
		slog.Warn("Using in-memory storage; tracking configurations and leads are lost on restart")
		configRepo = configstore.NewMemory()
		leadRepo = leads.NewMemory()
	}

	// Redis-backed sessions, config cache, dedupe and rate limiting
	var (
		sessionStore sessions.Store        = sessions.NewMemory(cfg.Sessions.TTL)
		seen         dedupe.Store          = dedupe.NewMemory(cfg.Outbox.DedupeTTL)
		limiter      ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	)
	if cfg.Redis.Enabled {
		rdb := connectRedis(ctx, cfg.Redis.URL)
		defer rdb.Close()
		health.Register("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })

		sessionStore = sessions.NewRedis(rdb, cfg.Sessions.TTL)
		seen = dedupe.NewRedis(rdb, cfg.Outbox.DedupeTTL)
		configRepo = configstore.NewCached(configRepo, rdb, configstore.CacheOptions{
			TTL:         cfg.Cache.TTL,
			NegativeTTL: cfg.Cache.NegativeTTL,
			Sealer:      sealer,
		})
		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewRedisRateLimiter(rdb, "funnel", cfg.RateLimit.Requests, cfg.RateLimit.Window)
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.RateLimit.Requests),
				slog.Duration("window", cfg.RateLimit.Window))
		}
	} else {
		slog.Warn("Redis disabled; sessions and dedupe are process-local and rate limiting is off")
	}
	defer limiter.Close()

	// Dead-letter queue
	var queue dlq.Queue
	if cfg.NATS.Enabled {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		natsCfg.Token = cfg.NATS.Token
		js, err := natsclient.NewJetStreamClient(natsCfg)
		if err != nil {
			log.Fatalf("Failed to connect to NATS for DLQ: %v", err)
		}
		defer func() { _ = js.Drain() }()
		jsQueue, err := dlq.NewJetStreamQueue(ctx, js)
		if err != nil {
			log.Fatalf("Failed to initialize JetStream DLQ: %v", err)
		}
		health.Register("nats", handlers.NATSCheck(js))
		queue = jsQueue
		slog.Info("Dead Letter Queue enabled", slog.String("backend", "jetstream"))
	} else {
		queue = dlq.NewMemory(cfg.Outbox.DLQCapacity)
		slog.Info("Dead Letter Queue enabled", slog.String("backend", "memory"), slog.Int("capacity", cfg.Outbox.DLQCapacity))
	}

	// Server event delivery
	transmitter := capi.NewTransmitter(capi.TransmitterConfig{
		BaseURL:       cfg.CAPI.BaseURL,
		APIVersion:    cfg.CAPI.APIVersion,
		TestEventCode: cfg.CAPI.TestEventCode,
		Timeout:       cfg.CAPI.Timeout,
	})
	var (
		dispatcher delivery.Dispatcher
		outbox     *delivery.Outbox
	)
	switch cfg.CAPI.Delivery {
	case delivery.ModeSync:
		dispatcher = delivery.NewSync(transmitter, queue).WithDedupe(seen)
	default:
		outbox = delivery.NewOutbox(transmitter, seen, queue, delivery.OutboxConfig{
			QueueSize:       cfg.Outbox.QueueSize,
			Workers:         cfg.Outbox.Workers,
			MaxAttempts:     cfg.Outbox.MaxAttempts,
			InitialInterval: cfg.Outbox.InitialInterval,
			MaxInterval:     cfg.Outbox.MaxInterval,
		})
		dispatcher = outbox
	}

	engine := flow.NewEngine(flow.Deps{
		Builder:    capi.NewBuilder(cfg.CAPI.Currency),
		Dispatcher: dispatcher,
		Configs:    configRepo,
		Leads:      leadRepo,
		Sessions:   sessionStore,
		LockTTL:    cfg.Sessions.LockTTL,
	})

	var authMW *auth.Middleware
	if cfg.Security.JWTSecret != "" {
		authMW = auth.NewMiddleware(tokens.NewTokenGenerator(cfg.Security.JWTSecret, cfg.Security.TokenTTL))
	} else {
		slog.Warn("security.jwt_secret is empty; operator API disabled")
	}

	router := server.NewRouter(server.Options{
		Funnel:  handlers.NewFunnelHandler(engine, configRepo),
		Admin:   handlers.NewAdminHandler(configRepo, leadRepo, queue, dispatcher),
		Health:  health,
		Auth:    authMW,
		Limiter: limiter,
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", "Authorization", middleware.HeaderRequestID, handlers.HeaderPixelAvailable},
		},
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Funnel service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}
	// In-flight requests are done; let the outbox drain what they queued.
	if outbox != nil {
		if err := outbox.Close(shutdownCtx); err != nil {
			slog.Error("Outbox did not drain", logging.Error(err))
		}
	}

	slog.Info("Server stopped")
}

func newSealer(key string) (secrets.Sealer, error) {
	if key == "" {
		slog.Warn("security.token_key is empty; access tokens are stored unencrypted")
		return secrets.Passthrough{}, nil
	}
	return secrets.New(key)
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) *pgxpool.Pool {
	version, dirty, err := database.Migrate(cfg.MigrationsPath, cfg.URL)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database migrations applied", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))

	pc := database.DefaultPoolConfig()
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnIdle > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdle
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	pool, err := database.Connect(connectCtx, cfg.URL, pc)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return pool
}

func connectRedis(ctx context.Context, url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("Invalid redis url: %v", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	return rdb
}
