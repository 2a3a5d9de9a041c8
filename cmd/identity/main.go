package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/datapulse/backend/internal/auth"
	"github.com/ayush/datapulse/backend/internal/config"
	"github.com/ayush/datapulse/backend/internal/logging"
	"github.com/ayush/datapulse/backend/internal/server"
	"github.com/ayush/datapulse/backend/internal/store"
	"github.com/ayush/datapulse/backend/internal/telemetry"
	"github.com/ayush/datapulse/backend/internal/token"
)

const serviceName = "identity"

func main() {
	cfg, err := config.LoadIdentity()
	if err != nil {
		logging.New("info", "text").Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("service", serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	defer shutdownTracing(context.Background())

	if cfg.UsesInsecureSecret() {
		log.Warn("JWT_SECRET not set; using the built-in development secret")
	}

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	if err := store.Migrate(ctx, pgPool); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}
	users := store.NewPostgresStore(pgPool)

	// ── Redis (optional) ─────────────────────────────────────
	opts := auth.Options{
		BcryptCost:  cfg.BcryptCost,
		RedirectURL: cfg.LoginRedirectURL,
	}
	if cfg.RedisAddr != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("redis connect: %v", err)
		}
		defer rdb.Close()
		opts.Throttle = auth.NewLoginThrottle(rdb, cfg.LoginMaxAttempts, cfg.LoginWindow)
	} else {
		log.Info("REDIS_ADDR not set; login throttling disabled")
	}

	// ── Handlers ─────────────────────────────────────────────
	signer := token.NewSigner(cfg.JWTSecret, cfg.TokenTTL)
	h := auth.NewHandler(users, signer, logger, opts)

	r := server.NewRouter(logger, cfg.CORSOrigins)
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/verify", h.Verify)

	if err := server.Run(ctx, ":"+cfg.Port, serviceName, r, log); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
