package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/datapulse/backend/internal/config"
	"github.com/ayush/datapulse/backend/internal/ingest"
	"github.com/ayush/datapulse/backend/internal/logging"
	"github.com/ayush/datapulse/backend/internal/middleware"
	"github.com/ayush/datapulse/backend/internal/server"
	"github.com/ayush/datapulse/backend/internal/store"
	"github.com/ayush/datapulse/backend/internal/telemetry"
	"github.com/ayush/datapulse/backend/internal/token"
)

const serviceName = "ingest"

func main() {
	cfg, err := config.LoadIngest()
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

	pgPool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	if err := store.Migrate(ctx, pgPool); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}

	verifier := token.NewRemoteVerifier(cfg.IdentityURL, cfg.VerifyTimeout)
	h := ingest.NewHandler(store.NewPostgresStore(pgPool), logger)

	r := server.NewRouter(logger, cfg.CORSOrigins)
	r.Route("/data", func(r chi.Router) {
		r.Use(middleware.RequireToken(verifier, logger))
		r.Post("/", h.Create)
		r.Get("/", h.List)
	})

	if err := server.Run(ctx, ":"+cfg.Port, serviceName, r, log); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
