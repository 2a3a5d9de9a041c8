package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/datapulse/backend/internal/analytics"
	"github.com/ayush/datapulse/backend/internal/config"
	"github.com/ayush/datapulse/backend/internal/logging"
	"github.com/ayush/datapulse/backend/internal/middleware"
	"github.com/ayush/datapulse/backend/internal/server"
	"github.com/ayush/datapulse/backend/internal/store"
	"github.com/ayush/datapulse/backend/internal/telemetry"
	"github.com/ayush/datapulse/backend/internal/token"
)

const serviceName = "results"

func main() {
	cfg, err := config.LoadResults()
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

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	snapshots := store.NewSnapshotStore(mongoClient.Database(cfg.Mongo.Database), cfg.Collection)

	// Token checks are delegated to the identity service; this process
	// never holds the signing secret.
	verifier := token.NewRemoteVerifier(cfg.IdentityURL, cfg.VerifyTimeout)
	h := analytics.NewHandler(snapshots, logger)

	r := server.NewRouter(logger, cfg.CORSOrigins)
	r.Route("/analytics", func(r chi.Router) {
		r.Use(middleware.RequireToken(verifier, logger))
		r.Get("/latest", h.Latest)
		r.Get("/history", h.History)
	})

	if err := server.Run(ctx, ":"+cfg.Port, serviceName, r, log); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
