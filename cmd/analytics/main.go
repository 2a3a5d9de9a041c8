package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/datapulse/backend/internal/analytics"
	"github.com/ayush/datapulse/backend/internal/config"
	"github.com/ayush/datapulse/backend/internal/logging"
	"github.com/ayush/datapulse/backend/internal/store"
	"github.com/ayush/datapulse/backend/internal/telemetry"
)

const serviceName = "analytics"

func main() {
	cfg, err := config.LoadAnalytics()
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

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.ConnString())
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	if err := store.Migrate(ctx, pgPool); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	snapshots := store.NewSnapshotStore(mongoClient.Database(cfg.Mongo.Database), cfg.Collection)

	// ── MinIO (optional) ─────────────────────────────────────
	var archive analytics.Archive
	if cfg.MinioEndpoint != "" {
		ms, err := store.NewMinioStore(ctx, store.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio connect: %v", err)
		}
		archive = ms
	}

	worker := analytics.NewWorker(store.NewPostgresStore(pgPool), snapshots, archive, cfg.Interval, logger)
	log.Infof("analytics worker running every %s", cfg.Interval)
	worker.Run(ctx)
	log.Info("shutting down...")
}
