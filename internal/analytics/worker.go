package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ayush/datapulse/backend/internal/models"
)

// ValueSource yields the raw values to aggregate.
type ValueSource interface {
	ListValues(ctx context.Context) ([]float64, error)
}

// SnapshotWriter persists computed snapshots.
type SnapshotWriter interface {
	Insert(ctx context.Context, snap *models.Snapshot) (string, error)
}

// Archive defines the interface for the optional object-store copy.
type Archive interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Worker periodically turns data points into snapshots. It is the only
// writer of the snapshot collection.
type Worker struct {
	values    ValueSource
	snapshots SnapshotWriter
	archive   Archive
	interval  time.Duration
	now       func() time.Time
	log       logrus.FieldLogger
}

// DefaultInterval is used when NewWorker is given a non-positive interval.
const DefaultInterval = 5 * time.Minute

// NewWorker builds a worker. archive may be nil.
func NewWorker(values ValueSource, snapshots SnapshotWriter, archive Archive, interval time.Duration, log logrus.FieldLogger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		values:    values,
		snapshots: snapshots,
		archive:   archive,
		interval:  interval,
		now:       time.Now,
		log:       log,
	}
}

// Run computes a snapshot immediately and then every interval until ctx is
// cancelled. Failed runs are logged and do not stop the loop.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrNoData) && ctx.Err() == nil {
			w.log.WithError(err).Error("compute analytics")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce computes and stores one snapshot.
func (w *Worker) RunOnce(ctx context.Context) (*models.Snapshot, error) {
	values, err := w.values.ListValues(ctx)
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}

	snap, err := Compute(values, w.now())
	if errors.Is(err, ErrNoData) {
		w.log.Info("no data available for analysis")
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	id, err := w.snapshots.Insert(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("store snapshot: %w", err)
	}
	w.log.WithFields(logrus.Fields{
		"id":      id,
		"count":   snap.Count,
		"average": snap.Average,
		"median":  snap.Median,
	}).Info("analytics computed and stored")

	if w.archive != nil {
		if err := w.archiveSnapshot(ctx, snap); err != nil {
			w.log.WithError(err).Warn("archive snapshot")
		}
	}
	return snap, nil
}

func (w *Worker) archiveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("snapshots/%d-%s.json", snap.Timestamp, uuid.NewString())
	return w.archive.Upload(ctx, key, data, "application/json")
}
