package analytics

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayush/datapulse/backend/internal/httpx"
	"github.com/ayush/datapulse/backend/internal/models"
	"github.com/ayush/datapulse/backend/internal/store"
)

// HistoryLimit bounds GET /analytics/history.
const HistoryLimit = 100

// SnapshotReader is the read side of the snapshot store.
type SnapshotReader interface {
	Latest(ctx context.Context) (*models.Snapshot, error)
	History(ctx context.Context, limit int64) ([]models.Snapshot, error)
}

// Handler serves the results service's read-only analytics routes. Mount it
// behind middleware.RequireToken.
type Handler struct {
	snapshots SnapshotReader
	log       logrus.FieldLogger
}

func NewHandler(snapshots SnapshotReader, log logrus.FieldLogger) *Handler {
	return &Handler{snapshots: snapshots, log: log}
}

// Latest returns the most recent snapshot.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Latest(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "No analytics data available")
		return
	}
	if err != nil {
		h.log.WithError(err).Error("fetch latest snapshot")
		httpx.WriteError(w, http.StatusInternalServerError, "Error fetching analytics")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snap)
}

// History returns up to HistoryLimit snapshots, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.snapshots.History(r.Context(), HistoryLimit)
	if err != nil {
		h.log.WithError(err).Error("fetch snapshot history")
		httpx.WriteError(w, http.StatusInternalServerError, "Error fetching analytics history")
		return
	}
	if snaps == nil {
		snaps = []models.Snapshot{}
	}
	httpx.WriteJSON(w, http.StatusOK, snaps)
}
