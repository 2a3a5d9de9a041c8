package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ayush/datapulse/backend/internal/httpx"
	"github.com/ayush/datapulse/backend/internal/middleware"
	"github.com/ayush/datapulse/backend/internal/models"
)

var errBadValue = errors.New("value must be a finite number")

// DataStore is the data_points persistence used by the handlers.
type DataStore interface {
	InsertDataPoint(ctx context.Context, userID int64, value float64) (*models.DataPoint, error)
	ListDataPointsByUser(ctx context.Context, userID int64) ([]models.DataPoint, error)
}

// Handler serves the data entry routes. Mount it behind
// middleware.RequireToken; the caller's id comes from the verified claims.
type Handler struct {
	points DataStore
	log    logrus.FieldLogger
}

func NewHandler(points DataStore, log logrus.FieldLogger) *Handler {
	return &Handler{points: points, log: log}
}

// parseValue reads ?value= first and falls back to a JSON body.
func parseValue(r *http.Request) (float64, error) {
	var v float64
	if raw := r.URL.Query().Get("value"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, errBadValue
		}
		v = f
	} else {
		var req models.DataPointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
			return 0, errBadValue
		}
		v = *req.Value
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errBadValue
	}
	return v, nil
}

// Create stores one data point for the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	value, err := parseValue(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	dp, err := h.points.InsertDataPoint(r.Context(), claims.UserID, value)
	if err != nil {
		h.log.WithError(err).WithField("user_id", claims.UserID).Error("insert data point")
		httpx.WriteError(w, http.StatusInternalServerError, "Database error")
		return
	}

	h.log.WithFields(logrus.Fields{"user_id": claims.UserID, "id": dp.ID}).Debug("data point stored")
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Data point created successfully"})
}

// List returns the caller's data points, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	points, err := h.points.ListDataPointsByUser(r.Context(), claims.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", claims.UserID).Error("list data points")
		httpx.WriteError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if points == nil {
		points = []models.DataPoint{}
	}
	httpx.WriteJSON(w, http.StatusOK, points)
}
