package analytics

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/ayush/datapulse/backend/internal/models"
)

// ErrNoData is returned by Compute for an empty input.
var ErrNoData = errors.New("no data available")

// Compute aggregates values into a snapshot stamped with at. StdDev is the
// sample standard deviation and is 0 for a single value.
func Compute(values []float64, at time.Time) (*models.Snapshot, error) {
	n := len(values)
	if n == 0 {
		return nil, ErrNoData
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	var std float64
	if n > 1 {
		var sq float64
		for _, v := range sorted {
			d := v - mean
			sq += d * d
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return &models.Snapshot{
		Min:       sorted[0],
		Max:       sorted[n-1],
		Average:   mean,
		Median:    median,
		StdDev:    std,
		Count:     int64(n),
		Timestamp: at.Unix(),
	}, nil
}
