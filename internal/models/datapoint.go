package models

import "time"

// DataPoint is a row in the PostgreSQL data_points table.
type DataPoint struct {
	ID        int64     `json:"id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	UserID    int64     `json:"user_id"`
}

// DataPointRequest is the JSON body accepted by POST /data.
type DataPointRequest struct {
	Value *float64 `json:"value"`
}
