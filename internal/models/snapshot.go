package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Snapshot is one aggregate over the data points, stored in MongoDB by the
// analytics worker. Timestamp is in seconds since the epoch.
type Snapshot struct {
	ID        primitive.ObjectID `json:"id"           bson:"_id,omitempty"`
	Min       float64            `json:"min"          bson:"min"`
	Max       float64            `json:"max"          bson:"max"`
	Average   float64            `json:"average"      bson:"average"`
	Median    float64            `json:"median"       bson:"median"`
	StdDev    float64            `json:"std"          bson:"std"`
	Count     int64              `json:"count"        bson:"count"`
	Timestamp int64              `json:"timestamp"    bson:"timestamp"`
}
