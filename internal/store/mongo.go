package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/datapulse/backend/internal/models"
)

var newestFirst = bson.D{{Key: "timestamp", Value: -1}}

// SnapshotStore reads and writes analytics snapshots in MongoDB.
type SnapshotStore struct {
	col *mongo.Collection
}

func NewSnapshotStore(db *mongo.Database, collection string) *SnapshotStore {
	return &SnapshotStore{col: db.Collection(collection)}
}

// Latest returns the snapshot with the greatest timestamp.
func (s *SnapshotStore) Latest(ctx context.Context) (*models.Snapshot, error) {
	opts := options.FindOne().SetSort(newestFirst)
	var snap models.Snapshot
	err := s.col.FindOne(ctx, bson.D{}, opts).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo latest: %w", err)
	}
	return &snap, nil
}

// History returns up to limit snapshots, newest first.
func (s *SnapshotStore) History(ctx context.Context, limit int64) ([]models.Snapshot, error) {
	opts := options.Find().SetSort(newestFirst).SetLimit(limit)
	cur, err := s.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo history: %w", err)
	}
	defer cur.Close(ctx)

	snaps := []models.Snapshot{}
	if err := cur.All(ctx, &snaps); err != nil {
		return nil, fmt.Errorf("mongo history: %w", err)
	}
	return snaps, nil
}

func (s *SnapshotStore) Insert(ctx context.Context, snap *models.Snapshot) (string, error) {
	res, err := s.col.InsertOne(ctx, snap)
	if err != nil {
		return "", fmt.Errorf("mongo insert: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("mongo insert: unexpected id type %T", res.InsertedID)
	}
	snap.ID = oid
	return oid.Hex(), nil
}
