package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ayush/datapulse/backend/internal/models"
)

// DBTX is the subset of *pgxpool.Pool used by PostgresStore.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore handles users and data points in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateUser inserts a user. A duplicate username surfaces as an ordinary
// error from the unique constraint.
func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	u := models.User{Username: username}
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id`,
		username, passwordHash,
	).Scan(&u.ID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		`SELECT id, username, password_hash FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) InsertDataPoint(ctx context.Context, userID int64, value float64) (*models.DataPoint, error) {
	p := models.DataPoint{UserID: userID, Value: value}
	err := s.db.QueryRow(ctx,
		`INSERT INTO data_points (value, user_id)
		 VALUES ($1, $2)
		 RETURNING id, timestamp`,
		value, userID,
	).Scan(&p.ID, &p.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert data point: %w", err)
	}
	return &p, nil
}

// ListDataPointsByUser returns the user's points, newest first.
func (s *PostgresStore) ListDataPointsByUser(ctx context.Context, userID int64) ([]models.DataPoint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, value, timestamp, user_id FROM data_points
		 WHERE user_id = $1
		 ORDER BY timestamp DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list data points: %w", err)
	}
	defer rows.Close()

	points := []models.DataPoint{}
	for rows.Next() {
		var p models.DataPoint
		if err := rows.Scan(&p.ID, &p.Value, &p.Timestamp, &p.UserID); err != nil {
			return nil, fmt.Errorf("scan data point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list data points: %w", err)
	}
	return points, nil
}

// ListValues returns every recorded value, for the analytics worker.
func (s *PostgresStore) ListValues(ctx context.Context) ([]float64, error) {
	rows, err := s.db.Query(ctx, `SELECT value FROM data_points`)
	if err != nil {
		return nil, fmt.Errorf("list values: %w", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, fmt.Errorf("list values: %w", err)
	}
	return values, nil
}
