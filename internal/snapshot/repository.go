package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested snapshot was not found.
var ErrNotFound = errors.New("snapshot not found")

// Record is a stored portfolio snapshot row.
type Record struct {
	ID           int             `json:"id"`
	Account      string          `json:"account"`
	Period       Period          `json:"period"`
	SnapshotDate time.Time       `json:"snapshotDate"`
	Data         json.RawMessage `json:"data"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Repository defines persistent storage for snapshots.
type Repository interface {
	Save(ctx context.Context, account string, period Period, date time.Time, data json.RawMessage) error
	GetLatest(ctx context.Context, account string, period Period) (*Record, error)
	List(ctx context.Context, account string, period Period, limit int) ([]Record, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a PostgreSQL snapshot repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Save(ctx context.Context, account string, period Period, date time.Time, data json.RawMessage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO portfolio_snapshots (account, period, snapshot_date, data)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (account, period, snapshot_date)
		 DO UPDATE SET data = $4::jsonb`,
		account, string(period), date, data)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

func (r *PgRepository) GetLatest(ctx context.Context, account string, period Period) (*Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx,
		`SELECT id, account, period, snapshot_date, data, created_at
		 FROM portfolio_snapshots
		 WHERE account = $1 AND period = $2
		 ORDER BY snapshot_date DESC
		 LIMIT 1`, account, string(period)).
		Scan(&rec.ID, &rec.Account, &rec.Period, &rec.SnapshotDate, &rec.Data, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting latest snapshot: %w", err)
	}
	return &rec, nil
}

func (r *PgRepository) List(ctx context.Context, account string, period Period, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, account, period, snapshot_date, data, created_at
		 FROM portfolio_snapshots
		 WHERE account = $1 AND period = $2
		 ORDER BY snapshot_date DESC
		 LIMIT $3`, account, string(period), limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Account, &rec.Period, &rec.SnapshotDate, &rec.Data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return records, nil
}
