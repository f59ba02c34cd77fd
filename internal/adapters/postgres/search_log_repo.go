package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rentsignal/aircomps/internal/core/domain"
)

// SearchLogRepo implements ports.SearchLogRepository.
type SearchLogRepo struct {
	db *DB
}

func NewSearchLogRepo(db *DB) *SearchLogRepo {
	return &SearchLogRepo{db: db}
}

// Insert stores one search log and a slim snapshot of the listings it
// returned, batched into a single round trip.
func (r *SearchLogRepo) Insert(ctx context.Context, log *domain.SearchLog, listings []domain.Listing) error {
	var id int64
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO search_logs (center_lat, center_lon, radius_mi, check_in, check_out, result_count, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, log.Center.Lat, log.Center.Lon, log.RadiusMiles,
		nilIfEmpty(log.CheckIn), nilIfEmpty(log.CheckOut),
		log.Count, log.DurationMS).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert search log: %w", err)
	}
	log.ID = fmt.Sprintf("%d", id)

	if len(listings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range listings {
		batch.Queue(`
			INSERT INTO search_log_listings (search_log_id, listing_id, title, price, distance_mi)
			VALUES ($1, $2, $3, $4, $5)
		`, id, l.ID, l.Title, priceText(l.Price), l.DistanceMi)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for range listings {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert listing snapshot: %w", err)
		}
	}
	return nil
}

// Recent returns one window of the search logs, newest first.
func (r *SearchLogRepo) Recent(ctx context.Context, offset, limit int) ([]domain.SearchLog, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id::text, center_lat, center_lon, radius_mi,
			to_char(check_in, 'YYYY-MM-DD'), to_char(check_out, 'YYYY-MM-DD'),
			result_count, duration_ms, created_at
		FROM search_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.SearchLog
	for rows.Next() {
		var l domain.SearchLog
		var checkIn, checkOut sql.NullString
		if err := rows.Scan(
			&l.ID, &l.Center.Lat, &l.Center.Lon, &l.RadiusMiles,
			&checkIn, &checkOut, &l.Count, &l.DurationMS, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		l.CheckIn = checkIn.String
		l.CheckOut = checkOut.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// Count returns the number of stored search logs.
func (r *SearchLogRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM search_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count search logs: %w", err)
	}
	return n, nil
}

// priceText flattens the pass-through price value for storage. The live API
// keeps it loose; the history table wants one column.
func priceText(v any) any {
	if v == nil {
		return nil
	}
	return fmt.Sprintf("%v", v)
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
