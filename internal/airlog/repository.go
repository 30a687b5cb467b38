// Package airlog records ad airings in PostgreSQL for reporting. It is a
// side channel: webhook processing never depends on it succeeding.
package airlog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roomcast/adsync/internal/adsession"
)

// Airing is one recorded ad insertion in a room.
type Airing struct {
	ID            string     `json:"id"`
	RoomID        string     `json:"roomId"`
	ReservationID string     `json:"reservationId"`
	AdID          string     `json:"adId"`
	Title         string     `json:"title,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Repository persists ad airings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an air-log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordStarted inserts a row for a started airing. A replayed start for
// the same reservation updates the existing row instead of duplicating it.
func (r *Repository) RecordStarted(ctx context.Context, roomID string, ad adsession.CurrentAd) error {
	const q = `INSERT INTO ad_airings (id, room_id, reservation_id, ad_id, title, started_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		ON CONFLICT (room_id, reservation_id) DO UPDATE SET started_at = EXCLUDED.started_at`
	_, err := r.pool.Exec(ctx, q, roomID, ad.ReservationID, ad.AdID, ad.Title, ad.StartedAt)
	return err
}

// RecordCompleted stamps the completion time for a reservation's airing.
func (r *Repository) RecordCompleted(ctx context.Context, roomID, reservationID string) error {
	const q = `UPDATE ad_airings SET completed_at = now()
		WHERE room_id = $1 AND reservation_id = $2 AND completed_at IS NULL`
	_, err := r.pool.Exec(ctx, q, roomID, reservationID)
	return err
}

// ListByRoom returns the recorded airings for a room, newest first.
func (r *Repository) ListByRoom(ctx context.Context, roomID string, limit int) ([]Airing, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT id, room_id, reservation_id, ad_id, COALESCE(title,''), started_at, completed_at, created_at
		FROM ad_airings WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Airing
	for rows.Next() {
		var a Airing
		if err := rows.Scan(&a.ID, &a.RoomID, &a.ReservationID, &a.AdID, &a.Title, &a.StartedAt, &a.CompletedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
