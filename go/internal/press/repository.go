package press

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pressatlas/pressatlas/go/internal/geo"
)

// PGRepository is the Postgres-backed event log and tally store.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository on top of a pgx pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// EnsureSchema creates the press tables if they do not exist.
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS press_events (
			id         UUID PRIMARY KEY,
			region     TEXT NOT NULL,
			lat        DOUBLE PRECISION NOT NULL,
			lon        DOUBLE PRECISION NOT NULL,
			device_id  TEXT NOT NULL,
			pressed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS press_events_pressed_at_idx
			ON press_events (pressed_at DESC);
		CREATE INDEX IF NOT EXISTS press_events_region_pressed_at_idx
			ON press_events (region, pressed_at DESC);
		CREATE TABLE IF NOT EXISTS region_tallies (
			region          TEXT PRIMARY KEY,
			press_count     BIGINT NOT NULL DEFAULT 0,
			last_pressed_at TIMESTAMPTZ NOT NULL
		);`

	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// InsertEvent appends a press to the event log.
func (r *PGRepository) InsertEvent(ctx context.Context, event Event) error {
	const q = `
		INSERT INTO press_events (id, region, lat, lon, device_id, pressed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.pool.Exec(ctx, q,
		event.ID, event.Region, event.Location.Lat, event.Location.Lon,
		event.DeviceID, event.PressedAt,
	); err != nil {
		return fmt.Errorf("failed to insert press event: %w", err)
	}
	return nil
}

// IncrementTally bumps the region's counter by one, creating the row on
// first press. The upsert is a single atomic read-modify-write at the
// row level, so concurrent presses never lose updates.
func (r *PGRepository) IncrementTally(ctx context.Context, region string, pressedAt time.Time) (RegionTally, error) {
	const q = `
		INSERT INTO region_tallies (region, press_count, last_pressed_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (region) DO UPDATE
			SET press_count     = region_tallies.press_count + 1,
			    last_pressed_at = EXCLUDED.last_pressed_at
		RETURNING region, press_count, last_pressed_at`

	var tally RegionTally
	if err := r.pool.QueryRow(ctx, q, region, pressedAt).Scan(
		&tally.Region, &tally.Count, &tally.LastPressedAt,
	); err != nil {
		return RegionTally{}, fmt.Errorf("failed to increment tally: %w", err)
	}
	return tally, nil
}

// ListTallies returns every region tally ordered by count, descending.
func (r *PGRepository) ListTallies(ctx context.Context) ([]RegionTally, error) {
	const q = `
		SELECT region, press_count, last_pressed_at
		FROM region_tallies
		ORDER BY press_count DESC, region ASC`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list tallies: %w", err)
	}
	defer rows.Close()

	tallies := []RegionTally{}
	for rows.Next() {
		var tally RegionTally
		if err := rows.Scan(&tally.Region, &tally.Count, &tally.LastPressedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		tallies = append(tallies, tally)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tallies: %w", err)
	}
	return tallies, nil
}

// LastEvent returns the most recent press, or nil when the log is empty.
func (r *PGRepository) LastEvent(ctx context.Context) (*Event, error) {
	const q = `
		SELECT id, region, lat, lon, device_id, pressed_at
		FROM press_events
		ORDER BY pressed_at DESC
		LIMIT 1`

	event, err := scanEvent(r.pool.QueryRow(ctx, q))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch last press: %w", err)
	}
	return event, nil
}

// RecentEvents returns the last limit presses, newest first.
func (r *PGRepository) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	const q = `
		SELECT id, region, lat, lon, device_id, pressed_at
		FROM press_events
		ORDER BY pressed_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent presses: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan press event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent presses: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var event Event
	var coords geo.Coordinates
	if err := row.Scan(
		&event.ID, &event.Region, &coords.Lat, &coords.Lon,
		&event.DeviceID, &event.PressedAt,
	); err != nil {
		return nil, err
	}
	event.Location = coords
	return &event, nil
}
