package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// clickHouseConn is the subset of ClickHouseDB used by the analytics repository
type clickHouseConn interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
	QueryRow(ctx context.Context, query string, args ...interface{}) driver.Row
}

// AnalyticsRepository appends attendance facts to ClickHouse and aggregates them
// for organizer stats.
type AnalyticsRepository struct {
	db clickHouseConn
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db clickHouseConn) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// RecordRSVP appends an RSVP state change
func (r *AnalyticsRepository) RecordRSVP(ctx context.Context, eventID, userAddress string, status types.RSVPStatus, at time.Time) error {
	err := r.db.Exec(ctx,
		`INSERT INTO rsvp_events (event_id, user_address, status, occurred_at) VALUES (?, ?, ?, ?)`,
		eventID, types.NormalizeAddress(userAddress), string(status), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record rsvp event: %w", err)
	}
	return nil
}

// RecordCheckIn appends a check-in and the stamp it produced
func (r *AnalyticsRepository) RecordCheckIn(ctx context.Context, stamp models.Stamp) error {
	err := r.db.Exec(ctx,
		`INSERT INTO checkin_events (event_id, user_address, stamp_id, stamp_name, rarity, xp, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stamp.EventID, stamp.UserAddress, stamp.ID, stamp.Name, string(stamp.Rarity),
		uint32(stamp.XP), stamp.AwardedAt.UTC(), // #nosec G115 - xp rewards are small and non-negative
	)
	if err != nil {
		return fmt.Errorf("failed to record check-in event: %w", err)
	}
	return nil
}

// EventStats aggregates attendance for one event. Capacity is left for the
// caller to fill from the event record.
func (r *AnalyticsRepository) EventStats(ctx context.Context, eventID string) (*models.AttendanceStats, error) {
	stats := &models.AttendanceStats{EventID: eventID, Source: "analytics"}

	var confirmed, cancelled uint64
	err := r.db.QueryRow(ctx, `
		SELECT countIf(s = 'confirmed'), countIf(s = 'cancelled')
		FROM (
			SELECT user_address, argMax(status, occurred_at) AS s
			FROM rsvp_events
			WHERE event_id = ?
			GROUP BY user_address
		)`, eventID).Scan(&confirmed, &cancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate rsvps: %w", err)
	}

	var checkedIn, xp uint64
	var last time.Time
	err = r.db.QueryRow(ctx, `
		SELECT count(), sum(xp), max(occurred_at)
		FROM checkin_events
		WHERE event_id = ?`, eventID).Scan(&checkedIn, &xp, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate check-ins: %w", err)
	}

	stats.Confirmed = int(confirmed) // #nosec G115
	stats.Cancelled = int(cancelled) // #nosec G115
	stats.CheckedIn = int(checkedIn) // #nosec G115
	stats.XPAwarded = int64(xp)      // #nosec G115
	if checkedIn > 0 {
		last = last.UTC()
		stats.LastCheckInAt = &last
	}
	return stats, nil
}
