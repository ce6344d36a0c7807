package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// CheckInRecord is the input to a transactional check-in
type CheckInRecord struct {
	Event       *models.Event
	UserAddress string
	QRCodeData  string
	At          time.Time
	MirrorStamp bool // enqueue an on-chain add_stamp job in the same transaction
}

// AttendanceRepository handles RSVPs, check-ins and stamps. Every state change
// that touches more than one table runs in a single transaction.
type AttendanceRepository struct {
	db *PostgresDB
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *PostgresDB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ReserveRSVP creates (or reactivates a cancelled) confirmed RSVP. The event row
// is locked for the duration so concurrent reservations cannot exceed capacity.
func (r *AttendanceRepository) ReserveRSVP(ctx context.Context, eventID, userAddress string, at time.Time) (*models.RSVP, error) {
	user := types.NormalizeAddress(userAddress)
	var rsvp *models.RSVP

	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var capacity int
		err := tx.QueryRow(ctx, `SELECT max_attendees FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to lock event: %w", err)
		}

		var existingID string
		var existingStatus types.RSVPStatus
		err = tx.QueryRow(ctx,
			`SELECT id, status FROM rsvps WHERE event_id = $1 AND user_address = $2`,
			eventID, user,
		).Scan(&existingID, &existingStatus)
		hasExisting := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check existing rsvp: %w", err)
		}
		if hasExisting && existingStatus != types.RSVPCancelled {
			return apperrors.ErrAlreadyRSVPd
		}

		var confirmed int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM rsvps WHERE event_id = $1 AND status = 'confirmed'`, eventID,
		).Scan(&confirmed); err != nil {
			return fmt.Errorf("failed to count rsvps: %w", err)
		}
		if capacity > 0 && confirmed >= capacity {
			return apperrors.ErrEventAtCapacity
		}

		rsvp = &models.RSVP{
			EventID:     eventID,
			UserAddress: user,
			Status:      types.RSVPConfirmed,
			RSVPDate:    at,
		}

		if hasExisting {
			rsvp.ID = existingID
			_, err = tx.Exec(ctx,
				`UPDATE rsvps SET status = 'confirmed', created_at = $2, updated_at = $2 WHERE id = $1`,
				existingID, at,
			)
			if err != nil {
				return fmt.Errorf("failed to reactivate rsvp: %w", err)
			}
			return nil
		}

		rsvp.ID = uuid.New().String()
		_, err = tx.Exec(ctx,
			`INSERT INTO rsvps (id, event_id, user_address, status, created_at, updated_at)
			 VALUES ($1, $2, $3, 'confirmed', $4, $4)`,
			rsvp.ID, eventID, user, at,
		)
		if err != nil {
			if isUniqueViolation(err, "uq_rsvps_event_user") {
				return apperrors.ErrAlreadyRSVPd
			}
			return fmt.Errorf("failed to insert rsvp: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rsvp, nil
}

// CancelRSVP marks an active RSVP as cancelled
func (r *AttendanceRepository) CancelRSVP(ctx context.Context, eventID, userAddress string) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE rsvps SET status = 'cancelled', updated_at = NOW()
		 WHERE event_id = $1 AND user_address = $2 AND status <> 'cancelled'`,
		eventID, types.NormalizeAddress(userAddress),
	)
	if err != nil {
		return fmt.Errorf("failed to cancel rsvp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetRSVP returns the RSVP for (event, user) in any status
func (r *AttendanceRepository) GetRSVP(ctx context.Context, eventID, userAddress string) (*models.RSVP, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT id, event_id, user_address, status, created_at, checked_in_at, notes
		 FROM rsvps WHERE event_id = $1 AND user_address = $2`,
		eventID, types.NormalizeAddress(userAddress),
	)
	rsvp, err := scanRSVP(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rsvp, err
}

// ListUserRSVPs returns every RSVP of a wallet, newest first
func (r *AttendanceRepository) ListUserRSVPs(ctx context.Context, userAddress string) ([]*models.RSVP, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, event_id, user_address, status, created_at, checked_in_at, notes
		 FROM rsvps WHERE user_address = $1 ORDER BY created_at DESC`,
		types.NormalizeAddress(userAddress),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query rsvps: %w", err)
	}
	defer rows.Close()

	rsvps := make([]*models.RSVP, 0)
	for rows.Next() {
		rsvp, err := scanRSVP(rows)
		if err != nil {
			return nil, err
		}
		rsvps = append(rsvps, rsvp)
	}
	return rsvps, rows.Err()
}

// RecordCheckIn verifies the RSVP, writes the check-in and stamp, credits the
// profile and optionally enqueues the on-chain job, all in one transaction.
func (r *AttendanceRepository) RecordCheckIn(ctx context.Context, rec CheckInRecord) (*models.CheckInResult, error) {
	user := types.NormalizeAddress(rec.UserAddress)
	result := &models.CheckInResult{}

	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		var rsvpID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM rsvps WHERE event_id = $1 AND user_address = $2 AND status = 'confirmed' FOR UPDATE`,
			rec.Event.ID, user,
		).Scan(&rsvpID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrNoValidRSVP
			}
			return fmt.Errorf("failed to load rsvp: %w", err)
		}

		var already bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM check_ins WHERE event_id = $1 AND user_address = $2)`,
			rec.Event.ID, user,
		).Scan(&already); err != nil {
			return fmt.Errorf("failed to check existing check-in: %w", err)
		}
		if already {
			return apperrors.ErrAlreadyCheckedIn
		}

		result.CheckIn = models.CheckIn{
			ID:           uuid.New().String(),
			EventID:      rec.Event.ID,
			UserAddress:  user,
			CheckInTime:  rec.At,
			QRCodeData:   rec.QRCodeData,
			StampAwarded: true,
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO check_ins (id, event_id, user_address, qr_code_data, stamp_awarded, checked_in_at)
			 VALUES ($1, $2, $3, $4, TRUE, $5)`,
			result.CheckIn.ID, rec.Event.ID, user, rec.QRCodeData, rec.At,
		)
		if err != nil {
			if isUniqueViolation(err, "uq_check_ins_event_user") {
				return apperrors.ErrAlreadyCheckedIn
			}
			return fmt.Errorf("failed to insert check-in: %w", err)
		}

		result.Stamp = models.NewEventStamp(uuid.New().String(), rec.Event, user, rec.At)
		s := result.Stamp
		_, err = tx.Exec(ctx,
			`INSERT INTO stamps (id, event_id, user_address, stamp_type, stamp_name, description, rarity, xp, stamp_image, awarded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			s.ID, s.EventID, s.UserAddress, s.StampType, s.Name, s.Description, s.Rarity, s.XP, s.Image, s.AwardedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert stamp: %w", err)
		}

		profile, err := creditProfile(ctx, tx, user, s.XP, rec.At)
		if err != nil {
			return err
		}
		result.Profile = *profile

		if _, err := tx.Exec(ctx,
			`UPDATE rsvps SET checked_in_at = $2, updated_at = $2 WHERE id = $1`, rsvpID, rec.At,
		); err != nil {
			return fmt.Errorf("failed to mark rsvp checked in: %w", err)
		}

		if rec.MirrorStamp {
			stampID := s.ID
			if err := insertStampJob(ctx, tx, types.JobAddStamp, user, &stampID, rec.At); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// creditProfile adds xp and one stamp to the wallet's profile, creating it if needed
func creditProfile(ctx context.Context, tx pgx.Tx, user string, xp int, at time.Time) (*models.UserProfile, error) {
	fresh := models.NewUserProfile(user, at)
	fresh.AwardStamp(xp, at)
	prefs, err := marshalPreferences(fresh.Preferences)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO profiles (address, level, xp, stamps_count, preferences, joined_at, last_active)
		 VALUES ($1, $2, $3, 1, $4, $5, $5)
		 ON CONFLICT (address) DO UPDATE SET
			xp = profiles.xp + EXCLUDED.xp,
			stamps_count = profiles.stamps_count + 1,
			level = GREATEST(profiles.level, ((profiles.xp + EXCLUDED.xp) / 500)::int + 1),
			last_active = EXCLUDED.last_active
		 RETURNING `+profileColumns,
		user, fresh.Level, int64(xp), prefs, at,
	)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to credit profile: %w", err)
	}
	return profile, nil
}

// ListUserCheckIns returns every check-in of a wallet, newest first
func (r *AttendanceRepository) ListUserCheckIns(ctx context.Context, userAddress string) ([]*models.CheckIn, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, event_id, user_address, qr_code_data, stamp_awarded, checked_in_at
		 FROM check_ins WHERE user_address = $1 ORDER BY checked_in_at DESC`,
		types.NormalizeAddress(userAddress),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-ins: %w", err)
	}
	defer rows.Close()

	checkIns := make([]*models.CheckIn, 0)
	for rows.Next() {
		var c models.CheckIn
		if err := rows.Scan(&c.ID, &c.EventID, &c.UserAddress, &c.QRCodeData, &c.StampAwarded, &c.CheckInTime); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		checkIns = append(checkIns, &c)
	}
	return checkIns, rows.Err()
}

// ListUserStamps returns every stamp a wallet holds, newest first
func (r *AttendanceRepository) ListUserStamps(ctx context.Context, userAddress string) ([]*models.Stamp, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, event_id, user_address, stamp_type, stamp_name, description, rarity, xp, stamp_image, awarded_at, tx_hash
		 FROM stamps WHERE user_address = $1 ORDER BY awarded_at DESC`,
		types.NormalizeAddress(userAddress),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stamps: %w", err)
	}
	defer rows.Close()

	stamps := make([]*models.Stamp, 0)
	for rows.Next() {
		var s models.Stamp
		if err := rows.Scan(&s.ID, &s.EventID, &s.UserAddress, &s.StampType, &s.Name, &s.Description,
			&s.Rarity, &s.XP, &s.Image, &s.AwardedAt, &s.TxHash); err != nil {
			return nil, fmt.Errorf("failed to scan stamp: %w", err)
		}
		stamps = append(stamps, &s)
	}
	return stamps, rows.Err()
}

// AttendanceCounts aggregates RSVP and check-in counts for an event
func (r *AttendanceRepository) AttendanceCounts(ctx context.Context, eventID string) (*models.AttendanceStats, error) {
	stats := &models.AttendanceStats{EventID: eventID, Source: "store"}

	err := r.db.Pool().QueryRow(ctx, `
		SELECT
			e.max_attendees,
			(SELECT COUNT(*) FROM rsvps WHERE event_id = e.id AND status = 'confirmed'),
			(SELECT COUNT(*) FROM rsvps WHERE event_id = e.id AND status = 'cancelled'),
			(SELECT COUNT(*) FROM check_ins WHERE event_id = e.id),
			(SELECT COALESCE(SUM(xp), 0) FROM stamps WHERE event_id = e.id),
			(SELECT MAX(checked_in_at) FROM check_ins WHERE event_id = e.id)
		FROM events e WHERE e.id = $1`, eventID,
	).Scan(&stats.Capacity, &stats.Confirmed, &stats.Cancelled, &stats.CheckedIn, &stats.XPAwarded, &stats.LastCheckInAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to aggregate attendance: %w", err)
	}
	return stats, nil
}

func scanRSVP(row pgx.Row) (*models.RSVP, error) {
	var rsvp models.RSVP
	err := row.Scan(&rsvp.ID, &rsvp.EventID, &rsvp.UserAddress, &rsvp.Status, &rsvp.RSVPDate, &rsvp.CheckInDate, &rsvp.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rsvp: %w", err)
	}
	return &rsvp, nil
}
