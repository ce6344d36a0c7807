package service

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/qr"
	"github.com/hellhack-ui/HoloPass/internal/storage"
)

// CheckInService records attendance and awards stamps
type CheckInService struct {
	events       *EventService
	attendance   AttendanceRepository
	validator    *qr.CheckInValidator
	analytics    AttendanceAnalytics
	mirrorStamps bool
	now          func() time.Time
}

// NewCheckInService creates a new check-in service. When mirrorStamps is set
// every awarded stamp is queued for the on-chain worker.
func NewCheckInService(events *EventService, attendance AttendanceRepository, validator *qr.CheckInValidator, analytics AttendanceAnalytics, mirrorStamps bool) *CheckInService {
	if validator == nil {
		validator = qr.NewCheckInValidator(nil, qr.DefaultTTL)
	}
	return &CheckInService{
		events:       events,
		attendance:   attendance,
		validator:    validator,
		analytics:    analytics,
		mirrorStamps: mirrorStamps,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CheckIn validates the presented QR data and records the check-in, the stamp
// and the XP credit as one unit
func (s *CheckInService) CheckIn(ctx context.Context, eventID, user, qrData, actor string) (*models.CheckInResult, error) {
	if strings.TrimSpace(user) == "" || strings.TrimSpace(qrData) == "" {
		return nil, apperrors.NewMissingFieldError("userAddress", "User address and QR code data are required")
	}
	user, err := requireAddress("userAddress", user, "User address and QR code data are required")
	if err != nil {
		return nil, err
	}
	if err := checkActor(actor, user); err != nil {
		return nil, err
	}

	event, err := s.events.Resolve(ctx, eventID)
	if err != nil {
		return nil, missingEventError(err)
	}
	if err := s.validator.Validate(qrData, event.ID, user); err != nil {
		return nil, err
	}

	result, err := s.attendance.RecordCheckIn(ctx, storage.CheckInRecord{
		Event:       event,
		UserAddress: user,
		QRCodeData:  qrData,
		At:          s.now(),
		MirrorStamp: s.mirrorStamps,
	})
	if err != nil {
		return nil, missingEventError(attendanceError("record check-in", "Event", eventID, err))
	}

	if s.analytics != nil {
		if err := s.analytics.RecordCheckIn(ctx, result.Stamp); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to record check-in analytics")
		}
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"eventId": event.ID,
		"user":    user,
		"xp":      result.Stamp.XP,
		"level":   result.Profile.Level,
	}).Info("Checked in")
	return result, nil
}

// Stats summarizes attendance for an event, from analytics when configured
func (s *CheckInService) Stats(ctx context.Context, eventID string) (*models.AttendanceStats, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if s.analytics != nil {
		stats, err := s.analytics.EventStats(ctx, event.ID)
		if err == nil {
			stats.Capacity = event.Capacity
			return stats, nil
		}
		logging.FromContext(ctx).WithError(err).Warn("Analytics unavailable, falling back to store counts")
	}

	stats, err := s.attendance.AttendanceCounts(ctx, event.ID)
	if err != nil {
		return nil, attendanceError("attendance counts", "Event", eventID, err)
	}
	return stats, nil
}
