package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/qr"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// RSVPQRCode is a signed check-in payload and its rendered image
type RSVPQRCode struct {
	Payload    qr.Payload `json:"payload"`
	QRCodeData string     `json:"qrCodeData"`
	Image      string     `json:"image"`
}

// RSVPService handles RSVP issuance and cancellation
type RSVPService struct {
	events     *EventService
	attendance AttendanceRepository
	analytics  AttendanceAnalytics
	signer     *qr.Signer
	now        func() time.Time
}

// NewRSVPService creates a new RSVP service. analytics and signer may be nil.
func NewRSVPService(events *EventService, attendance AttendanceRepository, analytics AttendanceAnalytics, signer *qr.Signer) *RSVPService {
	return &RSVPService{
		events:     events,
		attendance: attendance,
		analytics:  analytics,
		signer:     signer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create reserves a seat for user. actor is the signed-in wallet, if any.
func (s *RSVPService) Create(ctx context.Context, eventID, user, actor string) (*models.RSVP, error) {
	user, err := requireAddress("userAddress", user, "User address is required")
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
	if !event.OpenForRSVP() {
		return nil, apperrors.ErrEventNotOpen
	}

	now := s.now()
	rsvp, err := s.attendance.ReserveRSVP(ctx, event.ID, user, now)
	if err != nil {
		return nil, missingEventError(attendanceError("reserve rsvp", "Event", eventID, err))
	}
	rsvp.QRCode = models.RSVPToken(event.ID, user, now)

	s.recordRSVP(ctx, event.ID, user, types.RSVPConfirmed, now)
	s.events.Invalidate(ctx, event.ID)

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"eventId": event.ID,
		"user":    user,
	}).Info("RSVP confirmed")
	return rsvp, nil
}

// Cancel cancels the active RSVP of user
func (s *RSVPService) Cancel(ctx context.Context, eventID, user, actor string) error {
	user, err := requireAddress("user", user, "User address is required")
	if err != nil {
		return err
	}
	if err := checkActor(actor, user); err != nil {
		return err
	}

	if err := s.attendance.CancelRSVP(ctx, eventID, user); err != nil {
		return attendanceError("cancel rsvp", "RSVP", eventID, err)
	}

	s.recordRSVP(ctx, eventID, user, types.RSVPCancelled, s.now())
	s.events.Invalidate(ctx, eventID)
	return nil
}

// ListForUser returns every RSVP of user with its check-in token
func (s *RSVPService) ListForUser(ctx context.Context, user string) ([]*models.RSVP, error) {
	user, err := requireAddress("address", user, "User address is required")
	if err != nil {
		return nil, err
	}
	rsvps, err := s.attendance.ListUserRSVPs(ctx, user)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list rsvps", err)
	}
	for _, r := range rsvps {
		r.QRCode = models.RSVPTokenBase(r.EventID, r.UserAddress)
	}
	return rsvps, nil
}

// QRCode issues a check-in payload for a confirmed RSVP, signed when a QR
// secret is configured
func (s *RSVPService) QRCode(ctx context.Context, eventID, user, actor string) (*RSVPQRCode, error) {
	user, err := requireAddress("user", user, "User address is required")
	if err != nil {
		return nil, err
	}
	if err := checkActor(actor, user); err != nil {
		return nil, err
	}

	rsvp, err := s.attendance.GetRSVP(ctx, eventID, user)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewDatabaseError("get rsvp", err)
	}
	if rsvp == nil || rsvp.Status != types.RSVPConfirmed {
		return nil, apperrors.ErrNoValidRSVP
	}

	payload := qr.Generate(types.QREventCheckIn, user, eventID, "", s.now())
	if s.signer != nil {
		payload = s.signer.Sign(payload)
	}
	data, err := qr.Encode(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to encode QR payload", err)
	}
	image, err := qr.GenerateImage(data, qr.DefaultImageSize)
	if err != nil {
		return nil, apperrors.NewInternalError("Failed to render QR code", err)
	}
	return &RSVPQRCode{Payload: payload, QRCodeData: data, Image: image}, nil
}

func (s *RSVPService) recordRSVP(ctx context.Context, eventID, user string, status types.RSVPStatus, at time.Time) {
	if s.analytics == nil {
		return
	}
	if err := s.analytics.RecordRSVP(ctx, eventID, user, status, at); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to record RSVP analytics")
	}
}

// missingEventError turns a missing event into a 400 rule error, the status
// every other RSVP and check-in failure uses
func missingEventError(err error) error {
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) && catErr.Category == apperrors.CategoryNotFound {
		return apperrors.NewRuleError(apperrors.CodeEventNotFound, "Event not found")
	}
	return err
}

// attendanceError maps repository errors: rule errors pass through, a missing
// row becomes a 404 for resource
func attendanceError(op, resource, id string, err error) error {
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewNotFoundError(resource, id)
	}
	return apperrors.NewDatabaseError(op, err)
}
