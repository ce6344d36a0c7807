package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/qr"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

type checkInFixture struct {
	store   *storage.MemoryStore
	rsvps   *RSVPService
	checkIn *CheckInService
	signer  *qr.Signer
}

func newCheckInFixture(secret string, analytics AttendanceAnalytics, mirror bool) *checkInFixture {
	store := newDemoStore()
	events := NewEventService(store, nil, nil)
	signer := qr.NewSigner(secret)
	return &checkInFixture{
		store:   store,
		rsvps:   NewRSVPService(events, store, analytics, signer),
		checkIn: NewCheckInService(events, store, qr.NewCheckInValidator(signer, qr.DefaultTTL), analytics, mirror),
		signer:  signer,
	}
}

func TestCheckInService_RSVPThenCheckInAwardsXP(t *testing.T) {
	f := newCheckInFixture("", nil, false)
	ctx := context.Background()

	rsvp, err := f.rsvps.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)

	result, err := f.checkIn.CheckIn(ctx, "demo-1", bob, rsvp.QRCode, "")
	require.NoError(t, err)

	assert.True(t, result.CheckIn.StampAwarded)
	assert.Equal(t, "Web3 Pioneer", result.Stamp.Name)
	assert.Equal(t, 75, result.Stamp.XP)
	assert.Equal(t, int64(75), result.Profile.XP)
	assert.Equal(t, 1, result.Profile.StampsCount)
	assert.Equal(t, 1, result.Profile.Level)

	stamps, err := f.store.ListUserStamps(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, stamps, 1)

	stored, err := f.store.GetRSVP(ctx, "demo-1", bob)
	require.NoError(t, err)
	assert.NotNil(t, stored.CheckInDate)
}

func TestCheckInService_XPAccumulatesAcrossEvents(t *testing.T) {
	f := newCheckInFixture("secret", nil, false)
	ctx := context.Background()

	var xp int64
	for _, id := range []string{"demo-1", "demo-2", "demo-3"} {
		_, err := f.rsvps.Create(ctx, id, bob, "")
		require.NoError(t, err)
		code, err := f.rsvps.QRCode(ctx, id, bob, "")
		require.NoError(t, err)

		result, err := f.checkIn.CheckIn(ctx, id, bob, code.QRCodeData, bob)
		require.NoError(t, err)
		assert.Greater(t, result.Profile.XP, xp)
		xp = result.Profile.XP
	}

	// 75 + 100 + 200
	assert.Equal(t, int64(375), xp)
}

func TestCheckInService_Validation(t *testing.T) {
	f := newCheckInFixture("", nil, false)
	ctx := context.Background()

	tests := []struct {
		name   string
		user   string
		qrData string
	}{
		{"missing user", "", "holopass-rsvp-demo-1"},
		{"missing qr data", bob, ""},
		{"both missing", " ", " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.checkIn.CheckIn(ctx, "demo-1", tt.user, tt.qrData, "")
			require.Error(t, err)
			assert.Equal(t, "User address and QR code data are required", apperrors.Categorize(err).Message)
		})
	}
}

func TestCheckInService_RequiresRSVP(t *testing.T) {
	f := newCheckInFixture("", nil, false)

	_, err := f.checkIn.CheckIn(context.Background(), "demo-1", bob, models.RSVPTokenBase("demo-1", bob), "")
	require.ErrorIs(t, err, apperrors.ErrNoValidRSVP)
	assert.Equal(t, "No valid RSVP found for this event", apperrors.Categorize(err).Message)
}

func TestCheckInService_CancelledRSVPCannotCheckIn(t *testing.T) {
	f := newCheckInFixture("", nil, false)
	ctx := context.Background()

	rsvp, err := f.rsvps.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)
	require.NoError(t, f.rsvps.Cancel(ctx, "demo-1", bob, ""))

	_, err = f.checkIn.CheckIn(ctx, "demo-1", bob, rsvp.QRCode, "")
	assert.ErrorIs(t, err, apperrors.ErrNoValidRSVP)
}

func TestCheckInService_SecondCheckInRejected(t *testing.T) {
	f := newCheckInFixture("", nil, false)
	ctx := context.Background()

	rsvp, err := f.rsvps.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)
	_, err = f.checkIn.CheckIn(ctx, "demo-1", bob, rsvp.QRCode, "")
	require.NoError(t, err)

	_, err = f.checkIn.CheckIn(ctx, "demo-1", bob, rsvp.QRCode, "")
	require.ErrorIs(t, err, apperrors.ErrAlreadyCheckedIn)
	assert.Equal(t, "Already checked in to this event", apperrors.Categorize(err).Message)

	profile, err := f.store.GetProfile(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(75), profile.XP, "XP is awarded once")
}

func TestCheckInService_QRChecks(t *testing.T) {
	f := newCheckInFixture("secret", nil, false)
	ctx := context.Background()

	_, err := f.rsvps.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)

	encode := func(p qr.Payload) string {
		data, err := qr.Encode(p)
		require.NoError(t, err)
		return data
	}
	now := time.Now()
	valid := f.signer.Sign(qr.Generate(types.QREventCheckIn, bob, "demo-1", "", now))

	tampered := valid
	tampered.UserID = alice

	wrongEvent := f.signer.Sign(qr.Generate(types.QREventCheckIn, bob, "demo-2", "", now))
	expired := f.signer.Sign(qr.Generate(types.QREventCheckIn, bob, "demo-1", "", now.Add(-25*time.Hour)))
	unsigned := qr.Generate(types.QREventCheckIn, bob, "demo-1", "", now)
	forged := qr.NewSigner("other-secret").Sign(qr.Generate(types.QREventCheckIn, bob, "demo-1", "", now))

	tests := []struct {
		name string
		data string
		code string
	}{
		{"plain rsvp token rejected when signing", models.RSVPTokenBase("demo-1", bob), apperrors.CodeQRInvalid},
		{"not json", "hello", apperrors.CodeQRInvalid},
		{"tampered payload", encode(tampered), apperrors.CodeQRInvalid},
		{"different event", encode(wrongEvent), apperrors.CodeQRInvalid},
		{"expired", encode(expired), apperrors.CodeQRExpired},
		{"unsigned", encode(unsigned), apperrors.CodeQRInvalid},
		{"wrong secret", encode(forged), apperrors.CodeQRInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.checkIn.CheckIn(ctx, "demo-1", bob, tt.data, "")
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.Categorize(err).Code)
			assert.Equal(t, 400, apperrors.GetHTTPStatusCode(err))
		})
	}

	_, err = f.checkIn.CheckIn(ctx, "demo-1", bob, encode(valid), "")
	assert.NoError(t, err)
}

func TestCheckInService_MirrorsStampAndRecordsAnalytics(t *testing.T) {
	analytics := &mockAnalytics{}
	f := newCheckInFixture("", analytics, true)
	ctx := context.Background()

	rsvp, err := f.rsvps.Create(ctx, "demo-2", bob, "")
	require.NoError(t, err)
	result, err := f.checkIn.CheckIn(ctx, "demo-2", bob, rsvp.QRCode, "")
	require.NoError(t, err)

	jobs := f.store.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, types.JobAddStamp, jobs[0].Action)
	require.NotNil(t, jobs[0].StampID)
	assert.Equal(t, result.Stamp.ID, *jobs[0].StampID)

	require.Len(t, analytics.checkIns, 1)
	assert.Equal(t, types.RarityRare, analytics.checkIns[0].Rarity)
}

func TestCheckInService_AnalyticsFailureDoesNotFailCheckIn(t *testing.T) {
	analytics := &mockAnalytics{err: errUnavailable}
	f := newCheckInFixture("", analytics, false)
	ctx := context.Background()

	rsvp, err := f.rsvps.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)
	_, err = f.checkIn.CheckIn(ctx, "demo-1", bob, rsvp.QRCode, "")
	assert.NoError(t, err)
}

func TestCheckInService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("store counts", func(t *testing.T) {
		f := newCheckInFixture("", nil, false)
		rsvp, err := f.rsvps.Create(ctx, "demo-1", bob, "")
		require.NoError(t, err)
		_, err = f.checkIn.CheckIn(ctx, "demo-1", bob, rsvp.QRCode, "")
		require.NoError(t, err)

		stats, err := f.checkIn.Stats(ctx, "demo-1")
		require.NoError(t, err)
		assert.Equal(t, "store", stats.Source)
		assert.Equal(t, 1, stats.Confirmed)
		assert.Equal(t, 1, stats.CheckedIn)
		assert.Equal(t, int64(75), stats.XPAwarded)
	})

	t.Run("analytics", func(t *testing.T) {
		analytics := &mockAnalytics{stats: &models.AttendanceStats{EventID: "demo-1", Confirmed: 3, CheckedIn: 2, Source: "analytics"}}
		f := newCheckInFixture("", analytics, false)

		stats, err := f.checkIn.Stats(ctx, "demo-1")
		require.NoError(t, err)
		assert.Equal(t, "analytics", stats.Source)
		assert.Equal(t, 100, stats.Capacity)
		assert.Equal(t, 2, stats.CheckedIn)
	})

	t.Run("unknown event", func(t *testing.T) {
		f := newCheckInFixture("", nil, false)
		_, err := f.checkIn.Stats(ctx, "missing")
		assert.Equal(t, 404, apperrors.GetHTTPStatusCode(err))
	})
}
