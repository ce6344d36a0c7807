package storage

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

const (
	alice = "0xAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaaAAAAaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newSmallEvent(t *testing.T, s *MemoryStore, capacity int) *models.Event {
	t.Helper()
	e := &models.Event{
		ID:        "evt-small",
		Title:     "Small Meetup",
		Capacity:  capacity,
		StartDate: time.Now().Add(time.Hour),
		EndDate:   time.Now().Add(2 * time.Hour),
		Organizer: models.Organizer{Address: alice, Name: "Alice"},
	}
	e.ApplyDefaults()
	require.NoError(t, s.CreateEvent(testContext(t), e))
	return e
}

func TestMemoryStore_DemoSeed(t *testing.T) {
	s := NewDemoStore(time.Now())
	ctx := testContext(t)

	events, err := s.ListEvents(ctx, models.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "demo-1", events[0].ID)
	assert.Equal(t, 45, events[0].AttendeeCount)

	art, err := s.ListEvents(ctx, models.EventFilter{Category: "art"})
	require.NoError(t, err)
	require.Len(t, art, 1)
	assert.Equal(t, "demo-2", art[0].ID)

	_, err = s.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReserveRSVP_Duplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	e := newSmallEvent(t, s, 10)

	rsvp, err := s.ReserveRSVP(ctx, e.ID, alice, time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.RSVPConfirmed, rsvp.Status)
	assert.Equal(t, types.NormalizeAddress(alice), rsvp.UserAddress)

	_, err = s.ReserveRSVP(ctx, e.ID, types.NormalizeAddress(alice), time.Now())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRSVPd)

	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.AttendeeCount)
}

func TestMemoryStore_ReserveRSVP_Capacity(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	e := newSmallEvent(t, s, 1)

	_, err := s.ReserveRSVP(ctx, e.ID, alice, time.Now())
	require.NoError(t, err)

	_, err = s.ReserveRSVP(ctx, e.ID, bob, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrEventAtCapacity)
}

func TestMemoryStore_DemoCapacityCountsConfirmedRSVPsOnly(t *testing.T) {
	s := NewDemoStore(time.Now())
	ctx := testContext(t)

	for i := 0; i < 100; i++ {
		_, err := s.ReserveRSVP(ctx, "demo-1", fmt.Sprintf("0x%040x", i+1), time.Now())
		require.NoError(t, err, "rsvp %d", i+1)
	}
	_, err := s.ReserveRSVP(ctx, "demo-1", fmt.Sprintf("0x%040x", 101), time.Now())
	assert.ErrorIs(t, err, apperrors.ErrEventAtCapacity)

	stats, err := s.AttendanceCounts(ctx, "demo-1")
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Confirmed)

	got, err := s.GetEvent(ctx, "demo-1")
	require.NoError(t, err)
	assert.Equal(t, 145, got.AttendeeCount)
}

func TestMemoryStore_ReserveRSVP_ConcurrentNeverExceedsCapacity(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	e := newSmallEvent(t, s, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "0x" + string(rune('a'+i%26)) + time.Duration(i).String()
			if _, err := s.ReserveRSVP(ctx, e.ID, user, time.Now()); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	got, err := s.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.AttendeeCount)
}

func TestMemoryStore_CancelAndReactivate(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	e := newSmallEvent(t, s, 1)

	_, err := s.ReserveRSVP(ctx, e.ID, alice, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CancelRSVP(ctx, e.ID, alice))
	assert.ErrorIs(t, s.CancelRSVP(ctx, e.ID, alice), ErrNotFound)

	// the freed seat can be taken by someone else
	_, err = s.ReserveRSVP(ctx, e.ID, bob, time.Now())
	require.NoError(t, err)
	_, err = s.ReserveRSVP(ctx, e.ID, alice, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrEventAtCapacity)

	require.NoError(t, s.CancelRSVP(ctx, e.ID, bob))
	rsvp, err := s.ReserveRSVP(ctx, e.ID, alice, time.Now())
	require.NoError(t, err)
	assert.Equal(t, types.RSVPConfirmed, rsvp.Status)
}

func TestMemoryStore_RecordCheckIn(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	e := newSmallEvent(t, s, 10)
	now := time.Now().UTC()

	rec := CheckInRecord{Event: e, UserAddress: alice, QRCodeData: "qr", At: now, MirrorStamp: true}

	_, err := s.RecordCheckIn(ctx, rec)
	assert.ErrorIs(t, err, apperrors.ErrNoValidRSVP)

	_, err = s.ReserveRSVP(ctx, e.ID, alice, now)
	require.NoError(t, err)

	result, err := s.RecordCheckIn(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "Small Meetup Attendee", result.Stamp.Name)
	assert.Equal(t, models.DefaultXPReward, result.Stamp.XP)
	assert.Equal(t, int64(models.DefaultXPReward), result.Profile.XP)
	assert.Equal(t, 1, result.Profile.StampsCount)

	_, err = s.RecordCheckIn(ctx, rec)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCheckedIn)

	rsvp, err := s.GetRSVP(ctx, e.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, types.RSVPConfirmed, rsvp.Status)
	require.NotNil(t, rsvp.CheckInDate)

	stamps, err := s.ListUserStamps(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, stamps, 1)

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, types.JobAddStamp, jobs[0].Action)
	require.NotNil(t, jobs[0].StampID)
	assert.Equal(t, result.Stamp.ID, *jobs[0].StampID)

	stats, err := s.AttendanceCounts(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, 1, stats.CheckedIn)
	assert.Equal(t, int64(models.DefaultXPReward), stats.XPAwarded)
}

func TestMemoryStore_CancelledRSVPCannotCheckIn(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	e := newSmallEvent(t, s, 10)

	_, err := s.ReserveRSVP(ctx, e.ID, alice, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CancelRSVP(ctx, e.ID, alice))

	_, err = s.RecordCheckIn(ctx, CheckInRecord{Event: e, UserAddress: alice, At: time.Now()})
	assert.ErrorIs(t, err, apperrors.ErrNoValidRSVP)
}

func TestMemoryStore_DeleteEvent_OrganizerOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	e := newSmallEvent(t, s, 10)

	ok, err := s.DeleteEvent(ctx, e.ID, bob)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.DeleteEvent(ctx, e.ID, types.NormalizeAddress(alice))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.GetEvent(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_JobLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)

	require.NoError(t, s.EnqueueJob(ctx, types.JobMintPassport, alice, nil))

	jobs, err := s.ClaimJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Attempts)

	again, err := s.ClaimJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, s.MarkSubmitted(ctx, jobs[0], "0xabc"))
	require.NoError(t, s.FailJob(ctx, jobs[0], assert.AnError, 0, 3))

	retried, err := s.ClaimJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, retried, 1)
	require.NotNil(t, retried[0].TxHash)
	assert.Equal(t, "0xabc", *retried[0].TxHash)

	require.NoError(t, s.CompleteJob(ctx, retried[0], "0xabc"))
	assert.Equal(t, types.JobCompleted, s.Jobs()[0].Status)
}

func TestMemoryStore_FailJob_GivesUp(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)
	require.NoError(t, s.EnqueueJob(ctx, types.JobMintPassport, alice, nil))

	jobs, err := s.ClaimJobs(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.FailJob(ctx, jobs[0], assert.AnError, 0, 1))

	assert.Equal(t, types.JobFailed, s.Jobs()[0].Status)
	left, err := s.ClaimJobs(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestMemoryStore_Profiles(t *testing.T) {
	s := NewMemoryStore()
	ctx := testContext(t)

	_, err := s.GetProfile(ctx, alice)
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := s.EnsureProfile(ctx, alice, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level)
	assert.True(t, p.Preferences.PublicProfile)

	name := "alice.eth"
	p.ENSName = &name
	p.Preferences.PublicProfile = false
	require.NoError(t, s.UpdateProfile(ctx, p))

	got, err := s.GetProfile(ctx, types.NormalizeAddress(alice))
	require.NoError(t, err)
	require.NotNil(t, got.ENSName)
	assert.Equal(t, "alice.eth", *got.ENSName)
	assert.False(t, got.Preferences.PublicProfile)
}
