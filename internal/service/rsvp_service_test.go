package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/qr"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

func newRSVPService(store *storage.MemoryStore, analytics AttendanceAnalytics, signer *qr.Signer) (*RSVPService, *EventService) {
	events := NewEventService(store, nil, nil)
	return NewRSVPService(events, store, analytics, signer), events
}

func createEvent(t *testing.T, events *EventService, capacity int) *models.Event {
	t.Helper()
	event, err := events.Create(context.Background(), alice, models.EventInput{
		Title:    strPtr("Rollup Night"),
		Capacity: intPtr(capacity),
	})
	require.NoError(t, err)
	return event
}

func TestRSVPService_Create(t *testing.T) {
	analytics := &mockAnalytics{}
	svc, _ := newRSVPService(newDemoStore(), analytics, nil)

	rsvp, err := svc.Create(context.Background(), "demo-1", "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB", "")
	require.NoError(t, err)

	assert.Equal(t, "demo-1", rsvp.EventID)
	assert.Equal(t, bob, rsvp.UserAddress)
	assert.Equal(t, types.RSVPConfirmed, rsvp.Status)
	assert.True(t, strings.HasPrefix(rsvp.QRCode, "holopass-rsvp-demo-1-"+bob+"-"), rsvp.QRCode)
	assert.Equal(t, []types.RSVPStatus{types.RSVPConfirmed}, analytics.rsvps)
}

func TestRSVPService_CreateValidation(t *testing.T) {
	svc, _ := newRSVPService(newDemoStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "demo-1", "", "")
	require.Error(t, err)
	assert.Equal(t, "User address is required", apperrors.Categorize(err).Message)
	assert.Equal(t, 400, apperrors.GetHTTPStatusCode(err))

	_, err = svc.Create(ctx, "missing", bob, "")
	require.Error(t, err)
	assert.Equal(t, "Event not found", apperrors.Categorize(err).Message)
	assert.Equal(t, apperrors.CodeEventNotFound, apperrors.Categorize(err).Code)
	assert.Equal(t, 400, apperrors.GetHTTPStatusCode(err))

	_, err = svc.Create(ctx, "demo-1", bob, alice)
	assert.Equal(t, 403, apperrors.GetHTTPStatusCode(err))
}

func TestRSVPService_DuplicateRejected(t *testing.T) {
	svc, _ := newRSVPService(newDemoStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "demo-1", bob, "")
	require.ErrorIs(t, err, apperrors.ErrAlreadyRSVPd)
	assert.Equal(t, "Already RSVP'd to this event", apperrors.Categorize(err).Message)
	assert.Equal(t, 400, apperrors.GetHTTPStatusCode(err))
}

func TestRSVPService_CapacityEnforced(t *testing.T) {
	svc, events := newRSVPService(storage.NewMemoryStore(), nil, nil)
	event := createEvent(t, events, 1)
	ctx := context.Background()

	_, err := svc.Create(ctx, event.ID, alice, "")
	require.NoError(t, err)

	_, err = svc.Create(ctx, event.ID, bob, "")
	require.ErrorIs(t, err, apperrors.ErrEventAtCapacity)
	assert.Equal(t, "Event is at capacity", apperrors.Categorize(err).Message)
}

func TestRSVPService_ConcurrentRSVPsNeverExceedCapacity(t *testing.T) {
	store := storage.NewMemoryStore()
	svc, events := newRSVPService(store, nil, nil)
	event := createEvent(t, events, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("0x%040x", i+1)
			if _, err := svc.Create(context.Background(), event.ID, user, ""); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	stats, err := store.AttendanceCounts(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Confirmed)
}

func TestRSVPService_CancelThenRSVPAgain(t *testing.T) {
	svc, events := newRSVPService(storage.NewMemoryStore(), nil, nil)
	event := createEvent(t, events, 1)
	ctx := context.Background()

	_, err := svc.Create(ctx, event.ID, bob, "")
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, event.ID, bob, ""))

	// the freed seat is available again
	rsvp, err := svc.Create(ctx, event.ID, bob, "")
	require.NoError(t, err)
	assert.Equal(t, types.RSVPConfirmed, rsvp.Status)

	err = svc.Cancel(ctx, event.ID, alice, "")
	require.Error(t, err)
	assert.Equal(t, "RSVP not found", apperrors.Categorize(err).Message)
	assert.Equal(t, 404, apperrors.GetHTTPStatusCode(err))
}

func TestRSVPService_ClosedEventRejectsRSVP(t *testing.T) {
	svc, events := newRSVPService(storage.NewMemoryStore(), nil, nil)
	draft := types.EventDraft
	event, err := events.Create(context.Background(), alice, models.EventInput{
		Title:  strPtr("Private preview"),
		Status: &draft,
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), event.ID, bob, "")
	assert.ErrorIs(t, err, apperrors.ErrEventNotOpen)
}

func TestRSVPService_ExternalEventImportedOnFirstRSVP(t *testing.T) {
	store := storage.NewMemoryStore()
	catalog := &mockCatalog{events: []*models.Event{externalEventNow("eventbrite-7")}}
	events := NewEventService(store, catalog, nil)
	svc := NewRSVPService(events, store, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "eventbrite-7", alice, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "eventbrite-7", bob, "")
	require.NoError(t, err)

	// capacity 2 now applies to the imported copy
	_, err = svc.Create(ctx, "eventbrite-7", "0xcccccccccccccccccccccccccccccccccccccccc", "")
	assert.ErrorIs(t, err, apperrors.ErrEventAtCapacity)
}

func TestRSVPService_ListForUser(t *testing.T) {
	svc, _ := newRSVPService(newDemoStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "demo-2", bob, "")
	require.NoError(t, err)

	rsvps, err := svc.ListForUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, rsvps, 2)
	for _, r := range rsvps {
		assert.Equal(t, models.RSVPTokenBase(r.EventID, bob), r.QRCode)
	}
}

func TestRSVPService_QRCode(t *testing.T) {
	signer := qr.NewSigner("test-secret")
	svc, _ := newRSVPService(newDemoStore(), nil, signer)
	ctx := context.Background()

	_, err := svc.QRCode(ctx, "demo-1", bob, "")
	require.ErrorIs(t, err, apperrors.ErrNoValidRSVP)

	_, err = svc.Create(ctx, "demo-1", bob, "")
	require.NoError(t, err)

	code, err := svc.QRCode(ctx, "demo-1", bob, "")
	require.NoError(t, err)

	assert.Equal(t, types.QREventCheckIn, code.Payload.Type)
	assert.Equal(t, "demo-1", code.Payload.EventID)
	assert.True(t, signer.Verify(code.Payload))
	assert.True(t, strings.HasPrefix(code.Image, "data:image/png;base64,"))

	decoded, err := qr.Decode(code.QRCodeData)
	require.NoError(t, err)
	assert.Equal(t, code.Payload, *decoded)
}
