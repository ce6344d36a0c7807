package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

var errUnavailable = errors.New("upstream unavailable")

func newDemoStore() *storage.MemoryStore {
	return storage.NewDemoStore(time.Now())
}

// Mock external catalog
type mockCatalog struct {
	events []*models.Event
	err    error
	calls  int
}

func (m *mockCatalog) ListEvents(ctx context.Context) ([]*models.Event, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*models.Event, 0, len(m.events))
	for _, e := range m.events {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockCatalog) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, e := range m.events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("Event", id)
}

func externalEvent(id, title string, start time.Time) *models.Event {
	e := &models.Event{
		ID:        id,
		Title:     title,
		StartDate: start,
		EndDate:   start.Add(time.Hour),
		Category:  types.CategoryMeetup,
		Capacity:  2,
		Location:  models.Location{Name: "Online Event", Address: "Online"},
		Source:    types.SourceEventbrite,
		Status:    types.EventPublished,
	}
	e.ApplyDefaults()
	return e
}

// Mock analytics sink
type mockAnalytics struct {
	mu       sync.Mutex
	rsvps    []types.RSVPStatus
	checkIns []models.Stamp
	stats    *models.AttendanceStats
	err      error
}

func (m *mockAnalytics) RecordRSVP(ctx context.Context, eventID, userAddress string, status types.RSVPStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rsvps = append(m.rsvps, status)
	return m.err
}

func (m *mockAnalytics) RecordCheckIn(ctx context.Context, stamp models.Stamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkIns = append(m.checkIns, stamp)
	return m.err
}

func (m *mockAnalytics) EventStats(ctx context.Context, eventID string) (*models.AttendanceStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	cp := *m.stats
	return &cp, nil
}

// Mock HoloPass contract reader
type mockReader struct {
	balance  int64
	tokenID  int64
	uri      string
	stamps   []int64
	err      error
	uriErr   error
	stampErr error
}

func (m *mockReader) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	if m.err != nil {
		return nil, m.err
	}
	return big.NewInt(m.balance), nil
}

func (m *mockReader) TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index *big.Int) (*big.Int, error) {
	return big.NewInt(m.tokenID), nil
}

func (m *mockReader) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	if m.uriErr != nil {
		return "", m.uriErr
	}
	return m.uri, nil
}

func (m *mockReader) GetStamps(ctx context.Context, tokenID *big.Int) ([]*big.Int, error) {
	if m.stampErr != nil {
		return nil, m.stampErr
	}
	out := make([]*big.Int, 0, len(m.stamps))
	for _, s := range m.stamps {
		out = append(out, big.NewInt(s))
	}
	return out, nil
}

// Mock metadata source
type mockMetadata struct {
	meta *models.NFTMetadata
	err  error
	uris []string
}

func (m *mockMetadata) Fetch(ctx context.Context, chainID int64, tokenID, uri string) (*models.NFTMetadata, error) {
	m.uris = append(m.uris, uri)
	if m.err != nil {
		return nil, m.err
	}
	return m.meta, nil
}

func externalEventNow(id string) *models.Event {
	return externalEvent(id, "Solidity Study Group", time.Now())
}

func timeNow() time.Time { return time.Now().UTC() }
