package service

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// Repository interfaces for dependency injection. storage.EventRepository and
// friends implement them against Postgres, storage.MemoryStore implements all
// of them in process.

// EventRepository interface for event data operations
type EventRepository interface {
	ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	ImportEvent(ctx context.Context, event *models.Event) error
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id, organizer string) (bool, error)
}

// AttendanceRepository interface for RSVP, check-in and stamp operations
type AttendanceRepository interface {
	ReserveRSVP(ctx context.Context, eventID, userAddress string, at time.Time) (*models.RSVP, error)
	CancelRSVP(ctx context.Context, eventID, userAddress string) error
	GetRSVP(ctx context.Context, eventID, userAddress string) (*models.RSVP, error)
	ListUserRSVPs(ctx context.Context, userAddress string) ([]*models.RSVP, error)
	RecordCheckIn(ctx context.Context, rec storage.CheckInRecord) (*models.CheckInResult, error)
	ListUserCheckIns(ctx context.Context, userAddress string) ([]*models.CheckIn, error)
	ListUserStamps(ctx context.Context, userAddress string) ([]*models.Stamp, error)
	AttendanceCounts(ctx context.Context, eventID string) (*models.AttendanceStats, error)
}

// ProfileRepository interface for user profile operations
type ProfileRepository interface {
	GetProfile(ctx context.Context, address string) (*models.UserProfile, error)
	EnsureProfile(ctx context.Context, address string, now time.Time) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, profile *models.UserProfile) error
}

// JobQueue accepts on-chain mirroring work for the stamp worker
type JobQueue interface {
	EnqueueJob(ctx context.Context, action types.StampJobAction, userAddress string, stampID *string) error
}

// AttendanceAnalytics records attendance facts outside the transactional store.
// storage.AnalyticsRepository implements it on ClickHouse.
type AttendanceAnalytics interface {
	RecordRSVP(ctx context.Context, eventID, userAddress string, status types.RSVPStatus, at time.Time) error
	RecordCheckIn(ctx context.Context, stamp models.Stamp) error
	EventStats(ctx context.Context, eventID string) (*models.AttendanceStats, error)
}

// EventCatalog is an external event source such as Eventbrite
type EventCatalog interface {
	ListEvents(ctx context.Context) ([]*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// PassportReader reads the HoloPass contract. chain.HoloPassContract implements it.
type PassportReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index *big.Int) (*big.Int, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)
	GetStamps(ctx context.Context, tokenID *big.Int) ([]*big.Int, error)
}

// MetadataSource loads token metadata. chain.MetadataFetcher implements it.
type MetadataSource interface {
	Fetch(ctx context.Context, chainID int64, tokenID, uri string) (*models.NFTMetadata, error)
}
