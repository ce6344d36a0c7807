package models

import (
	"time"

	"github.com/hellhack-ui/HoloPass/internal/types"
)

// Stamp is a collectible awarded for attending an event
type Stamp struct {
	ID          string       `json:"id" db:"id"`
	EventID     string       `json:"eventId" db:"event_id"`
	UserAddress string       `json:"userAddress" db:"user_address"`
	StampType   string       `json:"stampType" db:"stamp_type"`
	Name        string       `json:"name" db:"stamp_name"`
	Description string       `json:"description" db:"description"`
	Rarity      types.Rarity `json:"rarity" db:"rarity"`
	XP          int          `json:"xp" db:"xp"`
	Image       string       `json:"image" db:"stamp_image"`
	AwardedAt   time.Time    `json:"awardedAt" db:"awarded_at"`
	TxHash      *string      `json:"txHash,omitempty" db:"tx_hash"`
}

// NewEventStamp builds the stamp awarded for checking in to e.
func NewEventStamp(id string, e *Event, userAddress string, at time.Time) Stamp {
	reward := e.Rewards.Stamp
	return Stamp{
		ID:          id,
		EventID:     e.ID,
		UserAddress: types.NormalizeAddress(userAddress),
		StampType:   "event",
		Name:        reward.Name,
		Description: reward.Description,
		Rarity:      reward.Rarity,
		XP:          reward.XP,
		Image:       reward.Image,
		AwardedAt:   at,
	}
}

// StampJob is an outbox row for mirroring passports and stamps on chain
type StampJob struct {
	ID          string               `json:"id" db:"id"`
	Action      types.StampJobAction `json:"action" db:"action"`
	UserAddress string               `json:"userAddress" db:"user_address"`
	StampID     *string              `json:"stampId,omitempty" db:"stamp_id"`
	Status      types.StampJobStatus `json:"status" db:"status"`
	Attempts    int                  `json:"attempts" db:"attempts"`
	TxHash      *string              `json:"txHash,omitempty" db:"tx_hash"`
	LastError   *string              `json:"lastError,omitempty" db:"last_error"`
	CreatedAt   time.Time            `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time            `json:"updatedAt" db:"updated_at"`
}
