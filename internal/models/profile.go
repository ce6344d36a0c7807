package models

import (
	"time"

	"github.com/hellhack-ui/HoloPass/internal/types"
)

// Preferences are user-controlled profile flags
type Preferences struct {
	Notifications     bool `json:"notifications"`
	PublicProfile     bool `json:"publicProfile"`
	ShareAchievements bool `json:"shareAchievements"`
}

// UserProfile is the server-side record of a wallet's progress
type UserProfile struct {
	Address     string      `json:"address" db:"address"`
	ENSName     *string     `json:"ensName,omitempty" db:"ens_name"`
	Avatar      *string     `json:"avatar,omitempty" db:"avatar"`
	Level       int         `json:"level" db:"level"`
	XP          int64       `json:"xp" db:"xp"`
	StampsCount int         `json:"stampsCount" db:"stamps_count"`
	JoinedAt    time.Time   `json:"joinedAt" db:"joined_at"`
	LastActive  time.Time   `json:"lastActive" db:"last_active"`
	Preferences Preferences `json:"preferences" db:"preferences"`
}

// NewUserProfile returns the profile a wallet starts with
func NewUserProfile(address string, now time.Time) UserProfile {
	return UserProfile{
		Address:    types.NormalizeAddress(address),
		Level:      1,
		JoinedAt:   now,
		LastActive: now,
		Preferences: Preferences{
			Notifications:     true,
			PublicProfile:     true,
			ShareAchievements: true,
		},
	}
}

// AwardStamp adds a stamp's XP and recomputes the level
func (p *UserProfile) AwardStamp(xp int, now time.Time) {
	p.XP += int64(xp)
	p.StampsCount++
	p.Level = types.LevelForXP(p.Level, p.XP)
	p.LastActive = now
}

// ProfileUpdate carries the user-editable profile fields
type ProfileUpdate struct {
	ENSName     *string      `json:"ensName,omitempty"`
	Avatar      *string      `json:"avatar,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
}
