package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/types"
)

// rsvpTokenPrefix starts the plain-text check-in token handed out with an RSVP
const rsvpTokenPrefix = "holopass-rsvp-"

// RSVP represents a user's intent to attend an event
type RSVP struct {
	ID          string           `json:"id" db:"id"`
	EventID     string           `json:"eventId" db:"event_id"`
	UserAddress string           `json:"userAddress" db:"user_address"`
	Status      types.RSVPStatus `json:"status" db:"status"`
	RSVPDate    time.Time        `json:"rsvpDate" db:"created_at"`
	CheckInDate *time.Time       `json:"checkInDate,omitempty" db:"checked_in_at"`
	QRCode      string           `json:"qrCode,omitempty" db:"-"`
	Notes       string           `json:"notes,omitempty" db:"notes"`
}

// RSVPToken builds the plain check-in token for (event, user) issued at t.
func RSVPToken(eventID, userAddress string, t time.Time) string {
	return fmt.Sprintf("%s%s-%s-%d", rsvpTokenPrefix, eventID, types.NormalizeAddress(userAddress), t.UnixMilli())
}

// MatchesRSVPToken reports whether raw is a token issued for (event, user).
func MatchesRSVPToken(raw, eventID, userAddress string) bool {
	prefix := RSVPTokenBase(eventID, userAddress)
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == strings.ToLower(prefix) {
		return true
	}
	return strings.HasPrefix(raw, strings.ToLower(prefix)+"-")
}

// CheckIn represents recorded attendance
type CheckIn struct {
	ID           string       `json:"id" db:"id"`
	EventID      string       `json:"eventId" db:"event_id"`
	UserAddress  string       `json:"userAddress" db:"user_address"`
	CheckInTime  time.Time    `json:"checkInTime" db:"checked_in_at"`
	QRCodeData   string       `json:"qrCodeData" db:"qr_code_data"`
	StampAwarded bool         `json:"stampAwarded" db:"stamp_awarded"`
	Location     *Coordinates `json:"location,omitempty" db:"-"`
}

// CheckInResult is everything a successful check-in produced
type CheckInResult struct {
	CheckIn CheckIn     `json:"checkIn"`
	Stamp   Stamp       `json:"stamp"`
	Profile UserProfile `json:"profile"`
}

// RSVPTokenBase is the token form without an issue time, used when listing RSVPs.
func RSVPTokenBase(eventID, userAddress string) string {
	return fmt.Sprintf("%s%s-%s", rsvpTokenPrefix, eventID, types.NormalizeAddress(userAddress))
}

// AttendanceStats summarizes attendance for one event
type AttendanceStats struct {
	EventID       string     `json:"eventId"`
	Capacity      int        `json:"capacity"`
	Confirmed     int        `json:"confirmed"`
	Cancelled     int        `json:"cancelled"`
	CheckedIn     int        `json:"checkedIn"`
	XPAwarded     int64      `json:"xpAwarded"`
	LastCheckInAt *time.Time `json:"lastCheckInAt,omitempty"`
	Source        string     `json:"source"` // store or analytics
}
