// Package types provides common type definitions for the HoloPass backend.
package types

import "strings"

// EventCategory represents the kind of event
type EventCategory string

const (
	CategoryConference EventCategory = "conference"
	CategoryMeetup     EventCategory = "meetup"
	CategoryWorkshop   EventCategory = "workshop"
	CategoryArt        EventCategory = "art"
	CategoryNetworking EventCategory = "networking"
	CategoryOther      EventCategory = "other"
)

// IsValid reports whether c is a known category
func (c EventCategory) IsValid() bool {
	switch c {
	case CategoryConference, CategoryMeetup, CategoryWorkshop, CategoryArt, CategoryNetworking, CategoryOther:
		return true
	}
	return false
}

// EventStatus represents the lifecycle state of an event
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// IsValid reports whether s is a known event status
func (s EventStatus) IsValid() bool {
	switch s {
	case EventDraft, EventPublished, EventOngoing, EventCompleted, EventCancelled:
		return true
	}
	return false
}

// RSVPStatus represents the state of an RSVP
type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "pending"
	RSVPConfirmed RSVPStatus = "confirmed"
	RSVPCancelled RSVPStatus = "cancelled"
	RSVPAttended  RSVPStatus = "attended"
)

// Rarity represents stamp rarity
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// IsValid reports whether r is a known rarity
func (r Rarity) IsValid() bool {
	return r == RarityCommon || r == RarityRare || r == RarityLegendary
}

// EventSource identifies where an event record came from
type EventSource string

const (
	SourceLocal      EventSource = "local"
	SourceDemo       EventSource = "demo"
	SourceEventbrite EventSource = "eventbrite"
)

// QRType is the purpose of a QR payload
type QRType string

const (
	QRHoloPass     QRType = "holopass"
	QREventCheckIn QRType = "event_checkin"
	QRStampClaim   QRType = "stamp_claim"
)

// IsValid reports whether t is a known QR type
func (t QRType) IsValid() bool {
	return t == QRHoloPass || t == QREventCheckIn || t == QRStampClaim
}

// StampJobAction is the on-chain operation a stamp job performs
type StampJobAction string

const (
	JobMintPassport StampJobAction = "mint"
	JobAddStamp     StampJobAction = "add_stamp"
)

// StampJobStatus represents the state of an on-chain job
type StampJobStatus string

const (
	JobQueued     StampJobStatus = "queued"
	JobInProgress StampJobStatus = "in_progress"
	JobSubmitted  StampJobStatus = "submitted"
	JobCompleted  StampJobStatus = "completed"
	JobFailed     StampJobStatus = "failed"
)

// Supported chain ids for the HoloPass contract
const (
	ChainEthereum int64 = 1
	ChainOptimism int64 = 10
	ChainPolygon  int64 = 137
	ChainBase     int64 = 8453
	ChainArbitrum int64 = 42161
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NormalizeAddress lowercases and trims a wallet address for storage and comparison
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsHexAddress reports whether s is a 0x-prefixed 20-byte hex address
func IsHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	for _, c := range s[2:] {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isHex {
			return false
		}
	}
	return true
}

// LevelForXP returns the level for the given XP, never below the previous level.
func LevelForXP(previous int, xp int64) int {
	level := int(xp/500) + 1
	if level < previous {
		return previous
	}
	return level
}
