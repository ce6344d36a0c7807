// Package models provides data models for the HoloPass backend.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/hellhack-ui/HoloPass/internal/types"
)

// Defaults applied when a stored or external event leaves a field empty
const (
	DefaultEventImage     = "/placeholder.svg?height=400&width=600"
	DefaultStampImage     = "/placeholder.svg?height=60&width=60"
	DefaultAvatar         = "/placeholder.svg?height=40&width=40"
	DefaultCapacity       = 100
	DefaultXPReward       = 50
	ZeroAddress           = "0x0000000000000000000000000000000000000000"
	DefaultOrganizerName  = "HoloPass"
	DefaultOrganizerImage = "/holopass-logo.png"
)

// Coordinates is a latitude/longitude pair
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location describes where an event takes place
type Location struct {
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Price is the ticket price of an event
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"` // ETH, MATIC or USD
	Free     bool    `json:"free"`
}

// Organizer identifies the wallet that owns an event
type Organizer struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar,omitempty"`
}

// Requirements gate who may RSVP
type Requirements struct {
	MinLevel       *int     `json:"minLevel,omitempty"`
	RequiredStamps []string `json:"requiredStamps,omitempty"`
	WhitelistOnly  *bool    `json:"whitelistOnly,omitempty"`
}

// StampReward is the stamp definition awarded on check-in
type StampReward struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Rarity      types.Rarity `json:"rarity"`
	XP          int          `json:"xp"`
	Image       string       `json:"image"`
}

// Rewards groups everything an attendee earns
type Rewards struct {
	Stamp             StampReward `json:"stamp"`
	AdditionalRewards []string    `json:"additionalRewards,omitempty"`
}

// SocialLinks are optional event links
type SocialLinks struct {
	Website string `json:"website,omitempty"`
	Twitter string `json:"twitter,omitempty"`
	Discord string `json:"discord,omitempty"`
}

// Event represents an event in the catalog
type Event struct {
	ID            string              `json:"id" db:"id"`
	Title         string              `json:"title" db:"title"`
	Description   string              `json:"description" db:"description"`
	Location      Location            `json:"location" db:"location"`
	StartDate     time.Time           `json:"startDate" db:"start_date"`
	EndDate       time.Time           `json:"endDate" db:"end_date"`
	Image         string              `json:"image" db:"image_url"`
	Category      types.EventCategory `json:"category" db:"category"`
	Capacity      int                 `json:"capacity" db:"max_attendees"`
	AttendeeCount int                 `json:"attendeeCount" db:"-"`
	Price         Price               `json:"price" db:"price"`
	Organizer     Organizer           `json:"organizer" db:"organizer_address"`
	Requirements  Requirements        `json:"requirements" db:"requirements"`
	Rewards       Rewards             `json:"rewards" db:"-"`
	Status        types.EventStatus   `json:"status" db:"status"`
	Source        types.EventSource   `json:"source" db:"source"`
	ExternalURL   string              `json:"externalUrl,omitempty" db:"external_url"`
	CreatedAt     time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time           `json:"updatedAt" db:"updated_at"`
	Tags          []string            `json:"tags" db:"tags"`
	SocialLinks   SocialLinks         `json:"socialLinks" db:"social_links"`
}

// ApplyDefaults fills the fields a stored row may leave empty.
func (e *Event) ApplyDefaults() {
	if e.Image == "" {
		e.Image = DefaultEventImage
	}
	if e.Category == "" {
		e.Category = types.CategoryConference
	}
	if e.Capacity <= 0 {
		e.Capacity = DefaultCapacity
	}
	if e.Price.Currency == "" {
		e.Price.Currency = "USD"
	}
	if e.Price.Amount == 0 {
		e.Price.Free = true
	}
	if e.Organizer.Address == "" {
		e.Organizer.Address = ZeroAddress
	}
	if e.Organizer.Name == "" {
		e.Organizer.Name = DefaultOrganizerName
		if e.Organizer.Avatar == "" {
			e.Organizer.Avatar = DefaultOrganizerImage
		}
	}
	if e.Status == "" {
		e.Status = types.EventPublished
	}
	if e.Source == "" {
		e.Source = types.SourceLocal
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}

	stamp := &e.Rewards.Stamp
	if stamp.ID == "" {
		stamp.ID = "stamp-" + e.ID
	}
	if stamp.Name == "" {
		stamp.Name = fmt.Sprintf("%s Attendee", e.Title)
	}
	if stamp.Description == "" {
		stamp.Description = fmt.Sprintf("Attended %s", e.Title)
	}
	if stamp.Rarity == "" {
		stamp.Rarity = types.RarityCommon
	}
	if stamp.XP <= 0 {
		stamp.XP = DefaultXPReward
	}
	if stamp.Image == "" {
		stamp.Image = DefaultStampImage
	}
}

// IsFull reports whether confirmed RSVPs have reached capacity.
func (e *Event) IsFull(confirmed int) bool {
	return e.Capacity > 0 && confirmed >= e.Capacity
}

// OpenForRSVP reports whether new RSVPs are accepted in the event's current status.
func (e *Event) OpenForRSVP() bool {
	return e.Status == types.EventPublished || e.Status == types.EventOngoing
}

// EventFilter narrows an event listing
type EventFilter struct {
	Category string
	Search   string
	Location string
}

// Normalize trims the filter, lower-cases the category and maps "all" to no filter.
func (f EventFilter) Normalize() EventFilter {
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if f.Category == "all" {
		f.Category = ""
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Location = strings.TrimSpace(f.Location)
	return f
}

// Matches applies the filter in memory. Search matches title or description and
// location matches name or address, both case-insensitively.
func (f EventFilter) Matches(e *Event) bool {
	if f.Category != "" && string(e.Category) != f.Category {
		return false
	}
	if f.Search != "" {
		term := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Title), term) &&
			!strings.Contains(strings.ToLower(e.Description), term) {
			return false
		}
	}
	if f.Location != "" {
		term := strings.ToLower(f.Location)
		if !strings.Contains(strings.ToLower(e.Location.Name), term) &&
			!strings.Contains(strings.ToLower(e.Location.Address), term) {
			return false
		}
	}
	return true
}

// CacheKey renders the filter for cache key generation
func (f EventFilter) CacheKey() string {
	return fmt.Sprintf("category=%s&search=%s&location=%s", f.Category, f.Search, f.Location)
}

// EventInput carries the mutable fields of an event for create and update.
// Pointer fields distinguish "unset" from zero on update.
type EventInput struct {
	Title        *string              `json:"title,omitempty"`
	Description  *string              `json:"description,omitempty"`
	Location     *Location            `json:"location,omitempty"`
	StartDate    *time.Time           `json:"startDate,omitempty"`
	EndDate      *time.Time           `json:"endDate,omitempty"`
	Image        *string              `json:"image,omitempty"`
	Category     *types.EventCategory `json:"category,omitempty"`
	Capacity     *int                 `json:"capacity,omitempty"`
	Price        *Price               `json:"price,omitempty"`
	Organizer    *Organizer           `json:"organizer,omitempty"`
	Requirements *Requirements        `json:"requirements,omitempty"`
	Rewards      *Rewards             `json:"rewards,omitempty"`
	Status       *types.EventStatus   `json:"status,omitempty"`
	Tags         []string             `json:"tags,omitempty"`
	SocialLinks  *SocialLinks         `json:"socialLinks,omitempty"`
}

// Apply copies every set field of in onto e.
func (in *EventInput) Apply(e *Event) {
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.StartDate != nil {
		e.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		e.EndDate = *in.EndDate
	}
	if in.Image != nil {
		e.Image = *in.Image
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.Capacity != nil {
		e.Capacity = *in.Capacity
	}
	if in.Price != nil {
		e.Price = *in.Price
	}
	if in.Organizer != nil {
		// The owning address is immutable once set.
		addr := e.Organizer.Address
		e.Organizer = *in.Organizer
		if addr != "" {
			e.Organizer.Address = addr
		}
	}
	if in.Requirements != nil {
		e.Requirements = *in.Requirements
	}
	if in.Rewards != nil {
		e.Rewards = *in.Rewards
	}
	if in.Status != nil {
		e.Status = *in.Status
	}
	if in.Tags != nil {
		e.Tags = in.Tags
	}
	if in.SocialLinks != nil {
		e.SocialLinks = *in.SocialLinks
	}
}
