package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hellhack-ui/HoloPass/internal/circuitbreaker"
	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

const (
	// DefaultEventbriteBaseURL is the public Eventbrite API root
	DefaultEventbriteBaseURL = "https://www.eventbriteapi.com/v3"
	// EventbriteIDPrefix marks event ids that belong to the external catalog
	EventbriteIDPrefix = "eventbrite-"

	eventbriteOrganizerName = "Eventbrite Organizer"
	eventbriteSearchCity    = "San Francisco"
)

// EventbriteClient lists events from the Eventbrite API
type EventbriteClient struct {
	token   string
	baseURL string
	orgID   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker

	maxRetries int
	baseDelay  time.Duration
}

// EventbriteOption customizes an EventbriteClient
type EventbriteOption func(*EventbriteClient)

// WithEventbriteHTTPClient replaces the HTTP client
func WithEventbriteHTTPClient(c *http.Client) EventbriteOption {
	return func(e *EventbriteClient) { e.client = c }
}

// WithEventbriteBackoff sets the retry count and base delay for 429 and network errors
func WithEventbriteBackoff(maxRetries int, baseDelay time.Duration) EventbriteOption {
	return func(e *EventbriteClient) {
		e.maxRetries = maxRetries
		e.baseDelay = baseDelay
	}
}

// NewEventbriteClient creates a client. An empty orgID searches by location instead
// of listing one organization's events.
func NewEventbriteClient(token, baseURL, orgID string, timeout time.Duration, opts ...EventbriteOption) *EventbriteClient {
	if baseURL == "" {
		baseURL = DefaultEventbriteBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &EventbriteClient{
		token:      token,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		orgID:      orgID,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		breaker:    circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("eventbrite")),
		maxRetries: 3,
		baseDelay:  time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsExternalID reports whether id names an Eventbrite event
func IsExternalID(id string) bool {
	return strings.HasPrefix(id, EventbriteIDPrefix)
}

type eventbriteText struct {
	Text string `json:"text"`
}

type eventbriteTime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

type eventbriteVenue struct {
	Name    string `json:"name"`
	Address struct {
		Address1 string `json:"address_1"`
		City     string `json:"city"`
		Region   string `json:"region"`
		Country  string `json:"country"`
	} `json:"address"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// EventbriteEvent is the subset of the Eventbrite event object HoloPass reads
type EventbriteEvent struct {
	ID          string           `json:"id"`
	Name        eventbriteText   `json:"name"`
	Description eventbriteText   `json:"description"`
	Start       eventbriteTime   `json:"start"`
	End         eventbriteTime   `json:"end"`
	Venue       *eventbriteVenue `json:"venue,omitempty"`
	Logo        *struct {
		URL string `json:"url"`
	} `json:"logo,omitempty"`
	Capacity int    `json:"capacity"`
	IsFree   bool   `json:"is_free"`
	URL      string `json:"url"`
}

type eventbriteListResponse struct {
	Events     []EventbriteEvent `json:"events"`
	Pagination struct {
		PageNumber  int  `json:"page_number"`
		PageCount   int  `json:"page_count"`
		ObjectCount int  `json:"object_count"`
		HasMore     bool `json:"has_more_items"`
	} `json:"pagination"`
}

// ListEvents fetches the first page of the configured catalog
func (c *EventbriteClient) ListEvents(ctx context.Context) ([]*models.Event, error) {
	var endpoint string
	if c.orgID != "" {
		endpoint = fmt.Sprintf("/organizations/%s/events/?expand=venue,organizer&status=live", url.PathEscape(c.orgID))
	} else {
		endpoint = "/events/search/?expand=venue,organizer&location.address=" + url.QueryEscape(eventbriteSearchCity)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp eventbriteListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewProviderError("eventbrite", fmt.Errorf("failed to parse events: %w", err))
	}

	now := time.Now().UTC()
	events := make([]*models.Event, 0, len(resp.Events))
	for i := range resp.Events {
		events = append(events, TransformEventbriteEvent(&resp.Events[i], now))
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"count": len(events),
		"total": resp.Pagination.ObjectCount,
	}).Debug("Fetched Eventbrite events")
	return events, nil
}

// GetEvent fetches one event by HoloPass id (with or without the eventbrite- prefix)
func (c *EventbriteClient) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	rawID := strings.TrimPrefix(id, EventbriteIDPrefix)
	body, err := c.get(ctx, fmt.Sprintf("/events/%s/?expand=venue,organizer", url.PathEscape(rawID)))
	if err != nil {
		return nil, err
	}

	var ev EventbriteEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, apperrors.NewProviderError("eventbrite", fmt.Errorf("failed to parse event: %w", err))
	}
	return TransformEventbriteEvent(&ev, time.Now().UTC()), nil
}

func (c *EventbriteClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.doRequest(ctx, c.baseURL+endpoint)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return nil, apperrors.NewServiceUnavailableError("eventbrite")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, apperrors.NewProviderTimeoutError("eventbrite", err)
	}
	return body, err
}

// doRequest performs the GET, retrying network errors and 429 responses.
// A Retry-After header overrides the exponential delay.
func (c *EventbriteClient) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	logger := logging.FromContext(ctx).WithField("provider", "eventbrite")

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = apperrors.NewProviderError("eventbrite", err)
			if attempt < c.maxRetries {
				logger.WithError(err).Warnf("Request failed (attempt %d/%d)", attempt+1, c.maxRetries+1)
				if !c.sleep(ctx, c.backoff(attempt, 30*time.Second)) {
					return nil, ctx.Err()
				}
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, apperrors.NewProviderError("eventbrite", fmt.Errorf("failed to read response: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = apperrors.NewProviderRateLimitError("eventbrite")
			if attempt == c.maxRetries {
				continue
			}
			delay := c.backoff(attempt, 60*time.Second)
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			logger.Warnf("Rate limited (attempt %d/%d), retrying in %v", attempt+1, c.maxRetries+1, delay)
			if !c.sleep(ctx, delay) {
				return nil, ctx.Err()
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, apperrors.NewNotFoundError("Event", fullURL)
		case resp.StatusCode != http.StatusOK:
			return nil, apperrors.NewProviderError("eventbrite", fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200)))
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *EventbriteClient) backoff(attempt int, ceiling time.Duration) time.Duration {
	delay := c.baseDelay * time.Duration(1<<uint(attempt))
	if delay > ceiling {
		delay = ceiling
	}
	return delay
}

func (c *EventbriteClient) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// TransformEventbriteEvent maps an Eventbrite event onto the HoloPass model
func TransformEventbriteEvent(ev *EventbriteEvent, now time.Time) *models.Event {
	id := EventbriteIDPrefix + ev.ID
	title := ev.Name.Text

	location := models.Location{Name: "Online Event", Address: "Online"}
	if ev.Venue != nil {
		location.Name = ev.Venue.Name
		location.Address = fmt.Sprintf("%s, %s, %s", ev.Venue.Address.Address1, ev.Venue.Address.City, ev.Venue.Address.Region)
		lat, latErr := strconv.ParseFloat(ev.Venue.Latitude, 64)
		lng, lngErr := strconv.ParseFloat(ev.Venue.Longitude, 64)
		if latErr == nil && lngErr == nil {
			location.Coordinates = &models.Coordinates{Lat: lat, Lng: lng}
		}
	}

	image := models.DefaultEventImage
	if ev.Logo != nil && ev.Logo.URL != "" {
		image = ev.Logo.URL
	}

	capacity := ev.Capacity
	if capacity <= 0 {
		capacity = models.DefaultCapacity
	}

	return &models.Event{
		ID:          id,
		Title:       title,
		Description: ev.Description.Text,
		Location:    location,
		StartDate:   parseEventbriteTime(ev.Start.UTC),
		EndDate:     parseEventbriteTime(ev.End.UTC),
		Image:       image,
		Category:    types.CategoryConference,
		Capacity:    capacity,
		Price:       models.Price{Amount: 0, Currency: "USD", Free: true},
		Organizer: models.Organizer{
			Address: models.ZeroAddress,
			Name:    eventbriteOrganizerName,
			Avatar:  models.DefaultAvatar,
		},
		Rewards: models.Rewards{
			Stamp: models.StampReward{
				ID:          "stamp-" + id,
				Name:        title + " Attendee",
				Description: "Attended " + title,
				Rarity:      types.RarityCommon,
				XP:          models.DefaultXPReward,
				Image:       models.DefaultStampImage,
			},
		},
		Status:      types.EventPublished,
		Source:      types.SourceEventbrite,
		ExternalURL: ev.URL,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tags:        []string{},
	}
}

func parseEventbriteTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
