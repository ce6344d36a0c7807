package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hellhack-ui/HoloPass/internal/adapter"
	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/logging"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/storage"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// externalListKey caches the raw external catalog, shared by every filter
var externalListKey = storage.GenerateCacheKey(storage.CacheKeyExternal, "list")

// EventService handles the event catalog: local events plus, when configured,
// an external catalog merged into listings
type EventService struct {
	events  EventRepository
	catalog EventCatalog
	cache   *storage.CacheService
	now     func() time.Time
}

// NewEventService creates a new event service. catalog and cache may be nil.
func NewEventService(events EventRepository, catalog EventCatalog, cache *storage.CacheService) *EventService {
	return &EventService{
		events:  events,
		catalog: catalog,
		cache:   cache,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// List returns events matching filter ordered by start date
func (s *EventService) List(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	filter = filter.Normalize()
	cacheKey := storage.EventListKey(filter.CacheKey())

	var cached []*models.Event
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list events", err)
	}

	if s.catalog != nil {
		seen := make(map[string]bool, len(events))
		for _, e := range events {
			seen[e.ID] = true
		}
		for _, e := range s.externalEvents(ctx) {
			if !seen[e.ID] && filter.Matches(e) {
				events = append(events, e)
			}
		}
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].StartDate.Before(events[j].StartDate)
		})
	}

	if err := s.cache.Set(ctx, cacheKey, events); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache event list")
	}
	return events, nil
}

// externalEvents returns the external catalog, or nothing if it is unreachable
func (s *EventService) externalEvents(ctx context.Context) []*models.Event {
	var events []*models.Event
	if hit, err := s.cache.Get(ctx, externalListKey, &events); err == nil && hit {
		return events
	}

	events, err := s.catalog.ListEvents(ctx)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("External event catalog unavailable, serving local events only")
		return nil
	}
	if err := s.cache.Set(ctx, externalListKey, events); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache external events")
	}
	return events
}

// Get returns one event, looking in the external catalog for external ids not
// yet imported
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	var cached models.Event
	if hit, err := s.cache.Get(ctx, storage.EventKey(id), &cached); err == nil && hit {
		return &cached, nil
	}

	event, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, storage.EventKey(id), event); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to cache event")
	}
	return event, nil
}

func (s *EventService) lookup(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewDatabaseError("get event", err)
	}
	if s.catalog == nil || !adapter.IsExternalID(id) {
		return nil, apperrors.NewNotFoundError("Event", id)
	}

	event, err = s.catalog.GetEvent(ctx, id)
	if err != nil {
		var catErr *apperrors.CategorizedError
		if errors.As(err, &catErr) && catErr.Category == apperrors.CategoryNotFound {
			return nil, apperrors.NewNotFoundError("Event", id)
		}
		return nil, err
	}
	return event, nil
}

// Resolve returns an event that lives in the local store, importing an
// external event first so RSVP capacity and rewards apply to it
func (s *EventService) Resolve(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewDatabaseError("get event", err)
	}

	event, err = s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	event.ApplyDefaults()
	if err := s.events.ImportEvent(ctx, event); err != nil {
		return nil, apperrors.NewDatabaseError("import event", err)
	}
	logging.FromContext(ctx).WithField("eventId", id).Info("Imported external event")
	return event, nil
}

// Create stores a new event owned by organizer
func (s *EventService) Create(ctx context.Context, organizer string, in models.EventInput) (*models.Event, error) {
	organizer, err := requireAddress("organizerAddress", organizer, "Organizer address is required")
	if err != nil {
		return nil, err
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, apperrors.NewMissingFieldError("title", "Title is required")
	}

	now := s.now()
	event := &models.Event{
		ID:        uuid.New().String(),
		Organizer: models.Organizer{Address: organizer},
		StartDate: now,
		CreatedAt: now,
		UpdatedAt: now,
		Source:    types.SourceLocal,
	}
	in.Apply(event)
	if event.EndDate.IsZero() {
		event.EndDate = event.StartDate
	}
	event.ApplyDefaults()
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, apperrors.NewDatabaseError("create event", err)
	}
	s.cache.InvalidateEvent(ctx, event.ID)

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"eventId":   event.ID,
		"organizer": organizer,
	}).Info("Created event")
	return event, nil
}

// Update applies in to an event. Only the organizer may update it.
func (s *EventService) Update(ctx context.Context, id, actor string, in models.EventInput) (*models.Event, error) {
	actor, err := requireAddress("organizerAddress", actor, "Organizer address is required")
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Event", id)
		}
		return nil, apperrors.NewDatabaseError("get event", err)
	}
	if types.NormalizeAddress(event.Organizer.Address) != actor {
		return nil, apperrors.NewForbiddenError("Unauthorized to update this event")
	}

	in.Apply(event)
	event.ApplyDefaults()
	if err := validateEvent(event); err != nil {
		return nil, err
	}

	if err := s.events.UpdateEvent(ctx, event); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Event", id)
		}
		return nil, apperrors.NewDatabaseError("update event", err)
	}
	s.cache.InvalidateEvent(ctx, id)
	return event, nil
}

// Delete removes an event owned by organizer
func (s *EventService) Delete(ctx context.Context, id, organizer string) error {
	organizer, err := requireAddress("organizer", organizer, "Organizer address is required")
	if err != nil {
		return err
	}

	deleted, err := s.events.DeleteEvent(ctx, id, organizer)
	if err != nil {
		return apperrors.NewDatabaseError("delete event", err)
	}
	if !deleted {
		notFound := apperrors.NewNotFoundError("Event", id)
		notFound.Message = "Event not found or unauthorized"
		return notFound
	}
	s.cache.InvalidateEvent(ctx, id)
	return nil
}

// Invalidate drops cached copies of an event after its attendance changed
func (s *EventService) Invalidate(ctx context.Context, id string) {
	s.cache.InvalidateEvent(ctx, id)
}

func validateEvent(e *models.Event) error {
	if !e.Category.IsValid() {
		return apperrors.NewInvalidParameterError("category", "unknown category "+string(e.Category))
	}
	if !e.Status.IsValid() {
		return apperrors.NewInvalidParameterError("status", "unknown status "+string(e.Status))
	}
	if !e.Rewards.Stamp.Rarity.IsValid() {
		return apperrors.NewInvalidParameterError("rewards.stamp.rarity", "unknown rarity "+string(e.Rewards.Stamp.Rarity))
	}
	if e.EndDate.Before(e.StartDate) {
		return apperrors.NewInvalidParameterError("endDate", "must not be before startDate")
	}
	if e.Capacity < 0 {
		return apperrors.NewInvalidParameterError("capacity", "must not be negative")
	}
	return nil
}
