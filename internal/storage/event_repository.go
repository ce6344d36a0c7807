package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// EventRepository handles event persistence
type EventRepository struct {
	db *PostgresDB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *PostgresDB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `
	e.id, e.title, e.description, e.location_name, e.location_address, e.latitude, e.longitude,
	e.start_date, e.end_date, e.image_url, e.category, e.max_attendees,
	e.price_amount, e.price_currency, e.organizer_address, e.organizer_name, e.organizer_avatar,
	e.requirements, e.stamp_reward, e.stamp_description, e.stamp_rarity, e.stamp_image, e.xp_reward,
	e.additional_rewards, e.status, e.tags, e.social_links, e.source, e.external_url,
	e.created_at, e.updated_at,
	(SELECT COUNT(*) FROM rsvps r WHERE r.event_id = e.id AND r.status = 'confirmed') AS attendee_count`

// ListEvents returns events matching the filter ordered by start date
func (r *EventRepository) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error) {
	filter = filter.Normalize()

	query := `SELECT ` + eventColumns + `
		FROM events e
		WHERE ($1 = '' OR e.category = $1)
		  AND ($2 = '' OR e.title ILIKE $2 OR e.description ILIKE $2)
		  AND ($3 = '' OR e.location_name ILIKE $3 OR e.location_address ILIKE $3)
		ORDER BY e.start_date ASC`

	rows, err := r.db.Pool().Query(ctx, query, filter.Category, likePattern(filter.Search), likePattern(filter.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// GetEvent retrieves a single event
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`

	event, err := scanEvent(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

// CreateEvent inserts a new event
func (r *EventRepository) CreateEvent(ctx context.Context, event *models.Event) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (
			id, title, description, location_name, location_address, latitude, longitude,
			start_date, end_date, image_url, category, max_attendees,
			price_amount, price_currency, organizer_address, organizer_name, organizer_avatar,
			requirements, stamp_reward, stamp_description, stamp_rarity, stamp_image, xp_reward,
			additional_rewards, status, tags, social_links, source, external_url,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		)`

	if _, err := r.db.Pool().Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// ImportEvent stores an external or demo event unless a row with its id exists
func (r *EventRepository) ImportEvent(ctx context.Context, event *models.Event) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (
			id, title, description, location_name, location_address, latitude, longitude,
			start_date, end_date, image_url, category, max_attendees,
			price_amount, price_currency, organizer_address, organizer_name, organizer_avatar,
			requirements, stamp_reward, stamp_description, stamp_rarity, stamp_image, xp_reward,
			additional_rewards, status, tags, social_links, source, external_url,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31
		)
		ON CONFLICT (id) DO NOTHING`

	if _, err := r.db.Pool().Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to import event: %w", err)
	}
	return nil
}

// UpdateEvent overwrites the mutable columns of an event
func (r *EventRepository) UpdateEvent(ctx context.Context, event *models.Event) error {
	requirements, err := json.Marshal(event.Requirements)
	if err != nil {
		return fmt.Errorf("failed to marshal requirements: %w", err)
	}
	socialLinks, err := json.Marshal(event.SocialLinks)
	if err != nil {
		return fmt.Errorf("failed to marshal social links: %w", err)
	}
	lat, lng := coordinateArgs(event.Location.Coordinates)
	event.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE events SET
			title = $2, description = $3, location_name = $4, location_address = $5,
			latitude = $6, longitude = $7, start_date = $8, end_date = $9, image_url = $10,
			category = $11, max_attendees = $12, price_amount = $13, price_currency = $14,
			organizer_name = $15, organizer_avatar = $16, requirements = $17,
			stamp_reward = $18, stamp_description = $19, stamp_rarity = $20, stamp_image = $21,
			xp_reward = $22, additional_rewards = $23, status = $24, tags = $25,
			social_links = $26, updated_at = $27
		WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query,
		event.ID, event.Title, event.Description, event.Location.Name, event.Location.Address,
		lat, lng, event.StartDate, event.EndDate, event.Image,
		event.Category, event.Capacity, event.Price.Amount, event.Price.Currency,
		event.Organizer.Name, event.Organizer.Avatar, requirements,
		event.Rewards.Stamp.Name, event.Rewards.Stamp.Description, event.Rewards.Stamp.Rarity, event.Rewards.Stamp.Image,
		event.Rewards.Stamp.XP, nonNilStrings(event.Rewards.AdditionalRewards), event.Status, nonNilStrings(event.Tags),
		socialLinks, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes an event owned by organizer. It reports false when no
// such event exists for that organizer.
func (r *EventRepository) DeleteEvent(ctx context.Context, id, organizer string) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx,
		`DELETE FROM events WHERE id = $1 AND LOWER(organizer_address) = $2`,
		id, types.NormalizeAddress(organizer),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		e                         models.Event
		lat, lng                  *float64
		requirements, socialLinks []byte
		attendees                 int64
	)

	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Location.Name, &e.Location.Address, &lat, &lng,
		&e.StartDate, &e.EndDate, &e.Image, &e.Category, &e.Capacity,
		&e.Price.Amount, &e.Price.Currency, &e.Organizer.Address, &e.Organizer.Name, &e.Organizer.Avatar,
		&requirements, &e.Rewards.Stamp.Name, &e.Rewards.Stamp.Description, &e.Rewards.Stamp.Rarity,
		&e.Rewards.Stamp.Image, &e.Rewards.Stamp.XP,
		&e.Rewards.AdditionalRewards, &e.Status, &e.Tags, &socialLinks, &e.Source, &e.ExternalURL,
		&e.CreatedAt, &e.UpdatedAt, &attendees,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	if lat != nil && lng != nil {
		e.Location.Coordinates = &models.Coordinates{Lat: *lat, Lng: *lng}
	}
	if len(requirements) > 0 {
		if err := json.Unmarshal(requirements, &e.Requirements); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requirements: %w", err)
		}
	}
	if len(socialLinks) > 0 {
		if err := json.Unmarshal(socialLinks, &e.SocialLinks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal social links: %w", err)
		}
	}
	e.AttendeeCount = int(attendees)
	e.Price.Free = e.Price.Amount == 0
	e.ApplyDefaults()

	return &e, nil
}

func eventArgs(e *models.Event) ([]interface{}, error) {
	requirements, err := json.Marshal(e.Requirements)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal requirements: %w", err)
	}
	socialLinks, err := json.Marshal(e.SocialLinks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal social links: %w", err)
	}
	lat, lng := coordinateArgs(e.Location.Coordinates)

	return []interface{}{
		e.ID, e.Title, e.Description, e.Location.Name, e.Location.Address, lat, lng,
		e.StartDate, e.EndDate, e.Image, e.Category, e.Capacity,
		e.Price.Amount, e.Price.Currency, types.NormalizeAddress(e.Organizer.Address), e.Organizer.Name, e.Organizer.Avatar,
		requirements, e.Rewards.Stamp.Name, e.Rewards.Stamp.Description, e.Rewards.Stamp.Rarity, e.Rewards.Stamp.Image, e.Rewards.Stamp.XP,
		nonNilStrings(e.Rewards.AdditionalRewards), e.Status, nonNilStrings(e.Tags), socialLinks, e.Source, e.ExternalURL,
		e.CreatedAt, e.UpdatedAt,
	}, nil
}

func coordinateArgs(c *models.Coordinates) (*float64, *float64) {
	if c == nil {
		return nil, nil
	}
	return &c.Lat, &c.Lng
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// likePattern wraps a term for ILIKE, escaping wildcard characters. Empty stays empty.
func likePattern(term string) string {
	if term == "" {
		return ""
	}
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(term) + "%"
}
