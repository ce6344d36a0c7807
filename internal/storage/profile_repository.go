package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/types"
)

// ProfileRepository persists wallet profiles
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `address, ens_name, avatar, level, xp, stamps_count, preferences, joined_at, last_active`

// GetProfile returns the profile of a wallet
func (r *ProfileRepository) GetProfile(ctx context.Context, address string) (*models.UserProfile, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE address = $1`,
		types.NormalizeAddress(address),
	)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// EnsureProfile returns the wallet's profile, creating the default one first if
// needed, and bumps last_active.
func (r *ProfileRepository) EnsureProfile(ctx context.Context, address string, now time.Time) (*models.UserProfile, error) {
	fresh := models.NewUserProfile(address, now)
	prefs, err := marshalPreferences(fresh.Preferences)
	if err != nil {
		return nil, err
	}

	row := r.db.Pool().QueryRow(ctx,
		`INSERT INTO profiles (address, level, xp, stamps_count, preferences, joined_at, last_active)
		 VALUES ($1, 1, 0, 0, $2, $3, $3)
		 ON CONFLICT (address) DO UPDATE SET last_active = EXCLUDED.last_active
		 RETURNING `+profileColumns,
		fresh.Address, prefs, now,
	)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return profile, nil
}

// UpdateProfile stores the user-editable fields of a profile
func (r *ProfileRepository) UpdateProfile(ctx context.Context, profile *models.UserProfile) error {
	prefs, err := marshalPreferences(profile.Preferences)
	if err != nil {
		return err
	}

	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE profiles SET ens_name = $2, avatar = $3, preferences = $4, last_active = $5 WHERE address = $1`,
		types.NormalizeAddress(profile.Address), profile.ENSName, profile.Avatar, prefs, profile.LastActive,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*models.UserProfile, error) {
	var (
		p     models.UserProfile
		prefs []byte
	)
	if err := row.Scan(&p.Address, &p.ENSName, &p.Avatar, &p.Level, &p.XP, &p.StampsCount, &prefs, &p.JoinedAt, &p.LastActive); err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &p.Preferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	return &p, nil
}

func marshalPreferences(p models.Preferences) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return data, nil
}
