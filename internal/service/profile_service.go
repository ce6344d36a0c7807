package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/hellhack-ui/HoloPass/internal/errors"
	"github.com/hellhack-ui/HoloPass/internal/models"
	"github.com/hellhack-ui/HoloPass/internal/storage"
)

// ProfileService serves the server-side record of a wallet's progress
type ProfileService struct {
	profiles   ProfileRepository
	attendance AttendanceRepository
	now        func() time.Time
}

// NewProfileService creates a new profile service
func NewProfileService(profiles ProfileRepository, attendance AttendanceRepository) *ProfileService {
	return &ProfileService{
		profiles:   profiles,
		attendance: attendance,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the profile of address
func (s *ProfileService) Get(ctx context.Context, address string) (*models.UserProfile, error) {
	address, err := requireAddress("address", address, "Address is required")
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetProfile(ctx, address)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("Profile", address)
		}
		return nil, apperrors.NewDatabaseError("get profile", err)
	}
	return profile, nil
}

// Update changes the user-editable fields. Only the signed-in owner may do so.
func (s *ProfileService) Update(ctx context.Context, address, actor string, update models.ProfileUpdate) (*models.UserProfile, error) {
	address, err := requireAddress("address", address, "Address is required")
	if err != nil {
		return nil, err
	}
	if actor == "" {
		return nil, apperrors.NewUnauthorizedError("Sign in to update this profile")
	}
	if err := checkActor(actor, address); err != nil {
		return nil, err
	}

	now := s.now()
	profile, err := s.profiles.EnsureProfile(ctx, address, now)
	if err != nil {
		return nil, apperrors.NewDatabaseError("ensure profile", err)
	}
	if update.ENSName != nil {
		profile.ENSName = update.ENSName
	}
	if update.Avatar != nil {
		profile.Avatar = update.Avatar
	}
	if update.Preferences != nil {
		profile.Preferences = *update.Preferences
	}
	profile.LastActive = now

	if err := s.profiles.UpdateProfile(ctx, profile); err != nil {
		return nil, apperrors.NewDatabaseError("update profile", err)
	}
	return profile, nil
}

// CheckIns returns the check-ins of address, newest first
func (s *ProfileService) CheckIns(ctx context.Context, address string) ([]*models.CheckIn, error) {
	address, err := requireAddress("address", address, "Address is required")
	if err != nil {
		return nil, err
	}
	checkIns, err := s.attendance.ListUserCheckIns(ctx, address)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list check-ins", err)
	}
	return checkIns, nil
}

// Stamps returns the stamps held by address, newest first
func (s *ProfileService) Stamps(ctx context.Context, address string) ([]*models.Stamp, error) {
	address, err := requireAddress("address", address, "Address is required")
	if err != nil {
		return nil, err
	}
	stamps, err := s.attendance.ListUserStamps(ctx, address)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list stamps", err)
	}
	return stamps, nil
}
