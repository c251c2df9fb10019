package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"familyphotos/internal/identity"
	"familyphotos/internal/models"
	"familyphotos/internal/schema"
)

// ProfileService manages the caller's UserProfile
type ProfileService struct {
	catalog *schema.Catalog
	logger  *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(catalog *schema.Catalog, logger *zap.Logger) *ProfileService {
	return &ProfileService{catalog: catalog, logger: logger}
}

// ProfileUpdate holds the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	BirthDate *string `json:"birthDate"`
}

// Get returns the caller's profile, creating it from the identity on first view
func (s *ProfileService) Get(ctx context.Context) (*models.UserProfile, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.catalog.Profiles.First(ctx, schema.Filter{schema.Eq("userId", user.ID)})
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	profile, err = s.catalog.Profiles.Create(ctx, &models.UserProfile{
		UserID: user.ID,
		Name:   user.DisplayName(),
		Email:  user.Email,
	})
	if errors.Is(err, schema.ErrConflict) {
		// a concurrent first view created it
		return s.catalog.Profiles.First(ctx, schema.Filter{schema.Eq("userId", user.ID)})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	s.logger.Info("profile created", zap.String("user_id", user.ID), zap.String("profile_id", profile.ID))
	return profile, nil
}

// Update changes the caller's profile
func (s *ProfileService) Update(ctx context.Context, in ProfileUpdate) (*models.UserProfile, error) {
	profile, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	patch := schema.Patch{"id": profile.ID, "userId": profile.UserID}
	if in.Name != nil {
		patch["name"] = *in.Name
	}
	if in.Email != nil {
		patch["email"] = *in.Email
	}
	if in.Phone != nil {
		patch["phone"] = *in.Phone
	}
	if in.BirthDate != nil {
		patch["birthDate"] = *in.BirthDate
	}

	updated, err := s.catalog.Profiles.Update(ctx, profile.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return updated, nil
}

func currentUser(ctx context.Context) (*identity.User, error) {
	user, ok := identity.FromContext(ctx)
	if !ok {
		return nil, &schema.AuthorizationError{Message: "authentication required"}
	}
	return user, nil
}
