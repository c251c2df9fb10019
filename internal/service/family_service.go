package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"familyphotos/internal/credentials"
	"familyphotos/internal/models"
	"familyphotos/internal/schema"
)

const (
	familyCodeAttempts = 5
	membershipLimit    = 200
	fanOutLimit        = 8
)

var (
	ErrInvalidFamilyCode = errors.New("invalid family code")
	ErrAlreadyMember     = errors.New("already a member of this family")
	ErrNotFamilyMember   = errors.New("not a member of this family")
)

// FamilyService handles family creation, membership and invitations
type FamilyService struct {
	catalog *schema.Catalog
	invites InviteSender
	logger  *zap.Logger
	newCode func() (string, error)
}

// NewFamilyService creates a new family service
func NewFamilyService(catalog *schema.Catalog, invites InviteSender, logger *zap.Logger) *FamilyService {
	return &FamilyService{
		catalog: catalog,
		invites: invites,
		logger:  logger,
		newCode: credentials.GenerateFamilyCode,
	}
}

// FamilyMembership pairs a family with the caller's membership in it
type FamilyMembership struct {
	Family *models.Family       `json:"family"`
	Member *models.FamilyMember `json:"membership"`
}

// CreateFamily creates a family with a fresh join code and the caller as its admin.
// If the admin membership cannot be created the family is deleted again.
func (s *FamilyService) CreateFamily(ctx context.Context, name string) (*FamilyMembership, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &schema.ValidationError{Field: "name", Message: "is required"}
	}

	var family *models.Family
	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate family code: %w", err)
		}
		family, err = s.catalog.Families.Create(ctx, &models.Family{
			Name:       name,
			FamilyCode: code,
			CreatedBy:  user.ID,
		})
		if err == nil {
			break
		}
		if errors.Is(err, schema.ErrConflict) && attempt < familyCodeAttempts {
			s.logger.Warn("family code collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	member, err := s.catalog.Members.Create(ctx, &models.FamilyMember{
		FamilyID:  family.ID,
		UserID:    user.ID,
		UserName:  user.DisplayName(),
		UserEmail: memberEmail(user.Email, user.DisplayName()),
		IsAdmin:   true,
	})
	if err != nil {
		err = fmt.Errorf("failed to add family admin: %w", err)
		if delErr := s.catalog.Families.Delete(ctx, family.ID); delErr != nil {
			s.logger.Error("failed to roll back family", zap.String("family_id", family.ID), zap.Error(delErr))
			return nil, errors.Join(err, fmt.Errorf("failed to roll back family %s: %w", family.ID, delErr))
		}
		return nil, err
	}

	s.logger.Info("family created", zap.String("family_id", family.ID), zap.String("user_id", user.ID))
	return &FamilyMembership{Family: family, Member: member}, nil
}

// JoinFamily adds the caller to the family identified by code
func (s *FamilyService) JoinFamily(ctx context.Context, code string) (*FamilyMembership, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	code = credentials.NormalizeFamilyCode(code)
	if code == "" {
		return nil, &schema.ValidationError{Field: "familyCode", Message: "is required"}
	}

	family, err := s.catalog.Families.First(ctx, schema.Filter{schema.Eq("familyCode", code)})
	if err != nil {
		return nil, fmt.Errorf("failed to look up family: %w", err)
	}
	if family == nil {
		return nil, &schema.ValidationError{Field: "familyCode", Message: ErrInvalidFamilyCode.Error()}
	}

	existing, err := s.catalog.Members.First(ctx, schema.Filter{
		schema.Eq("familyId", family.ID),
		schema.Eq("userId", user.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if existing != nil {
		return nil, &schema.ConflictError{Model: schema.ModelFamilyMember, Message: ErrAlreadyMember.Error(), Err: ErrAlreadyMember}
	}

	member, err := s.catalog.Members.Create(ctx, &models.FamilyMember{
		FamilyID:  family.ID,
		UserID:    user.ID,
		UserName:  user.DisplayName(),
		UserEmail: memberEmail(user.Email, user.DisplayName()),
		IsAdmin:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join family: %w", err)
	}

	s.logger.Info("family joined", zap.String("family_id", family.ID), zap.String("user_id", user.ID))
	return &FamilyMembership{Family: family, Member: member}, nil
}

// UserFamilies returns the families the caller belongs to, fetched in one batch
func (s *FamilyService) UserFamilies(ctx context.Context) ([]FamilyMembership, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}

	members, err := s.catalog.Members.List(ctx, schema.Filter{schema.Eq("userId", user.ID)}, membershipLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.FamilyID
	}
	families, err := s.catalog.Families.BatchGet(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load families: %w", err)
	}
	byID := make(map[string]*models.Family, len(families))
	for _, f := range families {
		byID[f.ID] = f
	}

	out := make([]FamilyMembership, 0, len(members))
	for _, m := range members {
		// memberships of deleted families are skipped
		if f, ok := byID[m.FamilyID]; ok {
			out = append(out, FamilyMembership{Family: f, Member: m})
		}
	}
	return out, nil
}

// Members lists the members of a family the caller belongs to
func (s *FamilyService) Members(ctx context.Context, familyID string) ([]*models.FamilyMember, error) {
	if _, err := s.membership(ctx, familyID); err != nil {
		return nil, err
	}
	members, err := s.catalog.Members.List(ctx, schema.Filter{schema.Eq("familyId", familyID)}, membershipLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// FamilyAlbums lists the albums of every family the caller belongs to.
// Families are queried concurrently.
func (s *FamilyService) FamilyAlbums(ctx context.Context) ([]*models.FamilyAlbum, error) {
	memberships, err := s.UserFamilies(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]*models.FamilyAlbum, len(memberships))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, m := range memberships {
		g.Go(func() error {
			albums, err := s.catalog.FamilyAlbums.List(gctx, schema.Filter{schema.Eq("familyId", m.Family.ID)}, membershipLimit)
			if err != nil {
				return fmt.Errorf("failed to list albums of family %s: %w", m.Family.ID, err)
			}
			results[i] = albums
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*models.FamilyAlbum
	for _, albums := range results {
		out = append(out, albums...)
	}
	return out, nil
}

// LeaveFamily removes the caller's membership. The family and its albums remain.
func (s *FamilyService) LeaveFamily(ctx context.Context, familyID string) error {
	member, err := s.membership(ctx, familyID)
	if err != nil {
		return err
	}
	if err := s.catalog.Members.Delete(ctx, member.ID); err != nil {
		return fmt.Errorf("failed to leave family: %w", err)
	}
	s.logger.Info("family left", zap.String("family_id", familyID), zap.String("user_id", member.UserID))
	return nil
}

// Invite emails the family's join code to toEmail. Only members can invite.
func (s *FamilyService) Invite(ctx context.Context, familyID, toEmail string) error {
	member, err := s.membership(ctx, familyID)
	if err != nil {
		return err
	}
	toEmail = strings.TrimSpace(toEmail)
	if err := s.catalog.Store.ValidateVar(toEmail, "required,email"); err != nil {
		return &schema.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	family, err := s.catalog.Families.Get(ctx, familyID)
	if err != nil {
		return err
	}
	if err := s.invites.SendFamilyInvite(ctx, toEmail, member.UserName, family.Name, family.FamilyCode); err != nil {
		return fmt.Errorf("failed to send invite: %w", err)
	}
	return nil
}

// membership returns the caller's membership of familyID
func (s *FamilyService) membership(ctx context.Context, familyID string) (*models.FamilyMember, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	member, err := s.catalog.Members.First(ctx, schema.Filter{
		schema.Eq("familyId", familyID),
		schema.Eq("userId", user.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if member == nil {
		return nil, &schema.AuthorizationError{Message: ErrNotFamilyMember.Error()}
	}
	return member, nil
}

// albumForMember loads a family album the caller is a member of
func (s *FamilyService) albumForMember(ctx context.Context, albumID string) (*models.FamilyAlbum, error) {
	album, err := s.catalog.FamilyAlbums.Get(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if _, err := s.membership(ctx, album.FamilyID); err != nil {
		return nil, err
	}
	return album, nil
}

// photoForMember loads a family photo whose album belongs to one of the caller's families
func (s *FamilyService) photoForMember(ctx context.Context, photoID string) (*models.FamilyPhoto, error) {
	photo, err := s.catalog.FamilyPhotos.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if _, err := s.albumForMember(ctx, photo.AlbumID); err != nil {
		return nil, err
	}
	return photo, nil
}

func memberEmail(email, fallback string) string {
	if email != "" {
		return email
	}
	return fallback
}
