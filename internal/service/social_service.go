package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"familyphotos/internal/models"
	"familyphotos/internal/schema"
)

const commentListLimit = 500

// likePtr is satisfied by *models.Like and *models.FamilyLike
type likePtr[T any] interface {
	schema.RecordPtr[T]
	LikeData() *models.LikeFields
}

// LikeSummary is the like count of a photo and whether the caller likes it
type LikeSummary struct {
	PhotoID string `json:"photoId"`
	Count   int    `json:"count"`
	Liked   bool   `json:"liked"`
}

// SocialService handles comments and likes on photos
type SocialService struct {
	catalog  *schema.Catalog
	families *FamilyService
	logger   *zap.Logger
}

// NewSocialService creates a new social service
func NewSocialService(catalog *schema.Catalog, families *FamilyService, logger *zap.Logger) *SocialService {
	return &SocialService{catalog: catalog, families: families, logger: logger}
}

// AddComment comments on a personal photo as the caller
func (s *SocialService) AddComment(ctx context.Context, photoID, content string) (*models.Comment, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	comment, err := s.catalog.Comments.Create(ctx, &models.Comment{
		Content:     strings.TrimSpace(content),
		AuthorName:  user.DisplayName(),
		AuthorEmail: user.Email,
		PhotoID:     photoID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return comment, nil
}

// Comments lists the comments on a personal photo, oldest first
func (s *SocialService) Comments(ctx context.Context, photoID string) ([]*models.Comment, error) {
	comments, err := s.catalog.Comments.List(ctx, schema.Filter{schema.Eq("photoId", photoID)}, commentListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// AddFamilyComment comments on a family photo. The caller must be a member of the family.
func (s *SocialService) AddFamilyComment(ctx context.Context, photoID, content string) (*models.FamilyComment, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.families.photoForMember(ctx, photoID); err != nil {
		return nil, err
	}
	comment, err := s.catalog.FamilyComments.Create(ctx, &models.FamilyComment{
		Content:   strings.TrimSpace(content),
		UserName:  user.DisplayName(),
		UserEmail: user.Email,
		PhotoID:   photoID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add family comment: %w", err)
	}
	return comment, nil
}

// FamilyComments lists the comments on a family photo, oldest first
func (s *SocialService) FamilyComments(ctx context.Context, photoID string) ([]*models.FamilyComment, error) {
	if _, err := s.families.photoForMember(ctx, photoID); err != nil {
		return nil, err
	}
	comments, err := s.catalog.FamilyComments.List(ctx, schema.Filter{schema.Eq("photoId", photoID)}, commentListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list family comments: %w", err)
	}
	return comments, nil
}

// Like marks a personal photo as liked by the caller. Liking twice is a no-op.
func (s *SocialService) Like(ctx context.Context, photoID string) (*LikeSummary, error) {
	if err := like(ctx, s.catalog.Likes, photoID); err != nil {
		return nil, err
	}
	return likeSummary(ctx, s.catalog.Likes, photoID)
}

// Unlike removes the caller's like from a personal photo, if any
func (s *SocialService) Unlike(ctx context.Context, photoID string) (*LikeSummary, error) {
	if err := unlike(ctx, s.catalog.Likes, photoID); err != nil {
		return nil, err
	}
	return likeSummary(ctx, s.catalog.Likes, photoID)
}

// Likes summarises the likes of a personal photo
func (s *SocialService) Likes(ctx context.Context, photoID string) (*LikeSummary, error) {
	return likeSummary(ctx, s.catalog.Likes, photoID)
}

// LikeFamilyPhoto marks a family photo as liked by the caller
func (s *SocialService) LikeFamilyPhoto(ctx context.Context, photoID string) (*LikeSummary, error) {
	if _, err := s.families.photoForMember(ctx, photoID); err != nil {
		return nil, err
	}
	if err := like(ctx, s.catalog.FamilyLikes, photoID); err != nil {
		return nil, err
	}
	return likeSummary(ctx, s.catalog.FamilyLikes, photoID)
}

// UnlikeFamilyPhoto removes the caller's like from a family photo, if any
func (s *SocialService) UnlikeFamilyPhoto(ctx context.Context, photoID string) (*LikeSummary, error) {
	if _, err := s.families.photoForMember(ctx, photoID); err != nil {
		return nil, err
	}
	if err := unlike(ctx, s.catalog.FamilyLikes, photoID); err != nil {
		return nil, err
	}
	return likeSummary(ctx, s.catalog.FamilyLikes, photoID)
}

// FamilyPhotoLikes summarises the likes of a family photo
func (s *SocialService) FamilyPhotoLikes(ctx context.Context, photoID string) (*LikeSummary, error) {
	if _, err := s.families.photoForMember(ctx, photoID); err != nil {
		return nil, err
	}
	return likeSummary(ctx, s.catalog.FamilyLikes, photoID)
}

func like[T any, PT likePtr[T]](ctx context.Context, likes *schema.Collection[T, PT], photoID string) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	existing, err := likes.First(ctx, schema.Filter{schema.Eq("photoId", photoID)})
	if err != nil {
		return fmt.Errorf("failed to check like: %w", err)
	}
	if existing != nil {
		return nil
	}

	rec := PT(new(T))
	*rec.LikeData() = models.LikeFields{UserID: user.ID, UserName: user.DisplayName(), PhotoID: photoID}
	_, err = likes.Create(ctx, rec)
	if errors.Is(err, schema.ErrConflict) {
		// a concurrent like by the same caller won
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to like photo: %w", err)
	}
	return nil
}

func unlike[T any, PT likePtr[T]](ctx context.Context, likes *schema.Collection[T, PT], photoID string) error {
	// reads are scoped to the caller, so this finds only the caller's like
	existing, err := likes.First(ctx, schema.Filter{schema.Eq("photoId", photoID)})
	if err != nil {
		return fmt.Errorf("failed to check like: %w", err)
	}
	if existing == nil {
		return nil
	}
	err = likes.Delete(ctx, existing.Meta().ID)
	if err != nil && !errors.Is(err, schema.ErrNotFound) {
		return fmt.Errorf("failed to unlike photo: %w", err)
	}
	return nil
}

func likeSummary[T any, PT likePtr[T]](ctx context.Context, likes *schema.Collection[T, PT], photoID string) (*LikeSummary, error) {
	filter := schema.Filter{schema.Eq("photoId", photoID)}
	count, err := likes.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	mine, err := likes.First(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to check like: %w", err)
	}
	return &LikeSummary{PhotoID: photoID, Count: count, Liked: mine != nil}, nil
}
