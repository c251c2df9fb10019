package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"familyphotos/internal/models"
	"familyphotos/internal/schema"
	"familyphotos/internal/storage"
)

const albumListLimit = 200

// AlbumView is an album with the signed URL of its cover photo
type AlbumView[A any] struct {
	Album    A      `json:"album"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// AlbumInput holds the fields a caller sets when creating an album
type AlbumInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// AlbumService handles personal and family albums
type AlbumService struct {
	catalog  *schema.Catalog
	families *FamilyService
	objects  storage.ObjectStore
	logger   *zap.Logger
}

// NewAlbumService creates a new album service
func NewAlbumService(catalog *schema.Catalog, families *FamilyService, objects storage.ObjectStore, logger *zap.Logger) *AlbumService {
	return &AlbumService{catalog: catalog, families: families, objects: objects, logger: logger}
}

// CreateAlbum creates a personal album owned by the caller
func (s *AlbumService) CreateAlbum(ctx context.Context, in AlbumInput) (*models.Album, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	album, err := s.catalog.Albums.Create(ctx, &models.Album{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Date:        in.Date,
		CreatedBy:   user.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create album: %w", err)
	}
	return album, nil
}

// CreateFamilyAlbum creates an album shared with familyID. The caller must be a member.
func (s *AlbumService) CreateFamilyAlbum(ctx context.Context, familyID string, in AlbumInput) (*models.FamilyAlbum, error) {
	member, err := s.families.membership(ctx, familyID)
	if err != nil {
		return nil, err
	}
	album, err := s.catalog.FamilyAlbums.Create(ctx, &models.FamilyAlbum{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Date:        in.Date,
		FamilyID:    familyID,
		CreatedBy:   member.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create family album: %w", err)
	}
	return album, nil
}

// MyAlbums lists the caller's personal albums with cover URLs
func (s *AlbumService) MyAlbums(ctx context.Context) ([]AlbumView[*models.Album], error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	albums, err := s.catalog.Albums.List(ctx, schema.Filter{schema.Eq("createdBy", user.ID)}, albumListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}

	covers := make([]string, len(albums))
	for i, a := range albums {
		covers[i] = a.CoverPhotoURL
	}
	s.resolveCovers(ctx, covers, func(ctx context.Context, i int) (string, error) {
		return firstPhotoKey(ctx, s.catalog.Photos, albums[i].ID)
	})

	out := make([]AlbumView[*models.Album], len(albums))
	for i, a := range albums {
		out[i] = AlbumView[*models.Album]{Album: a, CoverURL: covers[i]}
	}
	return out, nil
}

// MyFamilyAlbums lists the albums of every family the caller belongs to, with cover URLs
func (s *AlbumService) MyFamilyAlbums(ctx context.Context) ([]AlbumView[*models.FamilyAlbum], error) {
	albums, err := s.families.FamilyAlbums(ctx)
	if err != nil {
		return nil, err
	}

	covers := make([]string, len(albums))
	for i, a := range albums {
		covers[i] = a.CoverPhotoURL
	}
	s.resolveCovers(ctx, covers, func(ctx context.Context, i int) (string, error) {
		return firstPhotoKey(ctx, s.catalog.FamilyPhotos, albums[i].ID)
	})

	out := make([]AlbumView[*models.FamilyAlbum], len(albums))
	for i, a := range albums {
		out[i] = AlbumView[*models.FamilyAlbum]{Album: a, CoverURL: covers[i]}
	}
	return out, nil
}

// resolveCovers fills each empty cover with a signed URL for the key returned by
// firstKey. Albums are resolved concurrently and a failing album keeps no cover.
func (s *AlbumService) resolveCovers(ctx context.Context, covers []string, firstKey func(context.Context, int) (string, error)) {
	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for i := range covers {
		if covers[i] != "" {
			continue
		}
		g.Go(func() error {
			key, err := firstKey(ctx, i)
			if err != nil {
				s.logger.Warn("failed to find album cover", zap.Error(err))
				return nil
			}
			if key == "" {
				return nil
			}
			url, err := s.objects.SignedURL(ctx, key, storage.SignedURLTTL)
			if err != nil {
				s.logger.Warn("failed to sign album cover", zap.String("key", key), zap.Error(err))
				return nil
			}
			covers[i] = url
			return nil
		})
	}
	_ = g.Wait()
}

// firstPhotoKey returns the thumbnail key of the album's oldest photo, or its original key
func firstPhotoKey[T any, PT photoPtr[T]](ctx context.Context, photos *schema.Collection[T, PT], albumID string) (string, error) {
	first, err := photos.First(ctx, schema.Filter{schema.Eq("albumId", albumID)})
	if err != nil || first == nil {
		return "", err
	}
	data := first.PhotoData()
	if data.ThumbnailKey != "" {
		return data.ThumbnailKey, nil
	}
	return data.S3Key, nil
}
