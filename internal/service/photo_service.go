package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"familyphotos/internal/models"
	"familyphotos/internal/schema"
	"familyphotos/internal/storage"
)

const (
	photoListLimit     = 500
	blobCleanupTimeout = 30 * time.Second
)

type presigner interface {
	Presign(ctx context.Context, key string, ttl time.Duration) (storage.PresignedURL, error)
}

// photoPtr is satisfied by *models.Photo and *models.FamilyPhoto
type photoPtr[T any] interface {
	schema.RecordPtr[T]
	PhotoData() *models.PhotoFields
}

// UploadInput is one uploaded file plus the descriptive fields sent with it
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
	Title       string
	Description string
	CaptureDate string
	Location    string
	Tags        []string
}

// PhotoURLs are signed read URLs for a photo and its thumbnail
type PhotoURLs struct {
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// PhotoView is a photo with its signed URLs
type PhotoView[P any] struct {
	Photo P `json:"photo"`
	PhotoURLs
}

// PhotoService stores photo blobs and their records
type PhotoService struct {
	catalog  *schema.Catalog
	families *FamilyService
	objects  storage.ObjectStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewPhotoService creates a new photo service
func NewPhotoService(catalog *schema.Catalog, families *FamilyService, objects storage.ObjectStore, logger *zap.Logger) *PhotoService {
	return &PhotoService{
		catalog:  catalog,
		families: families,
		objects:  objects,
		logger:   logger,
		now:      time.Now,
	}
}

// UploadPhoto stores a file in a personal album
func (s *PhotoService) UploadPhoto(ctx context.Context, albumID string, in UploadInput) (*models.Photo, error) {
	if _, err := s.catalog.Albums.Get(ctx, albumID); err != nil {
		return nil, err
	}
	return upload(ctx, s, s.catalog.Photos, albumID, in)
}

// UploadFamilyPhoto stores a file in a family album. The caller must be a member of the family.
func (s *PhotoService) UploadFamilyPhoto(ctx context.Context, albumID string, in UploadInput) (*models.FamilyPhoto, error) {
	if _, err := s.families.albumForMember(ctx, albumID); err != nil {
		return nil, err
	}
	return upload(ctx, s, s.catalog.FamilyPhotos, albumID, in)
}

// AlbumPhotos lists a personal album's photos with signed URLs
func (s *PhotoService) AlbumPhotos(ctx context.Context, albumID string) ([]PhotoView[*models.Photo], error) {
	if _, err := s.catalog.Albums.Get(ctx, albumID); err != nil {
		return nil, err
	}
	return albumPhotos(ctx, s, s.catalog.Photos, albumID)
}

// FamilyAlbumPhotos lists a family album's photos with signed URLs
func (s *PhotoService) FamilyAlbumPhotos(ctx context.Context, albumID string) ([]PhotoView[*models.FamilyPhoto], error) {
	if _, err := s.families.albumForMember(ctx, albumID); err != nil {
		return nil, err
	}
	return albumPhotos(ctx, s, s.catalog.FamilyPhotos, albumID)
}

// PhotoURL signs read URLs for a personal photo
func (s *PhotoService) PhotoURL(ctx context.Context, photoID string) (*PhotoURLs, error) {
	photo, err := s.catalog.Photos.Get(ctx, photoID)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, &photo.PhotoFields)
}

// FamilyPhotoURL signs read URLs for a family photo
func (s *PhotoService) FamilyPhotoURL(ctx context.Context, photoID string) (*PhotoURLs, error) {
	photo, err := s.families.photoForMember(ctx, photoID)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, &photo.PhotoFields)
}

// DeletePhoto removes a personal photo record and then its blobs
func (s *PhotoService) DeletePhoto(ctx context.Context, photoID string) error {
	photo, err := s.catalog.Photos.Get(ctx, photoID)
	if err != nil {
		return err
	}
	if err := s.catalog.Photos.Delete(ctx, photoID); err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	s.discardBlobs(ctx, &photo.PhotoFields)
	return nil
}

// DeleteFamilyPhoto removes a family photo record and then its blobs
func (s *PhotoService) DeleteFamilyPhoto(ctx context.Context, photoID string) error {
	photo, err := s.families.photoForMember(ctx, photoID)
	if err != nil {
		return err
	}
	if err := s.catalog.FamilyPhotos.Delete(ctx, photoID); err != nil {
		return fmt.Errorf("failed to delete family photo: %w", err)
	}
	s.discardBlobs(ctx, &photo.PhotoFields)
	return nil
}

// upload puts the blob and its thumbnail, then creates the record. When the
// record cannot be created the blobs are deleted again.
func upload[T any, PT photoPtr[T]](ctx context.Context, s *PhotoService, photos *schema.Collection[T, PT], albumID string, in UploadInput) (PT, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.Data) == 0 {
		return nil, &schema.ValidationError{Field: "file", Message: "is required"}
	}
	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(in.Data)
	}

	key, err := s.objects.Put(ctx, storage.ObjectKey(in.Filename, s.now()), bytes.NewReader(in.Data), int64(len(in.Data)), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store photo: %w", err)
	}

	fields := models.PhotoFields{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		S3Key:       key,
		FileSize:    int64(len(in.Data)),
		MimeType:    contentType,
		CaptureDate: in.CaptureDate,
		Location:    in.Location,
		UploadedBy:  user.ID,
		AlbumID:     albumID,
		Tags:        in.Tags,
	}
	if fields.Title == "" {
		fields.Title = in.Filename
	}
	if strings.HasPrefix(contentType, "image/") {
		s.attachThumbnail(ctx, &fields, in.Data)
	}

	rec := PT(new(T))
	*rec.PhotoData() = fields
	created, err := photos.Create(ctx, rec)
	if err != nil {
		err = fmt.Errorf("failed to create photo record: %w", err)
		// The caller may already have gone away, the cleanup still has to run.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
		defer cancel()
		if cleanupErr := s.deleteBlobs(cleanupCtx, &fields); cleanupErr != nil {
			return nil, errors.Join(err, cleanupErr)
		}
		return nil, err
	}

	s.logger.Info("photo uploaded",
		zap.String("model", photos.Model().Name),
		zap.String("photo_id", created.Meta().ID),
		zap.String("key", key),
		zap.Int64("size", fields.FileSize))
	return created, nil
}

// attachThumbnail stores a thumbnail and records the image dimensions.
// An undecodable image is stored without one.
func (s *PhotoService) attachThumbnail(ctx context.Context, fields *models.PhotoFields, data []byte) {
	img, err := storage.MakeThumbnail(data)
	if err != nil {
		s.logger.Warn("failed to make thumbnail", zap.String("key", fields.S3Key), zap.Error(err))
		return
	}
	fields.Width, fields.Height = img.Width, img.Height

	key, err := s.objects.Put(ctx, storage.ThumbnailKey(fields.S3Key), bytes.NewReader(img.Thumbnail), int64(len(img.Thumbnail)), "image/jpeg")
	if err != nil {
		s.logger.Warn("failed to store thumbnail", zap.String("key", fields.S3Key), zap.Error(err))
		return
	}
	fields.ThumbnailKey = key
}

func albumPhotos[T any, PT photoPtr[T]](ctx context.Context, s *PhotoService, photos *schema.Collection[T, PT], albumID string) ([]PhotoView[PT], error) {
	recs, err := photos.List(ctx, schema.Filter{schema.Eq("albumId", albumID)}, photoListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	out := make([]PhotoView[PT], len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for i, rec := range recs {
		out[i].Photo = rec
		g.Go(func() error {
			urls, err := s.sign(gctx, rec.PhotoData())
			if err != nil {
				return err
			}
			out[i].PhotoURLs = *urls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PhotoService) sign(ctx context.Context, fields *models.PhotoFields) (*PhotoURLs, error) {
	photo, err := s.presign(ctx, fields.S3Key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign photo url: %w", err)
	}
	urls := &PhotoURLs{URL: photo.URL, ExpiresAt: photo.ExpiresAt}
	if fields.ThumbnailKey != "" {
		thumb, err := s.presign(ctx, fields.ThumbnailKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign thumbnail url: %w", err)
		}
		urls.ThumbnailURL = thumb.URL
		if thumb.ExpiresAt.Before(urls.ExpiresAt) {
			urls.ExpiresAt = thumb.ExpiresAt
		}
	}
	return urls, nil
}

// presign reports the real expiry when the store can reuse URLs
func (s *PhotoService) presign(ctx context.Context, key string) (storage.PresignedURL, error) {
	if p, ok := s.objects.(presigner); ok {
		return p.Presign(ctx, key, storage.SignedURLTTL)
	}
	issued := s.now()
	url, err := s.objects.SignedURL(ctx, key, storage.SignedURLTTL)
	if err != nil {
		return storage.PresignedURL{}, err
	}
	return storage.PresignedURL{URL: url, ExpiresAt: issued.Add(storage.SignedURLTTL).UTC()}, nil
}

// deleteBlobs removes the photo and thumbnail objects and reports every failure
func (s *PhotoService) deleteBlobs(ctx context.Context, fields *models.PhotoFields) error {
	var errs []error
	for _, key := range []string{fields.S3Key, fields.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			s.logger.Error("failed to delete object", zap.String("key", key), zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to delete object %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// discardBlobs deletes the objects of an already deleted record. Failures leave orphans and are only logged.
func (s *PhotoService) discardBlobs(ctx context.Context, fields *models.PhotoFields) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blobCleanupTimeout)
	defer cancel()
	_ = s.deleteBlobs(ctx, fields)
}
