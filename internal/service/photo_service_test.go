package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familyphotos/internal/models"
	"familyphotos/internal/schema"
	"familyphotos/internal/storage"
)

func TestUploadPhotoStoresBlobThumbnailAndRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	album, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Navidad 2024", Date: "2024-12-25"})
	require.NoError(t, err)

	photo, err := env.photos.UploadPhoto(ctx, album.ID, UploadInput{
		Filename: "arbol.png",
		Data:     pngBytes(t, 640, 480),
		Tags:     []string{"navidad"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(photo.S3Key, "photos/"))
	assert.True(t, strings.HasSuffix(photo.S3Key, "-arbol.png"))
	assert.Equal(t, storage.ThumbnailKey(photo.S3Key), photo.ThumbnailKey)
	assert.Equal(t, "image/png", photo.MimeType)
	assert.Equal(t, "arbol.png", photo.Title)
	assert.Equal(t, "u1", photo.UploadedBy)
	assert.Equal(t, 640, photo.Width)
	assert.Equal(t, 480, photo.Height)
	assert.Equal(t, models.StringList{"navidad"}, photo.Tags)
	assert.ElementsMatch(t, []string{photo.S3Key, photo.ThumbnailKey}, env.objects.keys())

	urls, err := env.photos.PhotoURL(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, "mem://"+photo.S3Key+"?ttl=1h0m0s", urls.URL)
	assert.Equal(t, "mem://"+photo.ThumbnailKey+"?ttl=1h0m0s", urls.ThumbnailURL)

	views, err := env.photos.AlbumPhotos(ctx, album.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, photo.ID, views[0].Photo.ID)
	assert.Equal(t, urls.URL, views[0].URL)
}

func TestUploadNonImageSkipsThumbnail(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")
	album, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Docs"})
	require.NoError(t, err)

	photo, err := env.photos.UploadPhoto(ctx, album.ID, UploadInput{
		Filename:    "broken.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("not really a jpeg"),
		Title:       "Roto",
	})
	require.NoError(t, err)
	assert.Empty(t, photo.ThumbnailKey)
	assert.Zero(t, photo.Width)
	assert.Equal(t, "Roto", photo.Title)
	assert.Equal(t, []string{photo.S3Key}, env.objects.keys())
}

func TestUploadRejectsBadInputBeforeStoring(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")
	album, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Verano"})
	require.NoError(t, err)

	_, err = env.photos.UploadPhoto(ctx, "missing-album", UploadInput{Filename: "a.png", Data: []byte("x")})
	assert.ErrorIs(t, err, schema.ErrNotFound)

	_, err = env.photos.UploadPhoto(ctx, album.ID, UploadInput{Filename: "a.png"})
	assert.ErrorIs(t, err, schema.ErrValidation)

	env.objects.failPut = true
	_, err = env.photos.UploadPhoto(ctx, album.ID, UploadInput{Filename: "a.png", Data: []byte("x")})
	assert.ErrorIs(t, err, errStoreDown)

	assert.Empty(t, env.objects.keys())
}

func TestUploadCompensatesWhenRecordFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")
	album, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Verano"})
	require.NoError(t, err)

	_, err = env.photos.UploadPhoto(ctx, album.ID, UploadInput{
		Filename:    "playa.png",
		Data:        pngBytes(t, 32, 32),
		CaptureDate: "yesterday",
	})
	assert.ErrorIs(t, err, schema.ErrValidation)
	assert.Empty(t, env.objects.keys(), "orphaned blobs must be deleted")

	env.objects.failDelete = true
	_, err = env.photos.UploadPhoto(ctx, album.ID, UploadInput{
		Filename:    "playa.png",
		Data:        pngBytes(t, 32, 32),
		CaptureDate: "yesterday",
	})
	assert.ErrorIs(t, err, schema.ErrValidation)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Len(t, env.objects.keys(), 2)
}

func TestUploadCleanupOutlivesCancelledRequest(t *testing.T) {
	env := newTestEnv(t)
	album, err := env.albums.CreateAlbum(userCtx("u1"), AlbumInput{Name: "Verano"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(userCtx("u1"))
	defer cancel()
	env.objects.afterPut = cancel

	_, err = env.photos.UploadPhoto(ctx, album.ID, UploadInput{Filename: "playa.png", Data: pngBytes(t, 32, 32)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, env.objects.keys(), "blobs are deleted even after the request is cancelled")
}

func TestPhotoURLReportsReusedExpiry(t *testing.T) {
	env := newTestEnv(t)
	env.photos.objects = storage.NewCached(env.objects, storage.NewMemoryCache())
	ctx := userCtx("u1")
	album, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Verano"})
	require.NoError(t, err)
	photo, err := env.photos.UploadPhoto(ctx, album.ID, UploadInput{Filename: "a.png", Data: pngBytes(t, 16, 16)})
	require.NoError(t, err)

	first, err := env.photos.PhotoURL(ctx, photo.ID)
	require.NoError(t, err)
	env.clock.Advance(50 * time.Minute)
	second, err := env.photos.PhotoURL(ctx, photo.ID)
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt, "a reused URL keeps its original expiry")
}

func TestPhotoURLExpiryWithoutCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")
	album, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Verano"})
	require.NoError(t, err)
	photo, err := env.photos.UploadPhoto(ctx, album.ID, UploadInput{Filename: "a.png", Data: pngBytes(t, 16, 16)})
	require.NoError(t, err)

	before := env.clock.Now()
	urls, err := env.photos.PhotoURL(ctx, photo.ID)
	require.NoError(t, err)
	assert.True(t, urls.ExpiresAt.After(before.Add(storage.SignedURLTTL)))
	assert.True(t, urls.ExpiresAt.Before(before.Add(storage.SignedURLTTL+time.Second)))
}

func TestDeletePhotoRemovesBlobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")
	album, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Verano"})
	require.NoError(t, err)
	photo, err := env.photos.UploadPhoto(ctx, album.ID, UploadInput{Filename: "a.png", Data: pngBytes(t, 16, 16)})
	require.NoError(t, err)

	require.NoError(t, env.photos.DeletePhoto(ctx, photo.ID))
	assert.Empty(t, env.objects.keys())

	_, err = env.catalog.Photos.Get(ctx, photo.ID)
	assert.ErrorIs(t, err, schema.ErrNotFound)

	err = env.photos.DeletePhoto(ctx, photo.ID)
	assert.ErrorIs(t, err, schema.ErrNotFound)
}

func TestFamilyPhotosRequireMembership(t *testing.T) {
	env := newTestEnv(t)
	member, outsider := userCtx("u1"), userCtx("u2")

	family, err := env.families.CreateFamily(member, "Los García")
	require.NoError(t, err)
	album, err := env.albums.CreateFamilyAlbum(member, family.Family.ID, AlbumInput{Name: "Boda"})
	require.NoError(t, err)

	input := UploadInput{Filename: "boda.png", Data: pngBytes(t, 20, 10)}
	_, err = env.photos.UploadFamilyPhoto(outsider, album.ID, input)
	assert.ErrorIs(t, err, schema.ErrUnauthorized)
	assert.Empty(t, env.objects.keys())

	photo, err := env.photos.UploadFamilyPhoto(member, album.ID, input)
	require.NoError(t, err)
	assert.Equal(t, album.ID, photo.AlbumID)

	views, err := env.photos.FamilyAlbumPhotos(member, album.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.NotEmpty(t, views[0].ThumbnailURL)

	_, err = env.photos.FamilyAlbumPhotos(outsider, album.ID)
	assert.ErrorIs(t, err, schema.ErrUnauthorized)
	_, err = env.photos.FamilyPhotoURL(outsider, photo.ID)
	assert.ErrorIs(t, err, schema.ErrUnauthorized)
	err = env.photos.DeleteFamilyPhoto(outsider, photo.ID)
	assert.ErrorIs(t, err, schema.ErrUnauthorized)

	_, err = env.families.JoinFamily(outsider, family.Family.FamilyCode)
	require.NoError(t, err)
	_, err = env.photos.FamilyPhotoURL(outsider, photo.ID)
	require.NoError(t, err)
	require.NoError(t, env.photos.DeleteFamilyPhoto(outsider, photo.ID))
	assert.Empty(t, env.objects.keys())
}

func TestAlbumCovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	withPhotos, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Con fotos"})
	require.NoError(t, err)
	empty, err := env.albums.CreateAlbum(ctx, AlbumInput{Name: "Vacío"})
	require.NoError(t, err)
	preset, err := env.catalog.Albums.Create(ctx, &models.Album{Name: "Portada", CreatedBy: "u1", CoverPhotoURL: "https://cdn.example/cover.jpg"})
	require.NoError(t, err)
	_, err = env.albums.CreateAlbum(userCtx("u2"), AlbumInput{Name: "Ajeno"})
	require.NoError(t, err)

	first, err := env.photos.UploadPhoto(ctx, withPhotos.ID, UploadInput{Filename: "uno.png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)
	_, err = env.photos.UploadPhoto(ctx, withPhotos.ID, UploadInput{Filename: "dos.png", Data: pngBytes(t, 8, 8)})
	require.NoError(t, err)

	views, err := env.albums.MyAlbums(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)

	covers := map[string]string{}
	for _, v := range views {
		covers[v.Album.ID] = v.CoverURL
	}
	assert.Equal(t, "mem://"+first.ThumbnailKey+"?ttl=1h0m0s", covers[withPhotos.ID])
	assert.Empty(t, covers[empty.ID])
	assert.Equal(t, "https://cdn.example/cover.jpg", covers[preset.ID])
}

func TestFamilyAlbumCovers(t *testing.T) {
	env := newTestEnv(t)
	ctx := userCtx("u1")

	family, err := env.families.CreateFamily(ctx, "Los García")
	require.NoError(t, err)
	album, err := env.albums.CreateFamilyAlbum(ctx, family.Family.ID, AlbumInput{Name: "Boda"})
	require.NoError(t, err)
	photo, err := env.photos.UploadFamilyPhoto(ctx, album.ID, UploadInput{Filename: "doc.txt", ContentType: "text/plain", Data: []byte("hola")})
	require.NoError(t, err)

	views, err := env.albums.MyFamilyAlbums(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	// without a thumbnail the original object is the cover
	assert.Equal(t, "mem://"+photo.S3Key+"?ttl=1h0m0s", views[0].CoverURL)
}
