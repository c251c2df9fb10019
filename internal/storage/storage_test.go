package storage

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disintegration/imaging"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1735117200123)
	tests := []struct {
		filename string
		want     string
	}{
		{filename: "navidad.jpg", want: "photos/1735117200123-navidad.jpg"},
		{filename: `C:\Users\ana\beach day.png`, want: "photos/1735117200123-beach day.png"},
		{filename: "../../etc/passwd", want: "photos/1735117200123-passwd"},
		{filename: "50%?.jpg", want: "photos/1735117200123-50__.jpg"},
		{filename: "", want: "photos/1735117200123-upload"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ObjectKey(tt.filename, now))
			assert.NoError(t, validKey(ObjectKey(tt.filename, now)))
		})
	}

	assert.Equal(t, "photos/thumbnails/1-a.jpg", ThumbnailKey("photos/1-a.png"))
}

func TestMakeThumbnail(t *testing.T) {
	src := imaging.New(1200, 600, color.NRGBA{R: 200, G: 80, B: 40, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, src, imaging.PNG))

	img, err := MakeThumbnail(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 1200, img.Width)
	assert.Equal(t, 600, img.Height)

	thumb, err := imaging.Decode(bytes.NewReader(img.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, thumbnailSize, thumb.Bounds().Dx())
	assert.Equal(t, thumbnailSize, thumb.Bounds().Dy())

	_, err = MakeThumbnail([]byte("not an image"))
	assert.Error(t, err)
}

type countingStore struct {
	mu     sync.Mutex
	signed int
}

func (s *countingStore) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string) (string, error) {
	return key, nil
}

func (s *countingStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signed++
	return "https://objects.example/" + key + "?sig=" + strconv.Itoa(s.signed), nil
}

func (s *countingStore) Delete(context.Context, string) error { return nil }

func TestCachedReusesURLs(t *testing.T) {
	var now time.Time
	clock := func() time.Time { return now }
	caches := map[string]func(t *testing.T) URLCache{
		"memory": func(t *testing.T) URLCache {
			c := NewMemoryCache()
			c.now = clock
			return c
		},
		"redis": func(t *testing.T) URLCache {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
			t.Cleanup(func() {
				_ = client.Close()
				mr.Close()
			})
			return NewRedisCache(client, "", zap.NewNop())
		},
	}

	for name, newCache := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now = time.Date(2024, 12, 25, 10, 0, 0, 0, time.UTC)
			inner := &countingStore{}
			store := NewCached(inner, newCache(t))
			store.now = clock

			first, err := store.Presign(ctx, "photos/a.jpg", SignedURLTTL)
			require.NoError(t, err)
			assert.Equal(t, time.Date(2024, 12, 25, 11, 0, 0, 0, time.UTC), first.ExpiresAt)

			now = now.Add(50 * time.Minute)
			second, err := store.Presign(ctx, "photos/a.jpg", SignedURLTTL)
			require.NoError(t, err)
			assert.Equal(t, first, second, "a reused URL keeps its original expiry")
			assert.Equal(t, 1, inner.signed)

			plain, err := store.SignedURL(ctx, "photos/a.jpg", SignedURLTTL)
			require.NoError(t, err)
			assert.Equal(t, first.URL, plain)

			require.NoError(t, store.Delete(ctx, "photos/a.jpg"))
			third, err := store.Presign(ctx, "photos/a.jpg", SignedURLTTL)
			require.NoError(t, err)
			assert.NotEqual(t, first.URL, third.URL)
			assert.Equal(t, now.Add(SignedURLTTL), third.ExpiresAt)

			short, err := store.Presign(ctx, "photos/a.jpg", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, 3, inner.signed, "short lived URLs bypass the cache")
			assert.Equal(t, now.Add(time.Minute), short.ExpiresAt)
		})
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	ctx := context.Background()
	url := PresignedURL{URL: "u", ExpiresAt: now.Add(time.Hour)}

	cache.Set(ctx, "k", url, time.Minute)
	got, ok := cache.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, url, got)

	now = now.Add(time.Minute)
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCacheIgnoresUnreadableEntries(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client, "", zap.NewNop())
	require.NoError(t, mr.Set("familyphotos:url:photos/a.jpg", "https://objects.example/photos/a.jpg"))
	_, ok := cache.Get(context.Background(), "photos/a.jpg")
	assert.False(t, ok)
}

func TestS3AgainstFakeEndpoint(t *testing.T) {
	var (
		mu       sync.Mutex
		puts     []string
		deny     bool
		received []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if deny {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
			return
		}
		switch r.Method {
		case http.MethodPut:
			puts = append(puts, r.URL.Path)
			received, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	store, err := NewS3(ctx, S3Config{
		Region:          "us-east-1",
		Bucket:          "family-photos",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Endpoint:        srv.URL,
	})
	require.NoError(t, err)

	_, err = store.Put(ctx, "photos/1-a.jpg", bytes.NewReader([]byte("abc")), 3, "image/jpeg")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"/family-photos/photos/1-a.jpg"}, puts)
	assert.Contains(t, string(received), "abc")
	mu.Unlock()

	signed, err := store.SignedURL(ctx, "photos/1-a.jpg", SignedURLTTL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, srv.URL+"/family-photos/photos/1-a.jpg?"))
	assert.Contains(t, signed, "X-Amz-Expires=3600")

	require.NoError(t, store.Delete(ctx, "photos/1-a.jpg"))

	mu.Lock()
	deny = true
	mu.Unlock()
	_, err = store.Put(ctx, "photos/2-b.jpg", bytes.NewReader([]byte("abc")), 3, "image/jpeg")
	assert.ErrorIs(t, err, ErrUpload)
	assert.ErrorIs(t, err, ErrAccessDenied)
}
