package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinIO answers the handful of bucket and object calls the store makes
type fakeMinIO struct {
	mu        sync.Mutex
	denyHeads bool
	bucket    bool
	heads     int
	creates   int
	puts      []string
	deletes   []string
}

func (f *fakeMinIO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, _ = io.Copy(io.Discard, r.Body)

	isBucket := strings.Count(strings.Trim(r.URL.Path, "/"), "/") == 0
	switch {
	case r.Method == http.MethodHead && isBucket:
		f.heads++
		switch {
		case f.denyHeads:
			w.WriteHeader(http.StatusForbidden)
		case f.bucket:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && isBucket:
		f.creates++
		f.bucket = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		f.puts = append(f.puts, r.URL.Path)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		f.deletes = append(f.deletes, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestMinIOAgainstFakeEndpoint(t *testing.T) {
	fake := &fakeMinIO{denyHeads: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	store, err := NewMinIO(MinIOConfig{
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test-secret",
		Bucket:    " family-photos ",
		Region:    "us-east-1",
	})
	require.NoError(t, err)
	ctx := context.Background()

	err = store.EnsureBucket(ctx)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "family-photos", netErr.Key)

	fake.mu.Lock()
	fake.denyHeads = false
	fake.mu.Unlock()

	require.NoError(t, store.EnsureBucket(ctx), "a failed check is retried")
	require.NoError(t, store.EnsureBucket(ctx))

	_, err = store.Put(ctx, "photos/1-a.jpg", bytes.NewReader([]byte("abc")), 3, "image/jpeg")
	require.NoError(t, err)

	fake.mu.Lock()
	assert.Equal(t, 2, fake.heads, "the bucket is only checked until it is known to exist")
	assert.Equal(t, 1, fake.creates)
	assert.Equal(t, []string{"/family-photos/photos/1-a.jpg"}, fake.puts)
	fake.mu.Unlock()

	signed, err := store.SignedURL(ctx, "photos/1-a.jpg", SignedURLTTL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, srv.URL+"/family-photos/photos/1-a.jpg?"))
	assert.Contains(t, signed, "X-Amz-Expires=3600")

	require.NoError(t, store.Delete(ctx, "photos/1-a.jpg"))
	fake.mu.Lock()
	assert.Equal(t, []string{"/family-photos/photos/1-a.jpg"}, fake.deletes)
	fake.mu.Unlock()

	_, err = store.Put(ctx, "../escape.jpg", bytes.NewReader(nil), 0, "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMinIORequiresEndpoint(t *testing.T) {
	_, err := NewMinIO(MinIOConfig{Bucket: "family-photos"})
	assert.Error(t, err)

	store, err := NewMinIO(MinIOConfig{Endpoint: "localhost:9000"})
	require.NoError(t, err)
	assert.Error(t, store.EnsureBucket(context.Background()))
}
