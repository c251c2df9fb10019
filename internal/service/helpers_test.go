package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"familyphotos/internal/database"
	"familyphotos/internal/identity"
	"familyphotos/internal/schema"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

var errStoreDown = errors.New("object store unavailable")

// memStore is an in-memory ObjectStore
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    bool
	failDelete bool
	afterPut   func()
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if m.failPut {
		return "", errStoreDown
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	if m.afterPut != nil {
		m.afterPut()
	}
	return key, nil
}

func (m *memStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "mem://" + key + "?ttl=" + ttl.String(), nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	if m.failDelete {
		return errStoreDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// fakeInviter records invitations instead of sending them
type fakeInviter struct {
	mu   sync.Mutex
	sent []invite
}

type invite struct {
	To, Inviter, Family, Code string
}

func (f *fakeInviter) SendFamilyInvite(_ context.Context, toEmail, inviterName, familyName, familyCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, invite{To: toEmail, Inviter: inviterName, Family: familyName, Code: familyCode})
	return nil
}

type testEnv struct {
	db       *database.DB
	clock    *stepClock
	catalog  *schema.Catalog
	objects  *memStore
	invites  *fakeInviter
	profiles *ProfileService
	families *FamilyService
	albums   *AlbumService
	photos   *PhotoService
	social   *SocialService
	backup   *BackupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(database.NewSQLiteDialect(), database.DialectConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background()))

	logger := zap.NewNop()
	hub := schema.NewHub()
	store := schema.NewStore(db, hub, schema.NewLocalBroker(hub), logger)
	clock := &stepClock{now: time.Date(2024, 12, 25, 9, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)
	catalog, err := schema.NewCatalog(store)
	require.NoError(t, err)

	env := &testEnv{db: db, clock: clock, catalog: catalog, objects: newMemStore(), invites: &fakeInviter{}}
	env.profiles = NewProfileService(catalog, logger)
	env.families = NewFamilyService(catalog, env.invites, logger)
	env.albums = NewAlbumService(catalog, env.families, env.objects, logger)
	env.photos = NewPhotoService(catalog, env.families, env.objects, logger)
	env.photos.now = clock.Now
	env.social = NewSocialService(catalog, env.families, logger)
	env.backup = NewBackupService(db, store, logger)
	env.backup.now = clock.Now
	return env
}

func userCtx(id string) context.Context {
	return identity.WithUser(context.Background(), &identity.User{ID: id, Name: "User " + id, Email: id + "@example.com"})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
