package schema

import (
	"context"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"familyphotos/internal/database"
	"familyphotos/internal/identity"
	"familyphotos/internal/models"
)

// stepClock returns a strictly increasing time on every call
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	db, err := database.Open(database.NewSQLiteDialect(), database.DialectConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations(context.Background()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	hub := NewHub()
	store := NewStore(db, hub, NewLocalBroker(hub), zap.NewNop())
	clock := &stepClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)

	catalog, err := NewCatalog(store)
	if err != nil {
		t.Fatalf("Failed to build catalog: %v", err)
	}
	return catalog
}

func userCtx(id string) context.Context {
	return identity.WithUser(context.Background(), &identity.User{ID: id, Name: "User " + id, Email: id + "@example.com"})
}

func mustAlbum(t *testing.T, c *Catalog, ctx context.Context, name, owner string) *models.Album {
	t.Helper()
	album, err := c.Albums.Create(ctx, &models.Album{Name: name, CreatedBy: owner})
	if err != nil {
		t.Fatalf("Failed to create album: %v", err)
	}
	return album
}

func mustPhoto(t *testing.T, c *Catalog, ctx context.Context, albumID, key string, tags ...string) *models.Photo {
	t.Helper()
	photo, err := c.Photos.Create(ctx, &models.Photo{PhotoFields: models.PhotoFields{
		S3Key:   key,
		AlbumID: albumID,
		Tags:    tags,
	}})
	if err != nil {
		t.Fatalf("Failed to create photo: %v", err)
	}
	return photo
}

func reflectType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
