package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// SignedURLTTL is the lifetime of every read URL handed to clients
const SignedURLTTL = time.Hour

const (
	keyPrefix       = "photos/"
	thumbnailPrefix = "photos/thumbnails/"
)

// ObjectStore is durable key-addressed storage for uploaded images
type ObjectStore interface {
	// Put stores body under key, replacing any existing object, and returns key
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	// SignedURL returns a URL readable without credentials until ttl elapses.
	// Expiry is enforced when the URL is fetched.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ObjectKey derives the key for an uploaded file. Keys are unique only while
// upload timestamps are distinct at millisecond resolution.
func ObjectKey(filename string, now time.Time) string {
	return fmt.Sprintf("%s%d-%s", keyPrefix, now.UnixMilli(), sanitizeFilename(filename))
}

// ThumbnailKey returns the key of the thumbnail generated for key
func ThumbnailKey(key string) string {
	name := strings.TrimPrefix(key, keyPrefix)
	name = strings.TrimSuffix(name, path.Ext(name))
	return thumbnailPrefix + name + ".jpg"
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '?' || r == '#' || r == '%':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.HasPrefix(key, "../") || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
