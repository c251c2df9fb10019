package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"familyphotos/internal/identity"
)

// LocalPrefix is the route under which Local serves signed objects
const LocalPrefix = "/objects/"

type objectClaims struct {
	Key string `json:"key"`
	jwt.RegisteredClaims
}

// Local stores objects on disk and serves them through URLs signed with a JWT.
// It stands in for a managed bucket in development and single-node deployments.
type Local struct {
	dir     string
	baseURL string
	key     []byte
	logger  *zap.Logger
	now     func() time.Time
}

// NewLocal creates a disk backed store rooted at dir. URLs are minted under baseURL.
func NewLocal(dir, baseURL, secret string, logger *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	key, err := identity.DeriveKey([]byte(secret), "object-url")
	if err != nil {
		return nil, err
	}
	return &Local{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (l *Local) path(key string) string {
	return filepath.Join(l.dir, filepath.FromSlash(key))
}

// Put writes the object through a temporary file so readers never see partial content
func (l *Local) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	dest := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, readerWithContext(ctx, body))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	if size >= 0 && written != size {
		return "", &UploadError{Key: key, Err: fmt.Errorf("wrote %d of %d bytes", written, size)}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	return key, nil
}

// SignedURL mints a URL whose token expires after ttl
func (l *Local) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = SignedURLTTL
	}
	now := l.now()
	claims := objectClaims{
		Key: key,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.key)
	if err != nil {
		return "", fmt.Errorf("sign object url: %w", err)
	}
	u := l.baseURL + LocalPrefix + (&url.URL{Path: key}).EscapedPath()
	return u + "?" + url.Values{"token": {token}}.Encode(), nil
}

// Delete removes the object file
func (l *Local) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.Remove(l.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Verify checks that token grants access to key
func (l *Local) Verify(key, token string) error {
	claims := &objectClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(l.now),
	)
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return l.key, nil
	}); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return &AccessDeniedError{Key: key, Reason: "url expired"}
		}
		return &AccessDeniedError{Key: key, Reason: "invalid signature"}
	}
	if claims.Key != key {
		return &AccessDeniedError{Key: key, Reason: "url was signed for another object"}
	}
	return nil
}

// ServeHTTP serves GET /objects/{key}?token=... with 403 once the token has expired
func (l *Local) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, LocalPrefix)
	if err := validKey(key); err != nil {
		http.NotFound(w, r)
		return
	}
	if err := l.Verify(key, r.URL.Query().Get("token")); err != nil {
		l.logger.Debug("object access denied", zap.String("key", key), zap.Error(err))
		http.Error(w, "AccessDenied", http.StatusForbidden)
		return
	}

	f, err := os.Open(l.path(key))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, path.Base(key), info.ModTime(), f)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
