package handlers

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"familyphotos/internal/identity"
	"familyphotos/internal/security"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	sessions *identity.SessionManager
	logger   *zap.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(sessions *identity.SessionManager, logger *zap.Logger) *Middleware {
	return &Middleware{sessions: sessions, logger: logger}
}

// Authenticate attaches the session user to the request context when the
// request carries a valid token. Requests without one continue anonymously.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := security.TokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := m.sessions.Verify(token)
		if err != nil {
			m.logger.Debug("rejected session token", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), user)))
	})
}

// RequireAuth rejects requests without an authenticated user
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identity.FromContext(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit allows each client limiter's quota and answers 429 beyond it
func (m *Middleware) RateLimit(limiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := security.GetClientIP(r)
			if !limiter.Allow(ip) {
				m.logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: ErrTooManyRequests})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Logging logs every request with its status and duration
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		m.logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		)
	})
}
