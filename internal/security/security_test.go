package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("u1"), "request %d", i)
	}
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "keys are independent")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("u1"), "window refills")

	now = now.Add(3 * time.Minute)
	rl.cleanup()
	assert.Equal(t, 0, rl.Len())
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, want: "198.51.100.2"},
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.remote != "" {
				r.RemoteAddr = tt.remote
			}
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r))
}

func TestSessionCookieSecureBehindProxy(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, CreateSessionCookie(r, SessionCookieName, "v", time.Now()).Secure)

	r.Header.Set("X-Forwarded-Proto", "https")
	c := CreateSessionCookie(r, SessionCookieName, "v", time.Now())
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, -1, CreateDeleteCookie(r, SessionCookieName).MaxAge)
}
