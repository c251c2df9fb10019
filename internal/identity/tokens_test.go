package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	m, err := NewSessionManager("secret", time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := m.Issue(&User{ID: "u1", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	user, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "u1", Name: "Ana", Email: "ana@example.com"}, user)
}

func TestSessionRejections(t *testing.T) {
	m, err := NewSessionManager("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewSessionManager("other-secret", time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue(&User{ID: "u1"})
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = m.Verify("garbage")
	assert.True(t, errors.Is(err, ErrInvalidToken))

	issued := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issued }
	token, _, err = m.Issue(&User{ID: "u1"})
	require.NoError(t, err)
	m.now = time.Now
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestDeriveKeyIsPurposeBound(t *testing.T) {
	a, err := DeriveKey([]byte("secret"), "session")
	require.NoError(t, err)
	b, err := DeriveKey([]byte("secret"), "object-url")
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestUserContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	_, ok = FromContext(WithUser(context.Background(), &User{}))
	assert.False(t, ok, "a user without id is not authenticated")

	user, ok := FromContext(WithUser(context.Background(), &User{ID: "u1"}))
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana", (&User{Name: "Ana", Email: "a@x"}).DisplayName())
	assert.Equal(t, "a@x", (&User{Email: "a@x"}).DisplayName())
	assert.Equal(t, "Usuario", (&User{}).DisplayName())
}
