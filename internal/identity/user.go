package identity

import "context"

// User is the caller as asserted by the identity provider
type User struct {
	ID    string `json:"id"`
	Name  string `json:"displayName"`
	Email string `json:"email"`
}

type contextKey struct{}

// WithUser returns a context carrying the authenticated user
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// FromContext returns the authenticated user, if any
func FromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextKey{}).(*User)
	if !ok || user == nil || user.ID == "" {
		return nil, false
	}
	return user, true
}

// DisplayName falls back to the email and then to a placeholder when the provider sent no name
func (u *User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return "Usuario"
	}
}
