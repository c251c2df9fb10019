package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"familyphotos/internal/identity"
	"familyphotos/internal/security"
)

// AuthHandler handles session issuance and the identity endpoints
type AuthHandler struct {
	sessions             *identity.SessionManager
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	devLogin             bool
	logger               *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *identity.SessionManager, providers map[string]OAuthProvider, oauthRedirectBaseURL string, devLogin bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:             sessions,
		oauthProviders:       providers,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		devLogin:             devLogin,
		logger:               logger,
	}
}

type sessionResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *identity.User `json:"user"`
}

// Me returns the authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: ErrUnauthorized})
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Logout clears the session cookie. Bearer tokens expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	w.WriteHeader(http.StatusNoContent)
}

// DevLogin issues a session for any asserted user. It is mounted only when
// AUTH_DEV_LOGIN is enabled.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	if !h.devLogin {
		respondWithError(w, h.logger, http.StatusNotFound, ErrNotFound, "", nil)
		return
	}
	var body struct {
		ID    string `json:"id"`
		Name  string `json:"displayName"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&body); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidBody, "", err)
		return
	}
	body.ID = strings.TrimSpace(body.ID)
	if body.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "is required", Field: "id"})
		return
	}
	h.startSession(w, r, &identity.User{ID: body.ID, Name: body.Name, Email: body.Email})
}

// startSession issues a token for user, sets it as the session cookie and returns it
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *identity.User) {
	token, expiresAt, err := h.sessions.Issue(user)
	if err != nil {
		respondWithError(w, h.logger, http.StatusInternalServerError, ErrInternalServerError, "failed to issue session", err)
		return
	}
	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, token, expiresAt))
	h.logger.Info("session started", zap.String("user_id", user.ID))
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		User:      user,
	})
}
