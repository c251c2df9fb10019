package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"familyphotos/internal/identity"
	"familyphotos/internal/schema"
	"familyphotos/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		if status >= http.StatusInternalServerError {
			logger.Error(logMsg, zap.Int("status", status), zap.Error(err))
		} else {
			logger.Debug(logMsg, zap.Int("status", status), zap.Error(err))
		}
	}
	writeJSON(w, status, errorResponse{Error: userMsg})
}

// respondWithServiceError maps a service or data layer error to a status code.
// Unexpected errors are logged and reported without detail.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		validation *schema.ValidationError
		denied     *storage.AccessDeniedError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validation.Message, Field: validation.Field})
	case errors.Is(err, schema.ErrUnauthorized):
		status := http.StatusUnauthorized
		if _, ok := identity.FromContext(r.Context()); ok {
			status = http.StatusForbidden
		}
		respondWithError(w, logger, status, authMessage(err), "", err)
	case errors.As(err, &denied):
		respondWithError(w, logger, http.StatusForbidden, ErrForbidden, "object access denied", err)
	case errors.Is(err, schema.ErrNotFound):
		respondWithError(w, logger, http.StatusNotFound, notFoundMessage(err), "", err)
	case errors.Is(err, storage.ErrInvalidKey):
		respondWithError(w, logger, http.StatusBadRequest, "invalid object key", "", err)
	case errors.Is(err, schema.ErrConflict):
		respondWithError(w, logger, http.StatusConflict, conflictMessage(err), "", err)
	case errors.Is(err, storage.ErrUpload), errors.Is(err, storage.ErrNetwork):
		respondWithError(w, logger, http.StatusBadGateway, ErrStorageUnavailable, "object store failure", err)
	default:
		respondWithError(w, logger, http.StatusInternalServerError, ErrInternalServerError, "request failed", err)
	}
}

func authMessage(err error) string {
	var authErr *schema.AuthorizationError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return ErrUnauthorized
}

func notFoundMessage(err error) string {
	var notFound *schema.NotFoundError
	if errors.As(err, &notFound) {
		return notFound.Error()
	}
	return ErrNotFound
}

func conflictMessage(err error) string {
	var conflict *schema.ConflictError
	if errors.As(err, &conflict) && conflict.Message != "" {
		return conflict.Message
	}
	return "conflict"
}
