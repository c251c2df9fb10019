package handlers

const (
	ErrInvalidBody         = "Invalid request body"
	ErrUnauthorized        = "Authentication required"
	ErrForbidden           = "Forbidden"
	ErrNotFound            = "Not found"
	ErrStorageUnavailable  = "Photo storage is unavailable"
	ErrInternalServerError = "Internal server error"
	ErrTooManyRequests     = "Too many requests"

	// maxJSONBody bounds JSON request bodies; uploads use the configured limit
	maxJSONBody = 1 << 20
)
