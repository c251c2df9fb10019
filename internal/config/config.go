package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort    string
	LogLevel      string
	UploadMaxSize int64
	CORSOrigins   []string

	DatabaseType string
	DatabaseURL  string
	DatabasePath string

	AuthSecret           string
	SessionDuration      time.Duration
	DevLoginEnabled      bool
	GoogleClientID       string
	GoogleClientSecret   string
	OAuthRedirectBaseURL string

	StorageBackend   string
	StorageBucket    string
	StorageRegion    string
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageUseSSL    bool
	StorageLocalDir  string
	PublicBaseURL    string

	RedisURL string

	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:    getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		UploadMaxSize: getEnvInt64("UPLOAD_MAX_SIZE", 20*1024*1024), // 20MB
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DatabasePath: getEnv("DB_PATH", "./familyphotos.db"),

		AuthSecret:           getEnv("AUTH_SECRET", ""),
		SessionDuration:      getEnvDuration("SESSION_DURATION", 24*time.Hour),
		DevLoginEnabled:      getEnvBool("AUTH_DEV_LOGIN", false),
		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", ""),

		StorageBackend:   getEnv("STORAGE_BACKEND", "local"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "family-photos"),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", ""),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageUseSSL:    getEnvBool("STORAGE_USE_SSL", true),
		StorageLocalDir:  getEnv("STORAGE_LOCAL_DIR", "./data/objects"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		RedisURL: getEnv("REDIS_URL", ""),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Family Photos"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),
	}
}

// Validate reports settings the server cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.AuthSecret == "" {
		errs = append(errs, errors.New("AUTH_SECRET is required"))
	}
	switch strings.ToLower(c.StorageBackend) {
	case "s3", "minio":
		if c.StorageBucket == "" {
			errs = append(errs, errors.New("STORAGE_BUCKET is required"))
		}
		if strings.EqualFold(c.StorageBackend, "minio") && c.StorageEndpoint == "" {
			errs = append(errs, errors.New("STORAGE_ENDPOINT is required for minio"))
		}
	case "local":
		if c.StorageLocalDir == "" {
			errs = append(errs, errors.New("STORAGE_LOCAL_DIR is required"))
		}
	default:
		errs = append(errs, errors.New("STORAGE_BACKEND must be one of s3, minio, local"))
	}
	switch strings.ToLower(c.DatabaseType) {
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for "+c.DatabaseType))
		}
	}
	return errors.Join(errs...)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
