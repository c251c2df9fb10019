package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"familyphotos/internal/config"
	"familyphotos/internal/database"
	"familyphotos/internal/handlers"
	"familyphotos/internal/identity"
	"familyphotos/internal/logger"
	"familyphotos/internal/pubsub"
	"familyphotos/internal/schema"
	"familyphotos/internal/security"
	"familyphotos/internal/service"
	"familyphotos/internal/storage"
)

const (
	stepDatabase = "database"
	stepRealtime = "realtime"
	stepStorage  = "storage"
	stepServices = "services"

	joinAttemptsPerMinute = 10
	brokerReadyTimeout    = 10 * time.Second
	shutdownTimeout       = 15 * time.Second
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startup := handlers.NewStartupStatus(stepDatabase, stepRealtime, stepStorage, stepServices)

	// The listener comes up first so /health can report progress while the
	// rest of the process initializes.
	var app atomic.Pointer[http.Handler]
	server := &http.Server{
		Addr: ":" + cfg.ServerPort,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h := app.Load(); h != nil {
				(*h).ServeHTTP(w, r)
				return
			}
			if r.URL.Path == "/health" {
				startup.ServeHTTP(w, r)
				return
			}
			http.Error(w, "Server starting", http.StatusServiceUnavailable)
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Observe streams stay open, so writes are not bounded here.
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	startup.SetCurrentStep("Connecting to database...")
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	log.Info("database ready", zap.String("type", cfg.DatabaseType))
	startup.CompleteStep(stepDatabase)

	startup.SetCurrentStep("Starting change feed...")
	hub := schema.NewHub()
	var (
		broker      schema.Broker = schema.NewLocalBroker(hub)
		redisClient *goredis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = pubsub.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal("failed to configure redis", zap.Error(err))
		}
		defer redisClient.Close()

		redisBroker := pubsub.NewRedisBroker(redisClient, "", log)
		ready := make(chan struct{})
		go func() {
			if err := redisBroker.Run(ctx, hub, ready); err != nil && ctx.Err() == nil {
				log.Error("change feed stopped", zap.Error(err))
			}
		}()
		select {
		case <-ready:
		case <-time.After(brokerReadyTimeout):
			log.Fatal("timed out subscribing to change feed")
		}
		broker = redisBroker
		log.Info("change feed using redis")
	}
	store := schema.NewStore(db, hub, broker, log)
	catalog, err := schema.NewCatalog(store)
	if err != nil {
		log.Fatal("failed to register models", zap.Error(err))
	}
	startup.CompleteStep(stepRealtime)

	startup.SetCurrentStep("Connecting to object storage...")
	objects, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open object storage", zap.Error(err))
	}
	local, _ := objects.(*storage.Local)
	var urlCache storage.URLCache = storage.NewMemoryCache()
	if redisClient != nil {
		urlCache = storage.NewRedisCache(redisClient, "", log)
	}
	cachedObjects := storage.NewCached(objects, urlCache)
	log.Info("object storage ready", zap.String("backend", cfg.StorageBackend))
	startup.CompleteStep(stepStorage)

	startup.SetCurrentStep("Starting services...")
	sessions, err := identity.NewSessionManager(cfg.AuthSecret, cfg.SessionDuration)
	if err != nil {
		log.Fatal("failed to configure sessions", zap.Error(err))
	}
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, log)
	if err != nil {
		log.Fatal("failed to configure email", zap.Error(err))
	}
	families := service.NewFamilyService(catalog, emailService, log)

	joinLimiter := security.NewRateLimiter(joinAttemptsPerMinute, time.Minute)
	go joinLimiter.Run(ctx, 5*time.Minute)

	router := handlers.NewRouter(handlers.Dependencies{
		Sessions:             sessions,
		Store:                store,
		Profiles:             service.NewProfileService(catalog, log),
		Families:             families,
		Albums:               service.NewAlbumService(catalog, families, cachedObjects, log),
		Photos:               service.NewPhotoService(catalog, families, cachedObjects, log),
		Social:               service.NewSocialService(catalog, families, log),
		OAuthProviders:       oauthProviders(cfg),
		Objects:              local,
		JoinLimiter:          joinLimiter,
		Startup:              startup,
		OAuthRedirectBaseURL: cfg.OAuthRedirectBaseURL,
		DevLogin:             cfg.DevLoginEnabled,
		CORSOrigins:          cfg.CORSOrigins,
		MaxUploadSize:        cfg.UploadMaxSize,
		Logger:               log,
	})
	if cfg.DevLoginEnabled {
		log.Warn("development login is enabled")
	}
	app.Store(&router)
	startup.CompleteStep(stepServices)
	startup.MarkReady()
	log.Info("server ready")

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

// oauthProviders returns the sign-in providers that have credentials configured
func oauthProviders(cfg *config.Config) map[string]handlers.OAuthProvider {
	providers := map[string]handlers.OAuthProvider{}
	if cfg.GoogleClientID != "" {
		providers["google"] = handlers.OAuthProvider{
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		}
	}
	return providers
}
