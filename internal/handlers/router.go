package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"familyphotos/internal/identity"
	"familyphotos/internal/schema"
	"familyphotos/internal/security"
	"familyphotos/internal/service"
	"familyphotos/internal/storage"
)

// Dependencies are the collaborators the router wires into handlers
type Dependencies struct {
	Sessions       *identity.SessionManager
	Store          *schema.Store
	Profiles       *service.ProfileService
	Families       *service.FamilyService
	Albums         *service.AlbumService
	Photos         *service.PhotoService
	Social         *service.SocialService
	OAuthProviders map[string]OAuthProvider
	// Objects serves signed object URLs when photos are stored on local disk
	Objects *storage.Local
	// JoinLimiter throttles join attempts per client
	JoinLimiter *security.RateLimiter
	Startup     *StartupStatus

	OAuthRedirectBaseURL string
	DevLogin             bool
	CORSOrigins          []string
	MaxUploadSize        int64
	Logger               *zap.Logger
}

// NewRouter builds the HTTP API
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	mw := NewMiddleware(deps.Sessions, logger)

	authHandler := NewAuthHandler(deps.Sessions, deps.OAuthProviders, deps.OAuthRedirectBaseURL, deps.DevLogin, logger)
	dataHandler := NewDataHandler(deps.Store, logger)
	profileHandler := NewProfileHandler(deps.Profiles, logger)
	familyHandler := NewFamilyHandler(deps.Families, logger)
	albumHandler := NewAlbumHandler(deps.Albums, deps.Photos, deps.MaxUploadSize, logger)
	photoHandler := NewPhotoHandler(deps.Photos, deps.Social, logger)
	familyPhotoHandler := NewFamilyPhotoHandler(deps.Photos, deps.Social, logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Authenticate)

	if deps.Startup != nil {
		r.Method(http.MethodGet, "/health", deps.Startup)
	}
	if deps.Objects != nil {
		r.Handle(storage.LocalPrefix+"*", deps.Objects)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/logout", authHandler.Logout)
		r.Get("/{provider}/start", authHandler.StartOAuth)
		r.Get("/{provider}/callback", authHandler.OAuthCallback)
		if deps.DevLogin {
			r.Post("/dev-login", authHandler.DevLogin)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.RequireAuth)

		r.Get("/me", authHandler.Me)
		r.Route("/data", dataHandler.Routes)

		r.Get("/profile", profileHandler.Get)
		r.Patch("/profile", profileHandler.Update)

		r.Route("/families", func(r chi.Router) {
			r.Get("/", familyHandler.List)
			r.Post("/", familyHandler.Create)
			if deps.JoinLimiter != nil {
				r.With(mw.RateLimit(deps.JoinLimiter)).Post("/join", familyHandler.Join)
			} else {
				r.Post("/join", familyHandler.Join)
			}
			r.Get("/{id}/members", familyHandler.Members)
			r.Delete("/{id}/membership", familyHandler.Leave)
			r.Post("/{id}/invite", familyHandler.Invite)
		})

		r.Route("/albums", func(r chi.Router) {
			r.Get("/", albumHandler.ListAlbums)
			r.Post("/", albumHandler.CreateAlbum)
			r.Get("/{id}/photos", albumHandler.AlbumPhotos)
			r.Post("/{id}/photos", albumHandler.UploadPhoto)
		})
		r.Route("/family-albums", func(r chi.Router) {
			r.Get("/", albumHandler.ListFamilyAlbums)
			r.Post("/", albumHandler.CreateFamilyAlbum)
			r.Get("/{id}/photos", albumHandler.FamilyAlbumPhotos)
			r.Post("/{id}/photos", albumHandler.UploadFamilyPhoto)
		})

		r.Route("/photos", photoHandler.Routes)
		r.Route("/family-photos", familyPhotoHandler.Routes)
	})

	return r
}
