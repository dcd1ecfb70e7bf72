package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// UploadLimits bounds multipart request bodies.
type UploadLimits struct {
	// MaxBody caps the whole request body.
	MaxBody int64
	// MaxFile is the largest accepted image. Larger parts are read one byte
	// past the limit so validation can reject them.
	MaxFile int64
}

// StaticAssets serves a filesystem asset directory under a URL prefix.
type StaticAssets struct {
	Dir    string
	Prefix string
}

// RouterConfig holds everything NewRouter mounts.
type RouterConfig struct {
	Accounts    AccountService
	Sessions    SessionIssuer
	Listings    ListingService
	Tokens      ClaimsDecoder
	Health      *health.Handler
	LoginLimits *middleware.RateLimiter
	Registry    *prometheus.Registry
	CORS        middleware.CORSConfig
	Limits      UploadLimits
	// Static is nil unless assets live on the local filesystem.
	Static *StaticAssets
	Logger *slog.Logger
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(cfg.Logger))
	if cfg.Registry != nil {
		r.Use(middleware.NewHTTPMetrics(cfg.Registry, "marketplace").Middleware)
	}

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry}))
	}

	if cfg.Static != nil {
		prefix := "/" + strings.Trim(cfg.Static.Prefix, "/")
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Static.Dir)))
		r.With(middleware.CacheControl(int((24 * time.Hour).Seconds()))).
			Get(prefix+"/*", noDirectoryListing(files).ServeHTTP)
	}

	authenticate := middleware.Auth(TokenValidator(cfg.Tokens, time.Now))

	authHandler := NewAuthHandler(cfg.Accounts, cfg.Sessions, cfg.Tokens, cfg.Limits, cfg.Logger)
	accountHandler := NewAccountHandler(cfg.Accounts, cfg.Listings, cfg.Limits, cfg.Logger)
	listingHandler := NewListingHandler(cfg.Listings, cfg.Limits, cfg.Logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Get("/verify-email", authHandler.VerifyEmail)
		if cfg.LoginLimits != nil {
			r.With(cfg.LoginLimits.Middleware).Post("/login", authHandler.Login)
		} else {
			r.Post("/login", authHandler.Login)
		}
		r.With(authenticate, middleware.RequestLogger(cfg.Logger)).Get("/session", authHandler.Session)
	})

	r.Route("/api/v1/accounts/{id}", func(r chi.Router) {
		r.Get("/listings", accountHandler.ListListings)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequestLogger(cfg.Logger))

			r.Get("/", accountHandler.GetAccount)
			r.Put("/", accountHandler.UpdateAccount)
		})
	})

	r.Route("/api/v1/listings", func(r chi.Router) {
		r.Get("/", listingHandler.ListListings)
		r.Get("/{id}", listingHandler.GetListing)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequestLogger(cfg.Logger))

			r.Post("/", listingHandler.CreateListing)
			r.Put("/{id}", listingHandler.UpdateListing)
		})
	})

	return r
}

// TokenValidator bridges the session codec to the auth middleware. Tokens
// must verify and must not be expired at now().
func TokenValidator(decoder ClaimsDecoder, now func() time.Time) middleware.TokenValidator {
	return func(_ context.Context, token string) (*middleware.Principal, error) {
		claims, err := decoder.Decode(token)
		if err != nil {
			return nil, err
		}
		if claims.Expired(now()) {
			return nil, apperrors.InvalidToken(nil)
		}
		return &middleware.Principal{AccountID: claims.ID, Email: claims.Email}, nil
	}
}

func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
