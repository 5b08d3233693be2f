package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pk55-api/database"
	"pk55-api/metrics"
	"pk55-api/middleware"
	"pk55-api/services/auth"
)

// RouterDeps carries everything the routes need. RateLimiter, Redis and
// MetricsHandler are optional.
type RouterDeps struct {
	Store          database.Store
	JWT            *auth.JWTService
	AllowRegister  bool
	Media          MediaHost
	Remover        AssetRemover
	RateLimiter    *middleware.RateLimiter
	Redis          Pinger
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
}

// NewRouter builds the HTTP router of the API.
func NewRouter(d RouterDeps) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RecoverMiddleware)
	router.Use(middleware.CORSMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)
	router.Use(middleware.LoggingMiddleware(d.Metrics))

	authHandler := NewAuthHandler(d.JWT, d.AllowRegister)
	bannerHandler := NewBannerHandler(d.Store)
	imageHandler := NewImageHandler(d.Store, d.Media, d.Remover)
	settingsHandler := NewSettingsHandler(d.Store)
	healthHandler := NewHealthHandler(d.Store, d.Redis)

	requireAuth := middleware.AuthMiddleware(d.JWT)
	protected := func(h http.HandlerFunc) http.Handler {
		return requireAuth(h)
	}

	router.HandleFunc("/", Root).Methods("GET")

	metricsHandler := d.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	router.Handle("/metrics", metricsHandler).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", healthHandler.Health).Methods("GET")

	authRouter := api.PathPrefix("/auth").Subrouter()
	if d.RateLimiter != nil {
		authRouter.Use(d.RateLimiter.RateLimitMiddleware())
	}
	authRouter.HandleFunc("/login", authHandler.Login).Methods("POST", "OPTIONS")
	authRouter.HandleFunc("/register", authHandler.Register).Methods("POST", "OPTIONS")
	authRouter.Handle("/me", protected(authHandler.Me)).Methods("GET", "OPTIONS")

	api.HandleFunc("/banner", bannerHandler.GetBanner).Methods("GET", "OPTIONS")
	api.Handle("/banner", protected(bannerHandler.UpdateBanner)).Methods("PUT", "OPTIONS")
	api.Handle("/banner/upload", protected(bannerHandler.UploadImage)).Methods("POST", "OPTIONS")
	api.HandleFunc("/banner/image", bannerHandler.GetImage).Methods("GET", "OPTIONS")

	api.HandleFunc("/images", imageHandler.ListImages).Methods("GET", "OPTIONS")
	api.Handle("/images/upload", protected(imageHandler.UploadImage)).Methods("POST", "OPTIONS")
	api.Handle("/images/{id:.+}/update-date", protected(imageHandler.UpdateImageDate)).Methods("PUT", "OPTIONS")
	api.Handle("/images/{id:.+}/replace", protected(imageHandler.ReplaceImage)).Methods("PUT", "OPTIONS")
	api.Handle("/images/{id:.+}", protected(imageHandler.DeleteImage)).Methods("DELETE", "OPTIONS")

	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET", "OPTIONS")
	api.Handle("/settings", protected(settingsHandler.UpdateSettings)).Methods("PUT", "OPTIONS")

	return router
}
