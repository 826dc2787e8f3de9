package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinickit/clinic-auth-api/internal/config"
	"github.com/clinickit/clinic-auth-api/internal/http/handler"
	"github.com/clinickit/clinic-auth-api/internal/http/middleware"
	"github.com/clinickit/clinic-auth-api/internal/http/response"
	"github.com/clinickit/clinic-auth-api/internal/security"
)

const maxBodyBytes = 1 << 20

// Deps carries everything the router needs wired in.
type Deps struct {
	Config      *config.Config
	JWTManager  *security.JWTManager
	AuthHandler *handler.AuthHandler
	Redis       redis.UniversalClient
	Ready       func() error
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.CORSOriginList(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newLimiter(d, d.Config.APIRateLimitRPM, "api").Middleware())

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "NOT_READY", "dependency not ready", nil)
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	authLimiter := newLimiter(d, d.Config.AuthRateLimitRPM, "auth")
	forgotLimiter := newLimiter(d, d.Config.ForgotRateLimitRPM, "forgot_password")

	r.Route("/api/auth", func(r chi.Router) {
		r.With(authLimiter.Middleware()).Post("/register", d.AuthHandler.Register)
		r.With(authLimiter.Middleware()).Post("/login", d.AuthHandler.Login)
		r.With(authLimiter.Middleware()).Post("/refresh", d.AuthHandler.Refresh)
		r.Post("/logout", d.AuthHandler.Logout)
		r.With(forgotLimiter.Middleware()).Post("/forgot-password", d.AuthHandler.ForgotPassword)
		r.With(authLimiter.Middleware()).Post("/reset-password", d.AuthHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.JWTManager))
			r.Get("/me", d.AuthHandler.Me)
			r.Get("/sessions", d.AuthHandler.Sessions)
		})
	})

	return otelhttp.NewHandler(r, "clinic-auth-api")
}

func newLimiter(d Deps, rpm int, scope string) *middleware.RateLimiter {
	if d.Redis != nil {
		redisLimiter := middleware.NewRedisSlidingWindowLimiter(d.Redis, "rate_limit")
		return middleware.NewDistributedRateLimiter(redisLimiter, rpm, time.Minute, middleware.FailOpen, scope)
	}
	return middleware.NewRateLimiter(rpm, time.Minute, scope)
}
