package api

import (
	"net/http"
	"time"

	"smarttrack/internal/api/handler"
	"smarttrack/internal/api/middleware"
	"smarttrack/internal/app/service"
	"smarttrack/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

func NewRouter(
	authService *service.AuthService,
	userService *service.UserService,
	appService *service.ApplicationService,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies the bearer token when present and puts claims in context.
	// Enforcement happens per-route in middleware.Authenticator.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService, authService)
	appHandler := handler.NewApplicationHandler(appService)

	r.Route("/api", func(api chi.Router) {
		api.Route("/users", func(users chi.Router) {
			// Register/login/logout/refresh are public; refresh and logout
			// authenticate via the httpOnly cookie instead of a bearer token.
			authHandler.RegisterRoutes(users)

			users.Group(func(protected chi.Router) {
				protected.Use(middleware.Authenticator)
				userHandler.RegisterRoutes(protected)
			})
		})

		api.Route("/applications", func(apps chi.Router) {
			apps.Use(middleware.Authenticator)
			appHandler.RegisterRoutes(apps)
		})

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(middleware.Authenticator)
			admin.Use(middleware.AdminOnly)
			appHandler.RegisterAdminRoutes(admin)
		})
	})

	return r
}
