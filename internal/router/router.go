package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"card-admin/internal/config"
	"card-admin/internal/handler"
	"card-admin/internal/metrics"
	"card-admin/internal/middleware"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	Card   *handler.CardHandler
	Audit  *handler.AuditHandler
	Health *handler.HealthHandler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.NewProxyTrust(cfg.TrustedProxies).Handler)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	r.Get("/health", h.Health.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login/username", h.Auth.Login)
			auth.Post("/refresh-token", h.Auth.Refresh)
			auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		api.Route("/users", func(users chi.Router) {
			users.Use(authMiddleware.RequireAuth)
			users.Patch("/me", h.User.UpdateMe)
			users.Put("/me/password", h.User.ChangePassword)

			users.Group(func(admin chi.Router) {
				admin.Use(authMiddleware.RequireAdmin)
				admin.Get("/", h.User.List)
				admin.Get("/{id}", h.User.Get)
				admin.Patch("/{id}/flags", h.User.UpdateFlags)
				admin.Delete("/{id}", h.User.Delete)
			})
		})

		api.Route("/cards", func(cards chi.Router) {
			cards.Use(authMiddleware.RequireAuth)
			cards.Get("/", h.Card.List)
			cards.Post("/", h.Card.Create)
			cards.Get("/{id}", h.Card.Get)
			cards.Put("/{id}", h.Card.Update)
			cards.Delete("/{id}", h.Card.Delete)
		})

		api.With(authMiddleware.RequireAuth, authMiddleware.RequireAdmin).Get("/admin/audit", h.Audit.List)
	})

	return r
}
