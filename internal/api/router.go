// Package api serves the operator HTTP API next to the chat listeners
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/chat-bridge/internal/api/handler"
	customMiddleware "github.com/Rrens/chat-bridge/internal/api/middleware"
	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/llm"
	"github.com/Rrens/chat-bridge/internal/security"
)

// requestTimeout bounds every admin request
const requestTimeout = 30 * time.Second

// Deps are the components the operator API reads from
type Deps struct {
	Admin   config.AdminConfig
	Store   domain.SessionStore
	LLM     *llm.Router
	Limiter customMiddleware.Limiter
	Stats   map[string]handler.StatsSource
	Ready   []handler.Check
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtManager := security.NewJWTManager(deps.Admin.JWTSecret, deps.Admin.AccessTokenTTL)

	authHandler := handler.NewAuthHandler(deps.Admin, jwtManager)
	sessionHandler := handler.NewSessionHandler(deps.Store)

	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Ready...))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if deps.Limiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
			}

			if deps.LLM != nil {
				r.Get("/llm/providers", handler.ListLLMProviders(deps.LLM))
			}
			r.Get("/stats", handler.Stats(deps.Stats))

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", sessionHandler.List)
				r.Route("/{key}", func(r chi.Router) {
					r.Get("/", sessionHandler.Get)
					r.Delete("/turns", sessionHandler.ClearTurns)
				})
			})
		})
	})

	return r
}
