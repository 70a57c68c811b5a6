package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/chat-bridge/internal/api/response"
	"github.com/Rrens/chat-bridge/internal/llm"
)

// Check is one readiness probe
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status of the session store backends
func ReadyCheck(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for _, c := range checks {
			if err := c.Ping(r.Context()); err != nil {
				failed[c.Name] = err.Error()
			}
		}

		if len(failed) > 0 {
			response.Error(w, http.StatusServiceUnavailable, failed)
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListLLMProviders returns the registered LLM providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        router.GetProvidersInfo(),
			"default_provider": router.DefaultProvider(),
		})
	}
}
