package handler

import (
	"net/http"

	"github.com/Rrens/chat-bridge/internal/api/response"
)

// StatsSource reports one component's counters
type StatsSource func() any

// Stats returns a snapshot of every registered source
func Stats(sources map[string]StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := make(map[string]any, len(sources))
		for name, src := range sources {
			out[name] = src()
		}
		response.OK(w, out)
	}
}
