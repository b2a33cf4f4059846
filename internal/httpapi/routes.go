package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes builds the router with the websocket dispatcher injected.
func SetupRoutes(wsHandler http.HandlerFunc, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", wsHandler)
	r.NotFound(Static(staticDir))
	return r
}
