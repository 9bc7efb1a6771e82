// Package api exposes the daemon's HTTP surface: the WebSocket command
// channel at /ws and the static web UI at /.
package api

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openfsr/fsrd/internal/events"
	"github.com/openfsr/fsrd/internal/models"
)

// CommandProcessor is the interface the WebSocket sessions use to run
// client commands and read state.
type CommandProcessor interface {
	Apply(ctx context.Context, cmd models.Command) models.Response
	State() models.State
}

// NewRouter creates and returns the main HTTP router. webDir is the
// directory holding the static web UI; empty disables it.
func NewRouter(ctrl CommandProcessor, bus *events.Bus, webDir string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, bus: bus}

	r.Get("/ws", h.handleWS)

	if webDir != "" {
		r.Get("/debug", func(w http.ResponseWriter, req *http.Request) {
			http.ServeFile(w, req, filepath.Join(webDir, "debug.html"))
		})
		r.Handle("/*", http.FileServer(http.Dir(webDir)))
	}

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
