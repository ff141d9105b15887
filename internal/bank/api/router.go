/**
 * @description
 * This file sets up the HTTP router for the bank simulator. Authentication is
 * carried in request bodies as access tokens, so the router only applies the
 * standard logging, recovery, and timeout middleware.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BankRoutes creates and returns a new router for the bank simulator.
func BankRoutes(h *BankHandlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Post("/create", h.CreateAccountHandler)
	r.Post("/valid", h.ValidHandler)
	r.Post("/refresh", h.RefreshHandler)
	r.Post("/transfer", h.TransferHandler)
	r.Post("/search", h.SearchHandler)

	return r
}
