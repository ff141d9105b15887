/**
 * @description
 * This file sets up the HTTP router for the wallet service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * middleware for logging, panic recovery, timeouts, and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// WalletRoutes creates and returns a new router for the wallet service.
func WalletRoutes(h *WalletHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Wallet balance and ledger
		r.Get("/wallet", h.GetWalletHandler)
		r.Get("/wallet/transactions", h.ListTransactionsHandler)
		r.Post("/wallet/deposit", h.DepositHandler)
		r.Post("/wallet/withdraw", h.WithdrawHandler)
		r.Post("/wallet/transfer", h.TransferHandler)
		r.Put("/wallet/pin", h.SetPINHandler)
		r.Post("/wallet/pin/verify", h.VerifyPINHandler)

		// Linked external accounts
		r.Get("/accounts", h.ListAccountsHandler)
		r.Post("/accounts/connect", h.ConnectAccountHandler)
		r.Post("/accounts/auth", h.AuthAccountHandler)
		r.Put("/accounts/main", h.ChangeMainAccountHandler)

		// Dutch-pay settlement
		r.Post("/dutchpay", h.CreateDutchpayHandler)
		r.Get("/dutchpay/demands", h.ListDemandsHandler)
		r.Get("/dutchpay/receipts", h.ListReceiptsHandler)
		r.Get("/dutchpay/{dutchpayID}", h.GetDutchpayHandler)
		r.Post("/dutchpay/{dutchpayID}/complete", h.CompleteDutchpayHandler)
		r.Post("/dutchpay/{dutchpayID}/transfer", h.TransferDutchpayHandler)
	})

	return r
}
