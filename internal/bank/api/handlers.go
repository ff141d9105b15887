/**
 * @description
 * This file contains the HTTP handlers for the bank simulator. The API is
 * body-token based: callers pass their access token in the request payload
 * rather than an Authorization header, and every response uses the same
 * success/error envelope the wallet service's client expects.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/bank/app"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type responseEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(responseEnvelope{Success: true, Data: data}); err != nil {
		log.Printf("level=error component=bank_api msg=\"failed to encode response\" error=%q", err)
	}
}

func translate(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, app.ErrInsufficientBalance):
		return http.StatusBadRequest, "INSUFFICIENT_BALANCE"
	case errors.Is(err, app.ErrTransferAccountDuplicate):
		return http.StatusBadRequest, "TRANSFER_ACCOUNT_DUPLICATE"
	case errors.Is(err, app.ErrInvalidAccount):
		return http.StatusBadRequest, "INVALID_ACCOUNT"
	case errors.Is(err, app.ErrInvalidToken):
		return http.StatusUnauthorized, "INVALID_TOKEN"
	case errors.Is(err, app.ErrAccountNotFound):
		return http.StatusNotFound, "ACCOUNT_NOT_FOUND"
	case errors.Is(err, app.ErrTransactionNotFound):
		return http.StatusNotFound, "NOT_FOUND_TRANSACTION"
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := translate(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Unmapped errors wrap driver internals; those stay in the logs.
		log.Printf("level=error component=bank_api msg=\"request failed\" error=%q", err)
		message = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(responseEnvelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	}); encErr != nil {
		log.Printf("level=error component=bank_api msg=\"failed to encode error response\" error=%q", encErr)
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(responseEnvelope{
		Success: false,
		Error:   &errorBody{Code: "BAD_REQUEST", Message: message},
	})
}

// BankHandlers holds the dependencies for the bank HTTP handlers.
type BankHandlers struct {
	service *app.Service
}

// NewBankHandlers creates a new set of bank handlers.
func NewBankHandlers(service *app.Service) *BankHandlers {
	return &BankHandlers{service: service}
}

type createAccountRequest struct {
	BankID   string `json:"bankId"`
	UniqueID string `json:"uniqueId"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// CreateAccountHandler opens a new account.
func (h *BankHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	result, err := h.service.CreateAccount(r.Context(), req.BankID, req.UniqueID, req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type validRequest struct {
	UniqueID string `json:"uniqueId"`
	Account  string `json:"account"`
	Bank     string `json:"bank"`
}

// ValidHandler confirms account ownership and issues a token pair.
func (h *BankHandlers) ValidHandler(w http.ResponseWriter, r *http.Request) {
	var req validRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	result, err := h.service.Valid(r.Context(), req.Bank, req.UniqueID, req.Account)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshHandler rotates a refresh token into a new token pair.
func (h *BankHandlers) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	result, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type transferRequest struct {
	AccessToken string `json:"accessToken"`
	Bank        string `json:"bank"`
	Amount      int64  `json:"amount"`
	Name        string `json:"name"`
	Target      string `json:"target"`
}

// TransferHandler moves money from the token holder's account to the target.
func (h *BankHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	outcome, err := h.service.Transfer(r.Context(), req.AccessToken, req.Target, req.Amount, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type searchRequest struct {
	AccessToken string `json:"accessToken"`
	ID          string `json:"id"`
}

// SearchHandler reads one of the token holder's transactions for verification.
func (h *BankHandlers) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	transactionID, err := uuid.Parse(req.ID)
	if err != nil {
		writeBadRequest(w, "invalid transaction id")
		return
	}
	outcome, err := h.service.Search(r.Context(), req.AccessToken, transactionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
