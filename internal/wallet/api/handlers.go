/**
 * @description
 * This file contains the HTTP handlers for the wallet service. Handlers decode
 * the request, resolve the authenticated member, delegate to the application
 * service, and write the response envelope. All error mapping lives in
 * response.go.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/app"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
)

// idempotencyKeyHeader carries the caller-chosen key that makes money-moving
// requests safe to retry.
const idempotencyKeyHeader = "Idempotency-Key"

// WalletHandlers holds the dependencies for the wallet HTTP handlers.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new set of wallet handlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

func (h *WalletHandlers) memberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	memberID, ok := GetMemberID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return memberID, true
}

// GetWalletHandler returns the member's wallet and balance.
func (h *WalletHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.GetWallet(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// ListTransactionsHandler returns the wallet's ledger history.
func (h *WalletHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	txns, err := h.service.ListTransactions(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

// DepositHandler charges the wallet from a linked external account.
func (h *WalletHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	wallet, err := h.service.Deposit(r.Context(), memberID, req, r.Header.Get(idempotencyKeyHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// WithdrawHandler pays wallet balance out to a linked external account.
func (h *WalletHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req domain.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	wallet, err := h.service.Withdraw(r.Context(), memberID, req, r.Header.Get(idempotencyKeyHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// TransferHandler moves balance to another member's wallet.
func (h *WalletHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req domain.WalletTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	wallet, err := h.service.TransferWallet(r.Context(), memberID, req, r.Header.Get(idempotencyKeyHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// SetPINHandler sets the wallet PIN.
func (h *WalletHandlers) SetPINHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.service.SetPIN(r.Context(), memberID, req.PIN); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// VerifyPINHandler checks a PIN against the stored hash.
func (h *WalletHandlers) VerifyPINHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.service.VerifyPIN(r.Context(), memberID, req.PIN); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// ListAccountsHandler returns the wallet's linked external accounts.
func (h *WalletHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ConnectAccountHandler starts the micro-transfer verification flow.
func (h *WalletHandlers) ConnectAccountHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req domain.ConnectAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.service.ConnectAccount(r.Context(), memberID, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// AuthAccountHandler finishes verification and links the account.
func (h *WalletHandlers) AuthAccountHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req domain.AuthAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	account, err := h.service.AuthAccount(r.Context(), memberID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// ChangeMainAccountHandler switches the main linked account.
func (h *WalletHandlers) ChangeMainAccountHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req domain.ChangeMainAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := h.service.ChangeMainAccount(r.Context(), memberID, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// CreateDutchpayHandler creates a dutch-pay split hosted by the caller.
func (h *WalletHandlers) CreateDutchpayHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	var req domain.CreateDutchpayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	d, err := h.service.CreateDutchpay(r.Context(), memberID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func dutchpayIDFromURL(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "dutchpayID"))
}

// GetDutchpayHandler returns a dutch-pay event by id.
func (h *WalletHandlers) GetDutchpayHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.memberID(w, r); !ok {
		return
	}
	dutchpayID, err := dutchpayIDFromURL(r)
	if err != nil {
		writeBadRequest(w, "invalid dutchpay id")
		return
	}
	d, err := h.service.GetDutchpay(r.Context(), dutchpayID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CompleteDutchpayHandler lets the host mark a share settled off-platform.
func (h *WalletHandlers) CompleteDutchpayHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	dutchpayID, err := dutchpayIDFromURL(r)
	if err != nil {
		writeBadRequest(w, "invalid dutchpay id")
		return
	}
	var req domain.CompleteDutchpayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	result, err := h.service.CompleteDutchpay(r.Context(), memberID, dutchpayID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// TransferDutchpayHandler settles the caller's own share by wallet transfer.
func (h *WalletHandlers) TransferDutchpayHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	dutchpayID, err := dutchpayIDFromURL(r)
	if err != nil {
		writeBadRequest(w, "invalid dutchpay id")
		return
	}
	result, err := h.service.TransferDutchpay(r.Context(), memberID, dutchpayID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListDemandsHandler lists open claims the caller holds as host.
func (h *WalletHandlers) ListDemandsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	demands, err := h.service.GetDemands(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, demands)
}

// ListReceiptsHandler lists the shares the caller still owes.
func (h *WalletHandlers) ListReceiptsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.memberID(w, r)
	if !ok {
		return
	}
	receipts, err := h.service.GetReceipts(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}
