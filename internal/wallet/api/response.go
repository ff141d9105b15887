/**
 * @description
 * This file defines the response envelope and the single translation point from
 * application error kinds to HTTP status codes and stable wire codes. Handlers
 * never map errors themselves; everything funnels through writeError.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/app"
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
		log.Printf("level=error component=wallet_api msg=\"failed to encode response\" error=%q", err)
	}
}

// translate maps an application error kind to its HTTP status and wire code.
func translate(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, app.ErrInsufficientBalance):
		return http.StatusBadRequest, "INSUFFICIENT_BALANCE"
	case errors.Is(err, app.ErrTransferAccountDuplicate):
		return http.StatusBadRequest, "TRANSFER_ACCOUNT_DUPLICATE"
	case errors.Is(err, app.ErrFailChargeAccount):
		return http.StatusBadRequest, "FAIL_CHARGE_ACCOUNT"
	case errors.Is(err, app.ErrInvalidVerificationAccount):
		return http.StatusBadRequest, "INVALID_VERIFICATION_ACCOUNT"
	case errors.Is(err, app.ErrInvalidVerificationAccountCode):
		return http.StatusBadRequest, "INVALID_VERIFICATION_ACCOUNT_CODE"
	case errors.Is(err, app.ErrNotMatchPrice):
		return http.StatusBadRequest, "NOT_MATCH_PRICE"
	case errors.Is(err, app.ErrInvalidPIN):
		return http.StatusBadRequest, "INVALID_PIN"
	case errors.Is(err, app.ErrInvalidHost):
		return http.StatusForbidden, "INVALID_HOST"
	case errors.Is(err, app.ErrInvalidWallet):
		return http.StatusNotFound, "INVALID_WALLET"
	case errors.Is(err, app.ErrMemberNotFound):
		return http.StatusNotFound, "MEMBER_NOT_FOUND"
	case errors.Is(err, app.ErrNotFoundDutchpay):
		return http.StatusNotFound, "NOT_FOUND_DUTCHPAY"
	case errors.Is(err, app.ErrNotFoundDutchpayParticipant):
		return http.StatusNotFound, "NOT_FOUND_DUTCHPAY_PARTICIPANT"
	case errors.Is(err, app.ErrPINNotSet):
		return http.StatusNotFound, "PIN_NOT_SET"
	case errors.Is(err, app.ErrDuplicateConnectAccount):
		return http.StatusConflict, "DUPLICATE_CONNECT_ACCOUNT"
	case errors.Is(err, app.ErrAlreadyCompleteDutchpay):
		return http.StatusConflict, "ALREADY_COMPLETE_DUTCHPAY"
	case errors.Is(err, app.ErrDuplicateRequest):
		return http.StatusConflict, "DUPLICATE_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, code := translate(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Unmapped errors wrap driver internals; those stay in the logs.
		log.Printf("level=error component=wallet_api msg=\"request failed\" error=%q", err)
		message = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(responseEnvelope{
		Success: false,
		Error:   &errorBody{Code: code, Message: message},
	}); encErr != nil {
		log.Printf("level=error component=wallet_api msg=\"failed to encode error response\" error=%q", encErr)
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
