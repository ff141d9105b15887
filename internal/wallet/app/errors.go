package app

import "errors"

// Stable error kinds surfaced by the wallet service. Each maps to exactly one
// wire code at the API boundary; handlers branch on these with errors.Is.
var (
	ErrInvalidWallet                  = errors.New("wallet not found for member")
	ErrMemberNotFound                 = errors.New("transfer target member not found")
	ErrInvalidAmount                  = errors.New("amount must be positive")
	ErrInsufficientBalance            = errors.New("insufficient wallet balance")
	ErrTransferAccountDuplicate       = errors.New("transfer source and target are the same")
	ErrFailChargeAccount              = errors.New("external transfer verification failed")
	ErrInvalidVerificationAccount     = errors.New("account missing or not verifiable")
	ErrInvalidVerificationAccountCode = errors.New("verification code mismatch")
	ErrDuplicateConnectAccount        = errors.New("account already linked to a wallet")
	ErrNotMatchPrice                  = errors.New("participant shares do not sum to total price")
	ErrInvalidHost                    = errors.New("caller is not the dutchpay host")
	ErrNotFoundDutchpay               = errors.New("dutchpay not found")
	ErrNotFoundDutchpayParticipant    = errors.New("dutchpay participant not found")
	ErrAlreadyCompleteDutchpay        = errors.New("dutchpay participant already settled")
	ErrDuplicateRequest               = errors.New("duplicate request for idempotency key")
	ErrPINNotSet                      = errors.New("wallet pin not set")
	ErrInvalidPIN                     = errors.New("invalid wallet pin")
)
