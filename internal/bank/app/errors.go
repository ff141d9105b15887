package app

import "errors"

// Stable error kinds surfaced by the bank simulator. Each maps to exactly one
// wire code at the API boundary.
var (
	ErrInvalidToken             = errors.New("invalid or expired access token")
	ErrAccountNotFound          = errors.New("account not found")
	ErrInvalidAccount           = errors.New("account ownership validation failed")
	ErrInvalidAmount            = errors.New("amount must be positive")
	ErrInsufficientBalance      = errors.New("insufficient account balance")
	ErrTransferAccountDuplicate = errors.New("source and target accounts are the same")
	ErrTransactionNotFound      = errors.New("transaction not found")
)
