/**
 * @description
 * This file defines the core domain models for the wallet service: the member
 * wallet, its linked external bank accounts, and the paired ledger transactions.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit, which avoids
 *   floating-point inaccuracies with financial data.
 * - Every money movement produces two Transaction rows, one per side, created in
 *   the same database transaction and finalized together.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType marks which side of a movement a ledger row records.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "DEPOSIT"
	TransactionWithdraw TransactionType = "WITHDRAW"
)

// TransactionStatus is the three-state lifecycle of a ledger row. Transitions
// are forward-only: pending -> completed | failed, terminal once set.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// Wallet is the internal balance account belonging to one member. The balance
// never goes negative; withdraw paths check sufficiency under a row lock.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	MemberID  uuid.UUID `json:"member_id"`
	Amount    int64     `json:"amount"`
	PINHash   *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// WalletAccount is an external bank account linked to a wallet after the
// micro-transfer verification flow. At most one account per wallet is main.
type WalletAccount struct {
	AccountNumber string    `json:"account"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Bank          string    `json:"bank"`
	IsMain        bool      `json:"is_main"`
	AccessToken   string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// MovementKind classifies what operation produced a transaction pair. The
// reconciliation sweep uses it to decide how a stale pending pair is resolved.
type MovementKind string

const (
	KindExternalDeposit  MovementKind = "EXTERNAL_DEPOSIT"
	KindExternalWithdraw MovementKind = "EXTERNAL_WITHDRAW"
	KindWalletTransfer   MovementKind = "WALLET_TRANSFER"
	KindDutchpay         MovementKind = "DUTCHPAY"
)

// Transaction is one side (debit or credit) of a money movement. For
// self-referential external deposits/withdrawals the target wallet equals the
// source wallet. Immutable once finalized.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	WalletID       uuid.UUID         `json:"wallet_id"`
	TargetWalletID uuid.UUID         `json:"target_wallet_id"`
	Amount         int64             `json:"amount"`
	Type           TransactionType   `json:"type"`
	Kind           MovementKind      `json:"kind"`
	Status         TransactionStatus `json:"status"`
	BankTransferID *string           `json:"bank_transfer_id,omitempty"`
	Counterparty   *string           `json:"counterparty,omitempty"`
	PayAt          time.Time         `json:"pay_at"`
}

// TransactionPair identifies the two rows written for one movement.
type TransactionPair struct {
	WithdrawID uuid.UUID `json:"withdraw_id"`
	DepositID  uuid.UUID `json:"deposit_id"`
}

// PendingExternal is a reconciliation candidate: an external-bank movement whose
// local pair is still pending past the eligibility age.
type PendingExternal struct {
	Pair           TransactionPair
	WalletID       uuid.UUID
	Amount         int64
	Kind           MovementKind
	BankTransferID string
	AccountNumber  string
	PayAt          time.Time
}

// DepositRequest is the DTO for incoming charge (external -> wallet) requests.
type DepositRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// WithdrawRequest is the DTO for incoming withdrawal (wallet -> external) requests.
type WithdrawRequest struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
}

// WalletTransferRequest is the DTO for peer wallet-to-wallet transfer requests.
type WalletTransferRequest struct {
	TargetMemberID uuid.UUID `json:"target_member_id"`
	Amount         int64     `json:"amount"`
}

// ConnectAccountRequest is the DTO for starting external account verification.
type ConnectAccountRequest struct {
	Account string `json:"account"`
	Bank    string `json:"bank"`
}

// AuthAccountRequest is the DTO for finishing external account verification.
type AuthAccountRequest struct {
	Account string `json:"account"`
	Bank    string `json:"bank"`
	Code    string `json:"code"`
}

// ChangeMainAccountRequest is the DTO for switching the main linked account.
type ChangeMainAccountRequest struct {
	Account string `json:"account"`
}
