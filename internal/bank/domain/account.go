/**
 * @description
 * This file defines the domain models for the bank simulator: customer accounts
 * and the double-entry transaction rows written for every transfer.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// BankTransactionType marks the side a bank transaction row records.
type BankTransactionType string

const (
	BankDeposit  BankTransactionType = "D"
	BankWithdraw BankTransactionType = "W"
)

// BankAccount is one customer account at the simulated bank. Deleted accounts
// are soft-deleted and excluded from every lookup.
type BankAccount struct {
	ID            uuid.UUID  `json:"id"`
	BankID        string     `json:"bank_id"`
	AccountNumber string     `json:"account"`
	Balance       int64      `json:"balance"`
	Name          string     `json:"name"`
	PasswordHash  string     `json:"-"`
	UniqueID      string     `json:"unique_id"`
	RefreshToken  *string    `json:"-"`
	IsDeleted     bool       `json:"-"`
	DeletedAt     *time.Time `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
}

// BankTransaction is one side of a transfer on the bank's own ledger. The name
// is the sender-chosen display string; account verification flows read the
// wallet service's code out of it.
type BankTransaction struct {
	ID              uuid.UUID           `json:"id"`
	AccountID       uuid.UUID           `json:"account_id"`
	TargetAccountID uuid.UUID           `json:"target_account_id"`
	Amount          int64               `json:"amount"`
	Type            BankTransactionType `json:"type"`
	Name            string              `json:"name"`
	TransactionAt   time.Time           `json:"transaction_at"`
}

// TransferOutcome carries the ids of the two rows written for a transfer.
type TransferOutcome struct {
	WithdrawID uuid.UUID `json:"withdrawId"`
	DepositID  uuid.UUID `json:"depositId"`
}

// SearchOutcome is the verification view of one bank transaction: its amount
// and the counterparty's account number.
type SearchOutcome struct {
	Amount   int64  `json:"amount"`
	TargetID string `json:"targetId"`
}
