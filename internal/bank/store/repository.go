/**
 * @description
 * This file defines the data access contract for the bank simulator. The
 * Repository interface abstracts all database operations so the application
 * layer can be tested against stubs, and sentinel errors give callers stable
 * kinds to branch on.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/bank/domain"
)

var (
	ErrAccountNotFound        = errors.New("bank account not found")
	ErrDuplicateAccountNumber = errors.New("account number already exists")
	ErrInsufficientBalance    = errors.New("insufficient account balance")
	ErrTransactionNotFound    = errors.New("bank transaction not found")
)

// Repository is the data access contract for the bank simulator.
type Repository interface {
	CreateAccount(ctx context.Context, account *domain.BankAccount) error
	FindAccountByUnique(ctx context.Context, bankID, uniqueID, accountNumber string) (*domain.BankAccount, error)
	SaveRefreshToken(ctx context.Context, accountID uuid.UUID, refreshToken string) error

	// ExecuteTransfer atomically moves money between two accounts and writes
	// the withdraw/deposit row pair.
	ExecuteTransfer(ctx context.Context, sourceAccountNumber, targetAccountNumber string, amount int64, name string) (*domain.TransferOutcome, error)

	// FindTransactionForAccount reads one ledger row, scoped to the account so
	// a token for one account cannot read another account's history.
	FindTransactionForAccount(ctx context.Context, accountID uuid.UUID, transactionID uuid.UUID) (*domain.BankTransaction, error)
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.BankAccount, error)
}
