/**
 * @description
 * This file defines the data access contract for the wallet service. The
 * Repository interface abstracts all database operations so the application
 * layer can be tested against stubs, and sentinel errors give callers stable
 * kinds to branch on.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/google/uuid"
)

var (
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrAccountNotFound         = errors.New("wallet account not found")
	ErrDuplicateAccount        = errors.New("account already linked")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrTransactionNotPending   = errors.New("transaction is not pending")
	ErrDutchpayNotFound        = errors.New("dutchpay not found")
	ErrParticipantNotFound     = errors.New("dutchpay participant not found")
	ErrParticipantSettled      = errors.New("dutchpay participant already settled")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// Repository is the data access contract for the wallet ledger.
type Repository interface {
	// Wallets
	FindWalletByMemberID(ctx context.Context, memberID uuid.UUID) (*domain.Wallet, error)
	SetWalletPIN(ctx context.Context, walletID uuid.UUID, pinHash string) error
	ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)

	// Linked external accounts
	FindWalletAccount(ctx context.Context, accountNumber string) (*domain.WalletAccount, error)
	FindWalletAccountForWallet(ctx context.Context, walletID uuid.UUID, accountNumber string) (*domain.WalletAccount, error)
	ListWalletAccounts(ctx context.Context, walletID uuid.UUID) ([]domain.WalletAccount, error)
	CreateWalletAccount(ctx context.Context, account *domain.WalletAccount) error
	SetMainWalletAccount(ctx context.Context, walletID uuid.UUID, accountNumber string) error

	// External-bank movements (paired rows on the owning wallet)
	CreatePendingDeposit(ctx context.Context, walletID uuid.UUID, amount int64, counterparty string) (domain.TransactionPair, error)
	CreatePendingWithdrawal(ctx context.Context, walletID uuid.UUID, amount int64, counterparty string) (domain.TransactionPair, error)
	AttachBankReference(ctx context.Context, pair domain.TransactionPair, bankTransferID string) error
	CompleteDeposit(ctx context.Context, pair domain.TransactionPair, walletID uuid.UUID, amount int64) error
	CompleteWithdrawal(ctx context.Context, pair domain.TransactionPair) error
	FailPair(ctx context.Context, pair domain.TransactionPair) error
	RefundWithdrawal(ctx context.Context, pair domain.TransactionPair, walletID uuid.UUID, amount int64) error

	// Wallet-to-wallet movement
	TransferBetweenWallets(ctx context.Context, sourceWalletID, targetWalletID uuid.UUID, amount int64) (domain.TransactionPair, error)

	// Dutch-pay settlement
	CreateDutchpay(ctx context.Context, d *domain.Dutchpay, participants []domain.DutchpayParticipant, txns []domain.Transaction) error
	FindDutchpay(ctx context.Context, dutchpayID uuid.UUID) (*domain.Dutchpay, error)
	CompleteParticipantOffPlatform(ctx context.Context, dutchpayID, walletID uuid.UUID) (*domain.SettlementResult, error)
	SettleParticipantTransfer(ctx context.Context, dutchpayID, walletID uuid.UUID) (*domain.SettlementResult, error)
	ListDemandsByHost(ctx context.Context, hostWalletID uuid.UUID) ([]domain.DutchpayDemand, error)
	ListReceiptsByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.DutchpayReceipt, error)

	// Reconciliation
	ListStalePendingExternal(ctx context.Context, cutoff time.Time, limit int) ([]domain.PendingExternal, error)

	// Idempotency
	RegisterIdempotencyKey(ctx context.Context, walletID uuid.UUID, operation, key string) error
}
