/**
 * @description
 * This file contains the core application service for the wallet ledger. It
 * orchestrates external charges and withdrawals against the bank API, wallet to
 * wallet transfers, and wallet PIN management.
 *
 * Key design decisions:
 * - External movements write a durable PENDING transaction pair before the
 *   outbound bank call, so a crash mid-flight leaves a record the reconciliation
 *   sweep can resolve instead of silently losing money.
 * - Withdrawals debit the wallet up front under a row lock; a failed or
 *   unverifiable bank transfer triggers a compensating refund.
 * - Every outbound transfer is verified with a follow-up search call checking
 *   both amount and counterparty before the ledger pair is completed.
 *
 * @dependencies
 * - internal/wallet/store: Repository contract and sentinel errors.
 * - pkg/bankclient: HTTP client for the bank-simulator API.
 * - pkg/rabbitmq: settlement event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/store"
	"github.com/DDuMandoo/moba-sub000/pkg/bankclient"
	"github.com/DDuMandoo/moba-sub000/pkg/rabbitmq"
)

// Idempotency operation names. Keys are scoped per wallet and operation.
const (
	opDeposit        = "deposit"
	opWithdraw       = "withdraw"
	opWalletTransfer = "wallet_transfer"
)

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

// errTransferMismatch marks a bank transfer that exists but does not match the
// expected amount or counterparty. Unlike transport errors this is definitive.
var errTransferMismatch = errors.New("transfer verification mismatch")

// BankClient is the subset of the bank-simulator API the wallet service calls.
// *bankclient.Client satisfies it; tests substitute stubs.
type BankClient interface {
	Transfer(ctx context.Context, req bankclient.TransferRequest) (*bankclient.TransferResult, error)
	Valid(ctx context.Context, req bankclient.ValidRequest) (*bankclient.ValidResult, error)
	Search(ctx context.Context, req bankclient.SearchRequest) (*bankclient.SearchResult, error)
}

// Service implements the wallet service use cases.
type Service struct {
	repo   store.Repository
	bank   BankClient
	codes  CodeStore
	events rabbitmq.Publisher

	// operatorAccount is the platform's operating account at the bank; all
	// charges land there and all withdrawals are paid out of it.
	operatorAccount string
	operatorToken   string
	operatorBank    string
	codeTTL         time.Duration
}

// NewService creates a wallet application service.
func NewService(repo store.Repository, bank BankClient, codes CodeStore, events rabbitmq.Publisher, operatorAccount, operatorToken, operatorBank string, codeTTL time.Duration) *Service {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	return &Service{
		repo:            repo,
		bank:            bank,
		codes:           codes,
		events:          events,
		operatorAccount: operatorAccount,
		operatorToken:   operatorToken,
		operatorBank:    operatorBank,
		codeTTL:         codeTTL,
	}
}

// GetWallet returns the member's wallet with its current balance.
func (s *Service) GetWallet(ctx context.Context, memberID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.FindWalletByMemberID(ctx, memberID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, ErrInvalidWallet
		}
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return wallet, nil
}

// ListTransactions returns the wallet's ledger history, newest first.
func (s *Service) ListTransactions(ctx context.Context, memberID uuid.UUID) ([]domain.Transaction, error) {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}
	txns, err := s.repo.ListTransactionsByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txns, nil
}

// claimIdempotency registers a one-shot idempotency key when the caller supplied
// one. A replayed key is rejected before any money moves.
func (s *Service) claimIdempotency(ctx context.Context, walletID uuid.UUID, operation, key string) error {
	if key == "" {
		return nil
	}
	if err := s.repo.RegisterIdempotencyKey(ctx, walletID, operation, key); err != nil {
		if errors.Is(err, store.ErrDuplicateIdempotencyKey) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("failed to register idempotency key: %w", err)
	}
	return nil
}

// Deposit charges the wallet from a linked external account: the full amount is
// pulled from the account into the platform's operating account, verified, and
// only then credited to the wallet balance.
func (s *Service) Deposit(ctx context.Context, memberID uuid.UUID, req domain.DepositRequest, idemKey string) (*domain.Wallet, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}
	linked, err := s.repo.FindWalletAccountForWallet(ctx, wallet.ID, req.Account)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidVerificationAccount
		}
		return nil, fmt.Errorf("failed to load linked account: %w", err)
	}
	if err := s.claimIdempotency(ctx, wallet.ID, opDeposit, idemKey); err != nil {
		return nil, err
	}

	// Durable intent before the outbound call.
	pair, err := s.repo.CreatePendingDeposit(ctx, wallet.ID, req.Amount, linked.AccountNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending deposit: %w", err)
	}

	transfer, err := s.bank.Transfer(ctx, bankclient.TransferRequest{
		AccessToken: linked.AccessToken,
		Bank:        s.operatorBank,
		Amount:      req.Amount,
		Name:        "wallet charge",
		Target:      s.operatorAccount,
	})
	if err != nil {
		log.Printf("level=warn component=wallet_service op=deposit wallet_id=%s msg=\"bank transfer failed\" error=%q", wallet.ID, err)
		if failErr := s.repo.FailPair(ctx, pair); failErr != nil {
			log.Printf("level=error component=wallet_service op=deposit wallet_id=%s msg=\"failed to mark pair failed\" error=%q", wallet.ID, failErr)
		}
		return nil, ErrFailChargeAccount
	}
	if err := s.repo.AttachBankReference(ctx, pair, transfer.DepositID); err != nil {
		log.Printf("level=error component=wallet_service op=deposit wallet_id=%s msg=\"failed to attach bank reference\" error=%q", wallet.ID, err)
	}

	if err := s.verifyIncoming(ctx, transfer.DepositID, req.Amount, linked.AccountNumber); err != nil {
		// Money may have left the member's account; push it back before failing.
		s.compensate(ctx, s.operatorToken, linked.Bank, linked.AccountNumber, req.Amount, "wallet charge reversal")
		if failErr := s.repo.FailPair(ctx, pair); failErr != nil {
			log.Printf("level=error component=wallet_service op=deposit wallet_id=%s msg=\"failed to mark pair failed\" error=%q", wallet.ID, failErr)
		}
		return nil, ErrFailChargeAccount
	}

	if err := s.repo.CompleteDeposit(ctx, pair, wallet.ID, req.Amount); err != nil {
		return nil, fmt.Errorf("failed to complete deposit: %w", err)
	}
	log.Printf("level=info component=wallet_service op=deposit wallet_id=%s amount=%d msg=\"deposit completed\"", wallet.ID, req.Amount)
	return s.GetWallet(ctx, memberID)
}

// Withdraw pays wallet balance out to a linked external account. The wallet is
// debited up front under a row lock; any bank-side failure refunds the debit.
func (s *Service) Withdraw(ctx context.Context, memberID uuid.UUID, req domain.WithdrawRequest, idemKey string) (*domain.Wallet, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}
	linked, err := s.repo.FindWalletAccountForWallet(ctx, wallet.ID, req.Account)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidVerificationAccount
		}
		return nil, fmt.Errorf("failed to load linked account: %w", err)
	}
	if err := s.claimIdempotency(ctx, wallet.ID, opWithdraw, idemKey); err != nil {
		return nil, err
	}

	pair, err := s.repo.CreatePendingWithdrawal(ctx, wallet.ID, req.Amount, linked.AccountNumber)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to create pending withdrawal: %w", err)
	}

	transfer, err := s.bank.Transfer(ctx, bankclient.TransferRequest{
		AccessToken: s.operatorToken,
		Bank:        linked.Bank,
		Amount:      req.Amount,
		Name:        "wallet withdrawal",
		Target:      linked.AccountNumber,
	})
	if err != nil {
		log.Printf("level=warn component=wallet_service op=withdraw wallet_id=%s msg=\"bank transfer failed, refunding\" error=%q", wallet.ID, err)
		if refundErr := s.repo.RefundWithdrawal(ctx, pair, wallet.ID, req.Amount); refundErr != nil {
			log.Printf("level=error component=wallet_service op=withdraw wallet_id=%s msg=\"refund failed\" error=%q", wallet.ID, refundErr)
		}
		return nil, ErrFailChargeAccount
	}
	if err := s.repo.AttachBankReference(ctx, pair, transfer.DepositID); err != nil {
		log.Printf("level=error component=wallet_service op=withdraw wallet_id=%s msg=\"failed to attach bank reference\" error=%q", wallet.ID, err)
	}

	if err := s.verifyOutgoing(ctx, linked.AccessToken, transfer.DepositID, req.Amount); err != nil {
		// Claw the payout back into the operating account, then refund the wallet.
		s.compensate(ctx, linked.AccessToken, s.operatorBank, s.operatorAccount, req.Amount, "wallet withdrawal reversal")
		if refundErr := s.repo.RefundWithdrawal(ctx, pair, wallet.ID, req.Amount); refundErr != nil {
			log.Printf("level=error component=wallet_service op=withdraw wallet_id=%s msg=\"refund failed\" error=%q", wallet.ID, refundErr)
		}
		return nil, ErrFailChargeAccount
	}

	if err := s.repo.CompleteWithdrawal(ctx, pair); err != nil {
		return nil, fmt.Errorf("failed to complete withdrawal: %w", err)
	}
	log.Printf("level=info component=wallet_service op=withdraw wallet_id=%s amount=%d msg=\"withdrawal completed\"", wallet.ID, req.Amount)
	return s.GetWallet(ctx, memberID)
}

// TransferWallet moves balance between two member wallets in one database
// transaction, then publishes a settlement-paid event on a best-effort basis.
func (s *Service) TransferWallet(ctx context.Context, memberID uuid.UUID, req domain.WalletTransferRequest, idemKey string) (*domain.Wallet, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.TargetMemberID == memberID {
		return nil, ErrTransferAccountDuplicate
	}
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}
	target, err := s.repo.FindWalletByMemberID(ctx, req.TargetMemberID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to load target wallet: %w", err)
	}
	if err := s.claimIdempotency(ctx, wallet.ID, opWalletTransfer, idemKey); err != nil {
		return nil, err
	}

	if _, err := s.repo.TransferBetweenWallets(ctx, wallet.ID, target.ID, req.Amount); err != nil {
		if errors.Is(err, store.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to transfer between wallets: %w", err)
	}
	log.Printf("level=info component=wallet_service op=transfer_wallet source=%s target=%s amount=%d msg=\"wallet transfer completed\"", wallet.ID, target.ID, req.Amount)

	if err := s.events.PublishSettlementPaid(ctx, rabbitmq.SettlementPaidEvent{
		SenderMemberID:   memberID,
		ReceiverMemberID: req.TargetMemberID,
		Amount:           req.Amount,
		Timestamp:        time.Now().UTC(),
	}); err != nil {
		log.Printf("level=warn component=wallet_service op=transfer_wallet msg=\"failed to publish settlement event\" error=%q", err)
	}
	return s.GetWallet(ctx, memberID)
}

// SetPIN hashes and stores the wallet PIN. The PIN is 4 to 6 digits.
func (s *Service) SetPIN(ctx context.Context, memberID uuid.UUID, pin string) error {
	if !pinPattern.MatchString(pin) {
		return ErrInvalidPIN
	}
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash pin: %w", err)
	}
	if err := s.repo.SetWalletPIN(ctx, wallet.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to store pin: %w", err)
	}
	return nil
}

// VerifyPIN checks the supplied PIN against the stored hash.
func (s *Service) VerifyPIN(ctx context.Context, memberID uuid.UUID, pin string) error {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return err
	}
	if wallet.PINHash == nil {
		return ErrPINNotSet
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*wallet.PINHash), []byte(pin)); err != nil {
		return ErrInvalidPIN
	}
	return nil
}

// verifyIncoming confirms a charge landed in the operating account with the
// expected amount and source account.
func (s *Service) verifyIncoming(ctx context.Context, bankTransferID string, amount int64, sourceAccount string) error {
	found, err := s.bank.Search(ctx, bankclient.SearchRequest{
		AccessToken: s.operatorToken,
		ID:          bankTransferID,
	})
	if err != nil {
		return fmt.Errorf("failed to verify incoming transfer: %w", err)
	}
	if found.Amount != amount || found.TargetID != sourceAccount {
		return fmt.Errorf("%w: got amount=%d target=%s", errTransferMismatch, found.Amount, found.TargetID)
	}
	return nil
}

// verifyOutgoing confirms a payout landed in the member's account with the
// expected amount, sent by the operating account.
func (s *Service) verifyOutgoing(ctx context.Context, accountToken, bankTransferID string, amount int64) error {
	found, err := s.bank.Search(ctx, bankclient.SearchRequest{
		AccessToken: accountToken,
		ID:          bankTransferID,
	})
	if err != nil {
		return fmt.Errorf("failed to verify outgoing transfer: %w", err)
	}
	if found.Amount != amount || found.TargetID != s.operatorAccount {
		return fmt.Errorf("%w: got amount=%d target=%s", errTransferMismatch, found.Amount, found.TargetID)
	}
	return nil
}

// compensate sends money back where it came from after a failed verification.
// Failures here are logged, not returned: the pair is failed either way and the
// reconciliation sweep plus the bank's own ledger keep the evidence.
func (s *Service) compensate(ctx context.Context, accessToken, bank, target string, amount int64, name string) {
	if _, err := s.bank.Transfer(ctx, bankclient.TransferRequest{
		AccessToken: accessToken,
		Bank:        bank,
		Amount:      amount,
		Name:        name,
		Target:      target,
	}); err != nil {
		log.Printf("level=error component=wallet_service op=compensate target=%s amount=%d msg=\"compensating transfer failed\" error=%q", target, amount, err)
	}
}
