/**
 * @description
 * This file contains the core application service for the bank simulator:
 * account creation, ownership validation with token issuing, transfers between
 * accounts, and token-gated transaction lookup.
 *
 * Key design decisions:
 * - Account numbers are 13 random digits rendered XXX-XXXXXX-XXXX; generation
 *   retries on the rare collision instead of coordinating a sequence.
 * - Every operation that moves or reads money resolves the caller's account
 *   from the access token, never from request fields.
 *
 * @dependencies
 * - internal/bank/store: Repository contract and sentinel errors.
 * - golang.org/x/crypto/bcrypt: account password hashing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DDuMandoo/moba-sub000/internal/bank/domain"
	"github.com/DDuMandoo/moba-sub000/internal/bank/store"
)

const accountNumberRetries = 5

// Service implements the bank simulator use cases.
type Service struct {
	repo   store.Repository
	tokens *TokenIssuer

	// initialBalance seeds new accounts so transfer flows can be exercised
	// without a funding step.
	initialBalance int64
}

// NewService creates a bank application service.
func NewService(repo store.Repository, tokens *TokenIssuer, initialBalance int64) *Service {
	return &Service{repo: repo, tokens: tokens, initialBalance: initialBalance}
}

// newAccountNumber generates a 13-digit account number in XXX-XXXXXX-XXXX form.
func newAccountNumber() string {
	digits := make([]byte, 0, 15)
	for i := 0; i < 13; i++ {
		digits = append(digits, byte('0'+rand.IntN(10)))
		if i == 2 || i == 8 {
			digits = append(digits, '-')
		}
	}
	return string(digits)
}

// CreateAccountResult carries a freshly opened account and its tokens.
type CreateAccountResult struct {
	Account      string `json:"account"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CreateAccount opens a new account and returns its number with a token pair.
func (s *Service) CreateAccount(ctx context.Context, bankID, uniqueID, name, password string) (*CreateAccountResult, error) {
	if bankID == "" || uniqueID == "" || name == "" || password == "" {
		return nil, ErrInvalidAccount
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.BankAccount{
		ID:           uuid.New(),
		BankID:       bankID,
		Balance:      s.initialBalance,
		Name:         name,
		PasswordHash: string(hash),
		UniqueID:     uniqueID,
	}
	for attempt := 0; ; attempt++ {
		account.AccountNumber = newAccountNumber()
		err = s.repo.CreateAccount(ctx, account)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateAccountNumber) || attempt >= accountNumberRetries {
			return nil, fmt.Errorf("failed to create account: %w", err)
		}
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=bank_service op=create_account bank_id=%s msg=\"account created\"", bankID)
	return &CreateAccountResult{
		Account:      account.AccountNumber,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidResult carries the token pair issued for a validated account.
type ValidResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Valid confirms account ownership by the (bank, unique id, account number)
// triple and issues a fresh token pair.
func (s *Service) Valid(ctx context.Context, bankID, uniqueID, accountNumber string) (*ValidResult, error) {
	account, err := s.repo.FindAccountByUnique(ctx, bankID, uniqueID, accountNumber)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidAccount
		}
		return nil, fmt.Errorf("failed to validate account: %w", err)
	}
	accessToken, refreshToken, err := s.issueTokenPair(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &ValidResult{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The stored
// refresh token must match, so a rotated-out token is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*ValidResult, error) {
	accountID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account.RefreshToken == nil || *account.RefreshToken != refreshToken {
		return nil, ErrInvalidToken
	}
	accessToken, newRefresh, err := s.issueTokenPair(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	return &ValidResult{AccessToken: accessToken, RefreshToken: newRefresh}, nil
}

// Transfer moves money from the token holder's account to the target account.
func (s *Service) Transfer(ctx context.Context, accessToken, targetAccountNumber string, amount int64, name string) (*domain.TransferOutcome, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	source, err := s.accountFromToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if source.AccountNumber == targetAccountNumber {
		return nil, ErrTransferAccountDuplicate
	}

	outcome, err := s.repo.ExecuteTransfer(ctx, source.AccountNumber, targetAccountNumber, amount, name)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, store.ErrInsufficientBalance):
			return nil, ErrInsufficientBalance
		default:
			return nil, fmt.Errorf("failed to execute transfer: %w", err)
		}
	}
	log.Printf("level=info component=bank_service op=transfer source=%s target=%s amount=%d msg=\"transfer completed\"", source.AccountNumber, targetAccountNumber, amount)
	return outcome, nil
}

// Search reads one of the token holder's transactions for verification,
// returning the amount and the counterparty's account number.
func (s *Service) Search(ctx context.Context, accessToken string, transactionID uuid.UUID) (*domain.SearchOutcome, error) {
	account, err := s.accountFromToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	txn, err := s.repo.FindTransactionForAccount(ctx, account.ID, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	counterparty, err := s.repo.FindAccountByID(ctx, txn.TargetAccountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to load counterparty account: %w", err)
	}
	return &domain.SearchOutcome{Amount: txn.Amount, TargetID: counterparty.AccountNumber}, nil
}

func (s *Service) accountFromToken(ctx context.Context, accessToken string) (*domain.BankAccount, error) {
	accountID, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *Service) issueTokenPair(ctx context.Context, accountID uuid.UUID) (string, string, error) {
	accessToken, err := s.tokens.IssueAccess(accountID)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.tokens.IssueRefresh(accountID)
	if err != nil {
		return "", "", err
	}
	if err := s.repo.SaveRefreshToken(ctx, accountID, refreshToken); err != nil {
		return "", "", fmt.Errorf("failed to persist refresh token: %w", err)
	}
	return accessToken, refreshToken, nil
}
