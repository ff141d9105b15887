package app

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/bank/domain"
	"github.com/DDuMandoo/moba-sub000/internal/bank/store"
)

type bankRepoStub struct {
	store.Repository

	accountsByID     map[uuid.UUID]*domain.BankAccount
	accountsByNumber map[string]*domain.BankAccount
	transactions     map[uuid.UUID]*domain.BankTransaction

	duplicateFirstCreate bool
	createAttempts       []string
	transferErr          error
	transferCalls        int
}

func newBankRepoStub() *bankRepoStub {
	return &bankRepoStub{
		accountsByID:     make(map[uuid.UUID]*domain.BankAccount),
		accountsByNumber: make(map[string]*domain.BankAccount),
		transactions:     make(map[uuid.UUID]*domain.BankTransaction),
	}
}

func (s *bankRepoStub) addAccount(number string) *domain.BankAccount {
	a := &domain.BankAccount{ID: uuid.New(), BankID: "088", AccountNumber: number, Balance: 100000}
	s.accountsByID[a.ID] = a
	s.accountsByNumber[number] = a
	return a
}

func (s *bankRepoStub) CreateAccount(ctx context.Context, account *domain.BankAccount) error {
	s.createAttempts = append(s.createAttempts, account.AccountNumber)
	if s.duplicateFirstCreate && len(s.createAttempts) == 1 {
		return store.ErrDuplicateAccountNumber
	}
	copied := *account
	s.accountsByID[copied.ID] = &copied
	s.accountsByNumber[copied.AccountNumber] = &copied
	return nil
}

func (s *bankRepoStub) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.BankAccount, error) {
	a, ok := s.accountsByID[accountID]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return a, nil
}

func (s *bankRepoStub) FindAccountByUnique(ctx context.Context, bankID, uniqueID, accountNumber string) (*domain.BankAccount, error) {
	a, ok := s.accountsByNumber[accountNumber]
	if !ok || a.BankID != bankID || a.UniqueID != uniqueID {
		return nil, store.ErrAccountNotFound
	}
	return a, nil
}

func (s *bankRepoStub) SaveRefreshToken(ctx context.Context, accountID uuid.UUID, refreshToken string) error {
	a, ok := s.accountsByID[accountID]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.RefreshToken = &refreshToken
	return nil
}

func (s *bankRepoStub) ExecuteTransfer(ctx context.Context, sourceAccountNumber, targetAccountNumber string, amount int64, name string) (*domain.TransferOutcome, error) {
	s.transferCalls++
	if s.transferErr != nil {
		return nil, s.transferErr
	}
	return &domain.TransferOutcome{WithdrawID: uuid.New(), DepositID: uuid.New()}, nil
}

func (s *bankRepoStub) FindTransactionForAccount(ctx context.Context, accountID uuid.UUID, transactionID uuid.UUID) (*domain.BankTransaction, error) {
	t, ok := s.transactions[transactionID]
	if !ok || t.AccountID != accountID {
		return nil, store.ErrTransactionNotFound
	}
	return t, nil
}

func newTestBankService(repo store.Repository) (*Service, *TokenIssuer) {
	tokens := NewTokenIssuer("test-secret", time.Hour, 24*time.Hour)
	return NewService(repo, tokens, 100000), tokens
}

func TestNewAccountNumber_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{3}-\d{6}-\d{4}$`)
	for i := 0; i < 100; i++ {
		number := newAccountNumber()
		if !pattern.MatchString(number) {
			t.Fatalf("unexpected account number format %q", number)
		}
	}
}

func TestCreateAccount_RetriesOnCollision(t *testing.T) {
	repo := newBankRepoStub()
	repo.duplicateFirstCreate = true
	svc, _ := newTestBankService(repo)

	result, err := svc.CreateAccount(context.Background(), "088", "member-1", "Jordan", "secret")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(repo.createAttempts) != 2 {
		t.Fatalf("expected a retry after the collision, got %d attempts", len(repo.createAttempts))
	}
	if result.Account == "" || result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("expected account number and tokens, got %+v", result)
	}
}

func TestCreateAccount_RejectsMissingFields(t *testing.T) {
	repo := newBankRepoStub()
	svc, _ := newTestBankService(repo)

	if _, err := svc.CreateAccount(context.Background(), "088", "member-1", "", "secret"); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestTransfer_RejectsSelfTransfer(t *testing.T) {
	repo := newBankRepoStub()
	account := repo.addAccount("110-222333-4444")
	svc, tokens := newTestBankService(repo)
	accessToken, err := tokens.IssueAccess(account.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	_, err = svc.Transfer(context.Background(), accessToken, "110-222333-4444", 1000, "self")
	if !errors.Is(err, ErrTransferAccountDuplicate) {
		t.Fatalf("expected ErrTransferAccountDuplicate, got %v", err)
	}
	if repo.transferCalls != 0 {
		t.Fatal("did not expect the transfer to reach the store")
	}
}

func TestTransfer_RejectsNonPositiveAmount(t *testing.T) {
	repo := newBankRepoStub()
	svc, _ := newTestBankService(repo)

	_, err := svc.Transfer(context.Background(), "any-token", "110-222333-4444", 0, "zero")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransfer_MapsStoreErrors(t *testing.T) {
	repo := newBankRepoStub()
	account := repo.addAccount("110-222333-4444")
	repo.addAccount("550-666777-8888")
	svc, tokens := newTestBankService(repo)
	accessToken, err := tokens.IssueAccess(account.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	repo.transferErr = store.ErrInsufficientBalance
	if _, err := svc.Transfer(context.Background(), accessToken, "550-666777-8888", 1000, "lunch"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	repo.transferErr = store.ErrAccountNotFound
	if _, err := svc.Transfer(context.Background(), accessToken, "000-000000-0000", 1000, "lunch"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTransfer_RejectsInvalidToken(t *testing.T) {
	repo := newBankRepoStub()
	svc, _ := newTestBankService(repo)

	_, err := svc.Transfer(context.Background(), "not-a-token", "110-222333-4444", 1000, "lunch")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSearch_ReturnsCounterpartyAccountNumber(t *testing.T) {
	repo := newBankRepoStub()
	account := repo.addAccount("110-222333-4444")
	counterparty := repo.addAccount("550-666777-8888")
	txn := &domain.BankTransaction{
		ID:              uuid.New(),
		AccountID:       account.ID,
		TargetAccountID: counterparty.ID,
		Amount:          5000,
		Type:            domain.BankDeposit,
		Name:            "wallet charge",
	}
	repo.transactions[txn.ID] = txn
	svc, tokens := newTestBankService(repo)
	accessToken, err := tokens.IssueAccess(account.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	outcome, err := svc.Search(context.Background(), accessToken, txn.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if outcome.Amount != 5000 || outcome.TargetID != "550-666777-8888" {
		t.Fatalf("unexpected search outcome %+v", outcome)
	}
}

func TestSearch_ScopedToTokenHolder(t *testing.T) {
	repo := newBankRepoStub()
	owner := repo.addAccount("110-222333-4444")
	other := repo.addAccount("550-666777-8888")
	txn := &domain.BankTransaction{
		ID:              uuid.New(),
		AccountID:       owner.ID,
		TargetAccountID: other.ID,
		Amount:          5000,
		Type:            domain.BankDeposit,
	}
	repo.transactions[txn.ID] = txn
	svc, tokens := newTestBankService(repo)
	otherToken, err := tokens.IssueAccess(other.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	if _, err := svc.Search(context.Background(), otherToken, txn.ID); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound for foreign transaction, got %v", err)
	}
}

func TestValid_IssuesTokensForOwnedAccount(t *testing.T) {
	repo := newBankRepoStub()
	account := repo.addAccount("110-222333-4444")
	account.UniqueID = "member-1"
	svc, tokens := newTestBankService(repo)

	result, err := svc.Valid(context.Background(), "088", "member-1", "110-222333-4444")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	accountID, err := tokens.ParseAccess(result.AccessToken)
	if err != nil {
		t.Fatalf("expected a parsable access token, got %v", err)
	}
	if accountID != account.ID {
		t.Fatalf("expected token for account %s, got %s", account.ID, accountID)
	}
	if account.RefreshToken == nil || *account.RefreshToken != result.RefreshToken {
		t.Fatal("expected the refresh token to be persisted")
	}
}

func TestValid_RejectsUnknownTriple(t *testing.T) {
	repo := newBankRepoStub()
	svc, _ := newTestBankService(repo)

	if _, err := svc.Valid(context.Background(), "088", "member-1", "110-222333-4444"); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestRefresh_RejectsRotatedOutToken(t *testing.T) {
	repo := newBankRepoStub()
	account := repo.addAccount("110-222333-4444")
	account.UniqueID = "member-1"
	svc, _ := newTestBankService(repo)

	first, err := svc.Valid(context.Background(), "088", "member-1", "110-222333-4444")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	// A second validation rotates the stored refresh token.
	if _, err := svc.Valid(context.Background(), "088", "member-1", "110-222333-4444"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if _, err := svc.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rotated-out refresh token to be rejected, got %v", err)
	}
}

func TestTokenIssuer_RejectsWrongTokenType(t *testing.T) {
	tokens := NewTokenIssuer("test-secret", time.Hour, 24*time.Hour)
	accountID := uuid.New()

	refreshToken, err := tokens.IssueRefresh(accountID)
	if err != nil {
		t.Fatalf("failed to issue refresh token: %v", err)
	}
	if _, err := tokens.ParseAccess(refreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected a refresh token to fail access parsing, got %v", err)
	}
}
