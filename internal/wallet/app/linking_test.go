package app

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/store"
)

type linkingRepoStub struct {
	store.Repository

	wallets  map[uuid.UUID]*domain.Wallet
	accounts map[string]*domain.WalletAccount

	createdAccount *domain.WalletAccount
	mainChangedTo  string
}

func newLinkingRepoStub() *linkingRepoStub {
	return &linkingRepoStub{
		wallets:  make(map[uuid.UUID]*domain.Wallet),
		accounts: make(map[string]*domain.WalletAccount),
	}
}

func (s *linkingRepoStub) addWallet(memberID uuid.UUID) *domain.Wallet {
	w := &domain.Wallet{ID: uuid.New(), MemberID: memberID}
	s.wallets[memberID] = w
	return w
}

func (s *linkingRepoStub) FindWalletByMemberID(ctx context.Context, memberID uuid.UUID) (*domain.Wallet, error) {
	w, ok := s.wallets[memberID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	return w, nil
}

func (s *linkingRepoStub) FindWalletAccount(ctx context.Context, accountNumber string) (*domain.WalletAccount, error) {
	a, ok := s.accounts[accountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return a, nil
}

func (s *linkingRepoStub) CreateWalletAccount(ctx context.Context, account *domain.WalletAccount) error {
	if _, exists := s.accounts[account.AccountNumber]; exists {
		return store.ErrDuplicateAccount
	}
	s.accounts[account.AccountNumber] = account
	s.createdAccount = account
	return nil
}

func (s *linkingRepoStub) SetMainWalletAccount(ctx context.Context, walletID uuid.UUID, accountNumber string) error {
	a, ok := s.accounts[accountNumber]
	if !ok || a.WalletID != walletID {
		return store.ErrAccountNotFound
	}
	s.mainChangedTo = accountNumber
	return nil
}

func TestConnectAccount_RejectsAlreadyLinkedAccount(t *testing.T) {
	memberID := uuid.New()
	repo := newLinkingRepoStub()
	repo.addWallet(memberID)
	repo.accounts["110-222333-4444"] = &domain.WalletAccount{AccountNumber: "110-222333-4444", WalletID: uuid.New()}
	bank := &bankStub{}
	svc := newTestService(repo, bank, &eventsStub{})

	err := svc.ConnectAccount(context.Background(), memberID, domain.ConnectAccountRequest{Account: "110-222333-4444", Bank: "088"})
	if !errors.Is(err, ErrDuplicateConnectAccount) {
		t.Fatalf("expected ErrDuplicateConnectAccount, got %v", err)
	}
	if len(bank.transferCalls) != 0 {
		t.Fatal("did not expect a verification transfer")
	}
}

func TestConnectAccount_SendsCodeTransfer(t *testing.T) {
	memberID := uuid.New()
	repo := newLinkingRepoStub()
	repo.addWallet(memberID)
	bank := &bankStub{}
	svc := newTestService(repo, bank, &eventsStub{})

	err := svc.ConnectAccount(context.Background(), memberID, domain.ConnectAccountRequest{Account: "110-222333-4444", Bank: "088"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(bank.transferCalls) != 1 {
		t.Fatalf("expected one verification transfer, got %d", len(bank.transferCalls))
	}
	call := bank.transferCalls[0]
	if call.Amount != 1 || call.Target != "110-222333-4444" || call.AccessToken != testOperatorToken {
		t.Fatalf("unexpected verification transfer %+v", call)
	}
	if !regexp.MustCompile(`^\d{4}$`).MatchString(call.Name) {
		t.Fatalf("expected a 4-digit code in the transfer name, got %q", call.Name)
	}

	stored, err := svc.codes.Get(context.Background(), verificationCodeKey(memberID, "110-222333-4444"))
	if err != nil {
		t.Fatalf("expected the code to be stored, got %v", err)
	}
	if stored != call.Name {
		t.Fatalf("stored code %q does not match sent code %q", stored, call.Name)
	}
}

func TestConnectAccount_UnreachableAccount(t *testing.T) {
	memberID := uuid.New()
	repo := newLinkingRepoStub()
	repo.addWallet(memberID)
	bank := &bankStub{transferErr: errors.New("account not found")}
	svc := newTestService(repo, bank, &eventsStub{})

	err := svc.ConnectAccount(context.Background(), memberID, domain.ConnectAccountRequest{Account: "110-222333-4444", Bank: "088"})
	if !errors.Is(err, ErrInvalidVerificationAccount) {
		t.Fatalf("expected ErrInvalidVerificationAccount, got %v", err)
	}
}

func TestAuthAccount_RejectsWrongCodeAndBurnsIt(t *testing.T) {
	memberID := uuid.New()
	repo := newLinkingRepoStub()
	repo.addWallet(memberID)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	key := verificationCodeKey(memberID, "110-222333-4444")
	if err := svc.codes.Set(context.Background(), key, "4821", svc.codeTTL); err != nil {
		t.Fatalf("failed to seed code: %v", err)
	}

	req := domain.AuthAccountRequest{Account: "110-222333-4444", Bank: "088", Code: "0000"}
	if _, err := svc.AuthAccount(context.Background(), memberID, req); !errors.Is(err, ErrInvalidVerificationAccountCode) {
		t.Fatalf("expected ErrInvalidVerificationAccountCode, got %v", err)
	}

	// The code is one-shot: the right code no longer works after a mismatch.
	req.Code = "4821"
	if _, err := svc.AuthAccount(context.Background(), memberID, req); !errors.Is(err, ErrInvalidVerificationAccountCode) {
		t.Fatalf("expected the code to be burnt, got %v", err)
	}
}

func TestAuthAccount_LinksVerifiedAccount(t *testing.T) {
	memberID := uuid.New()
	repo := newLinkingRepoStub()
	wallet := repo.addWallet(memberID)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	key := verificationCodeKey(memberID, "110-222333-4444")
	if err := svc.codes.Set(context.Background(), key, "4821", svc.codeTTL); err != nil {
		t.Fatalf("failed to seed code: %v", err)
	}

	account, err := svc.AuthAccount(context.Background(), memberID, domain.AuthAccountRequest{Account: "110-222333-4444", Bank: "088", Code: "4821"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if account.WalletID != wallet.ID || account.AccessToken != "account-token" {
		t.Fatalf("unexpected linked account %+v", account)
	}
	if repo.createdAccount == nil {
		t.Fatal("expected the account to be persisted")
	}
	if _, err := svc.codes.Get(context.Background(), key); !errors.Is(err, ErrCodeNotFound) {
		t.Fatal("expected the code to be deleted after linking")
	}
}

func TestChangeMainAccount_UnknownAccount(t *testing.T) {
	memberID := uuid.New()
	repo := newLinkingRepoStub()
	repo.addWallet(memberID)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	err := svc.ChangeMainAccount(context.Background(), memberID, domain.ChangeMainAccountRequest{Account: "110-222333-4444"})
	if !errors.Is(err, ErrInvalidVerificationAccount) {
		t.Fatalf("expected ErrInvalidVerificationAccount, got %v", err)
	}
}
