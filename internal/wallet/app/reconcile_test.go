package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/store"
	"github.com/DDuMandoo/moba-sub000/pkg/bankclient"
)

type reconcileRepoStub struct {
	store.Repository

	candidates []domain.PendingExternal
	accounts   map[string]*domain.WalletAccount

	completeDepositCalled    bool
	completeWithdrawalCalled bool
	failPairCalled           bool
	refundCalled             bool
}

func (s *reconcileRepoStub) ListStalePendingExternal(ctx context.Context, cutoff time.Time, limit int) ([]domain.PendingExternal, error) {
	return s.candidates, nil
}

func (s *reconcileRepoStub) FindWalletAccountForWallet(ctx context.Context, walletID uuid.UUID, accountNumber string) (*domain.WalletAccount, error) {
	a, ok := s.accounts[accountNumber]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return a, nil
}

func (s *reconcileRepoStub) CompleteDeposit(ctx context.Context, pair domain.TransactionPair, walletID uuid.UUID, amount int64) error {
	s.completeDepositCalled = true
	return nil
}

func (s *reconcileRepoStub) CompleteWithdrawal(ctx context.Context, pair domain.TransactionPair) error {
	s.completeWithdrawalCalled = true
	return nil
}

func (s *reconcileRepoStub) FailPair(ctx context.Context, pair domain.TransactionPair) error {
	s.failPairCalled = true
	return nil
}

func (s *reconcileRepoStub) RefundWithdrawal(ctx context.Context, pair domain.TransactionPair, walletID uuid.UUID, amount int64) error {
	s.refundCalled = true
	return nil
}

func pendingCandidate(kind domain.MovementKind, bankRef string) domain.PendingExternal {
	return domain.PendingExternal{
		Pair:           domain.TransactionPair{WithdrawID: uuid.New(), DepositID: uuid.New()},
		WalletID:       uuid.New(),
		Amount:         5000,
		Kind:           kind,
		BankTransferID: bankRef,
		AccountNumber:  "110-222333-4444",
		PayAt:          time.Now().Add(-time.Hour),
	}
}

func TestReconcile_CompletesVerifiedDeposit(t *testing.T) {
	repo := &reconcileRepoStub{
		candidates: []domain.PendingExternal{pendingCandidate(domain.KindExternalDeposit, "dep-1")},
	}
	bank := &bankStub{
		searchResult: &bankclient.SearchResult{Amount: 5000, TargetID: "110-222333-4444"},
	}
	svc := newTestService(repo, bank, &eventsStub{})

	result, err := svc.ReconcileStalePending(context.Background(), time.Minute, 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Completed != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("unexpected sweep result %+v", result)
	}
	if !repo.completeDepositCalled {
		t.Fatal("expected the deposit to be completed")
	}
}

func TestReconcile_FailsPairWithoutBankReference(t *testing.T) {
	repo := &reconcileRepoStub{
		candidates: []domain.PendingExternal{pendingCandidate(domain.KindExternalDeposit, "")},
	}
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	result, err := svc.ReconcileStalePending(context.Background(), time.Minute, 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected the pair to be failed, got %+v", result)
	}
	if !repo.failPairCalled {
		t.Fatal("expected FailPair to run")
	}
}

func TestReconcile_RefundsRejectedWithdrawal(t *testing.T) {
	candidate := pendingCandidate(domain.KindExternalWithdraw, "dep-1")
	repo := &reconcileRepoStub{
		candidates: []domain.PendingExternal{candidate},
		accounts: map[string]*domain.WalletAccount{
			"110-222333-4444": {AccountNumber: "110-222333-4444", WalletID: candidate.WalletID, AccessToken: "member-token"},
		},
	}
	bank := &bankStub{
		searchErr: &bankclient.ErrorResponse{StatusCode: 404, Code: "NOT_FOUND_TRANSACTION", Message: "no such transaction"},
	}
	svc := newTestService(repo, bank, &eventsStub{})

	result, err := svc.ReconcileStalePending(context.Background(), time.Minute, 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected the withdrawal to be failed, got %+v", result)
	}
	if !repo.refundCalled {
		t.Fatal("expected the up-front debit to be refunded")
	}
	if repo.failPairCalled {
		t.Fatal("expected the refund path, not a plain fail")
	}
	// The bank leg may have paid out; the payout must be clawed back into the
	// operating account before the wallet debit is refunded.
	if len(bank.transferCalls) != 1 {
		t.Fatalf("expected one compensating transfer, got %d", len(bank.transferCalls))
	}
	if got := bank.transferCalls[0]; got.AccessToken != "member-token" || got.Target != testOperatorAccount || got.Amount != 5000 {
		t.Fatalf("expected clawback from member account to operator account, got %+v", got)
	}
}

func TestReconcile_CompensatesRejectedCharge(t *testing.T) {
	candidate := pendingCandidate(domain.KindExternalDeposit, "dep-1")
	repo := &reconcileRepoStub{
		candidates: []domain.PendingExternal{candidate},
		accounts: map[string]*domain.WalletAccount{
			"110-222333-4444": {AccountNumber: "110-222333-4444", WalletID: candidate.WalletID, Bank: "088", AccessToken: "member-token"},
		},
	}
	bank := &bankStub{
		searchResult: &bankclient.SearchResult{Amount: 100, TargetID: "110-222333-4444"},
	}
	svc := newTestService(repo, bank, &eventsStub{})

	result, err := svc.ReconcileStalePending(context.Background(), time.Minute, 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected the charge to be failed, got %+v", result)
	}
	if !repo.failPairCalled {
		t.Fatal("expected FailPair to run")
	}
	if len(bank.transferCalls) != 1 {
		t.Fatalf("expected one compensating transfer, got %d", len(bank.transferCalls))
	}
	if got := bank.transferCalls[0]; got.AccessToken != testOperatorToken || got.Target != "110-222333-4444" || got.Amount != 5000 {
		t.Fatalf("expected compensation back to the member account, got %+v", got)
	}
}

func TestReconcile_FailsOnDefinitiveMismatch(t *testing.T) {
	repo := &reconcileRepoStub{
		candidates: []domain.PendingExternal{pendingCandidate(domain.KindExternalDeposit, "dep-1")},
	}
	bank := &bankStub{
		searchResult: &bankclient.SearchResult{Amount: 100, TargetID: "110-222333-4444"},
	}
	svc := newTestService(repo, bank, &eventsStub{})

	result, err := svc.ReconcileStalePending(context.Background(), time.Minute, 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected the mismatched pair to be failed, got %+v", result)
	}
	if !repo.failPairCalled {
		t.Fatal("expected FailPair to run")
	}
}

func TestReconcile_SkipsAmbiguousError(t *testing.T) {
	repo := &reconcileRepoStub{
		candidates: []domain.PendingExternal{pendingCandidate(domain.KindExternalDeposit, "dep-1")},
	}
	bank := &bankStub{
		searchErr: errors.New("connection refused"),
	}
	svc := newTestService(repo, bank, &eventsStub{})

	result, err := svc.ReconcileStalePending(context.Background(), time.Minute, 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Skipped != 1 || result.Failed != 0 || result.Completed != 0 {
		t.Fatalf("expected the candidate to be skipped, got %+v", result)
	}
	if repo.failPairCalled || repo.completeDepositCalled {
		t.Fatal("did not expect any finalization on an ambiguous error")
	}
}
