package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/store"
)

type dutchpayRepoStub struct {
	store.Repository

	wallets   map[uuid.UUID]*domain.Wallet
	dutchpays map[uuid.UUID]*domain.Dutchpay

	created             *domain.Dutchpay
	createdParticipants []domain.DutchpayParticipant
	createdTxns         []domain.Transaction

	settleResult *domain.SettlementResult
	settleErr    error

	offPlatformCalled bool
	transferCalled    bool
}

func newDutchpayRepoStub() *dutchpayRepoStub {
	return &dutchpayRepoStub{
		wallets:   make(map[uuid.UUID]*domain.Wallet),
		dutchpays: make(map[uuid.UUID]*domain.Dutchpay),
	}
}

func (s *dutchpayRepoStub) addWallet(memberID uuid.UUID) *domain.Wallet {
	w := &domain.Wallet{ID: uuid.New(), MemberID: memberID}
	s.wallets[memberID] = w
	return w
}

func (s *dutchpayRepoStub) FindWalletByMemberID(ctx context.Context, memberID uuid.UUID) (*domain.Wallet, error) {
	w, ok := s.wallets[memberID]
	if !ok {
		return nil, store.ErrWalletNotFound
	}
	return w, nil
}

func (s *dutchpayRepoStub) CreateDutchpay(ctx context.Context, d *domain.Dutchpay, participants []domain.DutchpayParticipant, txns []domain.Transaction) error {
	s.created = d
	s.createdParticipants = participants
	s.createdTxns = txns
	s.dutchpays[d.ID] = d
	return nil
}

func (s *dutchpayRepoStub) FindDutchpay(ctx context.Context, dutchpayID uuid.UUID) (*domain.Dutchpay, error) {
	d, ok := s.dutchpays[dutchpayID]
	if !ok {
		return nil, store.ErrDutchpayNotFound
	}
	return d, nil
}

func (s *dutchpayRepoStub) CompleteParticipantOffPlatform(ctx context.Context, dutchpayID, walletID uuid.UUID) (*domain.SettlementResult, error) {
	s.offPlatformCalled = true
	if s.settleErr != nil {
		return nil, s.settleErr
	}
	return s.settleResult, nil
}

func (s *dutchpayRepoStub) SettleParticipantTransfer(ctx context.Context, dutchpayID, walletID uuid.UUID) (*domain.SettlementResult, error) {
	s.transferCalled = true
	if s.settleErr != nil {
		return nil, s.settleErr
	}
	return s.settleResult, nil
}

func TestCreateDutchpay_AggregatesDuplicateMembers(t *testing.T) {
	host := uuid.New()
	m1 := uuid.New()
	m2 := uuid.New()
	repo := newDutchpayRepoStub()
	hostWallet := repo.addWallet(host)
	repo.addWallet(m1)
	repo.addWallet(m2)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	d, err := svc.CreateDutchpay(context.Background(), host, domain.CreateDutchpayRequest{
		AppointmentID: uuid.New(),
		TotalPrice:    1600,
		Participants: []domain.ParticipantShare{
			{MemberID: m1, Price: 500},
			{MemberID: m1, Price: 300},
			{MemberID: m2, Price: 800},
		},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.HostWalletID != hostWallet.ID {
		t.Fatalf("expected host wallet %s, got %s", hostWallet.ID, d.HostWalletID)
	}
	if len(repo.createdParticipants) != 2 {
		t.Fatalf("expected duplicate member entries to collapse to 2 participants, got %d", len(repo.createdParticipants))
	}
	for _, p := range repo.createdParticipants {
		if p.Price != 800 {
			t.Fatalf("expected each aggregated share to be 800, got %d", p.Price)
		}
	}
	if len(repo.createdTxns) != 4 {
		t.Fatalf("expected a pending pair per participant, got %d rows", len(repo.createdTxns))
	}
	for _, txn := range repo.createdTxns {
		if txn.Status != domain.StatusPending || txn.Kind != domain.KindDutchpay {
			t.Fatalf("expected pending dutchpay rows, got %+v", txn)
		}
	}
	if d.Settlement != 0 || d.IsCompleted {
		t.Fatalf("expected no settlement progress at creation, got settlement=%d completed=%t", d.Settlement, d.IsCompleted)
	}
}

func TestCreateDutchpay_RejectsSumMismatch(t *testing.T) {
	host := uuid.New()
	m1 := uuid.New()
	repo := newDutchpayRepoStub()
	repo.addWallet(host)
	repo.addWallet(m1)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	_, err := svc.CreateDutchpay(context.Background(), host, domain.CreateDutchpayRequest{
		AppointmentID: uuid.New(),
		TotalPrice:    1000,
		Participants:  []domain.ParticipantShare{{MemberID: m1, Price: 999}},
	})
	if !errors.Is(err, ErrNotMatchPrice) {
		t.Fatalf("expected ErrNotMatchPrice, got %v", err)
	}
	if repo.created != nil {
		t.Fatal("did not expect the dutchpay to be persisted")
	}
}

func TestCreateDutchpay_FoldsHostShareIntoSettlement(t *testing.T) {
	host := uuid.New()
	m1 := uuid.New()
	repo := newDutchpayRepoStub()
	repo.addWallet(host)
	repo.addWallet(m1)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	d, err := svc.CreateDutchpay(context.Background(), host, domain.CreateDutchpayRequest{
		AppointmentID: uuid.New(),
		TotalPrice:    1000,
		Participants: []domain.ParticipantShare{
			{MemberID: host, Price: 400},
			{MemberID: m1, Price: 600},
		},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if d.Settlement != 400 {
		t.Fatalf("expected host share folded into settlement, got %d", d.Settlement)
	}
	if len(repo.createdParticipants) != 1 {
		t.Fatalf("expected no participant row for the host, got %d rows", len(repo.createdParticipants))
	}
	if d.IsCompleted {
		t.Fatal("did not expect completion with an outstanding share")
	}
}

func TestCreateDutchpay_CompletesWhenHostCoversAll(t *testing.T) {
	host := uuid.New()
	repo := newDutchpayRepoStub()
	repo.addWallet(host)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	d, err := svc.CreateDutchpay(context.Background(), host, domain.CreateDutchpayRequest{
		AppointmentID: uuid.New(),
		TotalPrice:    1000,
		Participants:  []domain.ParticipantShare{{MemberID: host, Price: 1000}},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !d.IsCompleted || d.CompletedAt == nil {
		t.Fatalf("expected immediate completion, got completed=%t", d.IsCompleted)
	}
	if len(repo.createdParticipants) != 0 || len(repo.createdTxns) != 0 {
		t.Fatal("did not expect participant rows or ledger rows")
	}
}

func TestCompleteDutchpay_RejectsNonHost(t *testing.T) {
	host := uuid.New()
	intruder := uuid.New()
	participant := uuid.New()
	repo := newDutchpayRepoStub()
	hostWallet := repo.addWallet(host)
	repo.addWallet(intruder)
	repo.addWallet(participant)
	d := &domain.Dutchpay{ID: uuid.New(), HostWalletID: hostWallet.ID, HostMemberID: host, Price: 1000}
	repo.dutchpays[d.ID] = d
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	_, err := svc.CompleteDutchpay(context.Background(), intruder, d.ID, domain.CompleteDutchpayRequest{ParticipantMemberID: participant})
	if !errors.Is(err, ErrInvalidHost) {
		t.Fatalf("expected ErrInvalidHost, got %v", err)
	}
	if repo.offPlatformCalled {
		t.Fatal("did not expect the settle call to run")
	}
}

func TestCompleteDutchpay_MapsAlreadySettled(t *testing.T) {
	host := uuid.New()
	participant := uuid.New()
	repo := newDutchpayRepoStub()
	hostWallet := repo.addWallet(host)
	repo.addWallet(participant)
	d := &domain.Dutchpay{ID: uuid.New(), HostWalletID: hostWallet.ID, HostMemberID: host, Price: 1000}
	repo.dutchpays[d.ID] = d
	repo.settleErr = store.ErrParticipantSettled
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	_, err := svc.CompleteDutchpay(context.Background(), host, d.ID, domain.CompleteDutchpayRequest{ParticipantMemberID: participant})
	if !errors.Is(err, ErrAlreadyCompleteDutchpay) {
		t.Fatalf("expected ErrAlreadyCompleteDutchpay, got %v", err)
	}
}

func TestTransferDutchpay_PublishesEventToHost(t *testing.T) {
	host := uuid.New()
	participant := uuid.New()
	repo := newDutchpayRepoStub()
	hostWallet := repo.addWallet(host)
	repo.addWallet(participant)
	d := &domain.Dutchpay{ID: uuid.New(), HostWalletID: hostWallet.ID, HostMemberID: host, Price: 1000}
	repo.dutchpays[d.ID] = d
	repo.settleResult = &domain.SettlementResult{DutchpayID: d.ID, Amount: 600, Completed: true}
	events := &eventsStub{}
	svc := newTestService(repo, &bankStub{}, events)

	result, err := svc.TransferDutchpay(context.Background(), participant, d.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !repo.transferCalled {
		t.Fatal("expected the transfer settle call to run")
	}
	if !result.Completed {
		t.Fatal("expected the settlement result to report completion")
	}
	if len(events.published) != 1 {
		t.Fatalf("expected one settlement event, got %d", len(events.published))
	}
	if got := events.published[0]; got.SenderMemberID != participant || got.ReceiverMemberID != host || got.Amount != 600 {
		t.Fatalf("unexpected settlement event %+v", got)
	}
}

func TestTransferDutchpay_UnknownDutchpay(t *testing.T) {
	participant := uuid.New()
	repo := newDutchpayRepoStub()
	repo.addWallet(participant)
	svc := newTestService(repo, &bankStub{}, &eventsStub{})

	_, err := svc.TransferDutchpay(context.Background(), participant, uuid.New())
	if !errors.Is(err, ErrNotFoundDutchpay) {
		t.Fatalf("expected ErrNotFoundDutchpay, got %v", err)
	}
}
