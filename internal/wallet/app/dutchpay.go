/**
 * @description
 * This file implements the dutch-pay settlement engine: creating a split for a
 * group expense, settling individual participant shares either by in-platform
 * wallet transfer or by the host marking a share paid off-platform, and the
 * demand/receipt listing views.
 *
 * Key design decisions:
 * - Duplicate member entries in a creation request are aggregated by summing
 *   before validation, so one member always maps to one participant row.
 * - The host's own share never produces a participant row; it is folded into
 *   the settlement accumulator at creation, which can complete a dutch-pay
 *   immediately when the host covers the full price.
 * - Each participant's ledger pair is written PENDING at creation and driven to
 *   COMPLETED (wallet transfer) or FAILED (settled off-platform) exactly once.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/store"
	"github.com/DDuMandoo/moba-sub000/pkg/rabbitmq"
)

// CreateDutchpay validates and persists a new dutch-pay split.
func (s *Service) CreateDutchpay(ctx context.Context, hostMemberID uuid.UUID, req domain.CreateDutchpayRequest) (*domain.Dutchpay, error) {
	if req.TotalPrice <= 0 || len(req.Participants) == 0 {
		return nil, ErrInvalidAmount
	}

	// Aggregate duplicate members by summing their shares, preserving first-seen
	// order so persisted rows are deterministic.
	shares := make(map[uuid.UUID]int64, len(req.Participants))
	order := make([]uuid.UUID, 0, len(req.Participants))
	var sum int64
	for _, p := range req.Participants {
		if p.Price <= 0 {
			return nil, ErrInvalidAmount
		}
		if _, seen := shares[p.MemberID]; !seen {
			order = append(order, p.MemberID)
		}
		shares[p.MemberID] += p.Price
		sum += p.Price
	}
	if sum != req.TotalPrice {
		return nil, ErrNotMatchPrice
	}

	hostWallet, err := s.GetWallet(ctx, hostMemberID)
	if err != nil {
		return nil, err
	}

	d := &domain.Dutchpay{
		ID:            uuid.New(),
		HostWalletID:  hostWallet.ID,
		HostMemberID:  hostMemberID,
		AppointmentID: req.AppointmentID,
		Price:         req.TotalPrice,
	}

	var participants []domain.DutchpayParticipant
	var txns []domain.Transaction
	now := time.Now().UTC()
	for _, memberID := range order {
		price := shares[memberID]
		if memberID == hostMemberID {
			// The host owes themself nothing: their share counts as settled.
			d.Settlement += price
			continue
		}
		wallet, err := s.repo.FindWalletByMemberID(ctx, memberID)
		if err != nil {
			if errors.Is(err, store.ErrWalletNotFound) {
				return nil, ErrMemberNotFound
			}
			return nil, fmt.Errorf("failed to load participant wallet: %w", err)
		}

		pair := domain.TransactionPair{WithdrawID: uuid.New(), DepositID: uuid.New()}
		txns = append(txns,
			domain.Transaction{
				ID:             pair.WithdrawID,
				WalletID:       wallet.ID,
				TargetWalletID: hostWallet.ID,
				Amount:         price,
				Type:           domain.TransactionWithdraw,
				Kind:           domain.KindDutchpay,
				Status:         domain.StatusPending,
				PayAt:          now,
			},
			domain.Transaction{
				ID:             pair.DepositID,
				WalletID:       hostWallet.ID,
				TargetWalletID: wallet.ID,
				Amount:         price,
				Type:           domain.TransactionDeposit,
				Kind:           domain.KindDutchpay,
				Status:         domain.StatusPending,
				PayAt:          now,
			},
		)
		participants = append(participants, domain.DutchpayParticipant{
			DutchpayID:    d.ID,
			WalletID:      wallet.ID,
			Price:         price,
			DepositTxnID:  pair.DepositID,
			WithdrawTxnID: pair.WithdrawID,
		})
	}

	if d.Settlement == d.Price {
		d.IsCompleted = true
		d.CompletedAt = &now
	}

	if err := s.repo.CreateDutchpay(ctx, d, participants, txns); err != nil {
		return nil, fmt.Errorf("failed to create dutchpay: %w", err)
	}
	log.Printf("level=info component=wallet_service op=create_dutchpay dutchpay_id=%s price=%d participants=%d msg=\"dutchpay created\"", d.ID, d.Price, len(participants))
	return d, nil
}

// GetDutchpay returns a dutch-pay event by id.
func (s *Service) GetDutchpay(ctx context.Context, dutchpayID uuid.UUID) (*domain.Dutchpay, error) {
	d, err := s.repo.FindDutchpay(ctx, dutchpayID)
	if err != nil {
		if errors.Is(err, store.ErrDutchpayNotFound) {
			return nil, ErrNotFoundDutchpay
		}
		return nil, fmt.Errorf("failed to load dutchpay: %w", err)
	}
	return d, nil
}

// CompleteDutchpay lets the host mark a participant's share as settled outside
// the platform. No wallet balance moves; the pending pair is failed.
func (s *Service) CompleteDutchpay(ctx context.Context, hostMemberID, dutchpayID uuid.UUID, req domain.CompleteDutchpayRequest) (*domain.SettlementResult, error) {
	d, err := s.GetDutchpay(ctx, dutchpayID)
	if err != nil {
		return nil, err
	}
	if d.HostMemberID != hostMemberID {
		return nil, ErrInvalidHost
	}
	wallet, err := s.repo.FindWalletByMemberID(ctx, req.ParticipantMemberID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return nil, ErrNotFoundDutchpayParticipant
		}
		return nil, fmt.Errorf("failed to load participant wallet: %w", err)
	}

	result, err := s.repo.CompleteParticipantOffPlatform(ctx, d.ID, wallet.ID)
	if err != nil {
		return nil, s.mapSettleError(err)
	}
	log.Printf("level=info component=wallet_service op=complete_dutchpay dutchpay_id=%s wallet_id=%s msg=\"share settled off-platform\"", d.ID, wallet.ID)
	return result, nil
}

// TransferDutchpay settles the caller's own share by moving wallet balance to
// the host, then notifies the host on a best-effort basis.
func (s *Service) TransferDutchpay(ctx context.Context, memberID, dutchpayID uuid.UUID) (*domain.SettlementResult, error) {
	d, err := s.GetDutchpay(ctx, dutchpayID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.SettleParticipantTransfer(ctx, d.ID, wallet.ID)
	if err != nil {
		return nil, s.mapSettleError(err)
	}
	log.Printf("level=info component=wallet_service op=transfer_dutchpay dutchpay_id=%s wallet_id=%s amount=%d completed=%t msg=\"share settled by transfer\"", d.ID, wallet.ID, result.Amount, result.Completed)

	if err := s.events.PublishSettlementPaid(ctx, rabbitmq.SettlementPaidEvent{
		SenderMemberID:   memberID,
		ReceiverMemberID: d.HostMemberID,
		Amount:           result.Amount,
		Timestamp:        time.Now().UTC(),
	}); err != nil {
		log.Printf("level=warn component=wallet_service op=transfer_dutchpay msg=\"failed to publish settlement event\" error=%q", err)
	}
	return result, nil
}

// GetDemands lists the open claims the member holds as a dutch-pay host.
func (s *Service) GetDemands(ctx context.Context, memberID uuid.UUID) ([]domain.DutchpayDemand, error) {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}
	demands, err := s.repo.ListDemandsByHost(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list demands: %w", err)
	}
	return demands, nil
}

// GetReceipts lists the shares the member still owes as a participant.
func (s *Service) GetReceipts(ctx context.Context, memberID uuid.UUID) ([]domain.DutchpayReceipt, error) {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}
	receipts, err := s.repo.ListReceiptsByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	return receipts, nil
}

func (s *Service) mapSettleError(err error) error {
	switch {
	case errors.Is(err, store.ErrDutchpayNotFound):
		return ErrNotFoundDutchpay
	case errors.Is(err, store.ErrParticipantNotFound):
		return ErrNotFoundDutchpayParticipant
	case errors.Is(err, store.ErrParticipantSettled):
		return ErrAlreadyCompleteDutchpay
	case errors.Is(err, store.ErrInsufficientBalance):
		return ErrInsufficientBalance
	default:
		return fmt.Errorf("failed to settle dutchpay share: %w", err)
	}
}
