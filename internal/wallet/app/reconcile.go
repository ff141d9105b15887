/**
 * @description
 * This file implements the reconciliation sweep for external-bank movements
 * whose local ledger pair is still pending past an eligibility age, typically
 * because the process crashed between the bank call and the local finalize.
 * Each candidate is re-verified against the bank's ledger and driven to its
 * terminal state.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/store"
	"github.com/DDuMandoo/moba-sub000/pkg/bankclient"
)

// ReconcileResult summarizes one reconciliation sweep.
type ReconcileResult struct {
	Processed int
	Completed int
	Failed    int
	Skipped   int
}

// ReconcileStalePending resolves pending external pairs older than minAge. A
// pair with no bank reference never reached the bank, so it is failed (and the
// up-front withdrawal debit refunded). A pair with a reference is re-verified:
// a confirmed match completes it, an explicit bank rejection fails it, and an
// ambiguous error (timeout, transport) leaves it for the next sweep.
func (s *Service) ReconcileStalePending(ctx context.Context, minAge time.Duration, limit int) (*ReconcileResult, error) {
	cutoff := time.Now().Add(-minAge)
	candidates, err := s.repo.ListStalePendingExternal(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending transfers: %w", err)
	}

	result := &ReconcileResult{}
	for _, c := range candidates {
		result.Processed++
		if err := s.reconcileOne(ctx, c); err != nil {
			var bankErr *bankclient.ErrorResponse
			if errors.As(err, &bankErr) || errors.Is(err, errTransferMismatch) {
				// Definitive outcome: the bank rejected the lookup or the
				// recorded movement does not match, so the pair is failed.
				s.failStale(ctx, c)
				result.Failed++
				continue
			}
			log.Printf("level=warn component=wallet_service op=reconcile withdraw_id=%s msg=\"skipping ambiguous candidate\" error=%q", c.Pair.WithdrawID, err)
			result.Skipped++
			continue
		}
		result.Completed++
	}
	if result.Processed > 0 {
		log.Printf("level=info component=wallet_service op=reconcile processed=%d completed=%d failed=%d skipped=%d", result.Processed, result.Completed, result.Failed, result.Skipped)
	}
	return result, nil
}

func (s *Service) reconcileOne(ctx context.Context, c domain.PendingExternal) error {
	if c.BankTransferID == "" {
		// Crash before the bank call: no money moved.
		return &bankclient.ErrorResponse{Code: "NO_BANK_REFERENCE", Message: "pending pair has no bank transfer id"}
	}

	switch c.Kind {
	case domain.KindExternalDeposit:
		if err := s.verifyIncoming(ctx, c.BankTransferID, c.Amount, c.AccountNumber); err != nil {
			return err
		}
		return s.repo.CompleteDeposit(ctx, c.Pair, c.WalletID, c.Amount)

	case domain.KindExternalWithdraw:
		linked, err := s.repo.FindWalletAccountForWallet(ctx, c.WalletID, c.AccountNumber)
		if err != nil {
			return fmt.Errorf("failed to load linked account: %w", err)
		}
		if err := s.verifyOutgoing(ctx, linked.AccessToken, c.BankTransferID, c.Amount); err != nil {
			return err
		}
		return s.repo.CompleteWithdrawal(ctx, c.Pair)

	default:
		return fmt.Errorf("unexpected movement kind %q", c.Kind)
	}
}

// failStale drives a rejected candidate to FAILED, refunding the up-front
// debit for withdrawals. A candidate with a bank reference may have moved real
// money, so the reverse transfer is issued first, the same as the live paths.
func (s *Service) failStale(ctx context.Context, c domain.PendingExternal) {
	if c.BankTransferID != "" {
		s.compensateStale(ctx, c)
	}
	var err error
	if c.Kind == domain.KindExternalWithdraw {
		err = s.repo.RefundWithdrawal(ctx, c.Pair, c.WalletID, c.Amount)
	} else {
		err = s.repo.FailPair(ctx, c.Pair)
	}
	if err != nil && !errors.Is(err, store.ErrTransactionNotPending) {
		log.Printf("level=error component=wallet_service op=reconcile withdraw_id=%s msg=\"failed to finalize stale pair\" error=%q", c.Pair.WithdrawID, err)
	}
}

// compensateStale reverses the bank leg of a rejected candidate: a stale
// withdrawal claws the payout back into the operating account, a stale charge
// pushes the money back to the member's account.
func (s *Service) compensateStale(ctx context.Context, c domain.PendingExternal) {
	linked, err := s.repo.FindWalletAccountForWallet(ctx, c.WalletID, c.AccountNumber)
	if err != nil {
		log.Printf("level=error component=wallet_service op=reconcile withdraw_id=%s msg=\"cannot compensate, linked account missing\" error=%q", c.Pair.WithdrawID, err)
		return
	}
	if c.Kind == domain.KindExternalWithdraw {
		s.compensate(ctx, linked.AccessToken, s.operatorBank, s.operatorAccount, c.Amount, "wallet withdrawal reversal")
		return
	}
	s.compensate(ctx, s.operatorToken, linked.Bank, linked.AccountNumber, c.Amount, "wallet charge reversal")
}

// RunReconcileLoop runs the sweep on a fixed interval until the context is
// cancelled. Intended to be started as a goroutine from main.
func (s *Service) RunReconcileLoop(ctx context.Context, interval, minAge time.Duration, limit int) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("level=info component=wallet_service op=reconcile msg=\"reconcile loop started\" interval=%s min_age=%s", interval, minAge)
	for {
		select {
		case <-ctx.Done():
			log.Printf("level=info component=wallet_service op=reconcile msg=\"reconcile loop stopped\"")
			return
		case <-ticker.C:
			if _, err := s.ReconcileStalePending(ctx, minAge, limit); err != nil {
				log.Printf("level=error component=wallet_service op=reconcile msg=\"sweep failed\" error=%q", err)
			}
		}
	}
}
