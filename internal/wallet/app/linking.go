/**
 * @description
 * This file implements external account linking: a micro-transfer verification
 * flow where the service sends 1 unit to the claimed account with a random
 * 4-digit code as the transfer name, and the member proves ownership by reading
 * the code off their bank statement.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/DDuMandoo/moba-sub000/internal/wallet/store"
	"github.com/DDuMandoo/moba-sub000/pkg/bankclient"
)

func verificationCodeKey(memberID uuid.UUID, account string) string {
	return memberID.String() + ":" + account
}

// newVerificationCode returns a random 4-digit code, 1000 to 9999.
func newVerificationCode() string {
	return strconv.Itoa(1000 + rand.IntN(9000))
}

// ConnectAccount starts account verification: it rejects accounts already
// linked anywhere, then sends a 1-unit transfer carrying the code and stores
// the code with a TTL for the follow-up auth call.
func (s *Service) ConnectAccount(ctx context.Context, memberID uuid.UUID, req domain.ConnectAccountRequest) error {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return err
	}

	// Uniqueness is global: one external account belongs to at most one wallet.
	if _, err := s.repo.FindWalletAccount(ctx, req.Account); err == nil {
		return ErrDuplicateConnectAccount
	} else if !errors.Is(err, store.ErrAccountNotFound) {
		return fmt.Errorf("failed to check existing account: %w", err)
	}

	code := newVerificationCode()
	if _, err := s.bank.Transfer(ctx, bankclient.TransferRequest{
		AccessToken: s.operatorToken,
		Bank:        req.Bank,
		Amount:      1,
		Name:        code,
		Target:      req.Account,
	}); err != nil {
		log.Printf("level=warn component=wallet_service op=connect_account wallet_id=%s msg=\"verification transfer failed\" error=%q", wallet.ID, err)
		return ErrInvalidVerificationAccount
	}

	if err := s.codes.Set(ctx, verificationCodeKey(memberID, req.Account), code, s.codeTTL); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	log.Printf("level=info component=wallet_service op=connect_account wallet_id=%s msg=\"verification transfer sent\"", wallet.ID)
	return nil
}

// AuthAccount finishes account verification: the supplied code must match the
// stored one, then the bank confirms ownership and issues an access token that
// is persisted with the link. The code is one-shot.
func (s *Service) AuthAccount(ctx context.Context, memberID uuid.UUID, req domain.AuthAccountRequest) (*domain.WalletAccount, error) {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}

	key := verificationCodeKey(memberID, req.Account)
	stored, err := s.codes.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, ErrInvalidVerificationAccountCode
		}
		return nil, fmt.Errorf("failed to read verification code: %w", err)
	}
	if stored != req.Code {
		// Burn the code on mismatch so it cannot be brute-forced.
		if delErr := s.codes.Delete(ctx, key); delErr != nil {
			log.Printf("level=warn component=wallet_service op=auth_account msg=\"failed to delete verification code\" error=%q", delErr)
		}
		return nil, ErrInvalidVerificationAccountCode
	}

	valid, err := s.bank.Valid(ctx, bankclient.ValidRequest{
		UniqueID: memberID.String(),
		Account:  req.Account,
		Bank:     req.Bank,
	})
	if err != nil || valid.AccessToken == "" {
		log.Printf("level=warn component=wallet_service op=auth_account wallet_id=%s msg=\"bank validation failed\" error=%q", wallet.ID, err)
		return nil, ErrInvalidVerificationAccount
	}

	account := &domain.WalletAccount{
		AccountNumber: req.Account,
		WalletID:      wallet.ID,
		Bank:          req.Bank,
		AccessToken:   valid.AccessToken,
	}
	if err := s.repo.CreateWalletAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			return nil, ErrDuplicateConnectAccount
		}
		return nil, fmt.Errorf("failed to persist linked account: %w", err)
	}
	if err := s.codes.Delete(ctx, key); err != nil {
		log.Printf("level=warn component=wallet_service op=auth_account msg=\"failed to delete verification code\" error=%q", err)
	}
	log.Printf("level=info component=wallet_service op=auth_account wallet_id=%s msg=\"account linked\"", wallet.ID)
	return account, nil
}

// ChangeMainAccount atomically makes the given linked account the wallet's main
// account and demotes every other one.
func (s *Service) ChangeMainAccount(ctx context.Context, memberID uuid.UUID, req domain.ChangeMainAccountRequest) error {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return err
	}
	if err := s.repo.SetMainWalletAccount(ctx, wallet.ID, req.Account); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return ErrInvalidVerificationAccount
		}
		return fmt.Errorf("failed to change main account: %w", err)
	}
	return nil
}

// ListAccounts returns the wallet's linked external accounts.
func (s *Service) ListAccounts(ctx context.Context, memberID uuid.UUID) ([]domain.WalletAccount, error) {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListWalletAccounts(ctx, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}
	return accounts, nil
}
