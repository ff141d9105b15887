/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed for wallets, linked accounts, paired ledger
 * transactions, and dutch-pay settlement state.
 *
 * Concurrency discipline: every balance mutation happens inside a database
 * transaction after a `SELECT ... FOR UPDATE` on the affected wallet rows. When
 * two wallets are involved they are always locked in ascending id order, so
 * opposite-direction concurrent transfers cannot deadlock.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/wallet/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DDuMandoo/moba-sub000/internal/wallet/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// FindWalletByMemberID retrieves the wallet owned by a member.
func (r *PostgresRepository) FindWalletByMemberID(ctx context.Context, memberID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	query := `SELECT id, member_id, amount, pin_hash, created_at FROM wallets WHERE member_id = $1`
	err := r.db.QueryRow(ctx, query, memberID).Scan(&w.ID, &w.MemberID, &w.Amount, &w.PINHash, &w.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// SetWalletPIN stores the bcrypt hash of a wallet's short PIN.
func (r *PostgresRepository) SetWalletPIN(ctx context.Context, walletID uuid.UUID, pinHash string) error {
	result, err := r.db.Exec(ctx, `UPDATE wallets SET pin_hash = $1 WHERE id = $2`, pinHash, walletID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// ListTransactionsByWallet retrieves a wallet's ledger rows, newest first.
func (r *PostgresRepository) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `
		SELECT id, wallet_id, target_wallet_id, amount, type, kind, status, bank_transfer_id, counterparty, pay_at
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY pay_at DESC
	`
	rows, err := r.db.Query(ctx, query, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(&t.ID, &t.WalletID, &t.TargetWalletID, &t.Amount, &t.Type, &t.Kind, &t.Status, &t.BankTransferID, &t.Counterparty, &t.PayAt)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// FindWalletAccount retrieves a linked account regardless of owning wallet.
func (r *PostgresRepository) FindWalletAccount(ctx context.Context, accountNumber string) (*domain.WalletAccount, error) {
	var a domain.WalletAccount
	query := `SELECT account_number, wallet_id, bank, is_main, access_token, created_at FROM wallet_accounts WHERE account_number = $1`
	err := r.db.QueryRow(ctx, query, accountNumber).Scan(&a.AccountNumber, &a.WalletID, &a.Bank, &a.IsMain, &a.AccessToken, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindWalletAccountForWallet retrieves a linked account scoped to its owning wallet.
func (r *PostgresRepository) FindWalletAccountForWallet(ctx context.Context, walletID uuid.UUID, accountNumber string) (*domain.WalletAccount, error) {
	var a domain.WalletAccount
	query := `SELECT account_number, wallet_id, bank, is_main, access_token, created_at FROM wallet_accounts WHERE wallet_id = $1 AND account_number = $2`
	err := r.db.QueryRow(ctx, query, walletID, accountNumber).Scan(&a.AccountNumber, &a.WalletID, &a.Bank, &a.IsMain, &a.AccessToken, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListWalletAccounts returns every linked account for a wallet, main first.
func (r *PostgresRepository) ListWalletAccounts(ctx context.Context, walletID uuid.UUID) ([]domain.WalletAccount, error) {
	query := `
		SELECT account_number, wallet_id, bank, is_main, access_token, created_at
		FROM wallet_accounts
		WHERE wallet_id = $1
		ORDER BY is_main DESC, created_at ASC
	`
	rows, err := r.db.Query(ctx, query, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.WalletAccount
	for rows.Next() {
		var a domain.WalletAccount
		if err := rows.Scan(&a.AccountNumber, &a.WalletID, &a.Bank, &a.IsMain, &a.AccessToken, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateWalletAccount persists a newly verified linked account.
func (r *PostgresRepository) CreateWalletAccount(ctx context.Context, account *domain.WalletAccount) error {
	query := `
		INSERT INTO wallet_accounts (account_number, wallet_id, bank, is_main, access_token, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.Exec(ctx, query, account.AccountNumber, account.WalletID, account.Bank, account.IsMain, account.AccessToken)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// SetMainWalletAccount switches the main flag in a single conditional update, so
// there is no window where the previous main is cleared and the new one not set.
func (r *PostgresRepository) SetMainWalletAccount(ctx context.Context, walletID uuid.UUID, accountNumber string) error {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wallet_accounts WHERE wallet_id = $1 AND account_number = $2)`,
		walletID, accountNumber).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}

	_, err = r.db.Exec(ctx,
		`UPDATE wallet_accounts SET is_main = (account_number = $2) WHERE wallet_id = $1`,
		walletID, accountNumber)
	return err
}

// insertPair writes the withdraw and deposit rows of one movement inside tx.
func insertPair(ctx context.Context, tx pgx.Tx, pair domain.TransactionPair, sourceWalletID, targetWalletID uuid.UUID, amount int64, kind domain.MovementKind, counterparty *string) error {
	query := `
		INSERT INTO transactions (id, wallet_id, target_wallet_id, amount, type, kind, status, counterparty, pay_at)
		VALUES
			($1, $3, $4, $5, 'WITHDRAW', $6, 'PENDING', $7, NOW()),
			($2, $4, $3, $5, 'DEPOSIT',  $6, 'PENDING', $7, NOW())
	`
	_, err := tx.Exec(ctx, query, pair.WithdrawID, pair.DepositID, sourceWalletID, targetWalletID, amount, string(kind), counterparty)
	return err
}

// markPair finalizes both rows of a pair. The status guard makes the
// transition forward-only; finalizing an already-terminal pair is an error.
func markPair(ctx context.Context, tx pgx.Tx, pair domain.TransactionPair, status domain.TransactionStatus) error {
	result, err := tx.Exec(ctx,
		`UPDATE transactions SET status = $1 WHERE id = ANY(ARRAY[$2, $3]::uuid[]) AND status = 'PENDING'`,
		string(status), pair.WithdrawID, pair.DepositID)
	if err != nil {
		return err
	}
	if result.RowsAffected() != 2 {
		return ErrTransactionNotPending
	}
	return nil
}

// lockWallet reads a wallet's balance under an exclusive row lock.
func lockWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT amount FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrWalletNotFound
		}
		return 0, err
	}
	return balance, nil
}

// lockWalletPair locks two wallet rows in ascending id order and returns their
// balances keyed by id.
func lockWalletPair(ctx context.Context, tx pgx.Tx, a, b uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, amount FROM wallets WHERE id = $1 OR id = $2 ORDER BY id FOR UPDATE`,
		a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[uuid.UUID]int64, 2)
	for rows.Next() {
		var id uuid.UUID
		var amount int64
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, err
		}
		balances[id] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if _, ok := balances[a]; !ok {
		return nil, ErrWalletNotFound
	}
	if _, ok := balances[b]; !ok {
		return nil, ErrWalletNotFound
	}
	return balances, nil
}

// CreatePendingDeposit writes the pending pair for an external -> wallet charge.
// The pair is the durable intent record: it exists before the outbound bank call
// so a crash mid-flight leaves a row the reconciliation sweep can resolve.
func (r *PostgresRepository) CreatePendingDeposit(ctx context.Context, walletID uuid.UUID, amount int64, counterparty string) (domain.TransactionPair, error) {
	pair := domain.TransactionPair{WithdrawID: uuid.New(), DepositID: uuid.New()}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.TransactionPair{}, err
	}
	defer tx.Rollback(ctx)

	if err := insertPair(ctx, tx, pair, walletID, walletID, amount, domain.KindExternalDeposit, &counterparty); err != nil {
		return domain.TransactionPair{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.TransactionPair{}, err
	}
	return pair, nil
}

// CreatePendingWithdrawal debits the wallet and writes the pending pair in one
// database transaction. The debit happens up front to lock the funds; a failed
// bank leg is undone via RefundWithdrawal.
func (r *PostgresRepository) CreatePendingWithdrawal(ctx context.Context, walletID uuid.UUID, amount int64, counterparty string) (domain.TransactionPair, error) {
	pair := domain.TransactionPair{WithdrawID: uuid.New(), DepositID: uuid.New()}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.TransactionPair{}, err
	}
	defer tx.Rollback(ctx)

	balance, err := lockWallet(ctx, tx, walletID)
	if err != nil {
		return domain.TransactionPair{}, err
	}
	if balance < amount {
		return domain.TransactionPair{}, ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = amount - $1 WHERE id = $2`, amount, walletID); err != nil {
		return domain.TransactionPair{}, err
	}
	if err := insertPair(ctx, tx, pair, walletID, walletID, amount, domain.KindExternalWithdraw, &counterparty); err != nil {
		return domain.TransactionPair{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.TransactionPair{}, err
	}
	return pair, nil
}

// AttachBankReference records the bank-side transaction id on a pending pair.
func (r *PostgresRepository) AttachBankReference(ctx context.Context, pair domain.TransactionPair, bankTransferID string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE transactions SET bank_transfer_id = $1 WHERE id = ANY(ARRAY[$2, $3]::uuid[]) AND status = 'PENDING'`,
		bankTransferID, pair.WithdrawID, pair.DepositID)
	if err != nil {
		return err
	}
	if result.RowsAffected() != 2 {
		return ErrTransactionNotPending
	}
	return nil
}

// CompleteDeposit credits the wallet and finalizes the pair together.
func (r *PostgresRepository) CompleteDeposit(ctx context.Context, pair domain.TransactionPair, walletID uuid.UUID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockWallet(ctx, tx, walletID); err != nil {
		return err
	}
	if err := markPair(ctx, tx, pair, domain.StatusCompleted); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = amount + $1 WHERE id = $2`, amount, walletID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CompleteWithdrawal finalizes a withdrawal pair. The wallet was already debited
// when the pending pair was created.
func (r *PostgresRepository) CompleteWithdrawal(ctx context.Context, pair domain.TransactionPair) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := markPair(ctx, tx, pair, domain.StatusCompleted); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FailPair moves both rows of a pending pair to FAILED.
func (r *PostgresRepository) FailPair(ctx context.Context, pair domain.TransactionPair) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := markPair(ctx, tx, pair, domain.StatusFailed); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RefundWithdrawal fails the pair and returns the up-front debit to the wallet
// in one database transaction.
func (r *PostgresRepository) RefundWithdrawal(ctx context.Context, pair domain.TransactionPair, walletID uuid.UUID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockWallet(ctx, tx, walletID); err != nil {
		return err
	}
	if err := markPair(ctx, tx, pair, domain.StatusFailed); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = amount + $1 WHERE id = $2`, amount, walletID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// TransferBetweenWallets moves money between two wallets: both rows created
// PENDING, balances mutated under ascending-order row locks, and both rows
// finalized COMPLETED, all in one database transaction.
func (r *PostgresRepository) TransferBetweenWallets(ctx context.Context, sourceWalletID, targetWalletID uuid.UUID, amount int64) (domain.TransactionPair, error) {
	pair := domain.TransactionPair{WithdrawID: uuid.New(), DepositID: uuid.New()}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.TransactionPair{}, err
	}
	defer tx.Rollback(ctx)

	balances, err := lockWalletPair(ctx, tx, sourceWalletID, targetWalletID)
	if err != nil {
		return domain.TransactionPair{}, err
	}
	if balances[sourceWalletID] < amount {
		return domain.TransactionPair{}, ErrInsufficientBalance
	}

	if err := insertPair(ctx, tx, pair, sourceWalletID, targetWalletID, amount, domain.KindWalletTransfer, nil); err != nil {
		return domain.TransactionPair{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = amount - $1 WHERE id = $2`, amount, sourceWalletID); err != nil {
		return domain.TransactionPair{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = amount + $1 WHERE id = $2`, amount, targetWalletID); err != nil {
		return domain.TransactionPair{}, err
	}
	if err := markPair(ctx, tx, pair, domain.StatusCompleted); err != nil {
		return domain.TransactionPair{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.TransactionPair{}, err
	}
	return pair, nil
}

// CreateDutchpay persists the dutch-pay event, its pending transaction pairs,
// and its participant rows atomically. A validation failure upstream therefore
// leaves no rows behind.
func (r *PostgresRepository) CreateDutchpay(ctx context.Context, d *domain.Dutchpay, participants []domain.DutchpayParticipant, txns []domain.Transaction) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO dutchpays (id, host_wallet_id, appointment_id, price, settlement, is_completed, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	if _, err := tx.Exec(ctx, query, d.ID, d.HostWalletID, d.AppointmentID, d.Price, d.Settlement, d.IsCompleted, d.CompletedAt); err != nil {
		return err
	}

	for _, t := range txns {
		_, err := tx.Exec(ctx, `
			INSERT INTO transactions (id, wallet_id, target_wallet_id, amount, type, kind, status, pay_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', NOW())
		`, t.ID, t.WalletID, t.TargetWalletID, t.Amount, string(t.Type), string(t.Kind))
		if err != nil {
			return err
		}
	}

	for _, p := range participants {
		_, err := tx.Exec(ctx, `
			INSERT INTO dutchpay_participants (dutchpay_id, wallet_id, price, deposit_txn_id, withdraw_txn_id, status)
			VALUES ($1, $2, $3, $4, $5, FALSE)
		`, p.DutchpayID, p.WalletID, p.Price, p.DepositTxnID, p.WithdrawTxnID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindDutchpay retrieves a dutch-pay event with its host's member id.
func (r *PostgresRepository) FindDutchpay(ctx context.Context, dutchpayID uuid.UUID) (*domain.Dutchpay, error) {
	var d domain.Dutchpay
	query := `
		SELECT d.id, d.host_wallet_id, w.member_id, d.appointment_id, d.price, d.settlement, d.is_completed, d.completed_at, d.created_at
		FROM dutchpays d
		JOIN wallets w ON w.id = d.host_wallet_id
		WHERE d.id = $1
	`
	err := r.db.QueryRow(ctx, query, dutchpayID).Scan(
		&d.ID, &d.HostWalletID, &d.HostMemberID, &d.AppointmentID,
		&d.Price, &d.Settlement, &d.IsCompleted, &d.CompletedAt, &d.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDutchpayNotFound
		}
		return nil, err
	}
	return &d, nil
}

// settleParticipant drives one participant's share to settled inside a single
// database transaction. When viaTransfer is true the pre-created pair is
// executed against the wallet balances; otherwise the pair is cancelled
// (settled outside the app) and only the accumulator advances.
func (r *PostgresRepository) settleParticipant(ctx context.Context, dutchpayID, walletID uuid.UUID, viaTransfer bool) (*domain.SettlementResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock the dutchpay row first so concurrent settlements of different
	// participants serialize on the accumulator.
	var hostWalletID, appointmentID uuid.UUID
	var price, settlement int64
	err = tx.QueryRow(ctx,
		`SELECT host_wallet_id, appointment_id, price, settlement FROM dutchpays WHERE id = $1 FOR UPDATE`,
		dutchpayID).Scan(&hostWalletID, &appointmentID, &price, &settlement)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDutchpayNotFound
		}
		return nil, err
	}

	var p domain.DutchpayParticipant
	err = tx.QueryRow(ctx, `
		SELECT dutchpay_id, wallet_id, price, deposit_txn_id, withdraw_txn_id, status
		FROM dutchpay_participants
		WHERE dutchpay_id = $1 AND wallet_id = $2
		FOR UPDATE
	`, dutchpayID, walletID).Scan(&p.DutchpayID, &p.WalletID, &p.Price, &p.DepositTxnID, &p.WithdrawTxnID, &p.Status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	if p.Status {
		return nil, ErrParticipantSettled
	}

	pair := domain.TransactionPair{WithdrawID: p.WithdrawTxnID, DepositID: p.DepositTxnID}
	if viaTransfer {
		balances, err := lockWalletPair(ctx, tx, walletID, hostWalletID)
		if err != nil {
			return nil, err
		}
		if balances[walletID] < p.Price {
			return nil, ErrInsufficientBalance
		}
		if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = amount - $1 WHERE id = $2`, p.Price, walletID); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `UPDATE wallets SET amount = amount + $1 WHERE id = $2`, p.Price, hostWalletID); err != nil {
			return nil, err
		}
		if err := markPair(ctx, tx, pair, domain.StatusCompleted); err != nil {
			return nil, err
		}
	} else {
		if err := markPair(ctx, tx, pair, domain.StatusFailed); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE dutchpay_participants SET status = TRUE WHERE dutchpay_id = $1 AND wallet_id = $2`,
		dutchpayID, walletID); err != nil {
		return nil, err
	}

	// Completion flips exactly when the accumulator reaches the fixed price,
	// and completed_at is stamped only once.
	var completed bool
	err = tx.QueryRow(ctx, `
		UPDATE dutchpays
		SET settlement = settlement + $1,
		    is_completed = CASE WHEN settlement + $1 = price THEN TRUE ELSE is_completed END,
		    completed_at = CASE WHEN settlement + $1 = price AND completed_at IS NULL THEN NOW() ELSE completed_at END
		WHERE id = $2
		RETURNING is_completed
	`, p.Price, dutchpayID).Scan(&completed)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.SettlementResult{
		DutchpayID:    dutchpayID,
		AppointmentID: appointmentID,
		Amount:        p.Price,
		Completed:     completed,
	}, nil
}

// CompleteParticipantOffPlatform settles a share that was paid outside the app:
// the pending pair is cancelled and the accumulator advances.
func (r *PostgresRepository) CompleteParticipantOffPlatform(ctx context.Context, dutchpayID, walletID uuid.UUID) (*domain.SettlementResult, error) {
	return r.settleParticipant(ctx, dutchpayID, walletID, false)
}

// SettleParticipantTransfer executes a participant's pre-created pair against
// the wallet balances and advances the accumulator.
func (r *PostgresRepository) SettleParticipantTransfer(ctx context.Context, dutchpayID, walletID uuid.UUID) (*domain.SettlementResult, error) {
	return r.settleParticipant(ctx, dutchpayID, walletID, true)
}

// ListDemandsByHost retrieves the open shares a host is still owed.
func (r *PostgresRepository) ListDemandsByHost(ctx context.Context, hostWalletID uuid.UUID) ([]domain.DutchpayDemand, error) {
	query := `
		SELECT p.dutchpay_id, d.appointment_id, w.member_id, p.price, p.status, d.created_at
		FROM dutchpay_participants p
		JOIN dutchpays d ON d.id = p.dutchpay_id
		JOIN wallets w ON w.id = p.wallet_id
		WHERE d.host_wallet_id = $1 AND d.is_completed = FALSE
		ORDER BY d.created_at DESC, p.wallet_id
	`
	rows, err := r.db.Query(ctx, query, hostWalletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var demands []domain.DutchpayDemand
	for rows.Next() {
		var item domain.DutchpayDemand
		if err := rows.Scan(&item.DutchpayID, &item.AppointmentID, &item.MemberID, &item.Price, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		demands = append(demands, item)
	}
	return demands, rows.Err()
}

// ListReceiptsByWallet retrieves the shares a participant still owes.
func (r *PostgresRepository) ListReceiptsByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.DutchpayReceipt, error) {
	query := `
		SELECT p.dutchpay_id, d.appointment_id, hw.member_id, p.price, p.status, d.created_at
		FROM dutchpay_participants p
		JOIN dutchpays d ON d.id = p.dutchpay_id
		JOIN wallets hw ON hw.id = d.host_wallet_id
		WHERE p.wallet_id = $1 AND p.status = FALSE
		ORDER BY d.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []domain.DutchpayReceipt
	for rows.Next() {
		var item domain.DutchpayReceipt
		if err := rows.Scan(&item.DutchpayID, &item.AppointmentID, &item.HostMemberID, &item.Price, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		receipts = append(receipts, item)
	}
	return receipts, rows.Err()
}

// ListStalePendingExternal retrieves external movements whose pair is still
// pending past the cutoff. These are intents whose bank leg completed (or not)
// without the local verification step finishing.
func (r *PostgresRepository) ListStalePendingExternal(ctx context.Context, cutoff time.Time, limit int) ([]domain.PendingExternal, error) {
	// External pairs are self-referential (wallet = target) and both rows share
	// the insert timestamp, so the deposit side can be matched even when the
	// crash happened before a bank reference was attached.
	query := `
		SELECT wtx.id, dtx.id, wtx.wallet_id, wtx.amount, wtx.kind, wtx.bank_transfer_id, wtx.counterparty, wtx.pay_at
		FROM transactions wtx
		JOIN transactions dtx
		  ON dtx.wallet_id = wtx.wallet_id
		 AND dtx.kind = wtx.kind
		 AND dtx.pay_at = wtx.pay_at
		 AND dtx.bank_transfer_id IS NOT DISTINCT FROM wtx.bank_transfer_id
		 AND dtx.type = 'DEPOSIT'
		 AND dtx.status = 'PENDING'
		WHERE wtx.type = 'WITHDRAW'
		  AND wtx.status = 'PENDING'
		  AND wtx.kind IN ('EXTERNAL_DEPOSIT', 'EXTERNAL_WITHDRAW')
		  AND wtx.pay_at < $1
		ORDER BY wtx.pay_at
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PendingExternal
	for rows.Next() {
		var item domain.PendingExternal
		var kind string
		var bankRef, counterparty *string
		err := rows.Scan(&item.Pair.WithdrawID, &item.Pair.DepositID, &item.WalletID, &item.Amount, &kind, &bankRef, &counterparty, &item.PayAt)
		if err != nil {
			return nil, err
		}
		item.Kind = domain.MovementKind(kind)
		if bankRef != nil {
			item.BankTransferID = *bankRef
		}
		if counterparty != nil {
			item.AccountNumber = *counterparty
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RegisterIdempotencyKey claims a client-supplied key for one operation. A
// replayed request hits the primary key and is rejected before moving funds.
func (r *PostgresRepository) RegisterIdempotencyKey(ctx context.Context, walletID uuid.UUID, operation, key string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO idempotency_keys (wallet_id, operation, idem_key, created_at)
		VALUES ($1, $2, $3, NOW())
	`, walletID, operation, key)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to register idempotency key: %w", err)
	}
	return nil
}
