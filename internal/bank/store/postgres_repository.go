/**
 * @description
 * This file provides the PostgreSQL implementation of the bank simulator's
 * Repository interface using the pgx driver.
 *
 * Key design decisions:
 * - Transfers lock both account rows in ascending account-number order before
 *   touching balances, so two concurrent transfers between the same accounts
 *   cannot deadlock.
 * - Account lookups exclude soft-deleted rows everywhere.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and toolkit.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DDuMandoo/moba-sub000/internal/bank/domain"
)

// PostgresRepository is the pgx-backed implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by a pgx pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const accountColumns = `id, bank_id, account_number, balance, name, password_hash, unique_id, refresh_token, is_deleted, deleted_at, created_at`

func scanAccount(row pgx.Row) (*domain.BankAccount, error) {
	var a domain.BankAccount
	err := row.Scan(&a.ID, &a.BankID, &a.AccountNumber, &a.Balance, &a.Name, &a.PasswordHash, &a.UniqueID, &a.RefreshToken, &a.IsDeleted, &a.DeletedAt, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// CreateAccount persists a new account. A colliding account number surfaces as
// ErrDuplicateAccountNumber so the caller can regenerate and retry.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.BankAccount) error {
	query := `
		INSERT INTO bank_accounts (id, bank_id, account_number, balance, name, password_hash, unique_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.Exec(ctx, query,
		account.ID, account.BankID, account.AccountNumber, account.Balance,
		account.Name, account.PasswordHash, account.UniqueID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccountNumber
		}
		return err
	}
	return nil
}

// FindAccountByID retrieves a live account by its id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE id = $1 AND is_deleted = FALSE`
	return scanAccount(r.db.QueryRow(ctx, query, accountID))
}

// FindAccountByUnique retrieves a live account matching the full ownership
// triple used by the validation endpoint.
func (r *PostgresRepository) FindAccountByUnique(ctx context.Context, bankID, uniqueID, accountNumber string) (*domain.BankAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM bank_accounts WHERE bank_id = $1 AND unique_id = $2 AND account_number = $3 AND is_deleted = FALSE`
	return scanAccount(r.db.QueryRow(ctx, query, bankID, uniqueID, accountNumber))
}

// SaveRefreshToken stores the latest refresh token issued for an account.
func (r *PostgresRepository) SaveRefreshToken(ctx context.Context, accountID uuid.UUID, refreshToken string) error {
	tag, err := r.db.Exec(ctx, `UPDATE bank_accounts SET refresh_token = $2 WHERE id = $1 AND is_deleted = FALSE`, accountID, refreshToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ExecuteTransfer moves amount between two accounts and writes both ledger rows
// in a single database transaction.
func (r *PostgresRepository) ExecuteTransfer(ctx context.Context, sourceAccountNumber, targetAccountNumber string, amount int64, name string) (*domain.TransferOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock both rows in ascending account-number order to avoid deadlocks
	// between opposing concurrent transfers.
	rows, err := tx.Query(ctx, `
		SELECT id, account_number, balance
		FROM bank_accounts
		WHERE account_number IN ($1, $2) AND is_deleted = FALSE
		ORDER BY account_number
		FOR UPDATE
	`, sourceAccountNumber, targetAccountNumber)
	if err != nil {
		return nil, err
	}

	type lockedAccount struct {
		id      uuid.UUID
		balance int64
	}
	locked := make(map[string]lockedAccount, 2)
	for rows.Next() {
		var id uuid.UUID
		var number string
		var balance int64
		if err := rows.Scan(&id, &number, &balance); err != nil {
			rows.Close()
			return nil, err
		}
		locked[number] = lockedAccount{id: id, balance: balance}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	source, ok := locked[sourceAccountNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	target, ok := locked[targetAccountNumber]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if source.balance < amount {
		return nil, ErrInsufficientBalance
	}

	if _, err := tx.Exec(ctx, `UPDATE bank_accounts SET balance = balance - $2 WHERE id = $1`, source.id, amount); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE bank_accounts SET balance = balance + $2 WHERE id = $1`, target.id, amount); err != nil {
		return nil, err
	}

	outcome := &domain.TransferOutcome{WithdrawID: uuid.New(), DepositID: uuid.New()}
	if _, err := tx.Exec(ctx, `
		INSERT INTO bank_transactions (id, account_id, target_account_id, amount, type, name, transaction_at)
		VALUES
			($1, $3, $4, $5, 'W', $6, NOW()),
			($2, $4, $3, $5, 'D', $6, NOW())
	`, outcome.WithdrawID, outcome.DepositID, source.id, target.id, amount, name); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return outcome, nil
}

// FindTransactionForAccount reads one ledger row belonging to the account.
func (r *PostgresRepository) FindTransactionForAccount(ctx context.Context, accountID uuid.UUID, transactionID uuid.UUID) (*domain.BankTransaction, error) {
	var t domain.BankTransaction
	query := `
		SELECT id, account_id, target_account_id, amount, type, name, transaction_at
		FROM bank_transactions
		WHERE id = $1 AND account_id = $2
	`
	err := r.db.QueryRow(ctx, query, transactionID, accountID).Scan(
		&t.ID, &t.AccountID, &t.TargetAccountID, &t.Amount, &t.Type, &t.Name, &t.TransactionAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &t, nil
}
