// Package postgres implements repository.Store over database/sql with the
// lib/pq driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"banking-ledger-api/internal/model"
	"banking-ledger-api/internal/repository"
)

// uniqueViolation is the Postgres error code raised when an insert breaks a
// unique constraint.
const uniqueViolation = "23505"

// Store is the Postgres-backed repository.Store.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Accounts() repository.AccountStore         { return s }
func (s *Store) Transactions() repository.TransactionStore { return s }

// FindByNumber implements repository.AccountStore.
func (s *Store) FindByNumber(ctx context.Context, number string) (*model.Account, error) {
	query := `
		SELECT id, account_number, holder_name, balance, status, version, created_at, updated_at
		FROM accounts
		WHERE account_number = $1
	`

	account := &model.Account{}
	err := s.db.QueryRowContext(ctx, query, number).Scan(
		&account.ID,
		&account.AccountNumber,
		&account.HolderName,
		&account.Balance,
		&account.Status,
		&account.Version,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// ExistsByNumber implements repository.AccountStore.
func (s *Store) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	query := `SELECT 1 FROM accounts WHERE account_number = $1 LIMIT 1`

	var exists int
	err := s.db.QueryRowContext(ctx, query, number).Scan(&exists)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}

	return true, nil
}

// Create implements repository.AccountStore.
func (s *Store) Create(ctx context.Context, account *model.Account) (*model.Account, error) {
	query := `
		INSERT INTO accounts (id, account_number, holder_name, balance, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
		RETURNING id, account_number, holder_name, balance, status, version, created_at, updated_at
	`

	id := account.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	created := &model.Account{}
	err := s.db.QueryRowContext(ctx, query,
		id,
		account.AccountNumber,
		account.HolderName,
		account.Balance,
		account.Status,
	).Scan(
		&created.ID,
		&created.AccountNumber,
		&created.HolderName,
		&created.Balance,
		&created.Status,
		&created.Version,
		&created.CreatedAt,
		&created.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrAccountNumberTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return created, nil
}

// ListByAccount implements repository.TransactionStore.
func (s *Store) ListByAccount(ctx context.Context, number string) ([]*model.Transaction, error) {
	query := `
		SELECT id, transaction_id, type, amount, status, source_account, destination_account, seq, created_at
		FROM transactions
		WHERE source_account = $1 OR destination_account = $1
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, number)
	if err != nil {
		return nil, fmt.Errorf("failed to list account transactions: %w", err)
	}
	defer rows.Close()

	transactions := make([]*model.Transaction, 0)
	for rows.Next() {
		txn := &model.Transaction{}
		err := rows.Scan(
			&txn.ID,
			&txn.TransactionID,
			&txn.Type,
			&txn.Amount,
			&txn.Status,
			&txn.SourceAccount,
			&txn.DestinationAccount,
			&txn.Seq,
			&txn.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// Apply implements repository.Store. Account updates and the transaction
// insert share one database transaction; every balance write is conditional
// on the version the account was read at.
func (s *Store) Apply(ctx context.Context, accounts []*model.Account, txn *model.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback() // no-op once Commit succeeds

	ordered := make([]*model.Account, len(accounts))
	copy(ordered, accounts)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].AccountNumber < ordered[j].AccountNumber
	})

	updateQuery := `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE account_number = $2 AND version = $3
	`

	for _, account := range ordered {
		result, err := dbTx.ExecContext(ctx, updateQuery, account.Balance, account.AccountNumber, account.Version)
		if err != nil {
			return fmt.Errorf("failed to update account balance: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			// Distinguish a lost version race from a row that does not
			// exist at all, matching the in-memory store.
			var exists int
			err := dbTx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE account_number = $1`, account.AccountNumber).Scan(&exists)
			if err == sql.ErrNoRows {
				return repository.ErrAccountNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to check account existence: %w", err)
			}
			return repository.ErrVersionConflict
		}
	}

	insertQuery := `
		INSERT INTO transactions (id, transaction_id, type, amount, status, source_account, destination_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = dbTx.ExecContext(ctx, insertQuery,
		txn.ID,
		txn.TransactionID,
		txn.Type,
		txn.Amount,
		txn.Status,
		txn.SourceAccount,
		txn.DestinationAccount,
		txn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

var _ repository.Store = (*Store)(nil)
