// Package repository defines the storage abstractions the ledger core
// depends on. Any engine satisfying these interfaces is interchangeable;
// implementations live in the memory and postgres subpackages.
package repository

import (
	"context"

	"banking-ledger-api/internal/model"
)

// AccountStore is the durable collection of account records, keyed by
// account number.
type AccountStore interface {
	// FindByNumber returns the account with the given number, or
	// ErrAccountNotFound.
	FindByNumber(ctx context.Context, number string) (*model.Account, error)

	// ExistsByNumber reports whether an account with the given number
	// exists.
	ExistsByNumber(ctx context.Context, number string) (bool, error)

	// Create persists a new account, assigning its storage ID. It returns
	// ErrAccountNumberTaken if the number is already in use.
	Create(ctx context.Context, account *model.Account) (*model.Account, error)
}

// TransactionStore is the durable, append-only collection of transaction
// records. Records are inserted only through Store.Apply.
type TransactionStore interface {
	// ListByAccount returns the transactions referencing the given account
	// number, in the order they were recorded.
	ListByAccount(ctx context.Context, number string) ([]*model.Transaction, error)
}

// Store ties the collections together and provides the atomic commit
// primitive every balance mutation goes through.
type Store interface {
	Accounts() AccountStore
	Transactions() TransactionStore

	// Apply commits the updated accounts and the transaction record as a
	// single atomic unit. Each account write is conditional on the Version
	// the account was read at; any mismatch aborts the whole unit with
	// ErrVersionConflict, a missing account aborts it with
	// ErrAccountNotFound, and nothing is applied. Accounts are written in
	// ascending account-number order so two-account commits cannot
	// deadlock.
	Apply(ctx context.Context, accounts []*model.Account, txn *model.Transaction) error
}
