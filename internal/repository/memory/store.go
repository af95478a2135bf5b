// Package memory is an in-memory implementation of repository.Store. It is
// used by the test suite and for dependency-free local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"banking-ledger-api/internal/model"
	"banking-ledger-api/internal/repository"
)

// Store keeps accounts and transactions in mutex-guarded maps. All methods
// hand out clones so callers can never mutate internal state directly.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
	txns     []*model.Transaction
	nextSeq  int64

	// applyHook, when set, runs inside Apply after the version checks and
	// before anything is committed. Tests use it to simulate a failed
	// transaction-record write; a hook error must leave the store
	// untouched.
	applyHook func(txn *model.Transaction) error
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*model.Account),
	}
}

func (s *Store) Accounts() repository.AccountStore         { return s }
func (s *Store) Transactions() repository.TransactionStore { return s }

// SetApplyHook installs a hook invoked by Apply before committing. Passing
// nil removes it.
func (s *Store) SetApplyHook(hook func(txn *model.Transaction) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyHook = hook
}

// FindByNumber implements repository.AccountStore.
func (s *Store) FindByNumber(ctx context.Context, number string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[number]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// ExistsByNumber implements repository.AccountStore.
func (s *Store) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.accounts[number]
	return ok, nil
}

// Create implements repository.AccountStore.
func (s *Store) Create(ctx context.Context, account *model.Account) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.AccountNumber]; ok {
		return nil, repository.ErrAccountNumberTaken
	}

	stored := account.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.Version == 0 {
		stored.Version = 1
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	s.accounts[stored.AccountNumber] = stored
	return stored.Clone(), nil
}

// ListByAccount implements repository.TransactionStore.
func (s *Store) ListByAccount(ctx context.Context, number string) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*model.Transaction, 0)
	for _, t := range s.txns {
		if references(t, number) {
			result = append(result, t.Clone())
		}
	}
	return result, nil
}

// Apply implements repository.Store. The whole unit runs under one lock:
// either every account write and the transaction insert land, or nothing
// does.
func (s *Store) Apply(ctx context.Context, accounts []*model.Account, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]*model.Account, len(accounts))
	copy(ordered, accounts)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].AccountNumber < ordered[j].AccountNumber
	})

	for _, account := range ordered {
		stored, ok := s.accounts[account.AccountNumber]
		if !ok {
			return repository.ErrAccountNotFound
		}
		if stored.Version != account.Version {
			return repository.ErrVersionConflict
		}
	}

	if s.applyHook != nil {
		if err := s.applyHook(txn); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, account := range ordered {
		stored := account.Clone()
		stored.Version++
		stored.UpdatedAt = now
		s.accounts[stored.AccountNumber] = stored
	}

	s.nextSeq++
	record := txn.Clone()
	record.Seq = s.nextSeq
	s.txns = append(s.txns, record)

	return nil
}

func references(t *model.Transaction, number string) bool {
	if t.SourceAccount != nil && *t.SourceAccount == number {
		return true
	}
	if t.DestinationAccount != nil && *t.DestinationAccount == number {
		return true
	}
	return false
}

// Compile-time check: Store satisfies the repository interfaces.
var _ repository.Store = (*Store)(nil)
