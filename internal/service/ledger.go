package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"banking-ledger-api/internal/events"
	"banking-ledger-api/internal/identifier"
	"banking-ledger-api/internal/logger"
	"banking-ledger-api/internal/model"
	"banking-ledger-api/internal/repository"
)

// maxConflictRetries bounds how often a balance mutation is retried after
// losing an optimistic-concurrency race before Conflict is surfaced.
const maxConflictRetries = 5

// LedgerService orchestrates account creation and the balance-mutating
// operations, enforcing the ledger invariants: balances never go negative,
// every mutation commits together with its transaction record, and transfers
// conserve the total of the two balances involved.
//
// Mutations take a per-account lock (both locks in account-number order for
// transfers) so operations on the same account are serialized in-process;
// the store's version check still protects against writers outside this
// process.
type LedgerService struct {
	store     repository.Store
	publisher events.Publisher

	mapMu sync.Mutex
	locks map[string]*sync.Mutex

	// seams for tests
	accountNumber func(holderName string) string
	transactionID func() string
	now           func() time.Time
}

// NewLedgerService creates a new ledger service. A nil publisher disables
// event publishing.
func NewLedgerService(store repository.Store, publisher events.Publisher) *LedgerService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &LedgerService{
		store:         store,
		publisher:     publisher,
		locks:         make(map[string]*sync.Mutex),
		accountNumber: identifier.AccountNumber,
		transactionID: identifier.TransactionID,
		now:           time.Now,
	}
}

// CreateAccount opens a new account for the given holder with a zero
// balance. The generated account number is regenerated until it does not
// collide with an existing one.
func (s *LedgerService) CreateAccount(ctx context.Context, req *model.CreateAccountRequest) (*model.AccountResponse, error) {
	holder := strings.TrimSpace(req.HolderName)
	if holder == "" {
		logger.Warn("attempt to create account with empty holder name", nil)
		return nil, &ServiceError{Code: model.ErrCodeInvalidInput, Message: "Account holder name is required"}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, &ServiceError{Code: model.ErrCodeUnavailable, Message: "Request cancelled"}
		}

		number := s.accountNumber(holder)
		exists, err := s.store.Accounts().ExistsByNumber(ctx, number)
		if err != nil {
			return nil, s.storeFailure(err)
		}
		if exists {
			continue
		}

		now := s.now().UTC()
		created, err := s.store.Accounts().Create(ctx, &model.Account{
			AccountNumber: number,
			HolderName:    holder,
			Balance:       decimal.Zero,
			Status:        model.AccountStatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if errors.Is(err, repository.ErrAccountNumberTaken) {
			// Lost a race with a concurrent create; pick another number.
			continue
		}
		if err != nil {
			return nil, s.storeFailure(err)
		}

		logger.Info("account created", logger.Fields{"account": created.AccountNumber})
		return accountView(created), nil
	}
}

// Deposit credits the account and records a DEPOSIT transaction atomically.
func (s *LedgerService) Deposit(ctx context.Context, accountNumber string, amount *decimal.Decimal) (*model.TransactionResponse, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return nil, &ServiceError{Code: model.ErrCodeInvalidInput, Message: "Account number is required"}
	}
	if amount == nil || amount.Sign() <= 0 {
		logger.Warn("deposit attempt with invalid amount", logger.Fields{"account": number})
		return nil, &ServiceError{Code: model.ErrCodeInvalidAmount, Message: "Amount must be greater than 0"}
	}
	amt := *amount

	mu := s.accountLock(number)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		account, err := s.loadActive(ctx, number)
		if err != nil {
			return nil, err
		}

		updated := account.Clone()
		updated.Balance = account.Balance.Add(amt)

		txn := s.newTransaction(model.TransactionTypeDeposit, amt, nil, &updated.AccountNumber)
		err = s.store.Apply(ctx, []*model.Account{updated}, txn)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.storeFailure(err)
		}

		s.publishCompleted(ctx, txn)
		logger.Info("deposit recorded", logger.Fields{
			"account":        number,
			"amount":         amt.String(),
			"transaction_id": txn.TransactionID,
		})
		return transactionView(txn), nil
	}

	return nil, conflictError()
}

// Withdraw debits the account and records a WITHDRAW transaction atomically.
// The balance check is re-evaluated on every retry since the balance may
// have changed since the previous read.
func (s *LedgerService) Withdraw(ctx context.Context, accountNumber string, amount *decimal.Decimal) (*model.TransactionResponse, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return nil, &ServiceError{Code: model.ErrCodeInvalidInput, Message: "Account number is required"}
	}
	if amount == nil || amount.Sign() <= 0 {
		logger.Warn("withdrawal attempt with invalid amount", logger.Fields{"account": number})
		return nil, &ServiceError{Code: model.ErrCodeInvalidAmount, Message: "Amount must be greater than 0"}
	}
	amt := *amount

	mu := s.accountLock(number)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		account, err := s.loadActive(ctx, number)
		if err != nil {
			return nil, err
		}

		if account.Balance.LessThan(amt) {
			logger.Warn("withdrawal rejected, insufficient balance", logger.Fields{
				"account":   number,
				"requested": amt.String(),
				"available": account.Balance.String(),
			})
			return nil, &ServiceError{Code: model.ErrCodeInsufficientBalance, Message: "Insufficient balance"}
		}

		updated := account.Clone()
		updated.Balance = account.Balance.Sub(amt)

		txn := s.newTransaction(model.TransactionTypeWithdraw, amt, &updated.AccountNumber, nil)
		err = s.store.Apply(ctx, []*model.Account{updated}, txn)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.storeFailure(err)
		}

		s.publishCompleted(ctx, txn)
		logger.Info("withdrawal recorded", logger.Fields{
			"account":        number,
			"amount":         amt.String(),
			"transaction_id": txn.TransactionID,
		})
		return transactionView(txn), nil
	}

	return nil, conflictError()
}

// Transfer atomically debits the source and credits the destination by the
// same amount, recording a single TRANSFER transaction that references both
// accounts. The source account is resolved before the destination so the
// first missing account determines the error.
func (s *LedgerService) Transfer(ctx context.Context, req *model.TransferRequest) (*model.TransactionResponse, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		logger.Warn("transfer attempt with invalid amount", nil)
		return nil, &ServiceError{Code: model.ErrCodeInvalidAmount, Message: "Amount must be greater than 0"}
	}
	amt := *req.Amount

	from := strings.TrimSpace(req.FromAccount)
	to := strings.TrimSpace(req.ToAccount)
	if from == "" || to == "" {
		return nil, &ServiceError{Code: model.ErrCodeInvalidInput, Message: "Account number is required"}
	}
	if from == to {
		logger.Warn("transfer attempt from and to same account", logger.Fields{"account": from})
		return nil, &ServiceError{Code: model.ErrCodeInvalidInput, Message: "Source and destination cannot be same"}
	}

	// Lock both accounts in a fixed total order so two transfers moving
	// funds in opposite directions cannot deadlock.
	first, second := s.accountLock(from), s.accountLock(to)
	if to < from {
		first, second = second, first
	}
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		source, err := s.loadActive(ctx, from)
		if err != nil {
			return nil, err
		}
		destination, err := s.loadActive(ctx, to)
		if err != nil {
			return nil, err
		}

		if source.Balance.LessThan(amt) {
			logger.Warn("transfer rejected, insufficient balance", logger.Fields{
				"account":   from,
				"requested": amt.String(),
				"available": source.Balance.String(),
			})
			return nil, &ServiceError{Code: model.ErrCodeInsufficientBalance, Message: "Insufficient balance"}
		}

		updatedSource := source.Clone()
		updatedSource.Balance = source.Balance.Sub(amt)
		updatedDestination := destination.Clone()
		updatedDestination.Balance = destination.Balance.Add(amt)

		txn := s.newTransaction(model.TransactionTypeTransfer, amt, &updatedSource.AccountNumber, &updatedDestination.AccountNumber)
		err = s.store.Apply(ctx, []*model.Account{updatedSource, updatedDestination}, txn)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, s.storeFailure(err)
		}

		s.publishCompleted(ctx, txn)
		logger.Info("transfer recorded", logger.Fields{
			"from":           from,
			"to":             to,
			"amount":         amt.String(),
			"transaction_id": txn.TransactionID,
		})
		return transactionView(txn), nil
	}

	return nil, conflictError()
}

// GetAccountDetails returns the public view of an account. Pure read.
func (s *LedgerService) GetAccountDetails(ctx context.Context, accountNumber string) (*model.AccountResponse, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return nil, &ServiceError{Code: model.ErrCodeInvalidInput, Message: "Account number is required"}
	}

	account, err := s.store.Accounts().FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, &ServiceError{Code: model.ErrCodeAccountNotFound, Message: "Account not found"}
		}
		return nil, s.storeFailure(err)
	}

	return accountView(account), nil
}

// GetTransactionsByAccount returns the account's transactions in the order
// they were recorded. Pure read.
func (s *LedgerService) GetTransactionsByAccount(ctx context.Context, accountNumber string) ([]*model.TransactionResponse, error) {
	number := strings.TrimSpace(accountNumber)
	if number == "" {
		return nil, &ServiceError{Code: model.ErrCodeInvalidInput, Message: "Account number is required"}
	}

	exists, err := s.store.Accounts().ExistsByNumber(ctx, number)
	if err != nil {
		return nil, s.storeFailure(err)
	}
	if !exists {
		return nil, &ServiceError{Code: model.ErrCodeAccountNotFound, Message: "Account not found"}
	}

	transactions, err := s.store.Transactions().ListByAccount(ctx, number)
	if err != nil {
		return nil, s.storeFailure(err)
	}

	views := make([]*model.TransactionResponse, 0, len(transactions))
	for _, txn := range transactions {
		views = append(views, transactionView(txn))
	}
	return views, nil
}

// loadActive fetches an account and rejects anything not ACTIVE.
func (s *LedgerService) loadActive(ctx context.Context, number string) (*model.Account, error) {
	account, err := s.store.Accounts().FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, &ServiceError{Code: model.ErrCodeAccountNotFound, Message: "Account not found"}
		}
		return nil, s.storeFailure(err)
	}
	if account.Status != model.AccountStatusActive {
		return nil, &ServiceError{Code: model.ErrCodeAccountClosed, Message: "Account is not active"}
	}
	return account, nil
}

func (s *LedgerService) newTransaction(txType model.TransactionType, amount decimal.Decimal, source, destination *string) *model.Transaction {
	return &model.Transaction{
		ID:                 uuid.New(),
		TransactionID:      s.transactionID(),
		Type:               txType,
		Amount:             amount,
		Status:             model.TransactionStatusSuccess,
		SourceAccount:      source,
		DestinationAccount: destination,
		Timestamp:          s.now().UTC(),
	}
}

// publishCompleted emits the event for an already-committed transaction.
// Publish failures are logged, never surfaced: the mutation is durable.
func (s *LedgerService) publishCompleted(ctx context.Context, txn *model.Transaction) {
	event := events.TransactionCompleted{
		TransactionID:      txn.TransactionID,
		Type:               string(txn.Type),
		SourceAccount:      txn.SourceAccount,
		DestinationAccount: txn.DestinationAccount,
		Amount:             txn.Amount,
		OccurredAt:         txn.Timestamp,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Error("failed to publish transaction event", err, logger.Fields{
			"transaction_id": txn.TransactionID,
		})
	}
}

// accountLock returns the mutex serializing in-process mutations of one
// account, creating it on first use.
func (s *LedgerService) accountLock(number string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	mu, ok := s.locks[number]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[number] = mu
	}
	return mu
}

// storeFailure classifies a storage error: cancelled or timed-out calls are
// retryable Unavailable failures, anything else propagates for the transport
// layer to report opaquely.
func (s *LedgerService) storeFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Code: model.ErrCodeUnavailable, Message: "Storage unavailable, please retry"}
	}
	return err
}

func conflictError() error {
	return &ServiceError{Code: model.ErrCodeConflict, Message: "Operation conflicted with a concurrent update, please retry"}
}

func accountView(a *model.Account) *model.AccountResponse {
	return &model.AccountResponse{
		ID:            a.ID,
		AccountNumber: a.AccountNumber,
		HolderName:    a.HolderName,
		Balance:       a.Balance,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
	}
}

func transactionView(t *model.Transaction) *model.TransactionResponse {
	return &model.TransactionResponse{
		TransactionID:      t.TransactionID,
		Type:               t.Type,
		Amount:             t.Amount,
		Status:             t.Status,
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Timestamp:          t.Timestamp,
	}
}
