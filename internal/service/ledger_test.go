package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banking-ledger-api/internal/events"
	"banking-ledger-api/internal/model"
	"banking-ledger-api/internal/repository"
	"banking-ledger-api/internal/repository/memory"
)

func newTestService() (*LedgerService, *memory.Store) {
	store := memory.NewStore()
	return NewLedgerService(store, nil), store
}

func amountPtr(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

// createAccount opens an account and optionally funds it with one deposit.
func createAccount(t *testing.T, svc *LedgerService, holder, balance string) *model.AccountResponse {
	t.Helper()
	acct, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{HolderName: holder})
	require.NoError(t, err)
	if balance != "" && balance != "0" {
		_, err = svc.Deposit(context.Background(), acct.AccountNumber, amountPtr(balance))
		require.NoError(t, err)
	}
	return acct
}

func serviceErr(t *testing.T, err error) *ServiceError {
	t.Helper()
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	return svcErr
}

func TestCreateAccount(t *testing.T) {
	svc, _ := newTestService()

	acct, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{HolderName: "Kiran"})
	require.NoError(t, err)

	assert.True(t, acct.Balance.Equal(decimal.Zero))
	assert.Equal(t, model.AccountStatusActive, acct.Status)
	assert.Equal(t, "KIRA", acct.AccountNumber[:4])
	assert.Len(t, acct.AccountNumber, 8)
	assert.Equal(t, "Kiran", acct.HolderName)
	assert.False(t, acct.CreatedAt.IsZero())
}

func TestCreateAccountInvalidHolderName(t *testing.T) {
	svc, _ := newTestService()

	for _, holder := range []string{"", "   ", "\t\n"} {
		_, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{HolderName: holder})
		assert.Equal(t, model.ErrCodeInvalidInput, serviceErr(t, err).Code)
	}
}

func TestCreateAccountRegeneratesOnCollision(t *testing.T) {
	svc, _ := newTestService()

	numbers := []string{"KIRA1000", "KIRA1000", "KIRA2000"}
	calls := 0
	svc.accountNumber = func(string) string {
		n := numbers[calls]
		calls++
		return n
	}

	first, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{HolderName: "Kiran"})
	require.NoError(t, err)
	assert.Equal(t, "KIRA1000", first.AccountNumber)

	// Second create first draws the taken number, then a fresh one.
	second, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{HolderName: "Kiran"})
	require.NoError(t, err)
	assert.Equal(t, "KIRA2000", second.AccountNumber)
	assert.Equal(t, 3, calls)
}

func TestCreateAccountCancelledContext(t *testing.T) {
	svc, _ := newTestService()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CreateAccount(ctx, &model.CreateAccountRequest{HolderName: "Kiran"})
	assert.Equal(t, model.ErrCodeUnavailable, serviceErr(t, err).Code)
}

func TestDeposit(t *testing.T) {
	svc, _ := newTestService()
	acct := createAccount(t, svc, "Kiran", "500.00")

	txn, err := svc.Deposit(context.Background(), acct.AccountNumber, amountPtr("100.00"))
	require.NoError(t, err)

	assert.Equal(t, model.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, model.TransactionStatusSuccess, txn.Status)
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("100.00")))
	assert.Nil(t, txn.SourceAccount)
	require.NotNil(t, txn.DestinationAccount)
	assert.Equal(t, acct.AccountNumber, *txn.DestinationAccount)

	got, err := svc.GetAccountDetails(context.Background(), acct.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("600.00")))
}

func TestDepositValidation(t *testing.T) {
	svc, _ := newTestService()
	acct := createAccount(t, svc, "Kiran", "0")

	tests := []struct {
		name     string
		account  string
		amount   *decimal.Decimal
		wantCode string
	}{
		{
			name:     "blank account number",
			account:  "   ",
			amount:   amountPtr("10"),
			wantCode: model.ErrCodeInvalidInput,
		},
		{
			name:     "missing amount",
			account:  acct.AccountNumber,
			amount:   nil,
			wantCode: model.ErrCodeInvalidAmount,
		},
		{
			name:     "zero amount",
			account:  acct.AccountNumber,
			amount:   amountPtr("0"),
			wantCode: model.ErrCodeInvalidAmount,
		},
		{
			name:     "negative amount",
			account:  acct.AccountNumber,
			amount:   amountPtr("-5"),
			wantCode: model.ErrCodeInvalidAmount,
		},
		{
			name:     "unknown account",
			account:  "NOPE9999",
			amount:   amountPtr("10"),
			wantCode: model.ErrCodeAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Deposit(context.Background(), tt.account, tt.amount)
			assert.Equal(t, tt.wantCode, serviceErr(t, err).Code)
		})
	}
}

func TestClosedAccountRejectsMutations(t *testing.T) {
	svc, store := newTestService()

	_, err := store.Accounts().Create(context.Background(), &model.Account{
		AccountNumber: "CLOS1000",
		HolderName:    "Closed Holder",
		Balance:       decimal.NewFromInt(50),
		Status:        model.AccountStatusClosed,
	})
	require.NoError(t, err)
	open := createAccount(t, svc, "Open Holder", "100.00")

	_, err = svc.Deposit(context.Background(), "CLOS1000", amountPtr("10"))
	assert.Equal(t, model.ErrCodeAccountClosed, serviceErr(t, err).Code)

	_, err = svc.Withdraw(context.Background(), "CLOS1000", amountPtr("10"))
	assert.Equal(t, model.ErrCodeAccountClosed, serviceErr(t, err).Code)

	// Transfers are refused whichever side is closed.
	_, err = svc.Transfer(context.Background(), &model.TransferRequest{
		FromAccount: "CLOS1000",
		ToAccount:   open.AccountNumber,
		Amount:      amountPtr("10"),
	})
	assert.Equal(t, model.ErrCodeAccountClosed, serviceErr(t, err).Code)

	_, err = svc.Transfer(context.Background(), &model.TransferRequest{
		FromAccount: open.AccountNumber,
		ToAccount:   "CLOS1000",
		Amount:      amountPtr("10"),
	})
	assert.Equal(t, model.ErrCodeAccountClosed, serviceErr(t, err).Code)

	// No mutation landed on either side.
	got, err := svc.GetAccountDetails(context.Background(), open.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100.00")))
}

func TestWithdraw(t *testing.T) {
	svc, _ := newTestService()
	acct := createAccount(t, svc, "Kiran", "300.00")

	txn, err := svc.Withdraw(context.Background(), acct.AccountNumber, amountPtr("120.50"))
	require.NoError(t, err)

	assert.Equal(t, model.TransactionTypeWithdraw, txn.Type)
	require.NotNil(t, txn.SourceAccount)
	assert.Equal(t, acct.AccountNumber, *txn.SourceAccount)
	assert.Nil(t, txn.DestinationAccount)

	got, err := svc.GetAccountDetails(context.Background(), acct.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("179.50")))
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	svc, _ := newTestService()
	acct := createAccount(t, svc, "Kiran", "300.00")

	_, err := svc.Withdraw(context.Background(), acct.AccountNumber, amountPtr("600.00"))
	assert.Equal(t, model.ErrCodeInsufficientBalance, serviceErr(t, err).Code)

	// Balance must be untouched by the rejected withdrawal.
	got, err := svc.GetAccountDetails(context.Background(), acct.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("300.00")))

	txns, err := svc.GetTransactionsByAccount(context.Background(), acct.AccountNumber)
	require.NoError(t, err)
	assert.Len(t, txns, 1) // only the funding deposit
}

func TestTransfer(t *testing.T) {
	svc, _ := newTestService()
	a1 := createAccount(t, svc, "Alice", "500.00")
	a2 := createAccount(t, svc, "Brian", "200.00")

	txn, err := svc.Transfer(context.Background(), &model.TransferRequest{
		FromAccount: a1.AccountNumber,
		ToAccount:   a2.AccountNumber,
		Amount:      amountPtr("100.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.TransactionTypeTransfer, txn.Type)
	require.NotNil(t, txn.SourceAccount)
	require.NotNil(t, txn.DestinationAccount)
	assert.Equal(t, a1.AccountNumber, *txn.SourceAccount)
	assert.Equal(t, a2.AccountNumber, *txn.DestinationAccount)

	got1, err := svc.GetAccountDetails(context.Background(), a1.AccountNumber)
	require.NoError(t, err)
	got2, err := svc.GetAccountDetails(context.Background(), a2.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got1.Balance.Equal(decimal.RequireFromString("400.00")))
	assert.True(t, got2.Balance.Equal(decimal.RequireFromString("300.00")))

	// Exactly one TRANSFER record, visible from both accounts.
	for _, number := range []string{a1.AccountNumber, a2.AccountNumber} {
		txns, err := svc.GetTransactionsByAccount(context.Background(), number)
		require.NoError(t, err)
		transfers := 0
		for _, item := range txns {
			if item.Type == model.TransactionTypeTransfer {
				transfers++
				assert.Equal(t, txn.TransactionID, item.TransactionID)
			}
		}
		assert.Equal(t, 1, transfers)
	}
}

func TestTransferSameAccount(t *testing.T) {
	svc, _ := newTestService()

	// Neither account exists: the same-account check must fire before any
	// account is resolved, so the error is InvalidInput, not NotFound.
	_, err := svc.Transfer(context.Background(), &model.TransferRequest{
		FromAccount: "KIRA1000",
		ToAccount:   "KIRA1000",
		Amount:      amountPtr("10"),
	})
	assert.Equal(t, model.ErrCodeInvalidInput, serviceErr(t, err).Code)
}

func TestTransferValidation(t *testing.T) {
	svc, _ := newTestService()
	a1 := createAccount(t, svc, "Alice", "100.00")

	tests := []struct {
		name     string
		req      *model.TransferRequest
		wantCode string
	}{
		{
			name:     "missing amount",
			req:      &model.TransferRequest{FromAccount: a1.AccountNumber, ToAccount: "BRIA1000"},
			wantCode: model.ErrCodeInvalidAmount,
		},
		{
			name:     "negative amount",
			req:      &model.TransferRequest{FromAccount: a1.AccountNumber, ToAccount: "BRIA1000", Amount: amountPtr("-1")},
			wantCode: model.ErrCodeInvalidAmount,
		},
		{
			name:     "blank source",
			req:      &model.TransferRequest{FromAccount: " ", ToAccount: "BRIA1000", Amount: amountPtr("10")},
			wantCode: model.ErrCodeInvalidInput,
		},
		{
			name:     "blank destination",
			req:      &model.TransferRequest{FromAccount: a1.AccountNumber, ToAccount: "", Amount: amountPtr("10")},
			wantCode: model.ErrCodeInvalidInput,
		},
		{
			name:     "unknown source",
			req:      &model.TransferRequest{FromAccount: "NOPE0001", ToAccount: a1.AccountNumber, Amount: amountPtr("10")},
			wantCode: model.ErrCodeAccountNotFound,
		},
		{
			name:     "unknown destination",
			req:      &model.TransferRequest{FromAccount: a1.AccountNumber, ToAccount: "NOPE0001", Amount: amountPtr("10")},
			wantCode: model.ErrCodeAccountNotFound,
		},
		{
			name:     "insufficient balance",
			req:      &model.TransferRequest{FromAccount: a1.AccountNumber, ToAccount: "NOPE0001", Amount: amountPtr("500")},
			wantCode: model.ErrCodeAccountNotFound, // destination resolved before balance check
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(context.Background(), tt.req)
			assert.Equal(t, tt.wantCode, serviceErr(t, err).Code)
		})
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	svc, _ := newTestService()
	a1 := createAccount(t, svc, "Alice", "50.00")
	a2 := createAccount(t, svc, "Brian", "0")

	_, err := svc.Transfer(context.Background(), &model.TransferRequest{
		FromAccount: a1.AccountNumber,
		ToAccount:   a2.AccountNumber,
		Amount:      amountPtr("50.01"),
	})
	assert.Equal(t, model.ErrCodeInsufficientBalance, serviceErr(t, err).Code)

	got1, err := svc.GetAccountDetails(context.Background(), a1.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got1.Balance.Equal(decimal.RequireFromString("50.00")))
}

func TestGetAccountDetailsNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetAccountDetails(context.Background(), "NOPE0001")
	assert.Equal(t, model.ErrCodeAccountNotFound, serviceErr(t, err).Code)

	_, err = svc.GetTransactionsByAccount(context.Background(), "NOPE0001")
	assert.Equal(t, model.ErrCodeAccountNotFound, serviceErr(t, err).Code)
}

func TestGetTransactionsByAccountOrder(t *testing.T) {
	svc, _ := newTestService()
	a1 := createAccount(t, svc, "Alice", "0")
	a2 := createAccount(t, svc, "Brian", "0")

	ctx := context.Background()
	_, err := svc.Deposit(ctx, a1.AccountNumber, amountPtr("200"))
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, a1.AccountNumber, amountPtr("50"))
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, &model.TransferRequest{
		FromAccount: a1.AccountNumber,
		ToAccount:   a2.AccountNumber,
		Amount:      amountPtr("100"),
	})
	require.NoError(t, err)

	txns, err := svc.GetTransactionsByAccount(ctx, a1.AccountNumber)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, model.TransactionTypeDeposit, txns[0].Type)
	assert.Equal(t, model.TransactionTypeWithdraw, txns[1].Type)
	assert.Equal(t, model.TransactionTypeTransfer, txns[2].Type)

	// The counterparty sees only the transfer.
	peerTxns, err := svc.GetTransactionsByAccount(ctx, a2.AccountNumber)
	require.NoError(t, err)
	require.Len(t, peerTxns, 1)
	assert.Equal(t, model.TransactionTypeTransfer, peerTxns[0].Type)
}

func TestReadsAreIdempotent(t *testing.T) {
	svc, _ := newTestService()
	acct := createAccount(t, svc, "Kiran", "250.00")

	ctx := context.Background()
	first, err := svc.GetAccountDetails(ctx, acct.AccountNumber)
	require.NoError(t, err)
	second, err := svc.GetAccountDetails(ctx, acct.AccountNumber)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	firstTxns, err := svc.GetTransactionsByAccount(ctx, acct.AccountNumber)
	require.NoError(t, err)
	secondTxns, err := svc.GetTransactionsByAccount(ctx, acct.AccountNumber)
	require.NoError(t, err)
	assert.Equal(t, firstTxns, secondTxns)
}

func TestWithdrawAtomicWhenTransactionWriteFails(t *testing.T) {
	svc, store := newTestService()
	acct := createAccount(t, svc, "Kiran", "100.00")

	boom := errors.New("transaction write failed")
	store.SetApplyHook(func(*model.Transaction) error { return boom })

	_, err := svc.Withdraw(context.Background(), acct.AccountNumber, amountPtr("40"))
	require.Error(t, err)

	store.SetApplyHook(nil)

	// The failed commit must not leave a partial state behind: the balance
	// is unchanged and no transaction record exists.
	got, err := svc.GetAccountDetails(context.Background(), acct.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100.00")))

	txns, err := svc.GetTransactionsByAccount(context.Background(), acct.AccountNumber)
	require.NoError(t, err)
	assert.Len(t, txns, 1) // only the funding deposit
}

func TestConcurrentWithdrawals(t *testing.T) {
	svc, _ := newTestService()
	acct := createAccount(t, svc, "Kiran", "100.00")

	const workers = 50
	var wg sync.WaitGroup
	var succeeded, insufficient int32
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(context.Background(), acct.AccountNumber, amountPtr("10.00"))
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
				return
			}
			var svcErr *ServiceError
			if errors.As(err, &svcErr) && svcErr.Code == model.ErrCodeInsufficientBalance {
				atomic.AddInt32(&insufficient, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded)
	assert.Equal(t, int32(40), insufficient)

	got, err := svc.GetAccountDetails(context.Background(), acct.AccountNumber)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.Zero))
}

func TestConcurrentOpposingTransfersConserveFunds(t *testing.T) {
	svc, _ := newTestService()
	a1 := createAccount(t, svc, "Alice", "1000")
	a2 := createAccount(t, svc, "Brian", "1000")

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2 * n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), &model.TransferRequest{
				FromAccount: a1.AccountNumber,
				ToAccount:   a2.AccountNumber,
				Amount:      amountPtr("1"),
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), &model.TransferRequest{
				FromAccount: a2.AccountNumber,
				ToAccount:   a1.AccountNumber,
				Amount:      amountPtr("1"),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got1, err := svc.GetAccountDetails(context.Background(), a1.AccountNumber)
	require.NoError(t, err)
	got2, err := svc.GetAccountDetails(context.Background(), a2.AccountNumber)
	require.NoError(t, err)

	assert.False(t, got1.Balance.IsNegative())
	assert.False(t, got2.Balance.IsNegative())
	assert.True(t, got1.Balance.Add(got2.Balance).Equal(decimal.NewFromInt(2000)))
}

func TestConcurrentCreatesProduceDistinctNumbers(t *testing.T) {
	svc, _ := newTestService()

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	numbers := make(map[string]struct{}, n)
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			acct, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{HolderName: "Kiran"})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[acct.AccountNumber] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, n)
}

// conflictStore always loses the optimistic write so the bounded retry loop
// can be observed exhausting itself.
type conflictStore struct {
	*memory.Store
	applies int32
}

func (c *conflictStore) Apply(ctx context.Context, accounts []*model.Account, txn *model.Transaction) error {
	atomic.AddInt32(&c.applies, 1)
	return repository.ErrVersionConflict
}

func TestConflictSurfacedAfterBoundedRetries(t *testing.T) {
	store := &conflictStore{Store: memory.NewStore()}
	svc := NewLedgerService(store, nil)
	acct := createAccountDirect(t, store.Store, "KIRA1000", "100")

	_, err := svc.Withdraw(context.Background(), acct.AccountNumber, amountPtr("10"))
	assert.Equal(t, model.ErrCodeConflict, serviceErr(t, err).Code)
	assert.Equal(t, int32(maxConflictRetries), atomic.LoadInt32(&store.applies))
}

func createAccountDirect(t *testing.T, store *memory.Store, number, balance string) *model.Account {
	t.Helper()
	acct, err := store.Accounts().Create(context.Background(), &model.Account{
		AccountNumber: number,
		HolderName:    "Holder",
		Balance:       decimal.RequireFromString(balance),
		Status:        model.AccountStatusActive,
	})
	require.NoError(t, err)
	return acct
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.TransactionCompleted
}

func (p *capturePublisher) Publish(ctx context.Context, event events.TransactionCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	store := memory.NewStore()
	publisher := &capturePublisher{}
	svc := NewLedgerService(store, publisher)

	acct, err := svc.CreateAccount(context.Background(), &model.CreateAccountRequest{HolderName: "Kiran"})
	require.NoError(t, err)

	txn, err := svc.Deposit(context.Background(), acct.AccountNumber, amountPtr("75.00"))
	require.NoError(t, err)

	// A rejected operation must not publish anything.
	_, err = svc.Withdraw(context.Background(), acct.AccountNumber, amountPtr("1000"))
	require.Error(t, err)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, txn.TransactionID, event.TransactionID)
	assert.Equal(t, "DEPOSIT", event.Type)
	require.NotNil(t, event.DestinationAccount)
	assert.Equal(t, acct.AccountNumber, *event.DestinationAccount)
	assert.True(t, event.Amount.Equal(decimal.RequireFromString("75.00")))
}
