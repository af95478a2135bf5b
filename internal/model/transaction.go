package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the kind of balance mutation a transaction
// records.
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "DEPOSIT"
	TransactionTypeWithdraw TransactionType = "WITHDRAW"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// TransactionStatus is retained as a field for future extension; only
// SUCCESS records are ever persisted (validation failures never reach the
// store).
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Transaction is an immutable record of one committed balance mutation.
// SourceAccount is nil for deposits, DestinationAccount is nil for
// withdrawals; transfers carry both. Seq is assigned by the store and gives
// insertion order when listing an account's history.
type Transaction struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	TransactionID      string            `json:"transaction_id" db:"transaction_id"`
	Type               TransactionType   `json:"type" db:"type"`
	Amount             decimal.Decimal   `json:"amount" db:"amount"`
	Status             TransactionStatus `json:"status" db:"status"`
	SourceAccount      *string           `json:"source_account" db:"source_account"`
	DestinationAccount *string           `json:"destination_account" db:"destination_account"`
	Seq                int64             `json:"-" db:"seq"`
	Timestamp          time.Time         `json:"timestamp" db:"created_at"`
}

// Clone returns a copy of the transaction record.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}

// AmountRequest carries the amount for deposits and withdrawals. A pointer
// distinguishes a missing amount from an explicit zero.
type AmountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// TransferRequest represents a transfer between two accounts.
type TransferRequest struct {
	FromAccount string           `json:"from_account"`
	ToAccount   string           `json:"to_account"`
	Amount      *decimal.Decimal `json:"amount"`
}

// TransactionResponse is the public view of a transaction.
type TransactionResponse struct {
	TransactionID      string            `json:"transaction_id"`
	Type               TransactionType   `json:"type"`
	Amount             decimal.Decimal   `json:"amount"`
	Status             TransactionStatus `json:"status"`
	SourceAccount      *string           `json:"source_account"`
	DestinationAccount *string           `json:"destination_account"`
	Timestamp          time.Time         `json:"timestamp"`
}
