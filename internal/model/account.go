package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus gates which operations an account accepts.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// Account represents a bank account record. Balance is the single source of
// truth for available funds and never goes negative. Version is the
// optimistic-concurrency counter checked by conditional store writes.
type Account struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	AccountNumber string          `json:"account_number" db:"account_number"`
	HolderName    string          `json:"holder_name" db:"holder_name"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Status        AccountStatus   `json:"status" db:"status"`
	Version       int64           `json:"-" db:"version"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Clone returns a copy so callers can stage changes without mutating the
// record they read.
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

// CreateAccountRequest represents the request to open a new account.
type CreateAccountRequest struct {
	HolderName string `json:"holder_name"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID            uuid.UUID       `json:"id"`
	AccountNumber string          `json:"account_number"`
	HolderName    string          `json:"holder_name"`
	Balance       decimal.Decimal `json:"balance"`
	Status        AccountStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}
