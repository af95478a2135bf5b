// Package events defines the event published after every committed balance
// mutation.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Publisher delivers ledger events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event TransactionCompleted) error
}

// TransactionCompleted is emitted once per committed deposit, withdrawal, or
// transfer.
type TransactionCompleted struct {
	TransactionID      string          `json:"transaction_id"`
	Type               string          `json:"type"`
	SourceAccount      *string         `json:"source_account,omitempty"`
	DestinationAccount *string         `json:"destination_account,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event TransactionCompleted) error {
	return nil
}
