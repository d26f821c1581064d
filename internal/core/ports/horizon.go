package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// HorizonAccount is the subset of a Stellar account record the engine
// needs.
type HorizonAccount struct {
	AccountID     string
	Sequence      int64
	Balance       decimal.Decimal
	SubentryCount uint32
}

// HorizonClient is the Stellar Horizon API surface.
type HorizonClient interface {
	// AccountDetails returns the account record, domain.ErrEntryNotFound
	// when the account does not exist on the ledger yet.
	AccountDetails(ctx context.Context, accountID string) (*HorizonAccount, error)
	// SubmitTransaction broadcasts the signed envelope and returns the
	// transaction hash.
	SubmitTransaction(ctx context.Context, envelopeXDR string) (string, error)
	// BaseReserve returns the per-entry minimum balance reserve in lumens.
	BaseReserve(ctx context.Context) (decimal.Decimal, error)
}
