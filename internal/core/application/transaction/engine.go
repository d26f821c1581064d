package transaction

import (
	"context"
	"math/big"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

// RefreshFunc is invoked by an engine when time-sensitive data backing
// the flow (fee quotes, exchange rates) should be recomputed by the
// owner of the flow.
type RefreshFunc func(ctx context.Context) error

// SendTarget is a plain destination for broadcast flows.
type SendTarget struct {
	Address string
	Memo    string
}

// Engine is the lifecycle contract every asset-specific transaction
// engine implements. The caller drives it strictly in order: Start,
// InitializeTransaction, DoBuildConfirmations, then any number of
// Update/DoUpdateFeeLevel/DoValidateAll/DoRefreshConfirmations rounds,
// then Execute once validation passed, or Stop to abandon.
//
// Engines are not safe for concurrent use within one flow, the Processor
// serializes calls.
type Engine interface {
	// Start binds the engine to the source and target of a new flow.
	// Source and target are asset-specific, AssertInputsValid reports
	// a binding the engine cannot handle.
	Start(source, target interface{}, refreshFn RefreshFunc) error
	// AssertInputsValid panics when the bound source or target types are
	// wrong for this engine. Wrong wiring is a programmer error, it must
	// fail fast before any network call.
	AssertInputsValid()
	InitializeTransaction(
		ctx context.Context,
	) (*domain.PendingTransaction, error)
	DoBuildConfirmations(
		ctx context.Context, ptx *domain.PendingTransaction,
	) (*domain.PendingTransaction, error)
	Update(
		ctx context.Context,
		amount *big.Int,
		ptx *domain.PendingTransaction,
	) (*domain.PendingTransaction, error)
	DoUpdateFeeLevel(
		ctx context.Context,
		ptx *domain.PendingTransaction,
		level domain.FeeLevel,
		customAmount *big.Int,
	) (*domain.PendingTransaction, error)
	ValidateAmount(
		ctx context.Context, ptx *domain.PendingTransaction,
	) (*domain.PendingTransaction, error)
	DoValidateAll(
		ctx context.Context, ptx *domain.PendingTransaction,
	) (*domain.PendingTransaction, error)
	DoRefreshConfirmations(
		ctx context.Context, ptx *domain.PendingTransaction,
	) (*domain.PendingTransaction, error)
	Execute(
		ctx context.Context, ptx *domain.PendingTransaction,
	) (*domain.TransactionResult, error)
	// Stop abandons the flow, releasing any held resource. It is callable
	// from any state and idempotent.
	Stop(ctx context.Context, ptx *domain.PendingTransaction) error
}
