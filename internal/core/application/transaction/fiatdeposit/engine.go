// Package fiatdeposit implements the transaction engine for fiat rails
// deposits placed through the payments provider.
package fiatdeposit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
)

// Source is the funding side of a deposit: a fiat currency balance.
type Source struct {
	Currency string
}

// Target is the product the deposit lands on.
type Target struct {
	Product string
}

// EngineOpts holds everything needed to create an Engine.
type EngineOpts struct {
	Payments ports.PaymentsClient
}

func (o EngineOpts) validate() error {
	if o.Payments == nil {
		return fmt.Errorf("missing payments client")
	}
	return nil
}

// Engine places deposit orders with the payments provider. It implements
// transaction.Engine.
type Engine struct {
	payments ports.PaymentsClient

	source    Source
	target    Target
	refreshFn transaction.RefreshFunc
	executed  bool
}

// NewEngine returns an Engine bound to the given payments provider.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Engine{payments: opts.Payments}, nil
}

func (e *Engine) Start(
	source, target interface{}, refreshFn transaction.RefreshFunc,
) error {
	src, ok := source.(Source)
	if !ok {
		return transaction.ErrInvalidSourceType
	}
	tgt, ok := target.(Target)
	if !ok {
		return transaction.ErrInvalidTargetType
	}

	e.source = src
	e.target = tgt
	e.refreshFn = refreshFn
	return nil
}

func (e *Engine) AssertInputsValid() {
	if len(e.source.Currency) <= 0 {
		panic("fiatdeposit engine started without a currency")
	}
	if len(e.target.Product) <= 0 {
		panic("fiatdeposit engine started without a product")
	}
}

func (e *Engine) InitializeTransaction(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	ptx := domain.NewPendingTransaction(domain.FeeSelection{
		SelectedLevel:   domain.FeeLevelRegular,
		AvailableLevels: []domain.FeeLevel{domain.FeeLevelRegular},
	})

	limits, err := e.payments.DepositLimits(ctx, e.source.Currency)
	if err != nil {
		return nil, err
	}
	ptx.Limits = domain.TransactionLimits{
		Minimum: limits.Minimum,
		Maximum: limits.Maximum,
	}
	if limits.Maximum != nil {
		ptx.SetAvailable(limits.Maximum)
	}
	return ptx, nil
}

func (e *Engine) DoBuildConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.SetConfirmations([]domain.Confirmation{
		{
			Kind:  domain.ConfirmationSource,
			Label: "From",
			Value: e.source.Currency,
		},
		{
			Kind:  domain.ConfirmationDestination,
			Label: "To",
			Value: e.target.Product,
		},
	})
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) Update(
	ctx context.Context, amount *big.Int, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.UpdateAmount(amount)
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) DoUpdateFeeLevel(
	ctx context.Context,
	ptx *domain.PendingTransaction,
	level domain.FeeLevel,
	customAmount *big.Int,
) (*domain.PendingTransaction, error) {
	// deposits carry no network fee
	if !ptx.FeeSelection.HasAvailableLevel(level) {
		ptx.ValidationState = domain.ValidationOptionInvalid
	}
	return ptx, nil
}

func (e *Engine) ValidateAmount(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.ValidationState = e.amountValidationState(ptx)
	return ptx, nil
}

func (e *Engine) DoValidateAll(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	return e.ValidateAmount(ctx, ptx)
}

func (e *Engine) DoRefreshConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	limits, err := e.payments.DepositLimits(ctx, e.source.Currency)
	if err != nil {
		return nil, err
	}
	ptx.Limits = domain.TransactionLimits{
		Minimum: limits.Minimum,
		Maximum: limits.Maximum,
	}
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) Execute(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.TransactionResult, error) {
	orderID, err := e.payments.CreateDeposit(ctx, ports.DepositOrder{
		Currency: e.source.Currency,
		Amount:   ptx.Amount,
		Product:  e.target.Product,
	})
	if err != nil {
		return nil, err
	}
	e.executed = true

	return domain.HashedResult(orderID, ptx.Amount), nil
}

func (e *Engine) Stop(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	return nil
}

func (e *Engine) amountValidationState(
	ptx *domain.PendingTransaction,
) domain.TransactionValidationState {
	if ptx.Amount == nil || ptx.Amount.Sign() <= 0 {
		return domain.ValidationBelowMinimumLimit
	}
	if ptx.Limits.Minimum != nil && ptx.Amount.Cmp(ptx.Limits.Minimum) < 0 {
		return domain.ValidationBelowMinimumLimit
	}
	if ptx.Limits.Maximum != nil && ptx.Amount.Cmp(ptx.Limits.Maximum) > 0 {
		return domain.ValidationOptionInvalid
	}
	return domain.ValidationCanExecute
}

func (e *Engine) refreshAmountConfirmations(ptx *domain.PendingTransaction) {
	ptx.InsertConfirmation(domain.Confirmation{
		Kind:  domain.ConfirmationTotal,
		Label: "Total",
		Value: ptx.Amount.String(),
	})
}
