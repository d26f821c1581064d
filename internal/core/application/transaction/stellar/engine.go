// Package stellar implements the transaction engine for native payments
// on the Stellar network.
package stellar

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	stellarpkg "github.com/veridian-wallet/walletcore/pkg/stellar"
	walletpkg "github.com/veridian-wallet/walletcore/pkg/wallet"
)

// stroopsPerLumen converts Horizon lumen figures to the stroop amounts
// the engine works with.
var stroopsPerLumen = decimal.NewFromInt(10_000_000)

// reserved ledger entries of every funded account
const baseReserveEntries = 2

// Source is the spending side of a flow: the wallet's Stellar account.
type Source struct {
	Wallet *domain.HDWallet
}

// EngineOpts holds everything needed to create an Engine.
type EngineOpts struct {
	Horizon           ports.HorizonClient
	NetworkName       string
	NetworkPassphrase string
	BaseFee           uint32
}

func (o EngineOpts) validate() error {
	if o.Horizon == nil {
		return fmt.Errorf("missing horizon client")
	}
	if len(o.NetworkPassphrase) <= 0 {
		return fmt.Errorf("missing network passphrase")
	}
	return nil
}

// Engine builds, signs and submits Stellar payments. It implements
// transaction.Engine.
type Engine struct {
	horizon           ports.HorizonClient
	networkName       string
	networkPassphrase string
	baseFee           uint32

	source    Source
	target    transaction.SendTarget
	refreshFn transaction.RefreshFunc
	executed  bool
}

// NewEngine returns an Engine bound to the given Horizon instance.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	baseFee := opts.BaseFee
	if baseFee < stellarpkg.MinBaseFee {
		baseFee = stellarpkg.MinBaseFee
	}

	return &Engine{
		horizon:           opts.Horizon,
		networkName:       opts.NetworkName,
		networkPassphrase: opts.NetworkPassphrase,
		baseFee:           baseFee,
	}, nil
}

func (e *Engine) Start(
	source, target interface{}, refreshFn transaction.RefreshFunc,
) error {
	src, ok := source.(Source)
	if !ok {
		return transaction.ErrInvalidSourceType
	}
	tgt, ok := target.(transaction.SendTarget)
	if !ok {
		return transaction.ErrInvalidTargetType
	}

	e.source = src
	e.target = tgt
	e.refreshFn = refreshFn
	return nil
}

func (e *Engine) AssertInputsValid() {
	if e.source.Wallet == nil {
		panic("stellar engine started without a wallet source")
	}
	if len(e.target.Address) <= 0 {
		panic("stellar engine started without a target address")
	}
}

func (e *Engine) InitializeTransaction(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	// the network fee is flat, there is nothing to level up or down
	ptx := domain.NewPendingTransaction(domain.FeeSelection{
		SelectedLevel:   domain.FeeLevelRegular,
		AvailableLevels: []domain.FeeLevel{domain.FeeLevelRegular},
	})
	ptx.Limits = domain.TransactionLimits{Minimum: big.NewInt(1)}

	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	return ptx, nil
}

func (e *Engine) DoBuildConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	keyPair, err := e.signingKeyPair()
	if err != nil {
		return nil, err
	}

	confirmations := []domain.Confirmation{
		{
			Kind:  domain.ConfirmationSource,
			Label: "From",
			Value: keyPair.Address(),
		},
		{
			Kind:  domain.ConfirmationDestination,
			Label: "To",
			Value: e.target.Address,
		},
		{
			Kind:  domain.ConfirmationNetwork,
			Label: "Network",
			Value: e.networkName,
		},
	}
	if len(e.target.Memo) > 0 {
		confirmations = append(confirmations, domain.Confirmation{
			Kind:  domain.ConfirmationMemo,
			Label: "Memo",
			Value: e.target.Memo,
		})
	}
	ptx.SetConfirmations(confirmations)
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) Update(
	ctx context.Context, amount *big.Int, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.UpdateAmount(amount)
	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) DoUpdateFeeLevel(
	ctx context.Context,
	ptx *domain.PendingTransaction,
	level domain.FeeLevel,
	customAmount *big.Int,
) (*domain.PendingTransaction, error) {
	// flat fee, only the regular level exists
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
	if !stellarpkg.IsValidAccountID(e.target.Address) {
		ptx.ValidationState = domain.ValidationInvalidAddress
		return ptx, nil
	}
	if len(e.target.Memo) > 28 {
		ptx.ValidationState = domain.ValidationInvalidMessage
		return ptx, nil
	}
	ptx.ValidationState = e.amountValidationState(ptx)
	return ptx, nil
}

func (e *Engine) DoRefreshConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) Execute(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.TransactionResult, error) {
	keyPair, err := e.signingKeyPair()
	if err != nil {
		return nil, err
	}
	account, err := e.horizon.AccountDetails(ctx, keyPair.Address())
	if err != nil {
		return nil, err
	}

	envelope, err := stellarpkg.BuildPaymentEnvelope(stellarpkg.PaymentOpts{
		Source:            keyPair,
		Destination:       e.target.Address,
		Amount:            ptx.Amount.Int64(),
		SequenceNumber:    account.Sequence + 1,
		BaseFee:           e.baseFee,
		MemoText:          e.target.Memo,
		NetworkPassphrase: e.networkPassphrase,
	})
	if err != nil {
		return nil, err
	}

	txHash, err := e.horizon.SubmitTransaction(ctx, envelope)
	if err != nil {
		return nil, err
	}
	e.executed = true

	return domain.HashedResult(txHash, ptx.Amount), nil
}

func (e *Engine) Stop(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	return nil
}

func (e *Engine) signingKeyPair() (*stellarpkg.KeyPair, error) {
	signingWallet, err := walletpkg.NewWalletFromSeedHex(
		walletpkg.NewWalletFromSeedHexOpts{SeedHex: e.source.Wallet.SeedHex},
	)
	if err != nil {
		return nil, err
	}
	privateKey, err := signingWallet.DeriveSLIP10Ed25519Key(
		walletpkg.DeriveSLIP10Ed25519KeyOpts{Account: 0},
	)
	if err != nil {
		return nil, err
	}
	return stellarpkg.KeyPairFromRawSeed(privateKey.Seed())
}

// updateBalances refreshes the spendable balance, i.e. the ledger balance
// minus the reserve the account must keep to stay funded.
func (e *Engine) updateBalances(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	keyPair, err := e.signingKeyPair()
	if err != nil {
		return err
	}

	available := big.NewInt(0)
	account, err := e.horizon.AccountDetails(ctx, keyPair.Address())
	if err != nil && !errors.Is(err, domain.ErrEntryNotFound) {
		return err
	}
	if err == nil {
		baseReserve, err := e.horizon.BaseReserve(ctx)
		if err != nil {
			return err
		}
		entries := decimal.NewFromInt(
			int64(baseReserveEntries) + int64(account.SubentryCount),
		)
		minBalance := baseReserve.Mul(entries)

		spendable := account.Balance.Sub(minBalance)
		if spendable.IsNegative() {
			spendable = decimal.Zero
		}
		available = spendable.Mul(stroopsPerLumen).BigInt()
	}
	ptx.SetAvailable(available)

	fee := new(big.Int).SetUint64(uint64(e.baseFee))
	ptx.UpdateFee(fee, fee)
	return nil
}

func (e *Engine) amountValidationState(
	ptx *domain.PendingTransaction,
) domain.TransactionValidationState {
	if ptx.Amount == nil || ptx.Amount.Sign() <= 0 ||
		ptx.Amount.Cmp(ptx.Limits.Minimum) < 0 {
		return domain.ValidationBelowMinimumLimit
	}
	if ptx.Total().Cmp(ptx.Available) > 0 {
		return domain.ValidationInsufficientFunds
	}
	return domain.ValidationCanExecute
}

func (e *Engine) refreshAmountConfirmations(ptx *domain.PendingTransaction) {
	ptx.InsertConfirmation(domain.Confirmation{
		Kind:  domain.ConfirmationNetworkFee,
		Label: "Network fee",
		Value: ptx.FeeAmount.String(),
	})
	ptx.InsertConfirmation(domain.Confirmation{
		Kind:  domain.ConfirmationTotal,
		Label: "Total",
		Value: ptx.Total().String(),
	})
}
