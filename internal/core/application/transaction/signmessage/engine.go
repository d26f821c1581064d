// Package signmessage implements the sign-only transaction engine used
// for dApp signature requests: no value moves, the outcome is a raw
// signature over the counterparty's payload.
package signmessage

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	walletpkg "github.com/veridian-wallet/walletcore/pkg/wallet"
)

const (
	evmCoinType       uint32 = 60
	evmDerivationPath        = "0'/0/0"
)

// Source is the signing side of a flow: the wallet's EVM account.
type Source struct {
	Wallet *domain.HDWallet
}

// Engine signs arbitrary messages with the wallet's EVM key. It
// implements transaction.Engine.
type Engine struct {
	source    Source
	target    ports.SignatureTarget
	refreshFn transaction.RefreshFunc

	executed bool
	// a rejected counterparty must be notified at most once
	rejectionSent bool
}

// NewEngine returns a sign-only Engine.
func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Start(
	source, target interface{}, refreshFn transaction.RefreshFunc,
) error {
	src, ok := source.(Source)
	if !ok {
		return transaction.ErrInvalidSourceType
	}
	tgt, ok := target.(ports.SignatureTarget)
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
		panic("signmessage engine started without a wallet source")
	}
	if e.target == nil {
		panic("signmessage engine started without a signature target")
	}
}

func (e *Engine) InitializeTransaction(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	// nothing moves, amounts and fees stay zero for the whole flow
	return domain.NewPendingTransaction(domain.FeeSelection{
		SelectedLevel:   domain.FeeLevelRegular,
		AvailableLevels: []domain.FeeLevel{domain.FeeLevelRegular},
	}), nil
}

func (e *Engine) DoBuildConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.SetConfirmations([]domain.Confirmation{
		{
			Kind:  domain.ConfirmationMessage,
			Label: "Message",
			Value: string(e.target.Message()),
		},
		{
			Kind:  domain.ConfirmationNotice,
			Label: "Notice",
			Value: "Signing this message does not move any funds",
		},
	})
	return ptx, nil
}

func (e *Engine) Update(
	ctx context.Context, amount *big.Int, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	// sign-only flows carry no amount
	return ptx, nil
}

func (e *Engine) DoUpdateFeeLevel(
	ctx context.Context,
	ptx *domain.PendingTransaction,
	level domain.FeeLevel,
	customAmount *big.Int,
) (*domain.PendingTransaction, error) {
	if !ptx.FeeSelection.HasAvailableLevel(level) {
		ptx.ValidationState = domain.ValidationOptionInvalid
	}
	return ptx, nil
}

func (e *Engine) ValidateAmount(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	return e.DoValidateAll(ctx, ptx)
}

func (e *Engine) DoValidateAll(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	if len(e.target.Message()) <= 0 {
		ptx.ValidationState = domain.ValidationInvalidMessage
		return ptx, nil
	}
	ptx.ValidationState = domain.ValidationCanExecute
	return ptx, nil
}

func (e *Engine) DoRefreshConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	return ptx, nil
}

// Execute signs the message following the personal-sign convention, so
// any EVM verifier recovers the wallet's address from the signature.
func (e *Engine) Execute(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.TransactionResult, error) {
	signingWallet, err := walletpkg.NewWalletFromSeedHex(
		walletpkg.NewWalletFromSeedHexOpts{SeedHex: e.source.Wallet.SeedHex},
	)
	if err != nil {
		return nil, err
	}
	privateKey, _, err := signingWallet.DeriveSigningKeyPair(
		walletpkg.DeriveSigningKeyPairOpts{
			Scheme:         walletpkg.SchemeLegacy,
			CoinType:       evmCoinType,
			DerivationPath: evmDerivationPath,
		},
	)
	if err != nil {
		return nil, err
	}

	message := e.target.Message()
	prefixed := fmt.Sprintf(
		"\x19Ethereum Signed Message:\n%d%s", len(message), message,
	)
	digest := ethcrypto.Keccak256([]byte(prefixed))

	signature, err := ethcrypto.Sign(digest, privateKey.ToECDSA())
	if err != nil {
		return nil, err
	}
	e.executed = true

	return domain.SignedResult(hex.EncodeToString(signature)), nil
}

// Stop notifies the counterparty that the request was declined, exactly
// once and only when the message was never signed.
func (e *Engine) Stop(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	if e.executed || e.rejectionSent {
		return nil
	}
	e.rejectionSent = true
	return e.target.NotifyRejection(ctx)
}
