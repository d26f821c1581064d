// Package ethereum implements the transaction engine for native and
// ERC-20 transfers on EVM chains.
package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	walletpkg "github.com/veridian-wallet/walletcore/pkg/wallet"
)

const (
	evmCoinType uint32 = 60
	// first external key of the default account, the only one EVM chains
	// use
	evmDerivationPath = "0'/0/0"

	nativeTransferGas uint64 = 21000
	tokenTransferGas  uint64 = 65000

	// priority quotes are the suggested gas price bumped by a quarter
	priorityBumpNum int64 = 125
	priorityBumpDen int64 = 100
)

// transfer(address,uint256)
var erc20TransferSelector = ethcrypto.Keccak256(
	[]byte("transfer(address,uint256)"),
)[:4]

// Source is the spending side of a flow: the wallet's EVM account.
type Source struct {
	Wallet *domain.HDWallet
}

// EngineOpts holds everything needed to create an Engine.
type EngineOpts struct {
	Client      ports.EVMClient
	NetworkName string
	// TokenContract turns the engine into an ERC-20 one for the given
	// contract. Nil means native transfers.
	TokenContract *common.Address
	// GasLimit overrides the default transfer gas limit.
	GasLimit  uint64
	MinAmount *big.Int
}

func (o EngineOpts) validate() error {
	if o.Client == nil {
		return fmt.Errorf("missing evm client")
	}
	return nil
}

// Engine builds, signs and broadcasts EVM transfers. It implements
// transaction.Engine.
type Engine struct {
	client        ports.EVMClient
	networkName   string
	tokenContract *common.Address
	gasLimit      uint64
	minAmount     *big.Int

	source      Source
	target      transaction.SendTarget
	refreshFn   transaction.RefreshFunc
	gasPrice    *big.Int
	fromAddress *common.Address
	executed    bool
}

// NewEngine returns an Engine for the configured chain and asset.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	gasLimit := opts.GasLimit
	if gasLimit == 0 {
		gasLimit = nativeTransferGas
		if opts.TokenContract != nil {
			gasLimit = tokenTransferGas
		}
	}
	minAmount := opts.MinAmount
	if minAmount == nil {
		minAmount = big.NewInt(1)
	}

	return &Engine{
		client:        opts.Client,
		networkName:   opts.NetworkName,
		tokenContract: opts.TokenContract,
		gasLimit:      gasLimit,
		minAmount:     minAmount,
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
		panic("ethereum engine started without a wallet source")
	}
	if len(e.target.Address) <= 0 {
		panic("ethereum engine started without a target address")
	}
}

func (e *Engine) InitializeTransaction(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	ptx := domain.NewPendingTransaction(domain.FeeSelection{
		SelectedLevel: domain.FeeLevelRegular,
		AvailableLevels: []domain.FeeLevel{
			domain.FeeLevelRegular, domain.FeeLevelPriority,
		},
	})
	ptx.Limits = domain.TransactionLimits{
		Minimum: new(big.Int).Set(e.minAmount),
	}

	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	return ptx, nil
}

func (e *Engine) DoBuildConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	from, err := e.sourceAddress()
	if err != nil {
		return nil, err
	}

	ptx.SetConfirmations([]domain.Confirmation{
		{
			Kind:  domain.ConfirmationSource,
			Label: "From",
			Value: from.Hex(),
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
	})
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
	if !ptx.FeeSelection.HasAvailableLevel(level) {
		ptx.ValidationState = domain.ValidationOptionInvalid
		return ptx, nil
	}
	if !ptx.HasFeeLevelChanged(level, customAmount) {
		return ptx, nil
	}

	ptx.SetFeeLevel(level, customAmount)
	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) ValidateAmount(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	state, err := e.amountValidationState(ctx, ptx)
	if err != nil {
		return nil, err
	}
	ptx.ValidationState = state
	return ptx, nil
}

func (e *Engine) DoValidateAll(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	if !common.IsHexAddress(e.target.Address) {
		ptx.ValidationState = domain.ValidationInvalidAddress
		return ptx, nil
	}
	return e.ValidateAmount(ctx, ptx)
}

func (e *Engine) DoRefreshConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	e.gasPrice = nil
	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) Execute(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.TransactionResult, error) {
	privateKey, from, err := e.signingKey()
	if err != nil {
		return nil, err
	}

	chainID, err := e.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := e.currentGasPrice(ctx, ptx)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(e.target.Address)
	var tx *types.Transaction
	if e.tokenContract != nil {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       e.tokenContract,
			Value:    big.NewInt(0),
			Gas:      e.gasLimit,
			GasPrice: gasPrice,
			Data:     transferCalldata(to, ptx.Amount),
		})
	} else {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &to,
			Value:    ptx.Amount,
			Gas:      e.gasLimit,
			GasPrice: gasPrice,
		})
	}

	signedTx, err := types.SignTx(
		tx, types.LatestSignerForChainID(chainID), privateKey.ToECDSA(),
	)
	if err != nil {
		return nil, err
	}

	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, err
	}
	e.executed = true

	return domain.HashedResult(signedTx.Hash().Hex(), ptx.Amount), nil
}

func (e *Engine) Stop(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	return nil
}

func (e *Engine) updateBalances(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	from, err := e.sourceAddress()
	if err != nil {
		return err
	}

	var available *big.Int
	if e.tokenContract != nil {
		available, err = e.client.TokenBalanceAt(ctx, *e.tokenContract, from)
	} else {
		available, err = e.client.BalanceAt(ctx, from)
	}
	if err != nil {
		return err
	}
	ptx.SetAvailable(available)

	gasPrice, err := e.currentGasPrice(ctx, ptx)
	if err != nil {
		return err
	}
	fee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(e.gasLimit))

	feeForFullAvailable := fee
	if e.tokenContract != nil {
		// the token balance is fully spendable, gas is paid in the native
		// asset
		feeForFullAvailable = big.NewInt(0)
	}
	ptx.UpdateFee(fee, feeForFullAvailable)
	return nil
}

func (e *Engine) amountValidationState(
	ctx context.Context, ptx *domain.PendingTransaction,
) (domain.TransactionValidationState, error) {
	if ptx.Amount == nil || ptx.Amount.Sign() <= 0 ||
		ptx.Amount.Cmp(ptx.Limits.Minimum) < 0 {
		return domain.ValidationBelowMinimumLimit, nil
	}

	if e.tokenContract != nil {
		if ptx.Amount.Cmp(ptx.Available) > 0 {
			return domain.ValidationInsufficientFunds, nil
		}
		// gas is paid from the native balance
		from, err := e.sourceAddress()
		if err != nil {
			return domain.ValidationUninitialized, err
		}
		nativeBalance, err := e.client.BalanceAt(ctx, from)
		if err != nil {
			return domain.ValidationUninitialized, err
		}
		if nativeBalance.Cmp(ptx.FeeAmount) < 0 {
			return domain.ValidationInsufficientGas, nil
		}
		return domain.ValidationCanExecute, nil
	}

	if ptx.Total().Cmp(ptx.Available) > 0 {
		return domain.ValidationInsufficientFunds, nil
	}
	return domain.ValidationCanExecute, nil
}

func (e *Engine) currentGasPrice(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*big.Int, error) {
	if e.gasPrice == nil {
		gasPrice, err := e.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}
		e.gasPrice = gasPrice
	}

	price := new(big.Int).Set(e.gasPrice)
	if ptx.FeeSelection.SelectedLevel == domain.FeeLevelPriority {
		price.Mul(price, big.NewInt(priorityBumpNum))
		price.Div(price, big.NewInt(priorityBumpDen))
	}
	return price, nil
}

func (e *Engine) refreshAmountConfirmations(ptx *domain.PendingTransaction) {
	ptx.InsertConfirmation(domain.Confirmation{
		Kind:  domain.ConfirmationNetworkFee,
		Label: "Network fee",
		Value: ptx.FeeAmount.String(),
	})
	total := ptx.Total()
	if e.tokenContract != nil {
		// token amount and native fee do not sum
		total = ptx.Amount
	}
	ptx.InsertConfirmation(domain.Confirmation{
		Kind:  domain.ConfirmationTotal,
		Label: "Total",
		Value: total.String(),
	})
	ptx.InsertConfirmation(domain.Confirmation{
		Kind:  domain.ConfirmationFeeSelection,
		Label: "Fee level",
		Value: ptx.FeeSelection.SelectedLevel.String(),
	})
}

// signingKey derives the key pair of the wallet's EVM account and the
// address it controls.
func (e *Engine) signingKey() (*btcec.PrivateKey, common.Address, error) {
	signingWallet, err := walletpkg.NewWalletFromSeedHex(
		walletpkg.NewWalletFromSeedHexOpts{SeedHex: e.source.Wallet.SeedHex},
	)
	if err != nil {
		return nil, common.Address{}, err
	}

	privateKey, publicKey, err := signingWallet.DeriveSigningKeyPair(
		walletpkg.DeriveSigningKeyPairOpts{
			Scheme:         walletpkg.SchemeLegacy,
			CoinType:       evmCoinType,
			DerivationPath: evmDerivationPath,
		},
	)
	if err != nil {
		return nil, common.Address{}, err
	}

	return privateKey, ethcrypto.PubkeyToAddress(*publicKey.ToECDSA()), nil
}

func (e *Engine) sourceAddress() (common.Address, error) {
	if e.fromAddress != nil {
		return *e.fromAddress, nil
	}
	_, from, err := e.signingKey()
	if err != nil {
		return common.Address{}, err
	}
	e.fromAddress = &from
	return from, nil
}

func transferCalldata(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
