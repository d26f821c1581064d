// Package bitcoinchain implements the transaction engine for UTXO chains
// sharing the bitcoin wire format, currently Bitcoin and Bitcoin Cash.
package bitcoinchain

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/application/unspents"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	"github.com/veridian-wallet/walletcore/pkg/coinselect"
	walletpkg "github.com/veridian-wallet/walletcore/pkg/wallet"
)

// FeatureFlagCustomFee enables the custom fee tier of broadcast flows.
const FeatureFlagCustomFee = "custom_fee_level"

// Source is the spending side of a flow: one account of the HD wallet.
type Source struct {
	Wallet       *domain.HDWallet
	AccountIndex uint32
}

// EngineOpts holds everything needed to create an Engine.
type EngineOpts struct {
	ChainParams    *chaincfg.Params
	CoinType       uint32
	DerivationType domain.DerivationType
	NetworkName    string
	Unspents       *unspents.Service
	Indexer        ports.ChainIndexer
	FeeOracle      ports.FeeOracle
	FeatureFlags   ports.FeatureFlags
	DustThreshold  uint64
	MinAmount      uint64
}

func (o EngineOpts) validate() error {
	if o.ChainParams == nil {
		return fmt.Errorf("missing chain params")
	}
	if o.Unspents == nil {
		return fmt.Errorf("missing unspents service")
	}
	if o.Indexer == nil {
		return fmt.Errorf("missing chain indexer")
	}
	if o.FeeOracle == nil {
		return fmt.Errorf("missing fee oracle")
	}
	return nil
}

// Engine builds, signs and broadcasts payments on a bitcoin-like chain.
// It implements transaction.Engine.
type Engine struct {
	chainParams    *chaincfg.Params
	coinType       uint32
	derivationType domain.DerivationType
	networkName    string
	unspents       *unspents.Service
	indexer        ports.ChainIndexer
	feeOracle      ports.FeeOracle
	featureFlags   ports.FeatureFlags
	dustThreshold  uint64
	minAmount      uint64

	flowID     uuid.UUID
	source     Source
	target     transaction.SendTarget
	refreshFn  transaction.RefreshFunc
	feeRates   *ports.FeeRates
	lockedKeys []domain.UnspentKey
	executed   bool
}

// NewEngine returns an Engine for the configured chain.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	featureFlags := opts.FeatureFlags
	if featureFlags == nil {
		featureFlags = ports.NoopFeatureFlags()
	}
	dustThreshold := opts.DustThreshold
	if dustThreshold == 0 {
		dustThreshold = coinselect.DustThreshold
	}
	minAmount := opts.MinAmount
	if minAmount == 0 {
		minAmount = dustThreshold
	}

	return &Engine{
		chainParams:    opts.ChainParams,
		coinType:       opts.CoinType,
		derivationType: opts.DerivationType,
		networkName:    opts.NetworkName,
		unspents:       opts.Unspents,
		indexer:        opts.Indexer,
		feeOracle:      opts.FeeOracle,
		featureFlags:   featureFlags,
		dustThreshold:  dustThreshold,
		minAmount:      minAmount,
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

	e.flowID = uuid.New()
	e.source = src
	e.target = tgt
	e.refreshFn = refreshFn
	return nil
}

func (e *Engine) AssertInputsValid() {
	if e.source.Wallet == nil {
		panic("bitcoinchain engine started without a wallet source")
	}
	if _, err := e.source.Wallet.Account(e.source.AccountIndex); err != nil {
		panic(fmt.Sprintf(
			"bitcoinchain engine started on unknown account %d",
			e.source.AccountIndex,
		))
	}
	if len(e.target.Address) <= 0 {
		panic("bitcoinchain engine started without a target address")
	}
}

func (e *Engine) InitializeTransaction(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	availableLevels := []domain.FeeLevel{
		domain.FeeLevelRegular, domain.FeeLevelPriority,
	}
	if e.featureFlags.IsEnabled(FeatureFlagCustomFee) {
		availableLevels = append(availableLevels, domain.FeeLevelCustom)
	}

	ptx := domain.NewPendingTransaction(domain.FeeSelection{
		SelectedLevel:   domain.FeeLevelRegular,
		AvailableLevels: availableLevels,
	})
	ptx.Limits = domain.TransactionLimits{
		Minimum: new(big.Int).SetUint64(e.minAmount),
	}

	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	return ptx, nil
}

func (e *Engine) DoBuildConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	account, err := e.account()
	if err != nil {
		return nil, err
	}

	ptx.SetConfirmations([]domain.Confirmation{
		{
			Kind:  domain.ConfirmationSource,
			Label: "From",
			Value: account.Label,
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
	if !ptx.FeeSelection.HasAvailableLevel(level) ||
		(level == domain.FeeLevelCustom &&
			(customAmount == nil || customAmount.Sign() <= 0)) {
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
	ptx.ValidationState = e.amountValidationState(ptx)
	return ptx, nil
}

func (e *Engine) DoValidateAll(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	if !e.isValidAddress() {
		ptx.ValidationState = domain.ValidationInvalidAddress
		return ptx, nil
	}
	ptx.ValidationState = e.amountValidationState(ptx)
	return ptx, nil
}

func (e *Engine) DoRefreshConfirmations(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	// drop the cached quotes so fees are recomputed from a fresh oracle
	// reading
	e.feeRates = nil
	if err := e.updateBalances(ctx, ptx); err != nil {
		return nil, err
	}
	e.refreshAmountConfirmations(ptx)
	return ptx, nil
}

func (e *Engine) Execute(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.TransactionResult, error) {
	addresses, err := e.watchedAddresses()
	if err != nil {
		return nil, err
	}
	coins, err := e.spendableCoins(ctx, addresses)
	if err != nil {
		return nil, err
	}
	feeRate, err := e.feeRate(ctx, ptx)
	if err != nil {
		return nil, err
	}

	selection, err := coinselect.Select(coinselect.SelectOpts{
		Candidates:    coins,
		TargetAmount:  ptx.Amount.Uint64(),
		FeeRate:       feeRate,
		DustThreshold: e.dustThreshold,
	})
	if err != nil {
		return nil, err
	}

	keys := make([]domain.UnspentKey, 0, len(selection.Coins))
	for _, coin := range selection.Coins {
		keys = append(keys, domain.UnspentKey{
			TxID: coin.TxID(), VOut: coin.VOut(),
		})
	}
	if err := e.unspents.LockUnspents(ctx, keys, e.flowID); err != nil {
		return nil, err
	}
	e.lockedKeys = keys

	txHex, err := e.buildAndSign(selection, ptx.Amount.Uint64())
	if err != nil {
		e.unlockHeldCoins(ctx)
		return nil, err
	}

	txHash, err := e.indexer.BroadcastTransaction(ctx, txHex)
	if err != nil {
		if errors.Is(err, domain.ErrBroadcastRejected) {
			e.unlockHeldCoins(ctx)
		}
		// an ambiguous outcome keeps the coins locked, the transaction may
		// still confirm
		return nil, err
	}

	if err := e.unspents.SpendUnspents(ctx, keys); err != nil {
		log.WithError(err).Warn("failed to mark broadcast inputs as spent")
	}
	e.unspents.Invalidate(ctx, addresses)
	e.executed = true
	e.lockedKeys = nil

	return domain.HashedResult(txHash, ptx.Amount), nil
}

func (e *Engine) Stop(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	if e.executed {
		return nil
	}
	e.unlockHeldCoins(ctx)
	return nil
}

func (e *Engine) account() (*domain.Account, error) {
	return e.source.Wallet.Account(e.source.AccountIndex)
}

// watchedAddresses returns every address of the source account derivation
// matching the chain scheme.
func (e *Engine) watchedAddresses() ([]string, error) {
	account, err := e.account()
	if err != nil {
		return nil, err
	}
	derivation := account.Derivation(e.derivationType)
	if derivation == nil {
		return nil, domain.ErrDerivationNotFound
	}

	seen := map[string]struct{}{}
	addresses := make([]string, 0, len(derivation.AddressCache)+1)
	if len(derivation.Address) > 0 {
		seen[derivation.Address] = struct{}{}
		addresses = append(addresses, derivation.Address)
	}
	for _, address := range derivation.AddressCache {
		if _, ok := seen[address]; ok {
			continue
		}
		seen[address] = struct{}{}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

func (e *Engine) spendableCoins(
	ctx context.Context, addresses []string,
) ([]coinselect.Coin, error) {
	outputs, err := e.unspents.SpendableUnspentOutputs(ctx, addresses)
	if err != nil {
		return nil, err
	}

	coins := make([]coinselect.Coin, 0, len(outputs))
	for _, output := range outputs {
		coins = append(coins, unspentCoin{output})
	}
	return coins, nil
}

func (e *Engine) updateBalances(
	ctx context.Context, ptx *domain.PendingTransaction,
) error {
	addresses, err := e.watchedAddresses()
	if err != nil {
		return err
	}
	coins, err := e.spendableCoins(ctx, addresses)
	if err != nil {
		return err
	}
	feeRate, err := e.feeRate(ctx, ptx)
	if err != nil {
		return err
	}

	var available uint64
	for _, coin := range coins {
		available += coin.Value()
	}
	ptx.SetAvailable(new(big.Int).SetUint64(available))

	sweepFee := e.sweepFee(coins, feeRate)
	fee := sweepFee
	if ptx.Amount.Sign() > 0 && ptx.Amount.IsUint64() {
		selection, err := coinselect.Select(coinselect.SelectOpts{
			Candidates:    coins,
			TargetAmount:  ptx.Amount.Uint64(),
			FeeRate:       feeRate,
			DustThreshold: e.dustThreshold,
		})
		if err == nil {
			fee = selection.Fee
		}
		// on insufficient funds the sweep fee stands in as the estimate,
		// validation reports the shortfall
		var insufficientErr *coinselect.InsufficientFundsError
		if err != nil && !errors.As(err, &insufficientErr) {
			return err
		}
	}
	ptx.UpdateFee(
		new(big.Int).SetUint64(fee), new(big.Int).SetUint64(sweepFee),
	)
	return nil
}

// sweepFee is the fee a transaction spending every coin towards a single
// output would pay at the given rate.
func (e *Engine) sweepFee(coins []coinselect.Coin, feeRate uint64) uint64 {
	if len(coins) <= 0 {
		return 0
	}
	inTypes := make([]int, 0, len(coins))
	for _, coin := range coins {
		if coin.ScriptType() == coinselect.P2WPKH {
			inTypes = append(inTypes, walletpkg.P2WPKH)
		} else {
			inTypes = append(inTypes, walletpkg.P2PKH)
		}
	}
	outType := walletpkg.P2WPKH
	if e.derivationType == domain.DerivationLegacy {
		outType = walletpkg.P2PKH
	}
	size := walletpkg.EstimateTxSize(inTypes, []int{outType})
	return uint64(size) * feeRate
}

func (e *Engine) feeRate(
	ctx context.Context, ptx *domain.PendingTransaction,
) (uint64, error) {
	if ptx.FeeSelection.SelectedLevel == domain.FeeLevelCustom {
		if ptx.FeeSelection.CustomAmount == nil ||
			ptx.FeeSelection.CustomAmount.Sign() <= 0 {
			return 1, nil
		}
		return ptx.FeeSelection.CustomAmount.Uint64(), nil
	}

	if e.feeRates == nil {
		rates, err := e.feeOracle.FeeRates(ctx)
		if err != nil {
			return 0, err
		}
		e.feeRates = rates
	}

	quote := e.feeRates.Regular
	if ptx.FeeSelection.SelectedLevel == domain.FeeLevelPriority {
		quote = e.feeRates.Priority
	}
	rate := quote.Ceil().BigInt().Uint64()
	if rate < 1 {
		rate = 1
	}
	return rate, nil
}

func (e *Engine) amountValidationState(
	ptx *domain.PendingTransaction,
) domain.TransactionValidationState {
	if ptx.Amount == nil || ptx.Amount.Sign() <= 0 ||
		ptx.Amount.Cmp(ptx.Limits.Minimum) < 0 {
		return domain.ValidationBelowMinimumLimit
	}
	if !ptx.Amount.IsUint64() || ptx.Amount.Uint64() < e.dustThreshold {
		return domain.ValidationBelowDust
	}
	if ptx.Amount.Cmp(ptx.MaxSpendable()) > 0 {
		return domain.ValidationInsufficientFunds
	}
	return domain.ValidationCanExecute
}

func (e *Engine) isValidAddress() bool {
	address, err := btcutil.DecodeAddress(e.target.Address, e.chainParams)
	if err != nil {
		return false
	}
	return address.IsForNet(e.chainParams)
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
	ptx.InsertConfirmation(domain.Confirmation{
		Kind:  domain.ConfirmationFeeSelection,
		Label: "Fee level",
		Value: ptx.FeeSelection.SelectedLevel.String(),
	})
}

func (e *Engine) buildAndSign(
	selection *coinselect.Selection, targetAmount uint64,
) (string, error) {
	scheme, err := e.derivationType.Scheme()
	if err != nil {
		return "", err
	}
	signingWallet, err := walletpkg.NewWalletFromSeedHex(
		walletpkg.NewWalletFromSeedHexOpts{SeedHex: e.source.Wallet.SeedHex},
	)
	if err != nil {
		return "", err
	}

	tx := wire.NewMsgTx(2)
	prevOuts := map[wire.OutPoint]*wire.TxOut{}
	pathsByScript := map[string]string{}

	for _, coin := range selection.Coins {
		output := coin.(unspentCoin).output
		hash, err := chainhash.NewHashFromStr(output.TxID)
		if err != nil {
			return "", err
		}
		outpoint := wire.NewOutPoint(hash, output.VOut)
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))

		prevOuts[*outpoint] = wire.NewTxOut(
			int64(output.Value), output.Script,
		)
		pathsByScript[hex.EncodeToString(output.Script)] = output.DerivationPath
	}

	targetScript, err := e.scriptForAddress(e.target.Address)
	if err != nil {
		return "", err
	}
	tx.AddTxOut(wire.NewTxOut(int64(targetAmount), targetScript))

	if selection.Change > 0 {
		changeScript, err := e.changeScript(signingWallet, scheme)
		if err != nil {
			return "", err
		}
		tx.AddTxOut(wire.NewTxOut(int64(selection.Change), changeScript))
	}

	signedTx, err := signingWallet.SignTransaction(walletpkg.SignTransactionOpts{
		Tx:                     tx,
		PrevOuts:               prevOuts,
		DerivationPathByScript: pathsByScript,
		Scheme:                 scheme,
		CoinType:               e.coinType,
	})
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := signedTx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

func (e *Engine) scriptForAddress(address string) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(address, e.chainParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(decoded)
}

// changeScript pays change back to the internal chain of the source
// account.
func (e *Engine) changeScript(
	signingWallet *walletpkg.Wallet, scheme walletpkg.Scheme,
) ([]byte, error) {
	changePath := fmt.Sprintf("%d'/1/0", e.source.AccountIndex)
	changeAddress, err := signingWallet.DeriveAddress(walletpkg.DeriveAddressOpts{
		Scheme:         scheme,
		CoinType:       e.coinType,
		DerivationPath: changePath,
		Network:        e.chainParams,
	})
	if err != nil {
		return nil, err
	}
	return e.scriptForAddress(changeAddress)
}

func (e *Engine) unlockHeldCoins(ctx context.Context) {
	if len(e.lockedKeys) <= 0 {
		return
	}
	if err := e.unspents.UnlockUnspents(ctx, e.lockedKeys); err != nil {
		log.WithError(err).Warn("failed to unlock coins held by stopped flow")
		return
	}
	e.lockedKeys = nil
}

// unspentCoin adapts a domain unspent output to the coin selection
// interface.
type unspentCoin struct {
	output domain.UnspentOutput
}

func (c unspentCoin) TxID() string    { return c.output.TxID }
func (c unspentCoin) VOut() uint32    { return c.output.VOut }
func (c unspentCoin) Value() uint64   { return c.output.Value }
func (c unspentCoin) Spendable() bool { return c.output.Spendable() }

func (c unspentCoin) ScriptType() coinselect.ScriptType {
	if len(c.output.Script) == 22 && c.output.Script[0] == 0x00 {
		return coinselect.P2WPKH
	}
	return coinselect.P2PKH
}
