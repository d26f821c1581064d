package bitcoinchain_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/application/transaction/bitcoinchain"
	"github.com/veridian-wallet/walletcore/internal/core/application/unspents"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	"github.com/veridian-wallet/walletcore/internal/infrastructure/storage/db/inmemory"
)

const (
	testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aae" +
		"d6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2" +
		"d2ce9e38e4"
	// first external address of the segwit derivation for the seed above
	testSourceAddress = "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"
	testTargetAddress = "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"
	testTxID          = "aa00000000000000000000000000000000000000000000000000000000000001"
	testBroadcastHash = "f000000000000000000000000000000000000000000000000000000000000001"
)

type fakeIndexer struct {
	mtx          sync.Mutex
	unspents     []domain.UnspentOutput
	broadcastHex string
	broadcastErr error
}

func (f *fakeIndexer) GetUnspents(
	_ context.Context, _ []string,
) ([]domain.UnspentOutput, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	unspents := make([]domain.UnspentOutput, len(f.unspents))
	copy(unspents, f.unspents)
	return unspents, nil
}

func (f *fakeIndexer) BroadcastTransaction(
	_ context.Context, txHex string,
) (string, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	f.broadcastHex = txHex
	return testBroadcastHash, nil
}

func (f *fakeIndexer) IsHealthy(_ context.Context) bool { return true }

func (f *fakeIndexer) lastBroadcast() string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.broadcastHex
}

type fakeFeeOracle struct{}

func (fakeFeeOracle) FeeRates(_ context.Context) (*ports.FeeRates, error) {
	return &ports.FeeRates{
		Regular:  decimal.NewFromInt(1),
		Priority: decimal.NewFromInt(2),
	}, nil
}

type enabledFlags []string

func (f enabledFlags) IsEnabled(flag string) bool {
	for _, enabled := range f {
		if enabled == flag {
			return true
		}
	}
	return false
}

func scriptForAddress(t *testing.T, address string) []byte {
	t.Helper()

	decoded, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(decoded)
	require.NoError(t, err)
	return script
}

type testFixture struct {
	engine  *bitcoinchain.Engine
	indexer *fakeIndexer
	repo    domain.UnspentRepository
	wallet  *domain.HDWallet
}

func newTestFixture(
	t *testing.T, fundedValues []uint64, engineOverride func(*bitcoinchain.EngineOpts),
) *testFixture {
	t.Helper()

	wallet, err := domain.NewHDWallet(testSeedHex, "", "Main")
	require.NoError(t, err)

	sourceScript := scriptForAddress(t, testSourceAddress)
	funded := make([]domain.UnspentOutput, 0, len(fundedValues))
	for i, value := range fundedValues {
		funded = append(funded, domain.UnspentOutput{
			TxID:           testTxID,
			VOut:           uint32(i),
			Value:          value,
			Address:        testSourceAddress,
			Script:         sourceScript,
			DerivationPath: "0'/0/0",
			Confirmed:      true,
		})
	}

	indexer := &fakeIndexer{unspents: funded}
	repo := inmemory.NewUnspentRepositoryImpl()
	unspentsSvc, err := unspents.NewService(repo, indexer)
	require.NoError(t, err)

	opts := bitcoinchain.EngineOpts{
		ChainParams:    &chaincfg.MainNetParams,
		CoinType:       0,
		DerivationType: domain.DerivationSegwit,
		NetworkName:    "Bitcoin",
		Unspents:       unspentsSvc,
		Indexer:        indexer,
		FeeOracle:      fakeFeeOracle{},
	}
	if engineOverride != nil {
		engineOverride(&opts)
	}
	engine, err := bitcoinchain.NewEngine(opts)
	require.NoError(t, err)

	return &testFixture{
		engine:  engine,
		indexer: indexer,
		repo:    repo,
		wallet:  wallet,
	}
}

func startFlow(
	t *testing.T, fixture *testFixture, targetAddress string,
) *domain.PendingTransaction {
	t.Helper()

	err := fixture.engine.Start(
		bitcoinchain.Source{Wallet: fixture.wallet, AccountIndex: 0},
		transaction.SendTarget{Address: targetAddress},
		nil,
	)
	require.NoError(t, err)
	fixture.engine.AssertInputsValid()

	ptx, err := fixture.engine.InitializeTransaction(context.Background())
	require.NoError(t, err)
	ptx, err = fixture.engine.DoBuildConfirmations(context.Background(), ptx)
	require.NoError(t, err)
	return ptx
}

func TestEngineInitialize(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(t, []uint64{100000}, nil)
	ptx := startFlow(t, fixture, testTargetAddress)

	require.Zero(t, ptx.Available.Cmp(big.NewInt(100000)))
	require.Equal(t, domain.FeeLevelRegular, ptx.FeeSelection.SelectedLevel)
	require.NotNil(t, ptx.ConfirmationFor(domain.ConfirmationDestination))
	require.Equal(
		t, testTargetAddress,
		ptx.ConfirmationFor(domain.ConfirmationDestination).Value,
	)
}

func TestEngineUpdateComputesFee(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(t, []uint64{100000}, nil)
	ptx := startFlow(t, fixture, testTargetAddress)
	ctx := context.Background()

	ptx, err := fixture.engine.Update(ctx, big.NewInt(60000), ptx)
	require.NoError(t, err)

	// one P2WPKH input, two outputs at 1 sat/vbyte
	require.Zero(t, ptx.FeeAmount.Cmp(big.NewInt(141)))
	require.True(t, ptx.FeeForFullAvailable.Sign() > 0)
	require.True(t, ptx.FeeForFullAvailable.Cmp(ptx.FeeAmount) < 0)

	feeLine := ptx.ConfirmationFor(domain.ConfirmationNetworkFee)
	require.NotNil(t, feeLine)
	require.Equal(t, "141", feeLine.Value)
}

func TestEngineRejectsUnavailableFeeLevel(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(t, []uint64{100000}, nil)
	ptx := startFlow(t, fixture, testTargetAddress)
	ctx := context.Background()

	// the custom tier is feature-flagged off by default
	ptx, err := fixture.engine.DoUpdateFeeLevel(
		ctx, ptx, domain.FeeLevelCustom, big.NewInt(5),
	)
	require.NoError(t, err)
	require.Equal(t, domain.ValidationOptionInvalid, ptx.ValidationState)
	require.Equal(t, domain.FeeLevelRegular, ptx.FeeSelection.SelectedLevel)
	require.Nil(t, ptx.FeeSelection.CustomAmount)
}

func TestEngineCustomFeeLevel(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(
		t, []uint64{100000},
		func(opts *bitcoinchain.EngineOpts) {
			opts.FeatureFlags = enabledFlags{bitcoinchain.FeatureFlagCustomFee}
		},
	)
	ptx := startFlow(t, fixture, testTargetAddress)
	ctx := context.Background()

	// an enabled custom tier still needs a positive rate
	ptx, err := fixture.engine.DoUpdateFeeLevel(
		ctx, ptx, domain.FeeLevelCustom, nil,
	)
	require.NoError(t, err)
	require.Equal(t, domain.ValidationOptionInvalid, ptx.ValidationState)
	require.Equal(t, domain.FeeLevelRegular, ptx.FeeSelection.SelectedLevel)
	require.Nil(t, ptx.FeeSelection.CustomAmount)

	ptx, err = fixture.engine.Update(ctx, big.NewInt(60000), ptx)
	require.NoError(t, err)
	ptx, err = fixture.engine.DoUpdateFeeLevel(
		ctx, ptx, domain.FeeLevelCustom, big.NewInt(2),
	)
	require.NoError(t, err)
	require.Equal(t, domain.FeeLevelCustom, ptx.FeeSelection.SelectedLevel)
	// one P2WPKH input, two outputs at 2 sat/vbyte
	require.Zero(t, ptx.FeeAmount.Cmp(big.NewInt(282)))
}

func TestEngineValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		amount   int64
		override func(*bitcoinchain.EngineOpts)
		expected domain.TransactionValidationState
	}{
		{
			name:     "can_execute",
			target:   testTargetAddress,
			amount:   60000,
			expected: domain.ValidationCanExecute,
		},
		{
			name:     "invalid_address",
			target:   "not an address",
			amount:   60000,
			expected: domain.ValidationInvalidAddress,
		},
		{
			name:     "below_minimum",
			target:   testTargetAddress,
			amount:   100,
			expected: domain.ValidationBelowMinimumLimit,
		},
		{
			name:   "below_dust",
			target: testTargetAddress,
			amount: 100,
			override: func(opts *bitcoinchain.EngineOpts) {
				opts.MinAmount = 1
			},
			expected: domain.ValidationBelowDust,
		},
		{
			name:     "insufficient_funds",
			target:   testTargetAddress,
			amount:   99999,
			expected: domain.ValidationInsufficientFunds,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fixture := newTestFixture(t, []uint64{100000}, tt.override)
			ptx := startFlow(t, fixture, tt.target)
			ctx := context.Background()

			ptx, err := fixture.engine.Update(ctx, big.NewInt(tt.amount), ptx)
			require.NoError(t, err)
			ptx, err = fixture.engine.DoValidateAll(ctx, ptx)
			require.NoError(t, err)
			require.Equal(t, tt.expected, ptx.ValidationState)
		})
	}
}

func TestEngineExecute(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(t, []uint64{100000}, nil)
	ptx := startFlow(t, fixture, testTargetAddress)
	ctx := context.Background()

	ptx, err := fixture.engine.Update(ctx, big.NewInt(60000), ptx)
	require.NoError(t, err)
	ptx, err = fixture.engine.DoValidateAll(ctx, ptx)
	require.NoError(t, err)
	require.True(t, ptx.CanExecute())

	res, err := fixture.engine.Execute(ctx, ptx)
	require.NoError(t, err)
	require.Equal(t, testBroadcastHash, res.TxHash)
	require.False(t, res.IsSigned())

	rawTx, err := hex.DecodeString(fixture.indexer.lastBroadcast())
	require.NoError(t, err)
	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(rawTx)))

	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxIn[0].Witness, 2)
	require.Len(t, tx.TxOut, 2)
	require.Equal(t, int64(60000), tx.TxOut[0].Value)
	require.Equal(
		t, scriptForAddress(t, testTargetAddress), tx.TxOut[0].PkScript,
	)
	// change goes back to the internal chain, fee stays consistent
	require.Equal(t, int64(100000-60000-141), tx.TxOut[1].Value)

	// the spent coin must not fund another flow
	spent, err := fixture.repo.GetUnspentForKey(
		ctx, domain.UnspentKey{TxID: testTxID, VOut: 0},
	)
	require.NoError(t, err)
	require.True(t, spent.IsSpent())
}

func TestEngineExecuteRejectedBroadcastUnlocksCoins(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(t, []uint64{100000}, nil)
	ptx := startFlow(t, fixture, testTargetAddress)
	ctx := context.Background()

	ptx, err := fixture.engine.Update(ctx, big.NewInt(60000), ptx)
	require.NoError(t, err)
	ptx, err = fixture.engine.DoValidateAll(ctx, ptx)
	require.NoError(t, err)

	fixture.indexer.broadcastErr = domain.ErrBroadcastRejected

	_, err = fixture.engine.Execute(ctx, ptx)
	require.ErrorIs(t, err, domain.ErrBroadcastRejected)

	coin, err := fixture.repo.GetUnspentForKey(
		ctx, domain.UnspentKey{TxID: testTxID, VOut: 0},
	)
	require.NoError(t, err)
	require.False(t, coin.IsLocked())
	require.False(t, coin.IsSpent())
}

func TestEngineStopUnlocksHeldCoins(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(t, []uint64{100000}, nil)
	ptx := startFlow(t, fixture, testTargetAddress)
	ctx := context.Background()

	// an ambiguous broadcast keeps the coins locked
	fixture.indexer.broadcastErr = domain.ErrBroadcastAmbiguous

	ptx, err := fixture.engine.Update(ctx, big.NewInt(60000), ptx)
	require.NoError(t, err)
	ptx, err = fixture.engine.DoValidateAll(ctx, ptx)
	require.NoError(t, err)

	_, err = fixture.engine.Execute(ctx, ptx)
	require.ErrorIs(t, err, domain.ErrBroadcastAmbiguous)

	coin, err := fixture.repo.GetUnspentForKey(
		ctx, domain.UnspentKey{TxID: testTxID, VOut: 0},
	)
	require.NoError(t, err)
	require.True(t, coin.IsLocked())

	require.NoError(t, fixture.engine.Stop(ctx, ptx))

	coin, err = fixture.repo.GetUnspentForKey(
		ctx, domain.UnspentKey{TxID: testTxID, VOut: 0},
	)
	require.NoError(t, err)
	require.False(t, coin.IsLocked())
}

func TestFailingEngineStart(t *testing.T) {
	t.Parallel()

	fixture := newTestFixture(t, []uint64{100000}, nil)

	err := fixture.engine.Start(
		"wrong source", transaction.SendTarget{Address: testTargetAddress}, nil,
	)
	require.ErrorIs(t, err, transaction.ErrInvalidSourceType)

	err = fixture.engine.Start(
		bitcoinchain.Source{Wallet: fixture.wallet}, "wrong target", nil,
	)
	require.ErrorIs(t, err, transaction.ErrInvalidTargetType)
}
