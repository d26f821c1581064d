package transaction_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

type fakeEngine struct {
	started    bool
	stopped    int
	executed   int
	validateAs domain.TransactionValidationState
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{validateAs: domain.ValidationCanExecute}
}

func (e *fakeEngine) Start(
	source, target interface{}, refreshFn transaction.RefreshFunc,
) error {
	e.started = true
	return nil
}

func (e *fakeEngine) AssertInputsValid() {}

func (e *fakeEngine) InitializeTransaction(
	_ context.Context,
) (*domain.PendingTransaction, error) {
	return domain.NewPendingTransaction(domain.FeeSelection{
		SelectedLevel:   domain.FeeLevelRegular,
		AvailableLevels: []domain.FeeLevel{domain.FeeLevelRegular},
	}), nil
}

func (e *fakeEngine) DoBuildConfirmations(
	_ context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.SetConfirmations([]domain.Confirmation{{
		Kind: domain.ConfirmationSource, Label: "From", Value: "test",
	}})
	return ptx, nil
}

func (e *fakeEngine) Update(
	_ context.Context, amount *big.Int, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.UpdateAmount(amount)
	return ptx, nil
}

func (e *fakeEngine) DoUpdateFeeLevel(
	_ context.Context,
	ptx *domain.PendingTransaction,
	level domain.FeeLevel,
	customAmount *big.Int,
) (*domain.PendingTransaction, error) {
	return ptx, nil
}

func (e *fakeEngine) ValidateAmount(
	_ context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	ptx.ValidationState = e.validateAs
	return ptx, nil
}

func (e *fakeEngine) DoValidateAll(
	ctx context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	return e.ValidateAmount(ctx, ptx)
}

func (e *fakeEngine) DoRefreshConfirmations(
	_ context.Context, ptx *domain.PendingTransaction,
) (*domain.PendingTransaction, error) {
	return ptx, nil
}

func (e *fakeEngine) Execute(
	_ context.Context, ptx *domain.PendingTransaction,
) (*domain.TransactionResult, error) {
	e.executed++
	return domain.HashedResult("txhash", ptx.Amount), nil
}

func (e *fakeEngine) Stop(
	_ context.Context, _ *domain.PendingTransaction,
) error {
	e.stopped++
	return nil
}

type recordingAnalytics struct {
	mtx    sync.Mutex
	events []string
}

func (r *recordingAnalytics) RecordEvent(
	name string, _ map[string]interface{},
) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.events = append(r.events, name)
}

func (r *recordingAnalytics) recorded() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return append([]string{}, r.events...)
}

func newTestProcessor(
	t *testing.T, engine *fakeEngine, analytics *recordingAnalytics,
) *transaction.Processor {
	t.Helper()

	opts := transaction.ProcessorOpts{Engine: engine, AccountKey: "main:0"}
	if analytics != nil {
		opts.Analytics = analytics
	}
	processor, err := transaction.NewProcessor(opts)
	require.NoError(t, err)
	require.True(t, engine.started)
	return processor
}

func TestProcessorLifecycle(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	analytics := &recordingAnalytics{}
	processor := newTestProcessor(t, engine, analytics)
	ctx := context.Background()

	ptx, err := processor.Initialize(ctx)
	require.NoError(t, err)
	require.NotNil(t, ptx)
	require.Len(t, ptx.Confirmations, 1)

	ptx, err = processor.UpdateAmount(ctx, big.NewInt(1000))
	require.NoError(t, err)
	require.Zero(t, ptx.Amount.Cmp(big.NewInt(1000)))

	ptx, err = processor.ValidateAll(ctx)
	require.NoError(t, err)
	require.True(t, ptx.CanExecute())

	res, err := processor.Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, "txhash", res.TxHash)
	require.Equal(t, 1, engine.executed)
	require.Contains(t, analytics.recorded(), "transaction_executed")

	// a finished flow accepts no further calls
	_, err = processor.Execute(ctx)
	require.ErrorIs(t, err, transaction.ErrFlowAlreadyExecuted)
	require.NoError(t, processor.Stop(ctx))
	require.Zero(t, engine.stopped)
}

func TestProcessorRequiresInitialization(t *testing.T) {
	t.Parallel()

	processor := newTestProcessor(t, newFakeEngine(), nil)
	ctx := context.Background()

	_, err := processor.UpdateAmount(ctx, big.NewInt(1))
	require.ErrorIs(t, err, transaction.ErrFlowNotInitialized)
	_, err = processor.ValidateAll(ctx)
	require.ErrorIs(t, err, transaction.ErrFlowNotInitialized)
	_, err = processor.Execute(ctx)
	require.ErrorIs(t, err, transaction.ErrFlowNotInitialized)
}

func TestProcessorExecuteBeforeValidationPanics(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	processor := newTestProcessor(t, engine, nil)
	ctx := context.Background()

	_, err := processor.Initialize(ctx)
	require.NoError(t, err)
	_, err = processor.UpdateAmount(ctx, big.NewInt(1000))
	require.NoError(t, err)

	require.Panics(t, func() {
		processor.Execute(ctx) // nolint:errcheck
	})
	require.Zero(t, engine.executed)
}

func TestProcessorExecuteOnFailedValidationPanics(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	engine.validateAs = domain.ValidationInsufficientFunds
	processor := newTestProcessor(t, engine, nil)
	ctx := context.Background()

	_, err := processor.Initialize(ctx)
	require.NoError(t, err)
	_, err = processor.ValidateAll(ctx)
	require.NoError(t, err)

	require.Panics(t, func() {
		processor.Execute(ctx) // nolint:errcheck
	})
}

func TestProcessorStop(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine()
	analytics := &recordingAnalytics{}
	processor := newTestProcessor(t, engine, analytics)
	ctx := context.Background()

	_, err := processor.Initialize(ctx)
	require.NoError(t, err)

	require.NoError(t, processor.Stop(ctx))
	require.Equal(t, 1, engine.stopped)
	require.Contains(t, analytics.recorded(), "transaction_abandoned")

	// stopping twice does not reach the engine again
	require.NoError(t, processor.Stop(ctx))
	require.Equal(t, 1, engine.stopped)

	_, err = processor.UpdateAmount(ctx, big.NewInt(1))
	require.ErrorIs(t, err, transaction.ErrFlowStopped)
}

func TestFailingNewProcessor(t *testing.T) {
	t.Parallel()

	_, err := transaction.NewProcessor(transaction.ProcessorOpts{})
	require.ErrorIs(t, err, transaction.ErrNullEngine)
}

func TestAccountLockerSerializes(t *testing.T) {
	t.Parallel()

	locker := transaction.NewAccountLocker()
	var counter int

	wg := sync.WaitGroup{}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("main:0")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, 16, counter)
}
