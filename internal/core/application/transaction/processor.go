package transaction

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
)

type flowState int

const (
	flowStateIdle flowState = iota
	flowStateInitialized
	flowStateConfirmationsBuilt
	flowStateExecuted
	flowStateStopped
)

// ProcessorOpts holds everything needed to create a Processor.
type ProcessorOpts struct {
	Engine     Engine
	Source     interface{}
	Target     interface{}
	RefreshFn  RefreshFunc
	Analytics  ports.AnalyticsRecorder
	AccountKey string
	Locker     *AccountLocker
}

func (o ProcessorOpts) validate() error {
	if o.Engine == nil {
		return ErrNullEngine
	}
	return nil
}

// Processor owns a single transaction flow and drives its engine through
// the lifecycle. It serializes all calls, enforces the state discipline
// and records analytics events on the flow outcome. Callers interact
// only with the Processor, never with the engine directly.
type Processor struct {
	engine     Engine
	analytics  ports.AnalyticsRecorder
	locker     *AccountLocker
	accountKey string

	mtx   sync.Mutex
	ptx   *domain.PendingTransaction
	state flowState
}

// NewProcessor returns a Processor bound to the given engine, source and
// target. The engine asserts the binding before anything else runs.
func NewProcessor(opts ProcessorOpts) (*Processor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if err := opts.Engine.Start(
		opts.Source, opts.Target, opts.RefreshFn,
	); err != nil {
		return nil, err
	}
	opts.Engine.AssertInputsValid()

	analytics := opts.Analytics
	if analytics == nil {
		analytics = ports.NoopAnalyticsRecorder()
	}

	return &Processor{
		engine:     opts.Engine,
		analytics:  analytics,
		locker:     opts.Locker,
		accountKey: opts.AccountKey,
	}, nil
}

// PendingTransaction returns the current snapshot of the flow.
func (p *Processor) PendingTransaction() *domain.PendingTransaction {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.ptx
}

// Initialize creates the pending transaction and builds its confirmation
// line items.
func (p *Processor) Initialize(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.assertNotFinished(); err != nil {
		return nil, err
	}

	ptx, err := p.engine.InitializeTransaction(ctx)
	if err != nil {
		return nil, err
	}
	p.ptx = ptx
	p.state = flowStateInitialized

	ptx, err = p.engine.DoBuildConfirmations(ctx, p.ptx)
	if err != nil {
		return nil, err
	}
	p.ptx = ptx
	p.state = flowStateConfirmationsBuilt

	return p.ptx, nil
}

// UpdateAmount sets a new amount on the flow and recomputes fees and
// confirmations accordingly. Validation state is reset until the next
// Validate call.
func (p *Processor) UpdateAmount(
	ctx context.Context, amount *big.Int,
) (*domain.PendingTransaction, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.assertUpdatable(); err != nil {
		return nil, err
	}

	ptx, err := p.engine.Update(ctx, amount, p.ptx)
	if err != nil {
		return nil, err
	}
	p.ptx = ptx
	return p.ptx, nil
}

// UpdateFeeLevel switches the flow to the given fee level, recomputing
// fees when the level actually changed.
func (p *Processor) UpdateFeeLevel(
	ctx context.Context, level domain.FeeLevel, customAmount *big.Int,
) (*domain.PendingTransaction, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.assertUpdatable(); err != nil {
		return nil, err
	}

	ptx, err := p.engine.DoUpdateFeeLevel(ctx, p.ptx, level, customAmount)
	if err != nil {
		return nil, err
	}
	p.ptx = ptx
	return p.ptx, nil
}

// ValidateAmount runs the amount checks only.
func (p *Processor) ValidateAmount(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.assertUpdatable(); err != nil {
		return nil, err
	}

	ptx, err := p.engine.ValidateAmount(ctx, p.ptx)
	if err != nil {
		return nil, err
	}
	p.ptx = ptx
	return p.ptx, nil
}

// ValidateAll runs every check of the engine. The flow becomes
// executable only when the resulting validation state allows it.
func (p *Processor) ValidateAll(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.assertUpdatable(); err != nil {
		return nil, err
	}

	ptx, err := p.engine.DoValidateAll(ctx, p.ptx)
	if err != nil {
		return nil, err
	}
	p.ptx = ptx
	return p.ptx, nil
}

// RefreshConfirmations rebuilds the time-sensitive confirmation line
// items, fee quotes and rates, without touching the amount.
func (p *Processor) RefreshConfirmations(
	ctx context.Context,
) (*domain.PendingTransaction, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.assertUpdatable(); err != nil {
		return nil, err
	}

	ptx, err := p.engine.DoRefreshConfirmations(ctx, p.ptx)
	if err != nil {
		return nil, err
	}
	p.ptx = ptx
	return p.ptx, nil
}

// Execute runs the flow to completion. Calling it before ValidateAll
// reported the flow as executable is a programmer error and panics, the
// caller UI must never offer execution on an invalid flow.
func (p *Processor) Execute(
	ctx context.Context,
) (*domain.TransactionResult, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.assertUpdatable(); err != nil {
		return nil, err
	}
	if p.ptx == nil || !p.ptx.CanExecute() {
		panic(fmt.Sprintf(
			"execute called on a non-executable flow (validation state %s)",
			p.ptx.ValidationState,
		))
	}

	if p.locker != nil {
		unlock := p.locker.Lock(p.accountKey)
		defer unlock()
	}

	res, err := p.engine.Execute(ctx, p.ptx)
	if err != nil {
		p.analytics.RecordEvent(
			"transaction_failed", map[string]interface{}{"account": p.accountKey},
		)
		return nil, err
	}
	p.state = flowStateExecuted

	p.analytics.RecordEvent(
		"transaction_executed", map[string]interface{}{"account": p.accountKey},
	)
	return res, nil
}

// Stop abandons the flow, releasing any resource the engine holds. It is
// a no-op on an already executed or stopped flow.
func (p *Processor) Stop(ctx context.Context) error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.state == flowStateExecuted || p.state == flowStateStopped {
		return nil
	}

	if err := p.engine.Stop(ctx, p.ptx); err != nil {
		log.WithError(err).Warn("failed to cleanly stop transaction flow")
		return err
	}
	p.state = flowStateStopped

	p.analytics.RecordEvent(
		"transaction_abandoned", map[string]interface{}{"account": p.accountKey},
	)
	return nil
}

func (p *Processor) assertNotFinished() error {
	switch p.state {
	case flowStateExecuted:
		return ErrFlowAlreadyExecuted
	case flowStateStopped:
		return ErrFlowStopped
	}
	return nil
}

func (p *Processor) assertUpdatable() error {
	if err := p.assertNotFinished(); err != nil {
		return err
	}
	if p.state == flowStateIdle {
		return ErrFlowNotInitialized
	}
	return nil
}
