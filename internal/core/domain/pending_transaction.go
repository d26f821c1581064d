package domain

import (
	"math/big"
)

// FeeLevel enumerates the fee tiers a transaction flow can pick from.
type FeeLevel int

const (
	FeeLevelRegular FeeLevel = iota
	FeeLevelPriority
	FeeLevelCustom
)

func (l FeeLevel) String() string {
	switch l {
	case FeeLevelRegular:
		return "regular"
	case FeeLevelPriority:
		return "priority"
	case FeeLevelCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// FeeSelection carries the fee tier chosen for a pending transaction along
// with the tiers the engine makes available.
type FeeSelection struct {
	SelectedLevel   FeeLevel
	AvailableLevels []FeeLevel
	// CustomAmount is set only when SelectedLevel is FeeLevelCustom.
	CustomAmount *big.Int
}

// HasAvailableLevel returns whether the engine advertised the given level.
func (f FeeSelection) HasAvailableLevel(level FeeLevel) bool {
	for _, available := range f.AvailableLevels {
		if available == level {
			return true
		}
	}
	return false
}

// ConfirmationKind identifies a user-facing confirmation line item. Items
// are replaced by kind, never duplicated.
type ConfirmationKind int

const (
	ConfirmationSource ConfirmationKind = iota
	ConfirmationDestination
	ConfirmationNetworkFee
	ConfirmationTotal
	ConfirmationFeeSelection
	ConfirmationExchangeRate
	ConfirmationMemo
	ConfirmationNetwork
	ConfirmationMessage
	ConfirmationNotice
)

// Confirmation is one user-facing line item of the confirmation screen.
type Confirmation struct {
	Kind  ConfirmationKind
	Label string
	Value string
}

// TransactionValidationState is the closed set of outcomes of validating a
// pending transaction.
type TransactionValidationState int

const (
	ValidationUninitialized TransactionValidationState = iota
	ValidationCanExecute
	ValidationBelowMinimumLimit
	ValidationInsufficientFunds
	ValidationInsufficientGas
	ValidationInvalidAddress
	ValidationBelowDust
	ValidationUnsupportedTarget
	ValidationInvalidMessage
	ValidationOptionInvalid
)

func (s TransactionValidationState) String() string {
	switch s {
	case ValidationUninitialized:
		return "uninitialized"
	case ValidationCanExecute:
		return "can execute"
	case ValidationBelowMinimumLimit:
		return "below minimum limit"
	case ValidationInsufficientFunds:
		return "insufficient funds"
	case ValidationInsufficientGas:
		return "insufficient gas"
	case ValidationInvalidAddress:
		return "invalid address"
	case ValidationBelowDust:
		return "below dust"
	case ValidationUnsupportedTarget:
		return "unsupported target"
	case ValidationInvalidMessage:
		return "invalid message"
	case ValidationOptionInvalid:
		return "option invalid"
	default:
		return "unknown"
	}
}

// TransactionLimits bounds the amount of a pending transaction.
type TransactionLimits struct {
	Minimum *big.Int
	Maximum *big.Int
}

// PendingTransaction is the mutable value object threaded through a
// transaction flow. Each flow owns exactly one instance, it is never
// shared between concurrent flows.
type PendingTransaction struct {
	Amount              *big.Int
	Available           *big.Int
	FeeAmount           *big.Int
	FeeForFullAvailable *big.Int
	FeeSelection        FeeSelection
	Confirmations       []Confirmation
	ValidationState     TransactionValidationState
	Limits              TransactionLimits
}

// NewPendingTransaction returns a fresh pending transaction with zero
// amount and balances and the given default fee selection.
func NewPendingTransaction(feeSelection FeeSelection) *PendingTransaction {
	return &PendingTransaction{
		Amount:              big.NewInt(0),
		Available:           big.NewInt(0),
		FeeAmount:           big.NewInt(0),
		FeeForFullAvailable: big.NewInt(0),
		FeeSelection:        feeSelection,
		ValidationState:     ValidationUninitialized,
	}
}

// UpdateAmount revises the user-entered amount and resets the validation
// state, a revised transaction must be validated again.
func (p *PendingTransaction) UpdateAmount(amount *big.Int) {
	p.Amount = new(big.Int).Set(amount)
	p.ValidationState = ValidationUninitialized
}

// UpdateFee revises the fee for the current amount and the fee a
// full-available spend would pay.
func (p *PendingTransaction) UpdateFee(feeAmount, feeForFullAvailable *big.Int) {
	p.FeeAmount = new(big.Int).Set(feeAmount)
	p.FeeForFullAvailable = new(big.Int).Set(feeForFullAvailable)
}

// SetAvailable revises the spendable balance backing the flow.
func (p *PendingTransaction) SetAvailable(available *big.Int) {
	p.Available = new(big.Int).Set(available)
}

// SetConfirmations replaces the whole confirmation list.
func (p *PendingTransaction) SetConfirmations(confirmations []Confirmation) {
	p.Confirmations = confirmations
}

// InsertConfirmation adds the line item, replacing any existing one of the
// same kind in place.
func (p *PendingTransaction) InsertConfirmation(confirmation Confirmation) {
	for i := range p.Confirmations {
		if p.Confirmations[i].Kind == confirmation.Kind {
			p.Confirmations[i] = confirmation
			return
		}
	}
	p.Confirmations = append(p.Confirmations, confirmation)
}

// ConfirmationFor returns the line item of the given kind, nil if absent.
func (p *PendingTransaction) ConfirmationFor(kind ConfirmationKind) *Confirmation {
	for i := range p.Confirmations {
		if p.Confirmations[i].Kind == kind {
			return &p.Confirmations[i]
		}
	}
	return nil
}

// HasFeeLevelChanged returns whether selecting the given level and custom
// amount would modify the current fee selection.
func (p *PendingTransaction) HasFeeLevelChanged(
	level FeeLevel, customAmount *big.Int,
) bool {
	if p.FeeSelection.SelectedLevel != level {
		return true
	}
	if level != FeeLevelCustom {
		return false
	}
	if p.FeeSelection.CustomAmount == nil || customAmount == nil {
		return p.FeeSelection.CustomAmount != nil || customAmount != nil
	}
	return p.FeeSelection.CustomAmount.Cmp(customAmount) != 0
}

// SetFeeLevel revises the fee selection and resets the validation state.
// A custom level without an amount keeps CustomAmount nil, validation
// reports it instead of the setter.
func (p *PendingTransaction) SetFeeLevel(level FeeLevel, customAmount *big.Int) {
	p.FeeSelection.SelectedLevel = level
	p.FeeSelection.CustomAmount = nil
	if level == FeeLevelCustom && customAmount != nil {
		p.FeeSelection.CustomAmount = new(big.Int).Set(customAmount)
	}
	p.ValidationState = ValidationUninitialized
}

// MaxSpendable is the available balance minus the fee of a full-available
// spend, floored at zero.
func (p *PendingTransaction) MaxSpendable() *big.Int {
	max := new(big.Int).Sub(p.Available, p.FeeForFullAvailable)
	if max.Sign() < 0 {
		return big.NewInt(0)
	}
	return max
}

// Total is the amount plus the fee.
func (p *PendingTransaction) Total() *big.Int {
	return new(big.Int).Add(p.Amount, p.FeeAmount)
}

// CanExecute returns whether the last full validation passed.
func (p *PendingTransaction) CanExecute() bool {
	return p.ValidationState == ValidationCanExecute
}

// TransactionResult is the outcome of executing a flow: either a raw
// signed transaction for sign-only flows, or the hash and amount of a
// broadcast one.
type TransactionResult struct {
	RawTx  string
	TxHash string
	Amount *big.Int
}

// SignedResult wraps a sign-only outcome.
func SignedResult(rawTx string) *TransactionResult {
	return &TransactionResult{RawTx: rawTx}
}

// HashedResult wraps a broadcast outcome.
func HashedResult(txHash string, amount *big.Int) *TransactionResult {
	return &TransactionResult{
		TxHash: txHash,
		Amount: new(big.Int).Set(amount),
	}
}

// IsSigned returns whether the result is a sign-only one.
func (r *TransactionResult) IsSigned() bool {
	return len(r.RawTx) > 0
}
