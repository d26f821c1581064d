// Package coinselect picks unspent outputs to fund a payment plus its fee.
//
// The selection policy is deterministic: candidates are sorted by value
// descending (ties broken by txid then vout ascending) and input counts
// k = 1..n are tried in order, each time taking the k largest candidates.
// The first k whose total value covers target + fee(k inputs, change
// included) wins. Preferring fewer inputs minimizes transaction size and
// linkage; largest-first within a count avoids accumulating change dust.
// The fee is recomputed for every k against the actual selected set, so
// the returned fee is consistent with the returned inputs by construction.
package coinselect

import (
	"fmt"
	"sort"
)

// ScriptType identifies the script template of a coin for fee sizing.
type ScriptType int

const (
	P2PKH ScriptType = iota
	P2WPKH
)

// DustThreshold is the change value, in minor units, below which change
// is folded into the fee instead of creating an unspendable output.
const DustThreshold = 546

// Coin is an unspent output candidate for selection.
type Coin interface {
	TxID() string
	VOut() uint32
	Value() uint64
	ScriptType() ScriptType
	Spendable() bool
}

// SizeModel holds the virtual sizes used to price a selection.
type SizeModel struct {
	Overhead   int
	InputSize  map[ScriptType]int
	OutputSize int
}

// DefaultSizeModel returns vsizes for common script templates.
func DefaultSizeModel() SizeModel {
	return SizeModel{
		Overhead: 11,
		InputSize: map[ScriptType]int{
			P2PKH:  148,
			P2WPKH: 68,
		},
		OutputSize: 31,
	}
}

func (m SizeModel) fee(coins []Coin, numOutputs int, feeRate uint64) uint64 {
	size := m.Overhead + numOutputs*m.OutputSize
	for _, coin := range coins {
		inSize, ok := m.InputSize[coin.ScriptType()]
		if !ok {
			inSize = m.InputSize[P2WPKH]
		}
		size += inSize
	}
	return uint64(size) * feeRate
}

// Selection is the outcome of a successful coin selection.
type Selection struct {
	Coins  []Coin
	Change uint64
	Fee    uint64
}

// InsufficientFundsError is returned when no candidate subset can cover
// the target amount plus fees. MaxSpendable is the highest target, in
// minor units, that the same candidates could fund.
type InsufficientFundsError struct {
	MaxSpendable uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"insufficient funds: max spendable amount is %d", e.MaxSpendable,
	)
}

// SelectOpts is the struct given to the Select function.
type SelectOpts struct {
	Candidates   []Coin
	TargetAmount uint64
	FeeRate      uint64
	// MaxOutputs is the number of outputs the funded transaction will
	// carry, change included. Zero means 2 (payment + change).
	MaxOutputs int
	// SizeModel overrides DefaultSizeModel when non-nil.
	SizeModel *SizeModel
	// DustThreshold overrides the package default when non-zero.
	DustThreshold uint64
}

func (o SelectOpts) validate() error {
	if o.TargetAmount == 0 {
		return ErrNullTargetAmount
	}
	if o.FeeRate == 0 {
		return ErrNullFeeRate
	}
	return nil
}

func (o SelectOpts) sizeModel() SizeModel {
	if o.SizeModel != nil {
		return *o.SizeModel
	}
	return DefaultSizeModel()
}

func (o SelectOpts) maxOutputs() int {
	if o.MaxOutputs > 0 {
		return o.MaxOutputs
	}
	return 2
}

func (o SelectOpts) dustThreshold() uint64 {
	if o.DustThreshold > 0 {
		return o.DustThreshold
	}
	return DustThreshold
}

// Select picks the coins funding TargetAmount plus fees out of the
// spendable candidates. Same candidates and same target always yield
// the same selection.
func Select(opts SelectOpts) (*Selection, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	model := opts.sizeModel()
	candidates := sortedSpendable(opts.Candidates)

	totalValue := uint64(0)
	for k := 1; k <= len(candidates); k++ {
		totalValue += candidates[k-1].Value()

		selected := candidates[:k]
		fee := model.fee(selected, opts.maxOutputs(), opts.FeeRate)
		if totalValue < opts.TargetAmount+fee {
			continue
		}

		change := totalValue - opts.TargetAmount - fee
		if change < opts.dustThreshold() {
			fee += change
			change = 0
		}
		return &Selection{
			Coins:  append([]Coin{}, selected...),
			Change: change,
			Fee:    fee,
		}, nil
	}

	return nil, &InsufficientFundsError{
		MaxSpendable: maxSpendable(candidates, totalValue, model, opts.FeeRate),
	}
}

// maxSpendable is the whole spendable balance minus the fee of a
// sweep spending every candidate into a single output.
func maxSpendable(
	candidates []Coin, totalValue uint64, model SizeModel, feeRate uint64,
) uint64 {
	if len(candidates) <= 0 {
		return 0
	}
	fee := model.fee(candidates, 1, feeRate)
	if fee >= totalValue {
		return 0
	}
	return totalValue - fee
}

func sortedSpendable(candidates []Coin) []Coin {
	coins := make([]Coin, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Spendable() {
			coins = append(coins, candidate)
		}
	}
	sort.SliceStable(coins, func(i, j int) bool {
		if coins[i].Value() != coins[j].Value() {
			return coins[i].Value() > coins[j].Value()
		}
		if coins[i].TxID() != coins[j].TxID() {
			return coins[i].TxID() < coins[j].TxID()
		}
		return coins[i].VOut() < coins[j].VOut()
	})
	return coins
}
