package coinselect

import "errors"

var (
	// ErrNullTargetAmount ...
	ErrNullTargetAmount = errors.New("target amount must not be zero")
	// ErrNullFeeRate ...
	ErrNullFeeRate = errors.New("fee rate must not be zero")
)
