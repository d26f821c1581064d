package dbbadger

import "errors"

var (
	// ErrUnspentNotFound ...
	ErrUnspentNotFound = errors.New("unspent not found")
	// ErrWalletAlreadyExists ...
	ErrWalletAlreadyExists = errors.New("wallet already initialized")
)
