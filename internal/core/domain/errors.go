package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletNotInitialized is thrown when trying to operate before a wallet
	// has been created or imported.
	ErrWalletNotInitialized = errors.New("wallet must be initialized to perform this operation")
	// ErrInvalidSeed ...
	ErrInvalidSeed = errors.New("seed is not valid")
	// ErrAccountNotFound ...
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountIndexMismatch ...
	ErrAccountIndexMismatch = errors.New("account index out of sequence")
	// ErrDerivationNotFound ...
	ErrDerivationNotFound = errors.New("derivation not found for the given type")
	// ErrDerivationMismatch is thrown when replenishment would overwrite an
	// existing derivation with different key material.
	ErrDerivationMismatch = errors.New("derivation key material mismatch")
	// ErrUnspentAlreadyLocked ...
	ErrUnspentAlreadyLocked = errors.New("unspent is already locked by another flow")
	// ErrEntryNotFound is thrown when the metadata store holds no entry for
	// the requested kind. Callers synthesize a default entry on this signal.
	ErrEntryNotFound = errors.New("metadata entry not found")
	// ErrBroadcastRejected means the network refused the transaction. The
	// attempt is over, retrying with the same payload is pointless.
	ErrBroadcastRejected = errors.New("transaction rejected by the network")
	// ErrBroadcastAmbiguous means the broadcast outcome is unknown, typically
	// after a timeout. The transaction must not be resubmitted without first
	// checking whether it was already accepted.
	ErrBroadcastAmbiguous = errors.New("broadcast outcome unknown")
)

// WalletCreateError wraps failures of wallet creation or import, typically
// a malformed mnemonic or seed.
type WalletCreateError struct {
	Err error
}

func (e *WalletCreateError) Error() string {
	return fmt.Sprintf("failed to create wallet: %s", e.Err)
}

func (e *WalletCreateError) Unwrap() error { return e.Err }

// FetchFailureReason qualifies a metadata fetch or save failure.
type FetchFailureReason int

const (
	// ReasonNotInitialized means no wallet is loaded, the caller must load
	// one first. Not retryable.
	ReasonNotInitialized FetchFailureReason = iota
	// ReasonFetchFailed covers network and decoding failures. Retryable.
	ReasonFetchFailed
	// ReasonSaveFailed covers write failures. Retryable with backoff, the
	// data to save must not be dropped.
	ReasonSaveFailed
)

func (r FetchFailureReason) String() string {
	switch r {
	case ReasonNotInitialized:
		return "not initialized"
	case ReasonFetchFailed:
		return "fetch failed"
	case ReasonSaveFailed:
		return "save failed"
	default:
		return "unknown"
	}
}

// WalletAssetFetchError is returned by metadata entry reads.
type WalletAssetFetchError struct {
	Kind   EntryKind
	Reason FetchFailureReason
	Err    error
}

func (e *WalletAssetFetchError) Error() string {
	return fmt.Sprintf(
		"failed to fetch entry %d (%s): %s", e.Kind, e.Reason, e.Err,
	)
}

func (e *WalletAssetFetchError) Unwrap() error { return e.Err }

// WalletAssetSaveError is returned by metadata entry writes.
type WalletAssetSaveError struct {
	Kind   EntryKind
	Reason FetchFailureReason
	Err    error
}

func (e *WalletAssetSaveError) Error() string {
	return fmt.Sprintf(
		"failed to save entry %d (%s): %s", e.Kind, e.Reason, e.Err,
	)
}

func (e *WalletAssetSaveError) Unwrap() error { return e.Err }

// TransactionValidationError carries the precise validation state that made
// a pending transaction invalid, so callers can render the specific reason.
type TransactionValidationError struct {
	State TransactionValidationState
}

func (e *TransactionValidationError) Error() string {
	return fmt.Sprintf("transaction validation failed: %s", e.State)
}
