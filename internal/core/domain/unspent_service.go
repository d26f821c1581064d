package domain

import (
	"github.com/google/uuid"
)

// IsKeyEqual returns whether the provided UnspentKey matches that of the
// current unspent.
func (u *UnspentOutput) IsKeyEqual(key UnspentKey) bool {
	return u.TxID == key.TxID && u.VOut == key.VOut
}

// IsSpent returns whether the unspent is already spent.
func (u *UnspentOutput) IsSpent() bool {
	return u.Spent
}

// IsConfirmed returns whether the unspent is already confirmed.
func (u *UnspentOutput) IsConfirmed() bool {
	return u.Confirmed
}

// IsLocked returns whether the unspent is locked by some in-flight flow.
func (u *UnspentOutput) IsLocked() bool {
	return u.Locked
}

// Spendable returns whether the unspent may fund a new transaction.
func (u *UnspentOutput) Spendable() bool {
	return !u.Spent && !u.Locked
}

// Key returns the UnspentKey of the current unspent.
func (u *UnspentOutput) Key() UnspentKey {
	return UnspentKey{
		TxID: u.TxID,
		VOut: u.VOut,
	}
}

// Spend marks the unspent as spent.
func (u *UnspentOutput) Spend() {
	u.Spent = true
}

// Confirm marks the unspent as confirmed.
func (u *UnspentOutput) Confirm() {
	u.Confirmed = true
}

// Lock marks the current unspent as locked, referring to the flow that
// owns it by its UUID. Locking twice from the same flow is a no-op.
func (u *UnspentOutput) Lock(flowID *uuid.UUID) error {
	if u.IsLocked() {
		if flowID.String() != u.LockedBy.String() {
			return ErrUnspentAlreadyLocked
		}
		return nil
	}

	u.Locked = true
	u.LockedBy = flowID
	return nil
}

// Unlock marks the current locked unspent as unlocked.
func (u *UnspentOutput) Unlock() {
	u.Locked = false
	u.LockedBy = nil
}
