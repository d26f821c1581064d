package domain

import (
	"github.com/google/uuid"
)

// UnspentKey represents the ID of an UnspentOutput, composed by its txid
// and vout.
type UnspentKey struct {
	TxID string
	VOut uint32
}

// UnspentOutput is the data structure representing a UTXO with some other
// information like whether it is spent/unspent, confirmed/unconfirmed or
// locked/unlocked by an in-flight transaction flow.
type UnspentOutput struct {
	TxID           string
	VOut           uint32
	Value          uint64
	Address        string
	Script         []byte
	DerivationPath string
	Confirmed      bool
	Spent          bool
	Locked         bool
	LockedBy       *uuid.UUID
}
