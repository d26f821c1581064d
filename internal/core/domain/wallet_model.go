package domain

import (
	"github.com/veridian-wallet/walletcore/pkg/wallet"
)

// DerivationType is the closed set of address/key format variants an
// account derives for UTXO chains.
type DerivationType int

const (
	// DerivationLegacy is BIP44 P2PKH derivation.
	DerivationLegacy DerivationType = iota
	// DerivationSegwit is BIP84 P2WPKH derivation.
	DerivationSegwit
)

// AllDerivationTypes lists the types every account must cover. An account
// missing any of them needs replenishment.
var AllDerivationTypes = []DerivationType{DerivationLegacy, DerivationSegwit}

func (t DerivationType) String() string {
	switch t {
	case DerivationLegacy:
		return "legacy"
	case DerivationSegwit:
		return "segwit"
	default:
		return "unknown"
	}
}

// Scheme maps the derivation type to its derivation engine scheme.
func (t DerivationType) Scheme() (wallet.Scheme, error) {
	switch t {
	case DerivationLegacy:
		return wallet.SchemeLegacy, nil
	case DerivationSegwit:
		return wallet.SchemeSegwit, nil
	default:
		return 0, wallet.ErrUnknownScheme
	}
}

// Derivation holds the public key material of one (account, scheme) pair.
// It is never regenerated with different key material for the same seed,
// account index and type.
type Derivation struct {
	Type              DerivationType
	ExtendedPublicKey string
	Address           string
	// AddressCache maps receive indexes to derived addresses so repeated
	// lookups skip the derivation engine.
	AddressCache map[uint32]string
}

// Account is a derived account of the HD wallet.
type Account struct {
	Index             uint32
	Label             string
	Archived          bool
	DefaultDerivation DerivationType
	Derivations       []Derivation
}

// HDWallet is the in-memory representation of the hierarchical
// deterministic wallet: its seed and the accounts derived from it.
type HDWallet struct {
	SeedHex             string
	Passphrase          string
	MnemonicVerified    bool
	DefaultAccountIndex uint32
	Accounts            []*Account
}
