package wallet

import (
	"encoding/hex"
	"errors"
)

var (
	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params are null")
	// ErrNullMnemonic ...
	ErrNullMnemonic = errors.New("mnemonic is null")
	// ErrNullSeed ...
	ErrNullSeed = errors.New("seed is null")
	// ErrNullPassphrase ...
	ErrNullPassphrase = errors.New("passphrase must not be null")
	// ErrNullPlainText ...
	ErrNullPlainText = errors.New("text to encrypt must not be null")
	// ErrNullCypherText ...
	ErrNullCypherText = errors.New("cypher to decrypt must not be null")
	// ErrNullDerivationPath ...
	ErrNullDerivationPath = errors.New("derivation path must not be null")
	// ErrNullTransaction ...
	ErrNullTransaction = errors.New("transaction must not be null")

	// ErrInvalidMnemonic ...
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
	// ErrInvalidSeed ...
	ErrInvalidSeed = errors.New("seed must be a valid hex encoded byte sequence")
	// ErrInvalidEntropySize ...
	ErrInvalidEntropySize = errors.New(
		"entropy size must be a multiple of 32 in the range [128,256]",
	)
	// ErrInvalidWordCount ...
	ErrInvalidWordCount = errors.New(
		"mnemonic length must be one of 12, 15, 18, 21 or 24 words",
	)
	// ErrInvalidCypherText ...
	ErrInvalidCypherText = errors.New("cypher must be in base64 format")
	// ErrInvalidDerivationPath ...
	ErrInvalidDerivationPath = errors.New("invalid derivation path")
	// ErrInvalidDerivationPathLength ...
	ErrInvalidDerivationPathLength = errors.New(
		"derivation path must be a relative path in the form \"account'/chain/index\"",
	)
	// ErrInvalidDerivationPathAccount ...
	ErrInvalidDerivationPathAccount = errors.New(
		"derivation path's account (first elem) must be hardened (suffix \"'\")",
	)
	// ErrOutOfRangeDerivationPathAccount ...
	ErrOutOfRangeDerivationPathAccount = errors.New(
		"account index must be in hardened range [0, 2^31-1]",
	)
	// ErrUnknownScheme ...
	ErrUnknownScheme = errors.New("unknown derivation scheme")
	// ErrMalformedDerivationPath ...
	ErrMalformedDerivationPath = errors.New(
		"path must not start or end with a '/' and " +
			"can optionally start with 'm/' for absolute paths",
	)

	// ErrEmptyDerivationPaths ...
	ErrEmptyDerivationPaths = errors.New("derivation path list must not be empty")
	// ErrEmptyInputs ...
	ErrEmptyInputs = errors.New("input list must not be empty")
	// ErrMissingPrevOut ...
	ErrMissingPrevOut = errors.New("previous output is missing for input")
	// ErrUnsupportedInputScript ...
	ErrUnsupportedInputScript = errors.New(
		"input script must be either P2PKH or P2WPKH",
	)
)

// Wallet is the hierarchical deterministic key tree of the wallet core. It is
// created from a BIP39 mnemonic (plus optional passphrase) or restored from
// the raw seed, and derives signing key pairs, extended public keys and
// receive addresses for every supported derivation scheme.
// Every derivation is a pure function of (seed, scheme, path): identical
// inputs always yield identical key material.
type Wallet struct {
	mnemonic   []string
	passphrase string
	seed       []byte
}

// NewWalletOpts is the struct given to the NewWallet method
type NewWalletOpts struct {
	EntropySize int
}

func (o NewWalletOpts) validate() error {
	if o.EntropySize < 128 || o.EntropySize > 256 || o.EntropySize%32 != 0 {
		return ErrInvalidEntropySize
	}
	return nil
}

// NewWallet creates a new wallet with a freshly generated mnemonic
func NewWallet(opts NewWalletOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	mnemonic, err := generateMnemonic(opts.EntropySize)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		mnemonic: mnemonic,
		seed:     generateSeedFromMnemonic(mnemonic, ""),
	}, nil
}

// NewWalletFromMnemonicOpts is the struct given to the NewWalletFromMnemonic
// method
type NewWalletFromMnemonicOpts struct {
	Mnemonic   []string
	Passphrase string
}

func (o NewWalletFromMnemonicOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return ErrNullMnemonic
	}
	if !isMnemonicValid(o.Mnemonic) {
		return ErrInvalidMnemonic
	}
	return nil
}

// NewWalletFromMnemonic generates the wallet seed from the provided mnemonic
// and optional BIP39 passphrase
func NewWalletFromMnemonic(opts NewWalletFromMnemonicOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &Wallet{
		mnemonic:   opts.Mnemonic,
		passphrase: opts.Passphrase,
		seed:       generateSeedFromMnemonic(opts.Mnemonic, opts.Passphrase),
	}, nil
}

// NewWalletFromSeedHexOpts is the struct given to the NewWalletFromSeedHex
// method
type NewWalletFromSeedHexOpts struct {
	SeedHex string
}

func (o NewWalletFromSeedHexOpts) validate() error {
	if len(o.SeedHex) <= 0 {
		return ErrNullSeed
	}
	if _, err := hex.DecodeString(o.SeedHex); err != nil {
		return ErrInvalidSeed
	}
	return nil
}

// NewWalletFromSeedHex restores a wallet from the hex encoded seed persisted
// in the wallet payload. The mnemonic is not recoverable from the seed.
func NewWalletFromSeedHex(opts NewWalletFromSeedHexOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	seed, _ := hex.DecodeString(opts.SeedHex)
	return &Wallet{seed: seed}, nil
}

func (w *Wallet) validate() error {
	if len(w.seed) <= 0 {
		return ErrNullSeed
	}
	if len(w.mnemonic) > 0 {
		if !isMnemonicValid(w.mnemonic) {
			return ErrInvalidMnemonic
		}
	}
	return nil
}

// Mnemonic is getter for the wallet's mnemonic
func (w *Wallet) Mnemonic() ([]string, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if len(w.mnemonic) <= 0 {
		return nil, ErrNullMnemonic
	}
	return w.mnemonic, nil
}

// SeedHex returns the wallet's seed in hex format. It is the only wallet
// secret that gets persisted (encrypted) in the wallet payload.
func (w *Wallet) SeedHex() (string, error) {
	if err := w.validate(); err != nil {
		return "", err
	}
	return hex.EncodeToString(w.seed), nil
}
