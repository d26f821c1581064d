package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// ExtendedKeyOpts is the struct given to
// ExtendedPrivateKey and ExtendedPublicKey methods
type ExtendedKeyOpts struct {
	Scheme   Scheme
	CoinType uint32
	Account  uint32
}

func (o ExtendedKeyOpts) validate() error {
	if o.Account > MaxHardenedValue {
		return ErrOutOfRangeDerivationPathAccount
	}
	if _, err := o.Scheme.BasePath(o.CoinType); err != nil {
		return err
	}
	return nil
}

// ExtendedPrivateKey returns the extended private key in base58 format for
// the provided scheme and account index (m/purpose'/coin'/account')
func (w *Wallet) ExtendedPrivateKey(opts ExtendedKeyOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := w.validate(); err != nil {
		return "", err
	}

	xprv, err := w.deriveAccountKey(opts)
	if err != nil {
		return "", err
	}
	return xprv.String(), nil
}

// ExtendedPublicKey returns the extended public key in base58 format for the
// provided scheme and account index. This is the watch-only root the account
// exposes to indexers and metadata entries.
func (w *Wallet) ExtendedPublicKey(opts ExtendedKeyOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := w.validate(); err != nil {
		return "", err
	}

	xprv, err := w.deriveAccountKey(opts)
	if err != nil {
		return "", err
	}

	xpub, err := xprv.Neuter()
	if err != nil {
		return "", err
	}
	return xpub.String(), nil
}

func (w *Wallet) deriveAccountKey(
	opts ExtendedKeyOpts,
) (*hdkeychain.ExtendedKey, error) {
	basePath, err := opts.Scheme.BasePath(opts.CoinType)
	if err != nil {
		return nil, err
	}

	hdNode, err := hdkeychain.NewMaster(w.seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	for _, step := range basePath {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return nil, err
		}
	}
	return hdNode.Derive(hdkeychain.HardenedKeyStart + opts.Account)
}

// DeriveSigningKeyPairOpts is the struct given to DeriveSigningKeyPair method
type DeriveSigningKeyPairOpts struct {
	Scheme   Scheme
	CoinType uint32
	// DerivationPath is relative to the scheme's base path, in the form
	// "account'/chain/index".
	DerivationPath string
}

func (o DeriveSigningKeyPairOpts) validate() error {
	if _, err := o.Scheme.BasePath(o.CoinType); err != nil {
		return err
	}
	derivationPath, err := ParseDerivationPath(o.DerivationPath)
	if err != nil {
		return err
	}
	return checkDerivationPath(derivationPath)
}

// DeriveSigningKeyPair derives the key pair of the provided derivation path
func (w *Wallet) DeriveSigningKeyPair(opts DeriveSigningKeyPairOpts) (
	*btcec.PrivateKey,
	*btcec.PublicKey,
	error,
) {
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	if err := w.validate(); err != nil {
		return nil, nil, err
	}

	basePath, _ := opts.Scheme.BasePath(opts.CoinType)
	derivationPath, _ := ParseDerivationPath(opts.DerivationPath)
	fullPath := append(append(DerivationPath{}, basePath...), derivationPath...)

	hdNode, err := hdkeychain.NewMaster(w.seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, nil, err
	}
	for _, step := range fullPath {
		hdNode, err = hdNode.Derive(step)
		if err != nil {
			return nil, nil, err
		}
	}

	privateKey, err := hdNode.ECPrivKey()
	if err != nil {
		return nil, nil, err
	}
	publicKey, err := hdNode.ECPubKey()
	if err != nil {
		return nil, nil, err
	}

	return privateKey, publicKey, nil
}

// DeriveAddressOpts is the struct given to DeriveAddress method
type DeriveAddressOpts struct {
	Scheme   Scheme
	CoinType uint32
	// DerivationPath is relative to the scheme's base path, in the form
	// "account'/chain/index".
	DerivationPath string
	Network        *chaincfg.Params
}

func (o DeriveAddressOpts) validate() error {
	if _, err := o.Scheme.BasePath(o.CoinType); err != nil {
		return err
	}
	derivationPath, err := ParseDerivationPath(o.DerivationPath)
	if err != nil {
		return err
	}
	if err := checkDerivationPath(derivationPath); err != nil {
		return err
	}
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// DeriveAddress derives the signing pubkey of the given path and encodes it
// as the address format mandated by the scheme: P2PKH for legacy, P2WPKH for
// segwit.
func (w *Wallet) DeriveAddress(opts DeriveAddressOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if err := w.validate(); err != nil {
		return "", err
	}

	_, pubkey, err := w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{
		Scheme:         opts.Scheme,
		CoinType:       opts.CoinType,
		DerivationPath: opts.DerivationPath,
	})
	if err != nil {
		return "", err
	}

	pubkeyHash := btcutil.Hash160(pubkey.SerializeCompressed())
	switch opts.Scheme {
	case SchemeLegacy:
		addr, err := btcutil.NewAddressPubKeyHash(pubkeyHash, opts.Network)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	case SchemeSegwit:
		addr, err := btcutil.NewAddressWitnessPubKeyHash(pubkeyHash, opts.Network)
		if err != nil {
			return "", err
		}
		return addr.EncodeAddress(), nil
	default:
		return "", ErrUnknownScheme
	}
}
