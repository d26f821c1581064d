package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var (
	// ErrSLIP10HardenedOnly ...
	ErrSLIP10HardenedOnly = errors.New(
		"ed25519 derivation supports hardened indexes only",
	)

	slip10Key = []byte("ed25519 seed")
)

// stellarCoinType is the SLIP44 coin type for Stellar Lumens.
const stellarCoinType uint32 = 148

// DeriveSLIP10Ed25519KeyOpts is the struct given to DeriveSLIP10Ed25519Key
// method
type DeriveSLIP10Ed25519KeyOpts struct {
	Account uint32
}

func (o DeriveSLIP10Ed25519KeyOpts) validate() error {
	if o.Account > MaxHardenedValue {
		return ErrOutOfRangeDerivationPathAccount
	}
	return nil
}

// DeriveSLIP10Ed25519Key derives the ed25519 private key for the Stellar
// account path m/44'/148'/account' following SLIP-0010. The derivation is
// fully hardened and, like its secp256k1 counterpart, a pure function of the
// wallet seed.
func (w *Wallet) DeriveSLIP10Ed25519Key(
	opts DeriveSLIP10Ed25519KeyOpts,
) (ed25519.PrivateKey, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	key, chainCode := slip10MasterKey(w.seed)
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + stellarCoinType,
		hdkeychain.HardenedKeyStart + opts.Account,
	}
	for _, index := range path {
		key, chainCode = slip10ChildKey(key, chainCode, index)
	}

	return ed25519.NewKeyFromSeed(key), nil
}

func slip10MasterKey(seed []byte) ([]byte, []byte) {
	mac := hmac.New(sha512.New, slip10Key)
	mac.Write(seed)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}

func slip10ChildKey(key, chainCode []byte, index uint32) ([]byte, []byte) {
	// hardened derivation: 0x00 || key || ser32(index)
	data := make([]byte, 0, 1+32+4)
	data = append(data, 0x00)
	data = append(data, key...)
	data = binary.BigEndian.AppendUint32(data, index)

	mac := hmac.New(sha512.New, chainCode)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}
