package stellar

import (
	"crypto/ed25519"
	"errors"
)

// ErrInvalidSignature ...
var ErrInvalidSignature = errors.New("invalid signature")

// KeyPair wraps an ed25519 key pair with strkey accessors.
type KeyPair struct {
	seed       []byte
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// KeyPairFromRawSeed builds a full key pair from a 32-byte ed25519 seed.
func KeyPairFromRawSeed(rawSeed []byte) (*KeyPair, error) {
	if len(rawSeed) != rawKeySize {
		return nil, ErrInvalidRawKeySize
	}

	seed := make([]byte, rawKeySize)
	copy(seed, rawSeed)
	privateKey := ed25519.NewKeyFromSeed(seed)

	return &KeyPair{
		seed:       seed,
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}, nil
}

// KeyPairFromSeed builds a key pair from a S... secret string.
func KeyPairFromSeed(seed string) (*KeyPair, error) {
	rawSeed, err := DecodeSeed(seed)
	if err != nil {
		return nil, err
	}
	return KeyPairFromRawSeed(rawSeed)
}

// Address returns the G... account id of the pair.
func (k *KeyPair) Address() string {
	address, _ := EncodeAccountID(k.publicKey)
	return address
}

// Seed returns the S... secret string of the pair.
func (k *KeyPair) Seed() string {
	seed, _ := EncodeSeed(k.seed)
	return seed
}

// Sign signs the given payload with the pair's private key.
func (k *KeyPair) Sign(payload []byte) []byte {
	return ed25519.Sign(k.privateKey, payload)
}

// Verify checks the signature of the payload against the pair's
// public key.
func (k *KeyPair) Verify(payload, signature []byte) error {
	if !ed25519.Verify(k.publicKey, payload, signature) {
		return ErrInvalidSignature
	}
	return nil
}
