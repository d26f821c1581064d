package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/scrypt"
)

// 2^15 keeps unlocking snappy on mobile-grade hardware while staying
// within the scrypt authors' interactive-login recommendation.
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1

	keySize  = 32
	saltSize = 32
)

// EncryptOpts is the struct given to the Encrypt method.
type EncryptOpts struct {
	PlainText  string
	Passphrase string
}

func (o EncryptOpts) validate() error {
	if len(o.PlainText) <= 0 {
		return ErrNullPlainText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Encrypt seals the plaintext with AES-GCM under a key stretched from the
// passphrase. The random nonce and scrypt salt travel with the cyphertext,
// which is returned in base64 format.
func Encrypt(opts EncryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	gcm, err := newGCM([]byte(opts.Passphrase), salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	// layout: nonce || sealed payload || salt
	data := gcm.Seal(nonce, nonce, []byte(opts.PlainText), nil)
	data = append(data, salt...)

	return base64.StdEncoding.EncodeToString(data), nil
}

// DecryptOpts is the struct given to the Decrypt method.
type DecryptOpts struct {
	CypherText string
	Passphrase string
}

func (o DecryptOpts) validate() error {
	if len(o.CypherText) <= 0 {
		return ErrNullCypherText
	}
	if _, err := base64.StdEncoding.DecodeString(o.CypherText); err != nil {
		return ErrInvalidCypherText
	}
	if len(o.Passphrase) <= 0 {
		return ErrNullPassphrase
	}
	return nil
}

// Decrypt opens a cyphertext produced by Encrypt with the same passphrase.
func Decrypt(opts DecryptOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	data, _ := base64.StdEncoding.DecodeString(opts.CypherText)
	if len(data) <= saltSize {
		return "", ErrInvalidCypherText
	}
	data, salt := data[:len(data)-saltSize], data[len(data)-saltSize:]

	gcm, err := newGCM([]byte(opts.Passphrase), salt)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", ErrInvalidCypherText
	}

	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func newGCM(passphrase, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blockCipher)
}
