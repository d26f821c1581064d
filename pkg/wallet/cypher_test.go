package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	plaintext := "super secret seed material"
	passphrase := "correct horse battery staple"

	cypherText, err := Encrypt(EncryptOpts{
		PlainText:  plaintext,
		Passphrase: passphrase,
	})
	require.NoError(t, err)
	require.NotEmpty(t, cypherText)

	decrypted, err := Decrypt(DecryptOpts{
		CypherText: cypherText,
		Passphrase: passphrase,
	})
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestFailingDecrypt(t *testing.T) {
	cypherText, err := Encrypt(EncryptOpts{
		PlainText:  "payload",
		Passphrase: "pass",
	})
	require.NoError(t, err)

	_, err = Decrypt(DecryptOpts{
		CypherText: cypherText,
		Passphrase: "wrong pass",
	})
	require.Error(t, err)

	// valid base64 but too short to carry nonce, payload and salt
	_, err = Decrypt(DecryptOpts{
		CypherText: "dG9vIHNob3J0",
		Passphrase: "pass",
	})
	require.EqualError(t, err, ErrInvalidCypherText.Error())
}

func TestFailingEncrypt(t *testing.T) {
	tests := []struct {
		name string
		opts EncryptOpts
		err  error
	}{
		{"null_plaintext", EncryptOpts{Passphrase: "pass"}, ErrNullPlainText},
		{"null_passphrase", EncryptOpts{PlainText: "text"}, ErrNullPassphrase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encrypt(tt.opts)
			require.EqualError(t, err, tt.err.Error())
		})
	}
}
