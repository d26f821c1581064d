package wallet

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// Vector 1 from SLIP-0010 (ed25519, seed 000102030405060708090a0b0c0d0e0f).
func TestSLIP10MasterKey(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	key, chainCode := slip10MasterKey(seed)
	require.Equal(
		t,
		"2b4be7f19ee27bbf30c667b642d5f4aa69fd169872f8fc3059c08ebae2eb19e7",
		hex.EncodeToString(key),
	)
	require.Equal(
		t,
		"90046a93de5380a72b5e45010748567d5ea02bbf6522f979e05c0d8d8ca9fffb",
		hex.EncodeToString(chainCode),
	)

	childKey, _ := slip10ChildKey(key, chainCode, hardened(0))
	require.Equal(
		t,
		"68e0fe46dfb67e368c75379acec591dad19df3cde26e63b93a8e704f1dade7a3",
		hex.EncodeToString(childKey),
	)
}

func TestDeriveSLIP10Ed25519Key(t *testing.T) {
	w := newTestWallet(t)

	key, err := w.DeriveSLIP10Ed25519Key(DeriveSLIP10Ed25519KeyOpts{Account: 0})
	require.NoError(t, err)
	require.Len(t, key.Seed(), 32)

	again, err := w.DeriveSLIP10Ed25519Key(DeriveSLIP10Ed25519KeyOpts{Account: 0})
	require.NoError(t, err)
	require.Equal(t, key, again)

	other, err := w.DeriveSLIP10Ed25519Key(DeriveSLIP10Ed25519KeyOpts{Account: 1})
	require.NoError(t, err)
	require.NotEqual(t, key, other)
}
