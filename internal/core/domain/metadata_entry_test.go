package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

func TestNewDefaultBitcoinCashEntry(t *testing.T) {
	t.Parallel()

	w := newTestHDWallet(t)
	_, err := w.AddAccount("Trading")
	require.NoError(t, err)

	entry := domain.NewDefaultBitcoinCashEntry(w)
	require.Equal(t, domain.EntryKindBitcoinCash, entry.Kind())
	require.Len(t, entry.Accounts, 2)

	for i, accountEntry := range entry.Accounts {
		account := w.Accounts[i]
		require.Equal(t, int(account.Index), accountEntry.Index)
		require.Equal(t, account.Label, accountEntry.Label)
		require.False(t, accountEntry.Archived)
		require.Equal(
			t,
			account.Derivation(domain.DerivationLegacy).ExtendedPublicKey,
			accountEntry.ExtendedPublicKey,
		)
	}
}

func TestNewDefaultBitcoinEntry(t *testing.T) {
	t.Parallel()

	w := newTestHDWallet(t)
	entry := domain.NewDefaultBitcoinEntry(w)
	require.Equal(t, domain.EntryKindBitcoin, entry.Kind())
	require.Len(t, entry.Accounts, 1)
	require.Equal(
		t,
		w.Accounts[0].Derivation(domain.DerivationSegwit).ExtendedPublicKey,
		entry.Accounts[0].ExtendedPublicKey,
	)
}

func TestEntryRoundTrip(t *testing.T) {
	t.Parallel()

	entry := &domain.BitcoinCashEntry{
		Accounts: []domain.AccountEntry{
			{Index: 0, Label: "My Bitcoin Cash Wallet", ExtendedPublicKey: "xpub..."},
		},
		HasSeen: true,
		TxNotes: map[string]string{"deadbeef": "rent"},
	}

	buf, err := json.Marshal(entry)
	require.NoError(t, err)

	var decoded domain.BitcoinCashEntry
	require.NoError(t, json.Unmarshal(buf, &decoded))
	require.Equal(t, *entry, decoded)
}
