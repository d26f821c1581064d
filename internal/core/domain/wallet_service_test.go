package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

// BIP39 english test vector seed (all-zero entropy mnemonic).
const testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aae" +
	"d6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

func newTestHDWallet(t *testing.T) *domain.HDWallet {
	t.Helper()
	w, err := domain.NewHDWallet(testSeedHex, "", "Private Key Wallet")
	require.NoError(t, err)
	return w
}

func TestNewHDWallet(t *testing.T) {
	t.Parallel()

	w := newTestHDWallet(t)
	require.Len(t, w.Accounts, 1)

	account, err := w.DefaultAccount()
	require.NoError(t, err)
	require.Equal(t, uint32(0), account.Index)
	require.Equal(t, "Private Key Wallet", account.Label)
	require.False(t, account.NeedsReplenishment())
	require.Len(t, account.Derivations, len(domain.AllDerivationTypes))
}

func TestFailingNewHDWallet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		seedHex string
	}{
		{"empty_seed", ""},
		{"not_hex", "not a hex string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewHDWallet(tt.seedHex, "", "label")
			require.Error(t, err)

			var createErr *domain.WalletCreateError
			require.ErrorAs(t, err, &createErr)
		})
	}
}

func TestDerivationDeterminism(t *testing.T) {
	t.Parallel()

	first := newTestHDWallet(t)
	second := newTestHDWallet(t)

	for _, derivationType := range domain.AllDerivationTypes {
		a, err := first.DefaultAccount()
		require.NoError(t, err)
		b, err := second.DefaultAccount()
		require.NoError(t, err)

		da := a.Derivation(derivationType)
		db := b.Derivation(derivationType)
		require.NotNil(t, da)
		require.NotNil(t, db)
		require.Equal(t, da.ExtendedPublicKey, db.ExtendedPublicKey)
		require.Equal(t, da.Address, db.Address)
		require.NotEmpty(t, da.ExtendedPublicKey)
	}
}

func TestAddAccount(t *testing.T) {
	t.Parallel()

	w := newTestHDWallet(t)

	account, err := w.AddAccount("Trading")
	require.NoError(t, err)
	require.Equal(t, uint32(1), account.Index)
	require.False(t, account.NeedsReplenishment())
	require.Len(t, w.Accounts, 2)

	// keys of different accounts must differ
	first, err := w.Account(0)
	require.NoError(t, err)
	require.NotEqual(
		t,
		first.Derivation(domain.DerivationSegwit).ExtendedPublicKey,
		account.Derivation(domain.DerivationSegwit).ExtendedPublicKey,
	)
}

func TestReplenishAccounts(t *testing.T) {
	t.Parallel()

	w := newTestHDWallet(t)
	account, err := w.DefaultAccount()
	require.NoError(t, err)

	// drop the legacy derivation to simulate a wallet restored by an old
	// client that only knew segwit
	segwit := *account.Derivation(domain.DerivationSegwit)
	account.Derivations = []domain.Derivation{segwit}
	require.True(t, account.NeedsReplenishment())

	require.NoError(t, w.ReplenishAccounts())
	require.False(t, account.NeedsReplenishment())

	replenished := account.Derivation(domain.DerivationLegacy)
	require.NotNil(t, replenished)
	require.NotEmpty(t, replenished.ExtendedPublicKey)

	// reference key material from a freshly derived wallet
	reference := newTestHDWallet(t)
	refAccount, err := reference.DefaultAccount()
	require.NoError(t, err)
	require.Equal(
		t,
		refAccount.Derivation(domain.DerivationLegacy).ExtendedPublicKey,
		replenished.ExtendedPublicKey,
	)
}

func TestReplenishAccountsIsIdempotent(t *testing.T) {
	t.Parallel()

	w := newTestHDWallet(t)
	require.NoError(t, w.ReplenishAccounts())

	account, err := w.DefaultAccount()
	require.NoError(t, err)
	snapshot := make([]domain.Derivation, len(account.Derivations))
	copy(snapshot, account.Derivations)

	require.NoError(t, w.ReplenishAccounts())
	require.Equal(t, snapshot, account.Derivations)
}

func TestFailingAccountLookup(t *testing.T) {
	t.Parallel()

	w := newTestHDWallet(t)
	_, err := w.Account(42)
	require.EqualError(t, err, domain.ErrAccountNotFound.Error())
}
