package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/veridian-wallet/walletcore/pkg/wallet"
)

// NewHDWallet validates the given seed and returns a wallet with a single
// default account covering all supported derivation types.
func NewHDWallet(seedHex, passphrase, accountLabel string) (*HDWallet, error) {
	if len(seedHex) <= 0 {
		return nil, &WalletCreateError{Err: ErrInvalidSeed}
	}
	if _, err := wallet.NewWalletFromSeedHex(wallet.NewWalletFromSeedHexOpts{
		SeedHex: seedHex,
	}); err != nil {
		return nil, &WalletCreateError{Err: err}
	}

	hdWallet := &HDWallet{
		SeedHex:    seedHex,
		Passphrase: passphrase,
	}
	if _, err := hdWallet.AddAccount(accountLabel); err != nil {
		return nil, err
	}
	return hdWallet, nil
}

// Account returns the account with the given index.
func (w *HDWallet) Account(index uint32) (*Account, error) {
	for _, account := range w.Accounts {
		if account.Index == index {
			return account, nil
		}
	}
	return nil, ErrAccountNotFound
}

// DefaultAccount returns the account used when none is specified.
func (w *HDWallet) DefaultAccount() (*Account, error) {
	return w.Account(w.DefaultAccountIndex)
}

// NextAccountIndex returns the index the next account will be created at.
func (w *HDWallet) NextAccountIndex() uint32 {
	return uint32(len(w.Accounts))
}

// AddAccount derives a new account at the next index with one derivation
// per supported type and appends it to the wallet.
func (w *HDWallet) AddAccount(label string) (*Account, error) {
	index := w.NextAccountIndex()

	derivations := make([]Derivation, 0, len(AllDerivationTypes))
	for _, derivationType := range AllDerivationTypes {
		derivation, err := w.deriveForAccount(index, derivationType)
		if err != nil {
			return nil, err
		}
		derivations = append(derivations, *derivation)
	}

	account := &Account{
		Index:             index,
		Label:             label,
		DefaultDerivation: DerivationSegwit,
		Derivations:       derivations,
	}
	w.Accounts = append(w.Accounts, account)
	return account, nil
}

// NeedsReplenishment returns whether the account is missing a derivation
// for any supported type, or holds one without key material.
func (a *Account) NeedsReplenishment() bool {
	for _, derivationType := range AllDerivationTypes {
		derivation := a.Derivation(derivationType)
		if derivation == nil || len(derivation.ExtendedPublicKey) <= 0 {
			return true
		}
	}
	return false
}

// Derivation returns the account's derivation of the given type, nil if
// missing.
func (a *Account) Derivation(derivationType DerivationType) *Derivation {
	for i := range a.Derivations {
		if a.Derivations[i].Type == derivationType {
			return &a.Derivations[i]
		}
	}
	return nil
}

// DefaultDerivationInfo returns the derivation of the account's default
// type.
func (a *Account) DefaultDerivationInfo() (*Derivation, error) {
	derivation := a.Derivation(a.DefaultDerivation)
	if derivation == nil {
		return nil, ErrDerivationNotFound
	}
	return derivation, nil
}

// ReplenishAccounts reconciles every account so its derivations cover all
// supported types. The operation is idempotent: a complete account is left
// untouched, and an existing derivation is never overwritten with
// different key material.
func (w *HDWallet) ReplenishAccounts() error {
	for _, account := range w.Accounts {
		if !account.NeedsReplenishment() {
			continue
		}
		if err := w.replenishAccount(account); err != nil {
			return err
		}
	}
	return nil
}

func (w *HDWallet) replenishAccount(account *Account) error {
	for _, derivationType := range AllDerivationTypes {
		existing := account.Derivation(derivationType)
		if existing != nil && len(existing.ExtendedPublicKey) > 0 {
			continue
		}

		derivation, err := w.deriveForAccount(account.Index, derivationType)
		if err != nil {
			return err
		}

		if existing != nil {
			// empty placeholder, fill it in place
			existing.ExtendedPublicKey = derivation.ExtendedPublicKey
			existing.Address = derivation.Address
			continue
		}
		account.Derivations = append(account.Derivations, *derivation)
	}
	return nil
}

func (w *HDWallet) deriveForAccount(
	index uint32, derivationType DerivationType,
) (*Derivation, error) {
	scheme, err := derivationType.Scheme()
	if err != nil {
		return nil, err
	}

	engine, err := wallet.NewWalletFromSeedHex(wallet.NewWalletFromSeedHexOpts{
		SeedHex: w.SeedHex,
	})
	if err != nil {
		return nil, &WalletCreateError{Err: err}
	}

	xpub, err := engine.ExtendedPublicKey(wallet.ExtendedKeyOpts{
		Scheme:  scheme,
		Account: index,
	})
	if err != nil {
		return nil, err
	}

	address, err := engine.DeriveAddress(wallet.DeriveAddressOpts{
		Scheme:         scheme,
		DerivationPath: fmt.Sprintf("%d'/0/0", index),
		Network:        &chaincfg.MainNetParams,
	})
	if err != nil {
		return nil, err
	}

	return &Derivation{
		Type:              derivationType,
		ExtendedPublicKey: xpub,
		Address:           address,
		AddressCache:      map[uint32]string{0: address},
	}, nil
}
