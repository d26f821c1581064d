package domain

import "context"

// WalletRepository is the persistence boundary for the HD wallet.
type WalletRepository interface {
	// InitWallet stores the given wallet. Fails if one already exists.
	InitWallet(ctx context.Context, wallet *HDWallet) error
	// GetWallet returns the stored wallet, ErrWalletNotInitialized if none.
	GetWallet(ctx context.Context) (*HDWallet, error)
	// UpdateWallet atomically applies updateFn to the stored wallet and
	// persists the result.
	UpdateWallet(
		ctx context.Context,
		updateFn func(w *HDWallet) (*HDWallet, error),
	) error
}
