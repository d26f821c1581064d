package inmemory

import (
	"context"
	"sync"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

// WalletRepositoryImpl represents an in memory storage
type WalletRepositoryImpl struct {
	wallet *domain.HDWallet
	lock   *sync.Mutex
}

// NewWalletRepositoryImpl returns a new empty WalletRepositoryImpl
func NewWalletRepositoryImpl() *WalletRepositoryImpl {
	return &WalletRepositoryImpl{lock: &sync.Mutex{}}
}

func (r *WalletRepositoryImpl) InitWallet(
	ctx context.Context, wallet *domain.HDWallet,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.wallet != nil {
		return ErrWalletAlreadyExists
	}
	r.wallet = wallet
	return nil
}

func (r *WalletRepositoryImpl) GetWallet(
	ctx context.Context,
) (*domain.HDWallet, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.wallet == nil {
		return nil, domain.ErrWalletNotInitialized
	}
	return r.wallet, nil
}

func (r *WalletRepositoryImpl) UpdateWallet(
	ctx context.Context,
	updateFn func(w *domain.HDWallet) (*domain.HDWallet, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.wallet == nil {
		return domain.ErrWalletNotInitialized
	}

	updated, err := updateFn(r.wallet)
	if err != nil {
		return err
	}
	r.wallet = updated
	return nil
}
