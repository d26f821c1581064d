package dbbadger

import (
	"context"
	"errors"
	"sync"

	"github.com/timshannon/badgerhold/v4"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

const walletKey = "wallet"

type walletRepositoryImpl struct {
	db  *DbManager
	mtx sync.Mutex
}

// NewWalletRepositoryImpl returns a badger implementation of the domain
// wallet repository.
func NewWalletRepositoryImpl(db *DbManager) domain.WalletRepository {
	return &walletRepositoryImpl{db: db}
}

func (r *walletRepositoryImpl) InitWallet(
	ctx context.Context, wallet *domain.HDWallet,
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var stored domain.HDWallet
	err := r.db.WalletStore.Get(walletKey, &stored)
	if err == nil {
		return ErrWalletAlreadyExists
	}
	if !errors.Is(err, badgerhold.ErrNotFound) {
		return err
	}

	return r.db.WalletStore.Insert(walletKey, *wallet)
}

func (r *walletRepositoryImpl) GetWallet(
	ctx context.Context,
) (*domain.HDWallet, error) {
	var wallet domain.HDWallet
	if err := r.db.WalletStore.Get(walletKey, &wallet); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrWalletNotInitialized
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *walletRepositoryImpl) UpdateWallet(
	ctx context.Context,
	updateFn func(w *domain.HDWallet) (*domain.HDWallet, error),
) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	wallet, err := r.GetWallet(ctx)
	if err != nil {
		return err
	}

	updated, err := updateFn(wallet)
	if err != nil {
		return err
	}

	return r.db.WalletStore.Update(walletKey, *updated)
}
