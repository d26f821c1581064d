package dbbadger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

type unspentRepositoryImpl struct {
	db *DbManager
}

// NewUnspentRepositoryImpl returns a badger implementation of the domain
// unspent repository.
func NewUnspentRepositoryImpl(db *DbManager) domain.UnspentRepository {
	return unspentRepositoryImpl{db: db}
}

// AddUnspents upserts the given unspents. The lock state of an already
// stored output is preserved so a cache refresh cannot steal an output
// from an in-flight flow.
func (u unspentRepositoryImpl) AddUnspents(
	ctx context.Context, unspents []domain.UnspentOutput,
) error {
	for _, unspent := range unspents {
		var stored domain.UnspentOutput
		err := u.db.UnspentStore.Get(unspent.Key(), &stored)
		if err == nil {
			unspent.Locked = stored.Locked
			unspent.LockedBy = stored.LockedBy
			unspent.Spent = stored.Spent
		} else if !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}

		if err := u.db.UnspentStore.Upsert(unspent.Key(), unspent); err != nil {
			return err
		}
	}
	return nil
}

func (u unspentRepositoryImpl) GetAllUnspents(
	ctx context.Context,
) []domain.UnspentOutput {
	query := badgerhold.Where("Spent").Eq(false)
	unspents, _ := u.findUnspents(query)
	return unspents
}

func (u unspentRepositoryImpl) GetUnspentsForAddresses(
	ctx context.Context, addresses []string,
) ([]domain.UnspentOutput, error) {
	query := badgerhold.Where("Address").In(toIface(addresses)...).
		And("Spent").Eq(false)
	return u.findUnspents(query)
}

func (u unspentRepositoryImpl) GetSpendableUnspentsForAddresses(
	ctx context.Context, addresses []string,
) ([]domain.UnspentOutput, error) {
	query := badgerhold.Where("Address").In(toIface(addresses)...).
		And("Spent").Eq(false).
		And("Locked").Eq(false)
	return u.findUnspents(query)
}

func (u unspentRepositoryImpl) GetBalance(
	ctx context.Context, addresses []string,
) (uint64, error) {
	unspents, err := u.GetUnspentsForAddresses(ctx, addresses)
	if err != nil {
		return 0, err
	}

	var balance uint64
	for _, unspent := range unspents {
		balance += unspent.Value
	}
	return balance, nil
}

func (u unspentRepositoryImpl) GetUnlockedBalance(
	ctx context.Context, addresses []string,
) (uint64, error) {
	unspents, err := u.GetSpendableUnspentsForAddresses(ctx, addresses)
	if err != nil {
		return 0, err
	}

	var balance uint64
	for _, unspent := range unspents {
		balance += unspent.Value
	}
	return balance, nil
}

func (u unspentRepositoryImpl) SpendUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey,
) error {
	return u.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			unspent.Spend()
			return nil
		},
	)
}

func (u unspentRepositoryImpl) ConfirmUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey,
) error {
	return u.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			unspent.Confirm()
			return nil
		},
	)
}

func (u unspentRepositoryImpl) LockUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey, flowID uuid.UUID,
) error {
	return u.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			return unspent.Lock(&flowID)
		},
	)
}

func (u unspentRepositoryImpl) UnlockUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey,
) error {
	return u.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			unspent.Unlock()
			return nil
		},
	)
}

func (u unspentRepositoryImpl) GetUnspentForKey(
	ctx context.Context, unspentKey domain.UnspentKey,
) (*domain.UnspentOutput, error) {
	var unspent domain.UnspentOutput
	if err := u.db.UnspentStore.Get(unspentKey, &unspent); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrUnspentNotFound
		}
		return nil, err
	}
	return &unspent, nil
}

func (u unspentRepositoryImpl) findUnspents(
	query *badgerhold.Query,
) ([]domain.UnspentOutput, error) {
	unspents := make([]domain.UnspentOutput, 0)
	if err := u.db.UnspentStore.Find(&unspents, query); err != nil {
		return nil, err
	}
	return unspents, nil
}

func (u unspentRepositoryImpl) updateUnspents(
	unspentKeys []domain.UnspentKey,
	updateFn func(unspent *domain.UnspentOutput) error,
) error {
	for _, key := range unspentKeys {
		unspent, err := u.GetUnspentForKey(context.Background(), key)
		if err != nil {
			return err
		}
		if err := updateFn(unspent); err != nil {
			return err
		}
		if err := u.db.UnspentStore.Update(key, *unspent); err != nil {
			return err
		}
	}
	return nil
}

func toIface(list []string) []interface{} {
	iface := make([]interface{}, 0, len(list))
	for _, elem := range list {
		iface = append(iface, elem)
	}
	return iface
}
