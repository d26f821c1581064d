package inmemory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

// UnspentRepositoryImpl represents an in memory storage
type UnspentRepositoryImpl struct {
	unspents map[domain.UnspentKey]domain.UnspentOutput
	lock     *sync.RWMutex
}

// NewUnspentRepositoryImpl returns a new empty UnspentRepositoryImpl
func NewUnspentRepositoryImpl() *UnspentRepositoryImpl {
	return &UnspentRepositoryImpl{
		unspents: map[domain.UnspentKey]domain.UnspentOutput{},
		lock:     &sync.RWMutex{},
	}
}

// AddUnspents upserts the given unspents, preserving the lock and spend
// state of those already stored.
func (r *UnspentRepositoryImpl) AddUnspents(
	ctx context.Context, unspents []domain.UnspentOutput,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, unspent := range unspents {
		if stored, ok := r.unspents[unspent.Key()]; ok {
			unspent.Locked = stored.Locked
			unspent.LockedBy = stored.LockedBy
			unspent.Spent = stored.Spent
		}
		r.unspents[unspent.Key()] = unspent
	}
	return nil
}

// GetAllUnspents returns all the unspents stored
func (r *UnspentRepositoryImpl) GetAllUnspents(
	ctx context.Context,
) []domain.UnspentOutput {
	r.lock.RLock()
	defer r.lock.RUnlock()

	unspents := make([]domain.UnspentOutput, 0, len(r.unspents))
	for _, unspent := range r.unspents {
		if !unspent.IsSpent() {
			unspents = append(unspents, unspent)
		}
	}
	return unspents
}

// GetUnspentsForAddresses returns unspents for a list of addresses.
func (r *UnspentRepositoryImpl) GetUnspentsForAddresses(
	ctx context.Context, addresses []string,
) ([]domain.UnspentOutput, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.getUnspents(addresses, false), nil
}

// GetSpendableUnspentsForAddresses returns the unlocked unspents for a
// list of addresses.
func (r *UnspentRepositoryImpl) GetSpendableUnspentsForAddresses(
	ctx context.Context, addresses []string,
) ([]domain.UnspentOutput, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.getUnspents(addresses, true), nil
}

// GetBalance returns the total unspent amount for the given addresses.
func (r *UnspentRepositoryImpl) GetBalance(
	ctx context.Context, addresses []string,
) (uint64, error) {
	unspents, err := r.GetUnspentsForAddresses(ctx, addresses)
	if err != nil {
		return 0, err
	}
	return sumValues(unspents), nil
}

// GetUnlockedBalance returns the total spendable amount for the given
// addresses.
func (r *UnspentRepositoryImpl) GetUnlockedBalance(
	ctx context.Context, addresses []string,
) (uint64, error) {
	unspents, err := r.GetSpendableUnspentsForAddresses(ctx, addresses)
	if err != nil {
		return 0, err
	}
	return sumValues(unspents), nil
}

// SpendUnspents marks the given unspents as spent.
func (r *UnspentRepositoryImpl) SpendUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey,
) error {
	return r.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			unspent.Spend()
			return nil
		},
	)
}

// ConfirmUnspents marks the given unspents as confirmed.
func (r *UnspentRepositoryImpl) ConfirmUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey,
) error {
	return r.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			unspent.Confirm()
			return nil
		},
	)
}

// LockUnspents locks the given unspents associating them with the flow
// where they are currently used as inputs.
func (r *UnspentRepositoryImpl) LockUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey, flowID uuid.UUID,
) error {
	return r.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			return unspent.Lock(&flowID)
		},
	)
}

// UnlockUnspents unlocks the given locked unspents.
func (r *UnspentRepositoryImpl) UnlockUnspents(
	ctx context.Context, unspentKeys []domain.UnspentKey,
) error {
	return r.updateUnspents(
		unspentKeys,
		func(unspent *domain.UnspentOutput) error {
			unspent.Unlock()
			return nil
		},
	)
}

// GetUnspentForKey returns the unspent for a given key.
func (r *UnspentRepositoryImpl) GetUnspentForKey(
	ctx context.Context, unspentKey domain.UnspentKey,
) (*domain.UnspentOutput, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	unspent, ok := r.unspents[unspentKey]
	if !ok {
		return nil, ErrUnspentNotFound
	}
	return &unspent, nil
}

func (r *UnspentRepositoryImpl) getUnspents(
	addresses []string, excludeLocked bool,
) []domain.UnspentOutput {
	unspents := make([]domain.UnspentOutput, 0)
	for _, unspent := range r.unspents {
		if unspent.IsSpent() {
			continue
		}
		if excludeLocked && unspent.IsLocked() {
			continue
		}
		if len(addresses) == 0 || containsAddress(addresses, unspent.Address) {
			unspents = append(unspents, unspent)
		}
	}
	return unspents
}

func (r *UnspentRepositoryImpl) updateUnspents(
	unspentKeys []domain.UnspentKey,
	updateFn func(unspent *domain.UnspentOutput) error,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, key := range unspentKeys {
		if _, ok := r.unspents[key]; !ok {
			return ErrUnspentNotFound
		}
	}

	for _, key := range unspentKeys {
		unspent := r.unspents[key]
		if err := updateFn(&unspent); err != nil {
			return err
		}
		r.unspents[key] = unspent
	}
	return nil
}

func containsAddress(addresses []string, address string) bool {
	for _, addr := range addresses {
		if addr == address {
			return true
		}
	}
	return false
}

func sumValues(unspents []domain.UnspentOutput) uint64 {
	var total uint64
	for _, unspent := range unspents {
		total += unspent.Value
	}
	return total
}
