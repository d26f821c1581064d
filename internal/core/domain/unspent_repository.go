package domain

import (
	"context"

	"github.com/google/uuid"
)

// UnspentRepository is the cache of unspent outputs for the addresses the
// wallet watches.
type UnspentRepository interface {
	AddUnspents(ctx context.Context, unspents []UnspentOutput) error
	GetAllUnspents(ctx context.Context) []UnspentOutput
	GetUnspentsForAddresses(
		ctx context.Context,
		addresses []string,
	) ([]UnspentOutput, error)
	GetSpendableUnspentsForAddresses(
		ctx context.Context,
		addresses []string,
	) ([]UnspentOutput, error)
	GetBalance(ctx context.Context, addresses []string) (uint64, error)
	GetUnlockedBalance(ctx context.Context, addresses []string) (uint64, error)
	SpendUnspents(ctx context.Context, unspentKeys []UnspentKey) error
	ConfirmUnspents(ctx context.Context, unspentKeys []UnspentKey) error
	LockUnspents(
		ctx context.Context,
		unspentKeys []UnspentKey,
		flowID uuid.UUID,
	) error
	UnlockUnspents(ctx context.Context, unspentKeys []UnspentKey) error
	GetUnspentForKey(
		ctx context.Context,
		unspentKey UnspentKey,
	) (*UnspentOutput, error)
}
