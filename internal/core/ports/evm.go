package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EVMClient is the JSON-RPC surface of an account-based EVM chain.
type EVMClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	// BalanceAt returns the native balance of the account in wei.
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	// TokenBalanceAt returns the ERC-20 balance of the account for the
	// given contract.
	TokenBalanceAt(
		ctx context.Context, contract, account common.Address,
	) (*big.Int, error)
	// PendingNonceAt returns the next nonce of the account, pending
	// transactions included.
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	// SendTransaction broadcasts the signed transaction. Outcome errors
	// follow the same contract as ChainIndexer.BroadcastTransaction.
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}
