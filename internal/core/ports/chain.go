package ports

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

// ChainIndexer is the remote indexer and broadcast surface of a UTXO
// chain.
type ChainIndexer interface {
	// GetUnspents returns the unspent outputs of the given addresses.
	GetUnspents(
		ctx context.Context, addresses []string,
	) ([]domain.UnspentOutput, error)
	// BroadcastTransaction submits the raw transaction and returns its
	// hash. Implementations must distinguish "already broadcast" from a
	// rejection: the former returns the hash with no error, the latter
	// domain.ErrBroadcastRejected. An unknown outcome such as a timeout
	// returns domain.ErrBroadcastAmbiguous.
	BroadcastTransaction(ctx context.Context, txHex string) (string, error)
	// IsHealthy reports whether the indexer is reachable.
	IsHealthy(ctx context.Context) bool
}

// FeeRates holds the fee quotes of a UTXO chain in minor units per vbyte.
type FeeRates struct {
	Regular  decimal.Decimal
	Priority decimal.Decimal
}

// FeeOracle quotes fee rates for a UTXO chain.
type FeeOracle interface {
	FeeRates(ctx context.Context) (*FeeRates, error)
}
