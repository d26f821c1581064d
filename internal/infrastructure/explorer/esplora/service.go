// Package esplora implements the chain indexer and fee oracle ports on
// top of the Esplora REST API.
package esplora

import (
	"context"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/sony/gobreaker"

	"github.com/veridian-wallet/walletcore/pkg/circuitbreaker"
	"github.com/veridian-wallet/walletcore/pkg/util"
)

// AddressPathResolver maps a watched address back to the relative
// derivation path owning it, so fetched unspents come out ready for
// signing.
type AddressPathResolver func(address string) (string, bool)

// ServiceOpts holds everything needed to create a Service.
type ServiceOpts struct {
	APIURL       string
	ChainParams  *chaincfg.Params
	PathResolver AddressPathResolver
}

func (o ServiceOpts) validate() error {
	if len(o.APIURL) <= 0 {
		return fmt.Errorf("missing esplora api url")
	}
	if o.ChainParams == nil {
		return fmt.Errorf("missing chain params")
	}
	return nil
}

// Service talks to an Esplora instance. It implements ports.ChainIndexer
// and ports.FeeOracle, shielding callers from indexer hiccups with a
// circuit breaker.
type Service struct {
	apiURL       string
	chainParams  *chaincfg.Params
	pathResolver AddressPathResolver
	cb           *gobreaker.CircuitBreaker
}

// NewService returns a Service bound to the given Esplora endpoint.
func NewService(opts ServiceOpts) (*Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	pathResolver := opts.PathResolver
	if pathResolver == nil {
		pathResolver = func(string) (string, bool) { return "", false }
	}

	return &Service{
		apiURL:       opts.APIURL,
		chainParams:  opts.ChainParams,
		pathResolver: pathResolver,
		cb:           circuitbreaker.NewCircuitBreaker(),
	}, nil
}

// IsHealthy reports whether the indexer answers on its tip endpoint.
func (s *Service) IsHealthy(ctx context.Context) bool {
	url := fmt.Sprintf("%s/blocks/tip/height", s.apiURL)
	status, _, err := util.NewHTTPRequest(ctx, "GET", url, "", nil)
	return err == nil && status == http.StatusOK
}
