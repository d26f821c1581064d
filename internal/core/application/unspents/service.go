package unspents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
)

// Service caches the unspent outputs of the watched address sets,
// refreshing from the chain indexer when the cache has been invalidated.
type Service struct {
	repo    domain.UnspentRepository
	indexer ports.ChainIndexer

	freshMtx sync.Mutex
	fresh    map[string]bool

	// keyLocks serializes refreshes of the same address set while
	// letting unrelated sets hit the indexer concurrently.
	keyLocksMtx sync.Mutex
	keyLocks    map[string]*sync.Mutex
}

func NewService(
	repo domain.UnspentRepository, indexer ports.ChainIndexer,
) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing unspent repository")
	}
	if indexer == nil {
		return nil, fmt.Errorf("missing chain indexer")
	}

	return &Service{
		repo:     repo,
		indexer:  indexer,
		fresh:    make(map[string]bool),
		keyLocks: make(map[string]*sync.Mutex),
	}, nil
}

// UnspentOutputs returns the unspent outputs of the given addresses,
// served from the cache when fresh.
func (s *Service) UnspentOutputs(
	ctx context.Context, addresses []string,
) ([]domain.UnspentOutput, error) {
	if err := s.refreshIfStale(ctx, addresses); err != nil {
		return nil, err
	}
	return s.repo.GetUnspentsForAddresses(ctx, addresses)
}

// SpendableUnspentOutputs returns only the outputs that may fund a new
// transaction: unspent and not locked by another in-flight flow.
func (s *Service) SpendableUnspentOutputs(
	ctx context.Context, addresses []string,
) ([]domain.UnspentOutput, error) {
	if err := s.refreshIfStale(ctx, addresses); err != nil {
		return nil, err
	}
	return s.repo.GetSpendableUnspentsForAddresses(ctx, addresses)
}

// Balance returns the total unspent value of the addresses.
func (s *Service) Balance(
	ctx context.Context, addresses []string,
) (uint64, error) {
	if err := s.refreshIfStale(ctx, addresses); err != nil {
		return 0, err
	}
	return s.repo.GetBalance(ctx, addresses)
}

// SpendableBalance returns the unspent value not locked by in-flight
// flows.
func (s *Service) SpendableBalance(
	ctx context.Context, addresses []string,
) (uint64, error) {
	if err := s.refreshIfStale(ctx, addresses); err != nil {
		return 0, err
	}
	return s.repo.GetUnlockedBalance(ctx, addresses)
}

// Invalidate marks the cache for the given addresses stale. Engines call
// it after every broadcast so stale outputs are never reused.
func (s *Service) Invalidate(ctx context.Context, addresses []string) {
	s.freshMtx.Lock()
	defer s.freshMtx.Unlock()
	delete(s.fresh, cacheKey(addresses))
}

// LockUnspents marks the outputs as owned by the given flow.
func (s *Service) LockUnspents(
	ctx context.Context, keys []domain.UnspentKey, flowID uuid.UUID,
) error {
	return s.repo.LockUnspents(ctx, keys, flowID)
}

// UnlockUnspents releases outputs held by an abandoned flow.
func (s *Service) UnlockUnspents(
	ctx context.Context, keys []domain.UnspentKey,
) error {
	return s.repo.UnlockUnspents(ctx, keys)
}

// SpendUnspents marks the outputs as consumed by a broadcast transaction.
func (s *Service) SpendUnspents(
	ctx context.Context, keys []domain.UnspentKey,
) error {
	return s.repo.SpendUnspents(ctx, keys)
}

func (s *Service) refreshIfStale(
	ctx context.Context, addresses []string,
) error {
	key := cacheKey(addresses)
	unlock := s.lockKey(key)
	defer unlock()

	s.freshMtx.Lock()
	fresh := s.fresh[key]
	s.freshMtx.Unlock()
	if fresh {
		return nil
	}

	unspents, err := s.indexer.GetUnspents(ctx, addresses)
	if err != nil {
		return err
	}

	cached, err := s.repo.GetUnspentsForAddresses(ctx, addresses)
	if err != nil {
		return err
	}

	// outputs the indexer no longer reports were spent elsewhere
	goneKeys := make([]domain.UnspentKey, 0)
	for _, unspent := range cached {
		if !containsKey(unspents, unspent.Key()) {
			goneKeys = append(goneKeys, unspent.Key())
		}
	}
	if len(goneKeys) > 0 {
		if err := s.repo.SpendUnspents(ctx, goneKeys); err != nil {
			return err
		}
		log.Debugf("marked %d cached unspent(s) as spent", len(goneKeys))
	}

	if err := s.repo.AddUnspents(ctx, unspents); err != nil {
		return err
	}

	s.freshMtx.Lock()
	s.fresh[key] = true
	s.freshMtx.Unlock()
	return nil
}

func (s *Service) lockKey(key string) func() {
	s.keyLocksMtx.Lock()
	mtx, ok := s.keyLocks[key]
	if !ok {
		mtx = &sync.Mutex{}
		s.keyLocks[key] = mtx
	}
	s.keyLocksMtx.Unlock()

	mtx.Lock()
	return mtx.Unlock
}

func cacheKey(addresses []string) string {
	sorted := make([]string, len(addresses))
	copy(sorted, addresses)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

func containsKey(unspents []domain.UnspentOutput, key domain.UnspentKey) bool {
	for i := range unspents {
		if unspents[i].IsKeyEqual(key) {
			return true
		}
	}
	return false
}
