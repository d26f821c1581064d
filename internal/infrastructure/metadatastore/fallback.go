package metadatastore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	"github.com/veridian-wallet/walletcore/pkg/securestore"
)

var entriesBucket = []byte("metadata")

// FallbackStore decorates a remote metadata store with a write-through
// copy in the local secure storage, so entries survive the remote being
// unreachable. It implements ports.MetadataStore.
type FallbackStore struct {
	remote ports.MetadataStore
	local  securestore.SecureStorage
}

// NewFallbackStore returns a FallbackStore wrapping the given remote.
func NewFallbackStore(
	remote ports.MetadataStore, local securestore.SecureStorage,
) (*FallbackStore, error) {
	if remote == nil {
		return nil, fmt.Errorf("missing remote metadata store")
	}
	if local == nil {
		return nil, fmt.Errorf("missing local secure storage")
	}
	if err := local.CreateBucket(entriesBucket); err != nil {
		return nil, err
	}
	return &FallbackStore{remote: remote, local: local}, nil
}

// Fetch reads the entry from the remote, falling back to the local copy
// when the remote cannot be reached. A remote miss is authoritative and
// never served from the local copy.
func (s *FallbackStore) Fetch(
	ctx context.Context, kind domain.EntryKind,
) ([]byte, error) {
	payload, err := s.remote.Fetch(ctx, kind)
	if err == nil {
		if localErr := s.writeLocal(kind, payload); localErr != nil {
			log.WithError(localErr).Warn(
				"failed to refresh local metadata entry copy",
			)
		}
		return payload, nil
	}
	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil, err
	}

	local, localErr := s.local.GetFromBucket(entriesBucket, entryKey(kind))
	if localErr != nil || local == nil {
		return nil, err
	}
	log.WithError(err).Debug("serving metadata entry from local copy")
	return local, nil
}

// Save writes the entry remotely and mirrors it locally.
func (s *FallbackStore) Save(
	ctx context.Context, kind domain.EntryKind, payload []byte,
) error {
	if err := s.remote.Save(ctx, kind, payload); err != nil {
		return err
	}
	if err := s.writeLocal(kind, payload); err != nil {
		log.WithError(err).Warn("failed to mirror metadata entry locally")
	}
	return nil
}

func (s *FallbackStore) writeLocal(
	kind domain.EntryKind, payload []byte,
) error {
	return s.local.AddToBucket(entriesBucket, entryKey(kind), payload)
}

func entryKey(kind domain.EntryKind) []byte {
	return []byte(strconv.Itoa(int(kind)))
}
