package ports

import (
	"context"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

// MetadataStore is the remote encrypted metadata tree. Values are opaque
// versioned JSON blobs keyed by well-known per-asset entry kinds.
type MetadataStore interface {
	// Fetch returns the blob stored for the given kind,
	// domain.ErrEntryNotFound when the entry was never created.
	Fetch(ctx context.Context, kind domain.EntryKind) ([]byte, error)
	// Save writes the blob for the given kind, overwriting any previous
	// version.
	Save(ctx context.Context, kind domain.EntryKind, payload []byte) error
}
