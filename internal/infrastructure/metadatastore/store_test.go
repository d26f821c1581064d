package metadatastore_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/infrastructure/metadatastore"
	"github.com/veridian-wallet/walletcore/pkg/securestore"
	boltsecurestore "github.com/veridian-wallet/walletcore/pkg/securestore/bolt"
)

type fakeRemote struct {
	mtx     sync.Mutex
	entries map[domain.EntryKind][]byte
	down    bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{entries: map[domain.EntryKind][]byte{}}
}

func (f *fakeRemote) Fetch(
	_ context.Context, kind domain.EntryKind,
) ([]byte, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.down {
		return nil, fmt.Errorf("remote unreachable")
	}
	payload, ok := f.entries[kind]
	if !ok {
		return nil, domain.ErrEntryNotFound
	}
	return payload, nil
}

func (f *fakeRemote) Save(
	_ context.Context, kind domain.EntryKind, payload []byte,
) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if f.down {
		return fmt.Errorf("remote unreachable")
	}
	f.entries[kind] = payload
	return nil
}

func (f *fakeRemote) setDown(down bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.down = down
}

func newTestLocalStore(t *testing.T) securestore.SecureStorage {
	t.Helper()

	store, err := boltsecurestore.NewSecureStorage(t.TempDir(), "metadata.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	password := []byte("test password")
	require.NoError(t, store.CreateUnlock(&password))
	return store
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	t.Parallel()

	var stored []byte
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/metadata/8", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			stored = body
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			if stored == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(stored)
		}
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := metadatastore.NewRemoteStore(server.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Fetch(ctx, domain.EntryKindBitcoin)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)

	payload := []byte(`{"default_account_idx":0}`)
	require.NoError(t, store.Save(ctx, domain.EntryKindBitcoin, payload))

	fetched, err := store.Fetch(ctx, domain.EntryKindBitcoin)
	require.NoError(t, err)
	require.Equal(t, payload, fetched)
}

func TestFallbackStoreWriteThrough(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	store, err := metadatastore.NewFallbackStore(remote, newTestLocalStore(t))
	require.NoError(t, err)
	ctx := context.Background()

	payload := []byte(`{"has_seen":true}`)
	require.NoError(t, store.Save(ctx, domain.EntryKindEthereum, payload))

	// remote goes dark, the local copy still serves the entry
	remote.setDown(true)

	fetched, err := store.Fetch(ctx, domain.EntryKindEthereum)
	require.NoError(t, err)
	require.Equal(t, payload, fetched)
}

func TestFallbackStoreRemoteMissIsAuthoritative(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	local := newTestLocalStore(t)
	store, err := metadatastore.NewFallbackStore(remote, local)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(
		t, store.Save(ctx, domain.EntryKindStellar, []byte(`{"v":1}`)),
	)

	// the remote dropped the entry: the stale local copy must not revive
	// it
	remote.mtx.Lock()
	delete(remote.entries, domain.EntryKindStellar)
	remote.mtx.Unlock()

	_, err = store.Fetch(ctx, domain.EntryKindStellar)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestFallbackStoreRefreshesLocalCopyOnFetch(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	remote.entries[domain.EntryKindBitcoinCash] = []byte(`{"v":2}`)
	store, err := metadatastore.NewFallbackStore(remote, newTestLocalStore(t))
	require.NoError(t, err)
	ctx := context.Background()

	fetched, err := store.Fetch(ctx, domain.EntryKindBitcoinCash)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"v":2}`), fetched)

	remote.setDown(true)

	fetched, err = store.Fetch(ctx, domain.EntryKindBitcoinCash)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"v":2}`), fetched)
}
