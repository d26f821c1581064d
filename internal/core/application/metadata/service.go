package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	walletpkg "github.com/veridian-wallet/walletcore/pkg/wallet"
)

const evmCoinType = 60

// WalletProvider returns the currently loaded HD wallet.
type WalletProvider interface {
	CurrentWallet(ctx context.Context) (*domain.HDWallet, error)
}

// Service reads and writes per-asset metadata entries against the remote
// encrypted store, lazily creating entries on first use.
type Service struct {
	store  ports.MetadataStore
	wallet WalletProvider

	// kindLocks makes read-decide-write on one entry kind a critical
	// section, so two concurrent first-time creators cannot persist
	// divergent defaults.
	kindLocksMtx sync.Mutex
	kindLocks    map[domain.EntryKind]*sync.Mutex
}

func NewService(
	store ports.MetadataStore, walletProvider WalletProvider,
) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("missing metadata store")
	}
	if walletProvider == nil {
		return nil, fmt.Errorf("missing wallet provider")
	}

	return &Service{
		store:     store,
		wallet:    walletProvider,
		kindLocks: make(map[domain.EntryKind]*sync.Mutex),
	}, nil
}

// FetchBitcoinEntry reads the Bitcoin entry,
// domain.ErrEntryNotFound if it was never created.
func (s *Service) FetchBitcoinEntry(
	ctx context.Context,
) (*domain.BitcoinEntry, error) {
	entry := &domain.BitcoinEntry{}
	if err := s.fetch(ctx, domain.EntryKindBitcoin, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// FetchBitcoinCashEntry reads the Bitcoin Cash entry,
// domain.ErrEntryNotFound if it was never created.
func (s *Service) FetchBitcoinCashEntry(
	ctx context.Context,
) (*domain.BitcoinCashEntry, error) {
	entry := &domain.BitcoinCashEntry{}
	if err := s.fetch(ctx, domain.EntryKindBitcoinCash, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// FetchEthereumEntry reads the Ethereum entry,
// domain.ErrEntryNotFound if it was never created.
func (s *Service) FetchEthereumEntry(
	ctx context.Context,
) (*domain.EthereumEntry, error) {
	entry := &domain.EthereumEntry{}
	if err := s.fetch(ctx, domain.EntryKindEthereum, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Save encodes and writes the given entry, overwriting the stored one.
func (s *Service) Save(ctx context.Context, node domain.MetadataNodeEntry) error {
	if _, err := s.wallet.CurrentWallet(ctx); err != nil {
		return &domain.WalletAssetSaveError{
			Kind: node.Kind(), Reason: domain.ReasonNotInitialized, Err: err,
		}
	}

	payload, err := json.Marshal(node)
	if err != nil {
		return &domain.WalletAssetSaveError{
			Kind: node.Kind(), Reason: domain.ReasonSaveFailed, Err: err,
		}
	}

	if err := s.store.Save(ctx, node.Kind(), payload); err != nil {
		return &domain.WalletAssetSaveError{
			Kind: node.Kind(), Reason: domain.ReasonSaveFailed, Err: err,
		}
	}
	return nil
}

// FetchOrCreateBitcoin returns the Bitcoin entry, synthesizing and
// persisting the default one from the current wallet accounts on first
// use.
func (s *Service) FetchOrCreateBitcoin(
	ctx context.Context,
) (*domain.BitcoinEntry, error) {
	unlock := s.lockKind(domain.EntryKindBitcoin)
	defer unlock()

	entry, err := s.FetchBitcoinEntry(ctx)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, domain.ErrEntryNotFound) {
		return nil, err
	}

	w, err := s.wallet.CurrentWallet(ctx)
	if err != nil {
		return nil, &domain.WalletAssetFetchError{
			Kind:   domain.EntryKindBitcoin,
			Reason: domain.ReasonNotInitialized,
			Err:    err,
		}
	}

	entry = domain.NewDefaultBitcoinEntry(w)
	if err := s.Save(ctx, entry); err != nil {
		return nil, err
	}
	log.Debugf("created default bitcoin entry with %d account(s)", len(entry.Accounts))
	return entry, nil
}

// FetchOrCreateBitcoinCash behaves like FetchOrCreateBitcoin for the
// Bitcoin Cash entry.
func (s *Service) FetchOrCreateBitcoinCash(
	ctx context.Context,
) (*domain.BitcoinCashEntry, error) {
	unlock := s.lockKind(domain.EntryKindBitcoinCash)
	defer unlock()

	entry, err := s.FetchBitcoinCashEntry(ctx)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, domain.ErrEntryNotFound) {
		return nil, err
	}

	w, err := s.wallet.CurrentWallet(ctx)
	if err != nil {
		return nil, &domain.WalletAssetFetchError{
			Kind:   domain.EntryKindBitcoinCash,
			Reason: domain.ReasonNotInitialized,
			Err:    err,
		}
	}

	entry = domain.NewDefaultBitcoinCashEntry(w)
	if err := s.Save(ctx, entry); err != nil {
		return nil, err
	}
	log.Debugf(
		"created default bitcoin cash entry with %d account(s)",
		len(entry.Accounts),
	)
	return entry, nil
}

// FetchOrCreateEthereum behaves like FetchOrCreateBitcoin for the
// Ethereum entry, deriving the default account address from the seed.
func (s *Service) FetchOrCreateEthereum(
	ctx context.Context,
) (*domain.EthereumEntry, error) {
	unlock := s.lockKind(domain.EntryKindEthereum)
	defer unlock()

	entry, err := s.FetchEthereumEntry(ctx)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, domain.ErrEntryNotFound) {
		return nil, err
	}

	w, err := s.wallet.CurrentWallet(ctx)
	if err != nil {
		return nil, &domain.WalletAssetFetchError{
			Kind:   domain.EntryKindEthereum,
			Reason: domain.ReasonNotInitialized,
			Err:    err,
		}
	}

	address, err := defaultEVMAddress(w)
	if err != nil {
		return nil, &domain.WalletAssetFetchError{
			Kind:   domain.EntryKindEthereum,
			Reason: domain.ReasonFetchFailed,
			Err:    err,
		}
	}

	label := ""
	if account, err := w.DefaultAccount(); err == nil {
		label = account.Label
	}

	entry = domain.NewDefaultEthereumEntry(address, label)
	if err := s.Save(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// SyncAccounts reconciles the UTXO entries with the wallet's accounts,
// creating missing entries and updating labels, archival flags and xpubs
// of existing ones. Last write wins.
func (s *Service) SyncAccounts(ctx context.Context, w *domain.HDWallet) error {
	if err := s.syncBitcoin(ctx, w); err != nil {
		return err
	}
	return s.syncBitcoinCash(ctx, w)
}

func (s *Service) syncBitcoin(ctx context.Context, w *domain.HDWallet) error {
	unlock := s.lockKind(domain.EntryKindBitcoin)
	defer unlock()

	fresh := domain.NewDefaultBitcoinEntry(w)

	entry, err := s.FetchBitcoinEntry(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrEntryNotFound) {
			return err
		}
		entry = fresh
	} else {
		entry.Accounts = mergeAccounts(entry.Accounts, fresh.Accounts, w)
		entry.DefaultAccountIndex = int(w.DefaultAccountIndex)
	}

	return s.Save(ctx, entry)
}

func (s *Service) syncBitcoinCash(ctx context.Context, w *domain.HDWallet) error {
	unlock := s.lockKind(domain.EntryKindBitcoinCash)
	defer unlock()

	fresh := domain.NewDefaultBitcoinCashEntry(w)

	entry, err := s.FetchBitcoinCashEntry(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrEntryNotFound) {
			return err
		}
		entry = fresh
	} else {
		entry.Accounts = mergeAccounts(entry.Accounts, fresh.Accounts, w)
		entry.DefaultAccountIndex = int(w.DefaultAccountIndex)
	}

	return s.Save(ctx, entry)
}

func (s *Service) fetch(
	ctx context.Context, kind domain.EntryKind, v interface{},
) error {
	if _, err := s.wallet.CurrentWallet(ctx); err != nil {
		return &domain.WalletAssetFetchError{
			Kind: kind, Reason: domain.ReasonNotInitialized, Err: err,
		}
	}

	payload, err := s.store.Fetch(ctx, kind)
	if err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			return err
		}
		return &domain.WalletAssetFetchError{
			Kind: kind, Reason: domain.ReasonFetchFailed, Err: err,
		}
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return &domain.WalletAssetFetchError{
			Kind: kind, Reason: domain.ReasonFetchFailed, Err: err,
		}
	}
	return nil
}

func (s *Service) lockKind(kind domain.EntryKind) func() {
	s.kindLocksMtx.Lock()
	mtx, ok := s.kindLocks[kind]
	if !ok {
		mtx = &sync.Mutex{}
		s.kindLocks[kind] = mtx
	}
	s.kindLocksMtx.Unlock()

	mtx.Lock()
	return mtx.Unlock
}

// mergeAccounts overlays the wallet's current labels, archival flags and
// xpubs on the stored entry, preserving stored records of accounts the
// wallet does not know about.
func mergeAccounts(
	stored, fresh []domain.AccountEntry, w *domain.HDWallet,
) []domain.AccountEntry {
	merged := make([]domain.AccountEntry, 0, len(fresh))
	for _, entry := range fresh {
		if account, err := w.Account(uint32(entry.Index)); err == nil {
			entry.Archived = account.Archived
		}
		merged = append(merged, entry)
	}

	for _, entry := range stored {
		if !containsIndex(merged, entry.Index) {
			merged = append(merged, entry)
		}
	}
	return merged
}

func containsIndex(entries []domain.AccountEntry, index int) bool {
	for _, entry := range entries {
		if entry.Index == index {
			return true
		}
	}
	return false
}

// defaultEVMAddress derives the checksummed address of the wallet's first
// EVM account (m/44'/60'/0'/0/0).
func defaultEVMAddress(w *domain.HDWallet) (string, error) {
	engine, err := walletpkg.NewWalletFromSeedHex(
		walletpkg.NewWalletFromSeedHexOpts{SeedHex: w.SeedHex},
	)
	if err != nil {
		return "", err
	}

	privateKey, _, err := engine.DeriveSigningKeyPair(
		walletpkg.DeriveSigningKeyPairOpts{
			Scheme:         walletpkg.SchemeLegacy,
			CoinType:       evmCoinType,
			DerivationPath: "0'/0/0",
		},
	)
	if err != nil {
		return "", err
	}

	address := ethcrypto.PubkeyToAddress(privateKey.ToECDSA().PublicKey)
	return address.Hex(), nil
}
