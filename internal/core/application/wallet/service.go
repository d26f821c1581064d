package wallet

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	walletpkg "github.com/veridian-wallet/walletcore/pkg/wallet"
)

// EntrySyncer pushes account changes through the metadata entry service
// so labels and archival flags survive a wallet restore.
type EntrySyncer interface {
	SyncAccounts(ctx context.Context, w *domain.HDWallet) error
}

// Service implements the wallet use cases: creation, import, account
// management and replenishment.
type Service struct {
	repo   domain.WalletRepository
	syncer EntrySyncer
}

func NewService(repo domain.WalletRepository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("missing wallet repository")
	}
	return &Service{repo: repo}, nil
}

// SetEntrySyncer wires the metadata entry service once both services are
// constructed. Calls made before wiring skip the write-through.
func (s *Service) SetEntrySyncer(syncer EntrySyncer) {
	s.syncer = syncer
}

// CreateOpts is the struct given to Create and Import methods.
type CreateOpts struct {
	Mnemonic   []string
	Passphrase string
	Label      string
}

func (o CreateOpts) validate() error {
	if len(o.Mnemonic) <= 0 {
		return &domain.WalletCreateError{Err: walletpkg.ErrNullMnemonic}
	}
	return nil
}

// Create derives a new HD wallet from the given mnemonic with a single
// default account and persists it.
func (s *Service) Create(
	ctx context.Context, opts CreateOpts,
) (*domain.HDWallet, error) {
	return s.create(ctx, opts, false)
}

// Import behaves like Create for a mnemonic restored from a backup. The
// mnemonic is marked verified since the user proved ownership of it.
func (s *Service) Import(
	ctx context.Context, opts CreateOpts,
) (*domain.HDWallet, error) {
	return s.create(ctx, opts, true)
}

func (s *Service) create(
	ctx context.Context, opts CreateOpts, mnemonicVerified bool,
) (*domain.HDWallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	engine, err := walletpkg.NewWalletFromMnemonic(
		walletpkg.NewWalletFromMnemonicOpts{
			Mnemonic:   opts.Mnemonic,
			Passphrase: opts.Passphrase,
		},
	)
	if err != nil {
		return nil, &domain.WalletCreateError{Err: err}
	}

	seedHex, err := engine.SeedHex()
	if err != nil {
		return nil, &domain.WalletCreateError{Err: err}
	}

	hdWallet, err := domain.NewHDWallet(seedHex, opts.Passphrase, opts.Label)
	if err != nil {
		return nil, err
	}
	hdWallet.MnemonicVerified = mnemonicVerified

	if err := s.repo.InitWallet(ctx, hdWallet); err != nil {
		return nil, err
	}

	s.syncEntries(ctx, hdWallet)

	log.Debugf(
		"created wallet with %d account(s)", len(hdWallet.Accounts),
	)
	return hdWallet, nil
}

// CurrentWallet returns the loaded wallet,
// domain.ErrWalletNotInitialized before creation or import.
func (s *Service) CurrentWallet(ctx context.Context) (*domain.HDWallet, error) {
	return s.repo.GetWallet(ctx)
}

// VerifyMnemonic checks the given mnemonic against the stored seed and
// marks it verified on match.
func (s *Service) VerifyMnemonic(ctx context.Context, mnemonic []string) error {
	return s.repo.UpdateWallet(
		ctx,
		func(w *domain.HDWallet) (*domain.HDWallet, error) {
			engine, err := walletpkg.NewWalletFromMnemonic(
				walletpkg.NewWalletFromMnemonicOpts{
					Mnemonic:   mnemonic,
					Passphrase: w.Passphrase,
				},
			)
			if err != nil {
				return nil, err
			}
			seedHex, err := engine.SeedHex()
			if err != nil {
				return nil, err
			}
			if !strings.EqualFold(seedHex, w.SeedHex) {
				return nil, walletpkg.ErrInvalidMnemonic
			}
			w.MnemonicVerified = true
			return w, nil
		},
	)
}

// AddAccount appends a new derived account to the wallet.
func (s *Service) AddAccount(
	ctx context.Context, label string,
) (*domain.Account, error) {
	var account *domain.Account
	if err := s.repo.UpdateWallet(
		ctx,
		func(w *domain.HDWallet) (*domain.HDWallet, error) {
			newAccount, err := w.AddAccount(label)
			if err != nil {
				return nil, err
			}
			account = newAccount
			return w, nil
		},
	); err != nil {
		return nil, err
	}

	s.syncCurrent(ctx)
	return account, nil
}

// ReplenishAccounts reconciles derivation coverage over every account.
// Complete accounts are untouched, so running it twice is a no-op.
func (s *Service) ReplenishAccounts(ctx context.Context) error {
	return s.repo.UpdateWallet(
		ctx,
		func(w *domain.HDWallet) (*domain.HDWallet, error) {
			if err := w.ReplenishAccounts(); err != nil {
				return nil, err
			}
			return w, nil
		},
	)
}

// SetDefaultAccount changes the account used when none is specified.
func (s *Service) SetDefaultAccount(ctx context.Context, index uint32) error {
	return s.repo.UpdateWallet(
		ctx,
		func(w *domain.HDWallet) (*domain.HDWallet, error) {
			if _, err := w.Account(index); err != nil {
				return nil, err
			}
			w.DefaultAccountIndex = index
			return w, nil
		},
	)
}

// UpdateAccountLabel renames an account and writes the change through the
// metadata entry service.
func (s *Service) UpdateAccountLabel(
	ctx context.Context, index uint32, label string,
) error {
	if err := s.repo.UpdateWallet(
		ctx,
		func(w *domain.HDWallet) (*domain.HDWallet, error) {
			account, err := w.Account(index)
			if err != nil {
				return nil, err
			}
			account.Label = label
			return w, nil
		},
	); err != nil {
		return err
	}

	s.syncCurrent(ctx)
	return nil
}

// ArchiveAccount hides an account from balances and sends without
// discarding its derivations.
func (s *Service) ArchiveAccount(
	ctx context.Context, index uint32, archived bool,
) error {
	if err := s.repo.UpdateWallet(
		ctx,
		func(w *domain.HDWallet) (*domain.HDWallet, error) {
			account, err := w.Account(index)
			if err != nil {
				return nil, err
			}
			if account.Index == w.DefaultAccountIndex && archived {
				return nil, fmt.Errorf("cannot archive the default account")
			}
			account.Archived = archived
			return w, nil
		},
	); err != nil {
		return err
	}

	s.syncCurrent(ctx)
	return nil
}

func (s *Service) syncCurrent(ctx context.Context) {
	w, err := s.repo.GetWallet(ctx)
	if err != nil {
		log.WithError(err).Warn("skipping metadata sync")
		return
	}
	s.syncEntries(ctx, w)
}

func (s *Service) syncEntries(ctx context.Context, w *domain.HDWallet) {
	if s.syncer == nil {
		return
	}
	if err := s.syncer.SyncAccounts(ctx, w); err != nil {
		// the entry service retries on its own, account state is already
		// persisted locally
		log.WithError(err).Warn("failed to sync account metadata entries")
	}
}
