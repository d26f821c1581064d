package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/veridian-wallet/walletcore/config"
	"github.com/veridian-wallet/walletcore/internal/core/application/metadata"
	"github.com/veridian-wallet/walletcore/internal/core/application/unspents"
	"github.com/veridian-wallet/walletcore/internal/core/application/wallet"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	"github.com/veridian-wallet/walletcore/internal/infrastructure/explorer/esplora"
	"github.com/veridian-wallet/walletcore/internal/infrastructure/metadatastore"
	dbbadger "github.com/veridian-wallet/walletcore/internal/infrastructure/storage/db/badger"
	boltsecurestore "github.com/veridian-wallet/walletcore/pkg/securestore/bolt"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	dbManager, err := dbbadger.NewDbManager(dbDir, nil)
	if err != nil {
		log.WithError(err).Fatal("error opening db")
	}
	defer dbManager.Close()

	walletRepo := dbbadger.NewWalletRepositoryImpl(dbManager)
	unspentRepo := dbbadger.NewUnspentRepositoryImpl(dbManager)

	walletSvc, err := wallet.NewService(walletRepo)
	if err != nil {
		log.WithError(err).Fatal("error creating wallet service")
	}

	if endpoint := config.GetString(config.MetadataEndpointKey); endpoint != "" {
		store, err := newMetadataStore(endpoint, dbDir)
		if err != nil {
			log.WithError(err).Fatal("error creating metadata store")
		}
		metadataSvc, err := metadata.NewService(store, walletSvc)
		if err != nil {
			log.WithError(err).Fatal("error creating metadata service")
		}
		walletSvc.SetEntrySyncer(metadataSvc)
	}

	indexer, err := esplora.NewService(esplora.ServiceOpts{
		APIURL:      config.GetString(config.ExplorerEndpointKey),
		ChainParams: config.GetChainParams(),
	})
	if err != nil {
		log.WithError(err).Fatal("error creating explorer service")
	}
	if _, err := unspents.NewService(unspentRepo, indexer); err != nil {
		log.WithError(err).Fatal("error creating unspents service")
	}

	ctx := context.Background()
	if _, err := walletSvc.CurrentWallet(ctx); err == nil {
		if err := walletSvc.ReplenishAccounts(ctx); err != nil {
			log.WithError(err).Warn("error replenishing accounts")
		}
	} else if !errors.Is(err, domain.ErrWalletNotInitialized) {
		log.WithError(err).Fatal("error loading wallet")
	}

	log.Debug("wallet core is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Debug("exiting")
}

// newMetadataStore wires the remote entry store, mirrored into the local
// encrypted store when a password is configured.
func newMetadataStore(endpoint, dbDir string) (ports.MetadataStore, error) {
	remote, err := metadatastore.NewRemoteStore(endpoint)
	if err != nil {
		return nil, err
	}

	password := config.GetString(config.StorePasswordKey)
	if password == "" {
		return remote, nil
	}

	local, err := boltsecurestore.NewSecureStorage(dbDir, "metadata.db")
	if err != nil {
		return nil, err
	}
	pwd := []byte(password)
	if err := local.CreateUnlock(&pwd); err != nil {
		return nil, err
	}
	return metadatastore.NewFallbackStore(remote, local)
}
