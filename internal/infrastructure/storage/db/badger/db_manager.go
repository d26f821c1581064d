package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"
)

// DbManager holds all the badgerhold stores in a single data structure.
type DbManager struct {
	UnspentStore *badgerhold.Store
	WalletStore  *badgerhold.Store
}

// NewDbManager opens (or creates if not exists) the badger stores on disk.
// An empty base dir opens throw-away in-memory stores, used by tests.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	unspentDb, err := createDb(baseDbDir, "unspent", logger)
	if err != nil {
		return nil, fmt.Errorf("opening unspent db: %w", err)
	}

	walletDb, err := createDb(baseDbDir, "wallet", logger)
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}

	return &DbManager{
		UnspentStore: unspentDb,
		WalletStore:  walletDb,
	}, nil
}

// Close gracefully closes all the stores.
func (d *DbManager) Close() error {
	if err := d.UnspentStore.Close(); err != nil {
		return err
	}
	return d.WalletStore.Close()
}

func createDb(
	baseDbDir, name string, logger badger.Logger,
) (*badgerhold.Store, error) {
	var opts badger.Options
	if len(baseDbDir) > 0 {
		opts = badger.DefaultOptions(filepath.Join(baseDbDir, name))
	} else {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = logger

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer
	if err := json.NewEncoder(&buff).Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}
