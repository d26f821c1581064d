package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory to store the internal state of the wallet
	DatadirKey = "DATA_DIR_PATH"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NetworkKey is the Bitcoin network to use. Either "mainnet", "testnet" or "regtest"
	NetworkKey = "NETWORK"
	// ExplorerEndpointKey is the endpoint where the Esplora REST API is listening
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// EVMRPCEndpointKey is the JSON-RPC endpoint of the EVM node to broadcast through
	EVMRPCEndpointKey = "EVM_RPC_ENDPOINT"
	// HorizonEndpointKey is the endpoint where the Stellar Horizon REST API is listening
	HorizonEndpointKey = "HORIZON_ENDPOINT"
	// MetadataEndpointKey is the endpoint of the remote metadata entry service
	MetadataEndpointKey = "METADATA_ENDPOINT"
	// StorePasswordKey is the password unlocking the encrypted local store
	// that mirrors metadata entries for offline use
	StorePasswordKey = "STORE_PASSWORD"
	// DustThresholdKey is the amount in satoshis under which an output is considered dust
	DustThresholdKey = "DUST_THRESHOLD"
	// UnspentsTTLKey is the duration in seconds the cached unspents stay fresh before a refresh
	UnspentsTTLKey = "UNSPENTS_TTL"
	// FeatureFlagsKey is the list of feature flags enabled for transaction flows
	FeatureFlagsKey = "FEATURE_FLAGS"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"

	DbLocation = "db"

	networkMainnet = "mainnet"
	networkTestnet = "testnet"
	networkRegtest = "regtest"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("walletcore", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("WALLET")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NetworkKey, networkMainnet)
	vip.SetDefault(ExplorerEndpointKey, "https://blockstream.info/api")
	vip.SetDefault(HorizonEndpointKey, "https://horizon.stellar.org")
	vip.SetDefault(DustThresholdKey, 546)
	vip.SetDefault(UnspentsTTLKey, 120)
	vip.SetDefault(DBTypeKey, "badger")

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetChainParams maps the configured network name to its chain
// parameters.
func GetChainParams() *chaincfg.Params {
	switch GetString(NetworkKey) {
	case networkTestnet:
		return &chaincfg.TestNet3Params
	case networkRegtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	networkName := GetString(NetworkKey)
	if networkName != networkMainnet && networkName != networkTestnet &&
		networkName != networkRegtest {
		return fmt.Errorf(
			"network must be either '%s', '%s' or '%s'",
			networkMainnet, networkTestnet, networkRegtest,
		)
	}

	for _, key := range []string{
		ExplorerEndpointKey, EVMRPCEndpointKey,
		HorizonEndpointKey, MetadataEndpointKey,
	} {
		endpoint := GetString(key)
		if endpoint == "" {
			continue
		}
		if _, err := url.Parse(endpoint); err != nil {
			return fmt.Errorf("%s is not a valid url: %s", key, err)
		}
	}

	if GetInt(DustThresholdKey) < 0 {
		return fmt.Errorf("dust threshold must not be a negative number")
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	return makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
