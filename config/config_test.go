package config

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestInitConfigDefaults(t *testing.T) {
	t.Setenv("WALLET_DATA_DIR_PATH", t.TempDir())

	require.NoError(t, InitConfig())
	require.Equal(t, "mainnet", GetString(NetworkKey))
	require.Equal(t, 546, GetInt(DustThresholdKey))
	require.Equal(t, "https://blockstream.info/api", GetString(ExplorerEndpointKey))
	require.Equal(t, &chaincfg.MainNetParams, GetChainParams())
}

func TestGetChainParams(t *testing.T) {
	tests := []struct {
		network string
		want    *chaincfg.Params
	}{
		{"mainnet", &chaincfg.MainNetParams},
		{"testnet", &chaincfg.TestNet3Params},
		{"regtest", &chaincfg.RegressionNetParams},
	}
	for _, tt := range tests {
		t.Run(tt.network, func(t *testing.T) {
			t.Setenv("WALLET_DATA_DIR_PATH", t.TempDir())
			t.Setenv("WALLET_NETWORK", tt.network)

			require.NoError(t, InitConfig())
			require.Equal(t, tt.want, GetChainParams())
		})
	}
}

func TestFailingInitConfig(t *testing.T) {
	t.Setenv("WALLET_DATA_DIR_PATH", t.TempDir())
	t.Setenv("WALLET_NETWORK", "liquid")

	err := InitConfig()
	require.Error(t, err)
	require.Contains(t, err.Error(), "network must be either")
}
