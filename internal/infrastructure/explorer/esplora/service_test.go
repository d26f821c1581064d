package esplora_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/infrastructure/explorer/esplora"
)

const testAddress = "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"

func newTestService(
	t *testing.T, handler http.Handler,
) (*esplora.Service, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := esplora.NewService(esplora.ServiceOpts{
		APIURL:      server.URL,
		ChainParams: &chaincfg.MainNetParams,
		PathResolver: func(address string) (string, bool) {
			if address == testAddress {
				return "0'/0/0", true
			}
			return "", false
		},
	})
	require.NoError(t, err)
	return svc, server
}

func testRawTx(t *testing.T) (string, string) {
	t.Helper()

	tx := wire.NewMsgTx(2)
	hash, err := chainhash.NewHashFromStr(
		"aa00000000000000000000000000000000000000000000000000000000000001",
	)
	require.NoError(t, err)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x00, 0x14}))

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String()
}

func TestGetUnspents(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(
			t, fmt.Sprintf("/address/%s/utxo", testAddress), r.URL.Path,
		)
		fmt.Fprint(w, `[
			{"txid":"aa01","vout":0,"value":10000,"status":{"confirmed":true}},
			{"txid":"aa02","vout":1,"value":5000,"status":{"confirmed":false}}
		]`)
	})
	svc, _ := newTestService(t, handler)

	unspents, err := svc.GetUnspents(context.Background(), []string{testAddress})
	require.NoError(t, err)
	require.Len(t, unspents, 2)

	require.Equal(t, "aa01", unspents[0].TxID)
	require.Equal(t, uint64(10000), unspents[0].Value)
	require.True(t, unspents[0].Confirmed)
	require.Equal(t, "0'/0/0", unspents[0].DerivationPath)
	require.NotEmpty(t, unspents[0].Script)

	require.Equal(t, "aa02", unspents[1].TxID)
	require.False(t, unspents[1].Confirmed)
}

func TestFeeRates(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/fee-estimates", r.URL.Path)
		fmt.Fprint(w, `{"1":20.5,"2":15.0,"6":5.2,"144":1.1}`)
	})
	svc, _ := newTestService(t, handler)

	rates, err := svc.FeeRates(context.Background())
	require.NoError(t, err)
	require.Equal(t, "5.2", rates.Regular.String())
	require.Equal(t, "15", rates.Priority.String())
}

func TestFeeRatesFloorsAtOne(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"2":0.2}`)
	})
	svc, _ := newTestService(t, handler)

	rates, err := svc.FeeRates(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1", rates.Regular.String())
	require.Equal(t, "1", rates.Priority.String())
}

func TestBroadcastTransaction(t *testing.T) {
	t.Parallel()

	rawTx, txHash := testRawTx(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tx", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, txHash)
	})
	svc, _ := newTestService(t, handler)

	hash, err := svc.BroadcastTransaction(context.Background(), rawTx)
	require.NoError(t, err)
	require.Equal(t, txHash, hash)
}

func TestBroadcastTransactionAlreadyKnown(t *testing.T) {
	t.Parallel()

	rawTx, txHash := testRawTx(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "sendrawtransaction RPC error: txn-already-in-mempool")
	})
	svc, _ := newTestService(t, handler)

	hash, err := svc.BroadcastTransaction(context.Background(), rawTx)
	require.NoError(t, err)
	require.Equal(t, txHash, hash)
}

func TestBroadcastTransactionRejected(t *testing.T) {
	t.Parallel()

	rawTx, _ := testRawTx(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "sendrawtransaction RPC error: dust")
	})
	svc, _ := newTestService(t, handler)

	_, err := svc.BroadcastTransaction(context.Background(), rawTx)
	require.ErrorIs(t, err, domain.ErrBroadcastRejected)
}

func TestIsHealthy(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/blocks/tip/height", r.URL.Path)
		fmt.Fprint(w, "800000")
	})
	svc, server := newTestService(t, handler)

	require.True(t, svc.IsHealthy(context.Background()))

	server.Close()
	require.False(t, svc.IsHealthy(context.Background()))
}
