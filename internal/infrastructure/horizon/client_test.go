package horizon_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/infrastructure/horizon"
)

const testAccountID = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"

func newTestClient(t *testing.T, handler http.Handler) *horizon.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := horizon.NewClient(server.URL)
	require.NoError(t, err)
	return client
}

func TestAccountDetails(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/"+testAccountID, r.URL.Path)
		fmt.Fprintf(w, `{
			"account_id": %q,
			"sequence": "123456789",
			"subentry_count": 3,
			"balances": [
				{"asset_type": "credit_alphanum4", "balance": "12.0"},
				{"asset_type": "native", "balance": "100.5000000"}
			]
		}`, testAccountID)
	})
	client := newTestClient(t, handler)

	account, err := client.AccountDetails(context.Background(), testAccountID)
	require.NoError(t, err)
	require.Equal(t, testAccountID, account.AccountID)
	require.Equal(t, int64(123456789), account.Sequence)
	require.Equal(t, uint32(3), account.SubentryCount)
	require.Equal(t, "100.5", account.Balance.String())
}

func TestAccountDetailsNotFound(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status": 404}`)
	})
	client := newTestClient(t, handler)

	_, err := client.AccountDetails(context.Background(), testAccountID)
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestSubmitTransaction(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "AAAA-envelope", r.PostForm.Get("tx"))
		fmt.Fprint(w, `{"hash": "deadbeef"}`)
	})
	client := newTestClient(t, handler)

	hash, err := client.SubmitTransaction(context.Background(), "AAAA-envelope")
	require.NoError(t, err)
	require.Equal(t, "deadbeef", hash)
}

func TestBaseReserve(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ledgers", r.URL.Path)
		fmt.Fprint(w, `{
			"_embedded": {
				"records": [{"base_reserve_in_stroops": 5000000}]
			}
		}`)
	})
	client := newTestClient(t, handler)

	reserve, err := client.BaseReserve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.5", reserve.String())
}
