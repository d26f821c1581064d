// Package horizon implements the Stellar Horizon port over its REST API.
package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/internal/core/ports"
	"github.com/veridian-wallet/walletcore/pkg/circuitbreaker"
	"github.com/veridian-wallet/walletcore/pkg/util"
)

var stroopsPerLumen = decimal.NewFromInt(10_000_000)

type accountResponse struct {
	AccountID     string `json:"account_id"`
	Sequence      string `json:"sequence"`
	SubentryCount uint32 `json:"subentry_count"`
	Balances      []struct {
		AssetType string `json:"asset_type"`
		Balance   string `json:"balance"`
	} `json:"balances"`
}

type submitResponse struct {
	Hash string `json:"hash"`
}

type ledgersResponse struct {
	Embedded struct {
		Records []struct {
			BaseReserveInStroops int64 `json:"base_reserve_in_stroops"`
		} `json:"records"`
	} `json:"_embedded"`
}

// Client talks to a Horizon instance. It implements ports.HorizonClient.
type Client struct {
	apiURL string
	cb     *gobreaker.CircuitBreaker
}

// NewClient returns a Client bound to the given Horizon endpoint.
func NewClient(apiURL string) (*Client, error) {
	if len(apiURL) <= 0 {
		return nil, fmt.Errorf("missing horizon api url")
	}
	return &Client{
		apiURL: apiURL,
		cb:     circuitbreaker.NewCircuitBreaker(),
	}, nil
}

// AccountDetails returns the ledger record of the account,
// domain.ErrEntryNotFound when the account was never funded.
func (c *Client) AccountDetails(
	ctx context.Context, accountID string,
) (*ports.HorizonAccount, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s", c.apiURL, accountID)
	resp, err := c.do(ctx, "GET", endpoint, "", nil)
	if err != nil {
		return nil, err
	}

	var account accountResponse
	if err := json.Unmarshal([]byte(resp), &account); err != nil {
		return nil, fmt.Errorf("error on retrieving account: %w", err)
	}

	sequence, err := strconv.ParseInt(account.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving account: %w", err)
	}

	balance := decimal.Zero
	for _, b := range account.Balances {
		if b.AssetType == "native" {
			balance, err = decimal.NewFromString(b.Balance)
			if err != nil {
				return nil, fmt.Errorf("error on retrieving account: %w", err)
			}
			break
		}
	}

	return &ports.HorizonAccount{
		AccountID:     account.AccountID,
		Sequence:      sequence,
		Balance:       balance,
		SubentryCount: account.SubentryCount,
	}, nil
}

// SubmitTransaction posts the signed envelope and returns the hash of the
// included transaction.
func (c *Client) SubmitTransaction(
	ctx context.Context, envelopeXDR string,
) (string, error) {
	endpoint := fmt.Sprintf("%s/transactions", c.apiURL)
	body := url.Values{"tx": {envelopeXDR}}.Encode()
	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}

	resp, err := c.do(ctx, "POST", endpoint, body, headers)
	if err != nil {
		return "", err
	}

	var submitted submitResponse
	if err := json.Unmarshal([]byte(resp), &submitted); err != nil {
		return "", fmt.Errorf("error on submitting transaction: %w", err)
	}
	return submitted.Hash, nil
}

// BaseReserve returns the current per-entry reserve in lumens, read from
// the latest closed ledger.
func (c *Client) BaseReserve(ctx context.Context) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/ledgers?order=desc&limit=1", c.apiURL)
	resp, err := c.do(ctx, "GET", endpoint, "", nil)
	if err != nil {
		return decimal.Zero, err
	}

	var ledgers ledgersResponse
	if err := json.Unmarshal([]byte(resp), &ledgers); err != nil {
		return decimal.Zero, fmt.Errorf("error on retrieving ledgers: %w", err)
	}
	if len(ledgers.Embedded.Records) <= 0 {
		return decimal.Zero, fmt.Errorf("no closed ledger returned")
	}

	stroops := decimal.NewFromInt(
		ledgers.Embedded.Records[0].BaseReserveInStroops,
	)
	return stroops.Div(stroopsPerLumen), nil
}

func (c *Client) do(
	ctx context.Context,
	method, endpoint, body string,
	headers map[string]string,
) (string, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		status, resp, err := util.NewHTTPRequest(
			ctx, method, endpoint, body, headers,
		)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, domain.ErrEntryNotFound
		}
		if status != http.StatusOK {
			return nil, util.NewHTTPError(status, resp)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	return resp.(string), nil
}
