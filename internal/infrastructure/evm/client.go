// Package evm implements the EVM chain port on top of the go-ethereum
// JSON-RPC client.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

// balanceOf(address)
var erc20BalanceOfSelector = ethcrypto.Keccak256(
	[]byte("balanceOf(address)"),
)[:4]

// node responses meaning the transaction already sits in the pool
var alreadyKnownMarkers = []string{
	"already known",
	"ALREADY_EXISTS",
}

// Client wraps an ethclient connection. It implements ports.EVMClient.
type Client struct {
	eth *ethclient.Client
}

// NewClient dials the given JSON-RPC endpoint.
func NewClient(rpcURL string) (*Client, error) {
	if len(rpcURL) <= 0 {
		return nil, fmt.Errorf("missing evm rpc url")
	}
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{eth: eth}, nil
}

// Close tears down the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *Client) BalanceAt(
	ctx context.Context, account common.Address,
) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, account, nil)
}

// TokenBalanceAt reads the ERC-20 balance with an eth_call against the
// token contract.
func (c *Client) TokenBalanceAt(
	ctx context.Context, contract, account common.Address,
) (*big.Int, error) {
	data := make([]byte, 0, 4+32)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(account.Bytes(), 32)...)

	result, err := c.eth.CallContract(ctx, goethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(result), nil
}

func (c *Client) PendingNonceAt(
	ctx context.Context, account common.Address,
) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

// SendTransaction broadcasts the signed transaction. A transaction the
// pool already knows is reported as a success, a node rejection as
// domain.ErrBroadcastRejected and a transport failure, the outcome of
// which is unknown, as domain.ErrBroadcastAmbiguous.
func (c *Client) SendTransaction(
	ctx context.Context, tx *types.Transaction,
) error {
	err := c.eth.SendTransaction(ctx, tx)
	if err == nil {
		return nil
	}
	for _, marker := range alreadyKnownMarkers {
		if strings.Contains(err.Error(), marker) {
			return nil
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrBroadcastAmbiguous, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrBroadcastRejected, err)
}
