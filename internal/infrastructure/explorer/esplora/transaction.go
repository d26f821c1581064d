package esplora

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/sony/gobreaker"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/pkg/util"
)

// responses Esplora returns when the transaction already made it to the
// mempool or the chain through another path
var alreadyBroadcastMarkers = []string{
	"Transaction already in block chain",
	"txn-already-in-mempool",
	"txn-already-known",
}

// BroadcastTransaction submits the raw transaction. A transaction the
// network already knows is reported as a success with its hash, a
// rejection as domain.ErrBroadcastRejected and any unknown outcome,
// timeouts included, as domain.ErrBroadcastAmbiguous.
func (s *Service) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	txHash, err := hashFromHex(txHex)
	if err != nil {
		return "", fmt.Errorf("invalid raw transaction: %w", err)
	}

	url := fmt.Sprintf("%s/tx", s.apiURL)
	headers := map[string]string{"Content-Type": "text/plain"}

	resp, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := util.NewHTTPRequest(ctx, "POST", url, txHex, headers)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBroadcastAmbiguous, err)
		}
		if status != http.StatusOK {
			if isAlreadyBroadcast(resp) {
				return txHash, nil
			}
			return nil, fmt.Errorf("%w: %s", domain.ErrBroadcastRejected, resp)
		}
		return resp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", fmt.Errorf("%w: %v", domain.ErrBroadcastAmbiguous, err)
		}
		return "", err
	}

	broadcastHash := strings.TrimSpace(resp.(string))
	if len(broadcastHash) <= 0 {
		broadcastHash = txHash
	}
	return broadcastHash, nil
}

func isAlreadyBroadcast(response string) bool {
	for _, marker := range alreadyBroadcastMarkers {
		if strings.Contains(response, marker) {
			return true
		}
	}
	return false
}

func hashFromHex(txHex string) (string, error) {
	rawTx, err := hex.DecodeString(txHex)
	if err != nil {
		return "", err
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return "", err
	}
	return tx.TxHash().String(), nil
}
