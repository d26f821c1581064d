package esplora

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/veridian-wallet/walletcore/internal/core/domain"
	"github.com/veridian-wallet/walletcore/pkg/util"
)

type utxoStatus struct {
	Confirmed bool `json:"confirmed"`
}

type utxo struct {
	TxID   string     `json:"txid"`
	VOut   uint32     `json:"vout"`
	Value  uint64     `json:"value"`
	Status utxoStatus `json:"status"`
}

// GetUnspents returns the unspent outputs of the given addresses, each
// one carrying the script and derivation path needed to spend it.
func (s *Service) GetUnspents(
	ctx context.Context, addresses []string,
) ([]domain.UnspentOutput, error) {
	chUnspents := make(chan []domain.UnspentOutput)
	chErr := make(chan error, 1)
	unspents := make([]domain.UnspentOutput, 0)

	for _, addr := range addresses {
		go s.getUnspentsForAddress(ctx, addr, chUnspents, chErr)

		select {
		case err := <-chErr:
			close(chErr)
			close(chUnspents)
			return nil, err
		case unspentsForAddress := <-chUnspents:
			unspents = append(unspents, unspentsForAddress...)
		}
	}

	return unspents, nil
}

func (s *Service) getUnspentsForAddress(
	ctx context.Context,
	address string,
	chUnspents chan []domain.UnspentOutput,
	chErr chan error,
) {
	unspents, err := s.getUnspents(ctx, address)
	if err != nil {
		chErr <- err
		return
	}
	chUnspents <- unspents
}

func (s *Service) getUnspents(
	ctx context.Context, address string,
) ([]domain.UnspentOutput, error) {
	url := fmt.Sprintf("%s/address/%s/utxo", s.apiURL, address)
	resp, err := s.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %w", err)
	}

	var utxos []utxo
	if err := json.Unmarshal([]byte(resp), &utxos); err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %w", err)
	}

	script, err := s.scriptForAddress(address)
	if err != nil {
		return nil, err
	}
	derivationPath, _ := s.pathResolver(address)

	unspents := make([]domain.UnspentOutput, 0, len(utxos))
	for _, out := range utxos {
		unspents = append(unspents, domain.UnspentOutput{
			TxID:           out.TxID,
			VOut:           out.VOut,
			Value:          out.Value,
			Address:        address,
			Script:         script,
			DerivationPath: derivationPath,
			Confirmed:      out.Status.Confirmed,
		})
	}
	return unspents, nil
}

func (s *Service) scriptForAddress(address string) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(address, s.chainParams)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(decoded)
}

func (s *Service) get(ctx context.Context, url string) (string, error) {
	resp, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := util.NewHTTPRequest(ctx, "GET", url, "", nil)
		if err != nil {
			return nil, err
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
