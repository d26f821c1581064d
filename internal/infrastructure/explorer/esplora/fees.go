package esplora

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/veridian-wallet/walletcore/internal/core/ports"
)

// confirmation targets backing the two fee tiers, in blocks
const (
	regularTargetBlocks  = "6"
	priorityTargetBlocks = "2"
)

// FeeRates quotes the regular and priority fee tiers from the indexer's
// fee estimates, in sats per vbyte.
func (s *Service) FeeRates(ctx context.Context) (*ports.FeeRates, error) {
	url := fmt.Sprintf("%s/fee-estimates", s.apiURL)
	resp, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var estimates map[string]float64
	if err := json.Unmarshal([]byte(resp), &estimates); err != nil {
		return nil, fmt.Errorf("error on retrieving fee estimates: %w", err)
	}

	return &ports.FeeRates{
		Regular:  quoteFor(estimates, regularTargetBlocks),
		Priority: quoteFor(estimates, priorityTargetBlocks),
	}, nil
}

func quoteFor(estimates map[string]float64, target string) decimal.Decimal {
	quote, ok := estimates[target]
	if !ok || quote < 1 {
		quote = 1
	}
	return decimal.NewFromFloat(quote)
}
