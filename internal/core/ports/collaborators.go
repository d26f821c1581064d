package ports

import (
	"context"
	"math/big"
)

// AnalyticsRecorder records key lifecycle events (transaction confirmed,
// rejected). The core only calls out, it never depends on the outcome.
type AnalyticsRecorder interface {
	RecordEvent(name string, properties map[string]interface{})
}

// FeatureFlags gates optional engine behaviors such as enabling a fee
// level.
type FeatureFlags interface {
	IsEnabled(flag string) bool
}

// SignatureTarget is the external counterparty of a sign-only flow, e.g.
// a dApp awaiting a WalletConnect signature.
type SignatureTarget interface {
	// Message returns the payload to sign.
	Message() []byte
	// NotifyRejection tells the counterparty the request was declined.
	// The engine guarantees at most one call per flow.
	NotifyRejection(ctx context.Context) error
}

// DepositOrder is a fiat rails deposit request.
type DepositOrder struct {
	Currency string
	Amount   *big.Int
	Product  string
}

// DepositLimits bounds a fiat deposit in minor units of the currency.
type DepositLimits struct {
	Minimum *big.Int
	Maximum *big.Int
}

// PaymentsClient is the fiat rails provider surface.
type PaymentsClient interface {
	DepositLimits(ctx context.Context, currency string) (*DepositLimits, error)
	CreateDeposit(ctx context.Context, order DepositOrder) (string, error)
}

type noopAnalyticsRecorder struct{}

func (noopAnalyticsRecorder) RecordEvent(string, map[string]interface{}) {}

// NoopAnalyticsRecorder returns a recorder that drops every event.
func NoopAnalyticsRecorder() AnalyticsRecorder { return noopAnalyticsRecorder{} }

type noopFeatureFlags struct{}

func (noopFeatureFlags) IsEnabled(string) bool { return false }

// NoopFeatureFlags returns a flag source with every flag disabled.
func NoopFeatureFlags() FeatureFlags { return noopFeatureFlags{} }
