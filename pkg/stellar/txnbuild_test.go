package stellar

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeyPair(t *testing.T, tag byte) *KeyPair {
	t.Helper()

	rawSeed := bytes.Repeat([]byte{tag}, 32)
	kp, err := KeyPairFromRawSeed(rawSeed)
	require.NoError(t, err)
	return kp
}

func TestBuildPaymentEnvelope(t *testing.T) {
	source := testKeyPair(t, 0x01)
	destination := testKeyPair(t, 0x02)

	envelope, err := BuildPaymentEnvelope(PaymentOpts{
		Source:            source,
		Destination:       destination.Address(),
		Amount:            10_0000000,
		SequenceNumber:    42,
		MemoText:          "order 7",
		NetworkPassphrase: TestNetworkPassphrase,
	})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(envelope)
	require.NoError(t, err)

	// envelope type, then the source account of the transaction
	require.Equal(t, []byte{0, 0, 0, 2}, raw[:4])
	require.Equal(t, []byte{0, 0, 0, 0}, raw[4:8])
	sourceRaw, err := DecodeAccountID(source.Address())
	require.NoError(t, err)
	require.Equal(t, sourceRaw, raw[8:40])

	// the signature covers sha256(networkID || envelopeType || tx)
	txXDR := raw[4 : len(raw)-4-4-4-64]
	networkID := sha256.Sum256([]byte(TestNetworkPassphrase))
	var payload bytes.Buffer
	payload.Write(networkID[:])
	payload.Write([]byte{0, 0, 0, 2})
	payload.Write(txXDR)
	hash := sha256.Sum256(payload.Bytes())

	signature := raw[len(raw)-64:]
	require.NoError(t, source.Verify(hash[:], signature))

	// signature hint is the tail of the signing key
	hint := raw[len(raw)-64-4-4 : len(raw)-64-4]
	require.Equal(t, sourceRaw[28:], hint)
}

func TestBuildPaymentEnvelopeNoMemoIsShorter(t *testing.T) {
	source := testKeyPair(t, 0x03)
	destination := testKeyPair(t, 0x04)

	withMemo, err := BuildPaymentEnvelope(PaymentOpts{
		Source:            source,
		Destination:       destination.Address(),
		Amount:            1,
		SequenceNumber:    1,
		MemoText:          "hello",
		NetworkPassphrase: PublicNetworkPassphrase,
	})
	require.NoError(t, err)

	withoutMemo, err := BuildPaymentEnvelope(PaymentOpts{
		Source:            source,
		Destination:       destination.Address(),
		Amount:            1,
		SequenceNumber:    1,
		NetworkPassphrase: PublicNetworkPassphrase,
	})
	require.NoError(t, err)
	require.Greater(t, len(withMemo), len(withoutMemo))
}

func TestFailingBuildPaymentEnvelope(t *testing.T) {
	source := testKeyPair(t, 0x05)
	destination := testKeyPair(t, 0x06)

	tests := []struct {
		name string
		opts PaymentOpts
	}{
		{
			name: "missing_source",
			opts: PaymentOpts{
				Destination:       destination.Address(),
				Amount:            1,
				SequenceNumber:    1,
				NetworkPassphrase: PublicNetworkPassphrase,
			},
		},
		{
			name: "invalid_destination",
			opts: PaymentOpts{
				Source:            source,
				Destination:       "not an address",
				Amount:            1,
				SequenceNumber:    1,
				NetworkPassphrase: PublicNetworkPassphrase,
			},
		},
		{
			name: "non_positive_amount",
			opts: PaymentOpts{
				Source:            source,
				Destination:       destination.Address(),
				Amount:            0,
				SequenceNumber:    1,
				NetworkPassphrase: PublicNetworkPassphrase,
			},
		},
		{
			name: "memo_too_long",
			opts: PaymentOpts{
				Source:            source,
				Destination:       destination.Address(),
				Amount:            1,
				SequenceNumber:    1,
				MemoText:          "this memo text is way longer than the limit",
				NetworkPassphrase: PublicNetworkPassphrase,
			},
		},
		{
			name: "missing_network_passphrase",
			opts: PaymentOpts{
				Source:         source,
				Destination:    destination.Address(),
				Amount:         1,
				SequenceNumber: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPaymentEnvelope(tt.opts)
			require.Error(t, err)
		})
	}
}
