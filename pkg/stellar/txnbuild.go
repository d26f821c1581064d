package stellar

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Network passphrases identifying the ledger a transaction is bound to.
const (
	PublicNetworkPassphrase = "Public Global Stellar Network ; September 2015"
	TestNetworkPassphrase   = "Test SDF Network ; September 2015"
)

// MinBaseFee is the minimum per-operation fee in stroops.
const MinBaseFee uint32 = 100

// XDR discriminants used by the envelope encoder.
const (
	keyTypeEd25519       uint32 = 0
	envelopeTypeTx       uint32 = 2
	memoTypeNone         uint32 = 0
	memoTypeText         uint32 = 1
	precondNone          uint32 = 0
	operationTypePayment uint32 = 1
	assetTypeNative      uint32 = 0
)

const maxMemoTextLen = 28

// ErrMemoTooLong ...
var ErrMemoTooLong = fmt.Errorf(
	"memo text must not exceed %d bytes", maxMemoTextLen,
)

// PaymentOpts is the struct given to BuildPaymentEnvelope.
type PaymentOpts struct {
	Source      *KeyPair
	Destination string
	// Amount is expressed in stroops.
	Amount int64
	// SequenceNumber is the sequence the transaction consumes, i.e. the
	// account's current sequence plus one.
	SequenceNumber    int64
	BaseFee           uint32
	MemoText          string
	NetworkPassphrase string
}

func (o PaymentOpts) validate() error {
	if o.Source == nil {
		return fmt.Errorf("missing source key pair")
	}
	if !IsValidAccountID(o.Destination) {
		return ErrInvalidStrkey
	}
	if o.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if len(o.MemoText) > maxMemoTextLen {
		return ErrMemoTooLong
	}
	if len(o.NetworkPassphrase) <= 0 {
		return fmt.Errorf("missing network passphrase")
	}
	return nil
}

// BuildPaymentEnvelope assembles, signs and base64-encodes a transaction
// envelope carrying a single native-asset payment.
func BuildPaymentEnvelope(opts PaymentOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	baseFee := opts.BaseFee
	if baseFee < MinBaseFee {
		baseFee = MinBaseFee
	}

	sourceRaw, err := DecodeAccountID(opts.Source.Address())
	if err != nil {
		return "", err
	}
	destinationRaw, err := DecodeAccountID(opts.Destination)
	if err != nil {
		return "", err
	}

	var tx bytes.Buffer
	writeMuxedAccount(&tx, sourceRaw)
	writeUint32(&tx, baseFee)
	writeInt64(&tx, opts.SequenceNumber)
	writeUint32(&tx, precondNone)
	if len(opts.MemoText) > 0 {
		writeUint32(&tx, memoTypeText)
		writeVarOpaque(&tx, []byte(opts.MemoText))
	} else {
		writeUint32(&tx, memoTypeNone)
	}
	// single payment operation with no per-op source override
	writeUint32(&tx, 1)
	writeUint32(&tx, 0)
	writeUint32(&tx, operationTypePayment)
	writeMuxedAccount(&tx, destinationRaw)
	writeUint32(&tx, assetTypeNative)
	writeInt64(&tx, opts.Amount)
	// tx ext
	writeUint32(&tx, 0)

	signature := opts.Source.Sign(signaturePayload(
		opts.NetworkPassphrase, tx.Bytes(),
	))

	var envelope bytes.Buffer
	writeUint32(&envelope, envelopeTypeTx)
	envelope.Write(tx.Bytes())
	writeUint32(&envelope, 1)
	envelope.Write(sourceRaw[len(sourceRaw)-4:])
	writeVarOpaque(&envelope, signature)

	return base64.StdEncoding.EncodeToString(envelope.Bytes()), nil
}

// signaturePayload is the hash Stellar signers actually sign: the network
// ID, the envelope type and the transaction XDR.
func signaturePayload(networkPassphrase string, txXDR []byte) []byte {
	networkID := sha256.Sum256([]byte(networkPassphrase))

	var payload bytes.Buffer
	payload.Write(networkID[:])
	writeUint32(&payload, envelopeTypeTx)
	payload.Write(txXDR)

	hash := sha256.Sum256(payload.Bytes())
	return hash[:]
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

// writeVarOpaque writes a variable-length opaque, length-prefixed and
// zero-padded to a 4-byte boundary.
func writeVarOpaque(buf *bytes.Buffer, data []byte) {
	writeUint32(buf, uint32(len(data)))
	buf.Write(data)
	if pad := len(data) % 4; pad != 0 {
		buf.Write(make([]byte, 4-pad))
	}
}

func writeMuxedAccount(buf *bytes.Buffer, raw []byte) {
	writeUint32(buf, keyTypeEd25519)
	buf.Write(raw)
}
