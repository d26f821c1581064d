// Package stellar implements the Stellar strkey address format and the
// ed25519 keypair helpers built on top of it.
package stellar

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
)

// Version bytes for strkey encoding. Addresses start with 'G', seeds
// with 'S' once base32 encoded.
const (
	versionByteAccountID byte = 6 << 3
	versionByteSeed      byte = 18 << 3
)

const rawKeySize = 32

var (
	// ErrInvalidStrkey ...
	ErrInvalidStrkey = errors.New("invalid strkey")
	// ErrInvalidStrkeyVersion ...
	ErrInvalidStrkeyVersion = errors.New("invalid strkey version byte")
	// ErrInvalidStrkeyChecksum ...
	ErrInvalidStrkeyChecksum = errors.New("invalid strkey checksum")
	// ErrInvalidRawKeySize ...
	ErrInvalidRawKeySize = errors.New("raw key must be 32 bytes")
)

var strkeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EncodeAccountID encodes a raw ed25519 public key as a G... address.
func EncodeAccountID(raw []byte) (string, error) {
	return encode(versionByteAccountID, raw)
}

// DecodeAccountID decodes a G... address back to the raw public key.
func DecodeAccountID(address string) ([]byte, error) {
	return decode(versionByteAccountID, address)
}

// EncodeSeed encodes a raw ed25519 seed as a S... secret string.
func EncodeSeed(raw []byte) (string, error) {
	return encode(versionByteSeed, raw)
}

// DecodeSeed decodes a S... secret string back to the raw seed.
func DecodeSeed(seed string) ([]byte, error) {
	return decode(versionByteSeed, seed)
}

// IsValidAccountID reports whether the given string is a well-formed
// G... address with a matching checksum.
func IsValidAccountID(address string) bool {
	_, err := DecodeAccountID(address)
	return err == nil
}

func encode(version byte, raw []byte) (string, error) {
	if len(raw) != rawKeySize {
		return "", ErrInvalidRawKeySize
	}

	payload := make([]byte, 0, 1+rawKeySize+2)
	payload = append(payload, version)
	payload = append(payload, raw...)

	checksum := make([]byte, 2)
	binary.LittleEndian.PutUint16(checksum, crc16(payload))
	payload = append(payload, checksum...)

	return strkeyEncoding.EncodeToString(payload), nil
}

func decode(version byte, strkey string) ([]byte, error) {
	payload, err := strkeyEncoding.DecodeString(strkey)
	if err != nil {
		return nil, ErrInvalidStrkey
	}
	if len(payload) != 1+rawKeySize+2 {
		return nil, ErrInvalidStrkey
	}
	if payload[0] != version {
		return nil, ErrInvalidStrkeyVersion
	}

	body, checksum := payload[:len(payload)-2], payload[len(payload)-2:]
	if crc16(body) != binary.LittleEndian.Uint16(checksum) {
		return nil, ErrInvalidStrkeyChecksum
	}

	raw := make([]byte, rawKeySize)
	copy(raw, body[1:])
	return raw, nil
}

// crc16 implements CRC16-XModem (poly 0x1021, zero initial value) as
// mandated by SEP-23 for strkey checksums.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
