package stellar

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16XModem(t *testing.T) {
	// standard check value for CRC16/XMODEM
	require.Equal(t, uint16(0x31c3), crc16([]byte("123456789")))
	require.Equal(t, uint16(0), crc16(nil))
}

func TestEncodeDecodeAccountID(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 32)

	address, err := EncodeAccountID(raw)
	require.NoError(t, err)
	require.Len(t, address, 56)
	require.Equal(t, byte('G'), address[0])

	decoded, err := DecodeAccountID(address)
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
	require.True(t, IsValidAccountID(address))
}

func TestEncodeDecodeSeed(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01}, 32)

	seed, err := EncodeSeed(raw)
	require.NoError(t, err)
	require.Len(t, seed, 56)
	require.Equal(t, byte('S'), seed[0])

	decoded, err := DecodeSeed(seed)
	require.NoError(t, err)
	require.Equal(t, raw, decoded)
}

func TestFailingDecode(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 32)
	address, err := EncodeAccountID(raw)
	require.NoError(t, err)

	t.Run("wrong_version", func(t *testing.T) {
		_, err := DecodeSeed(address)
		require.EqualError(t, err, ErrInvalidStrkeyVersion.Error())
	})

	t.Run("corrupted_checksum", func(t *testing.T) {
		corrupted := []byte(address)
		if corrupted[10] == 'A' {
			corrupted[10] = 'B'
		} else {
			corrupted[10] = 'A'
		}
		_, err := DecodeAccountID(string(corrupted))
		require.Error(t, err)
		require.False(t, IsValidAccountID(string(corrupted)))
	})

	t.Run("not_base32", func(t *testing.T) {
		_, err := DecodeAccountID("not a strkey at all")
		require.EqualError(t, err, ErrInvalidStrkey.Error())
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeAccountID(address[:20])
		require.Error(t, err)
	})
}

func TestFailingEncode(t *testing.T) {
	_, err := EncodeAccountID([]byte{0x01, 0x02})
	require.EqualError(t, err, ErrInvalidRawKeySize.Error())
}
