package wallet

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationPath is the internal representation of a hierarchical
// deterministic wallet account
type DerivationPath []uint32

// Scheme identifies the address/key format of a derivation. Every account of
// the HD wallet carries one derivation per supported scheme, each rooted at
// its own BIP43 purpose.
type Scheme int

const (
	// SchemeLegacy is BIP44 P2PKH derivation (m/44'/coin').
	SchemeLegacy Scheme = iota
	// SchemeSegwit is BIP84 P2WPKH derivation (m/84'/coin').
	SchemeSegwit
)

func (s Scheme) String() string {
	switch s {
	case SchemeLegacy:
		return "legacy"
	case SchemeSegwit:
		return "segwit"
	default:
		return "unknown"
	}
}

// BasePath returns the purpose/coin prefix the scheme's derivations are
// rooted at.
func (s Scheme) BasePath(coinType uint32) (DerivationPath, error) {
	switch s {
	case SchemeLegacy:
		return DerivationPath{
			hdkeychain.HardenedKeyStart + 44,
			hdkeychain.HardenedKeyStart + coinType,
		}, nil
	case SchemeSegwit:
		return DerivationPath{
			hdkeychain.HardenedKeyStart + 84,
			hdkeychain.HardenedKeyStart + coinType,
		}, nil
	default:
		return nil, ErrUnknownScheme
	}
}

// ParseDerivationPath converts a derivation path string to the
// internal binary representation
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	var path DerivationPath

	elems := strings.Split(strPath, "/")
	switch {
	case strPath == "":
		return nil, ErrNullDerivationPath

	case containsEmptyString(elems):
		return nil, ErrMalformedDerivationPath
	case len(elems) < 2:
		return nil, ErrMalformedDerivationPath

	case len(elems) > 1:
		if strings.TrimSpace(elems[0]) == "m" {
			elems = elems[1:]
		}

	default:
		return nil, ErrInvalidDerivationPath
	}

	// all remaining elems are relative, append one by one
	for _, elem := range elems {
		elem = strings.TrimSpace(elem)
		var value uint32

		if strings.HasSuffix(elem, "'") {
			value = hdkeychain.HardenedKeyStart
			elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
		}

		// use big int for convertion
		bigval, ok := new(big.Int).SetString(elem, 0)
		if !ok {
			return nil, fmt.Errorf("invalid elem '%s' in path", elem)
		}

		max := math.MaxUint32 - value
		if bigval.Sign() < 0 || bigval.Cmp(big.NewInt(int64(max))) > 0 {
			if value == 0 {
				return nil, fmt.Errorf("elem %v must be in range [0, %d]", bigval, max)
			}
			return nil, fmt.Errorf("elem %v must be in hardened range [0, %d]", bigval, max)
		}
		value += uint32(bigval.Uint64())

		path = append(path, value)
	}

	return path, nil
}

// String converts a binary derivation path to its canonical representation
func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	result := "m"
	for _, component := range path {
		var hardened bool
		if component >= hdkeychain.HardenedKeyStart {
			component -= hdkeychain.HardenedKeyStart
			hardened = true
		}
		result = fmt.Sprintf("%s/%d", result, component)
		if hardened {
			result += "'"
		}
	}
	return result
}

func containsEmptyString(composedPath []string) bool {
	for _, s := range composedPath {
		if s == "" {
			return true
		}
	}
	return false
}

// checkDerivationPath enforces the relative "account'/chain/index" form used
// for all signing key derivations below a scheme's base path.
func checkDerivationPath(path DerivationPath) error {
	if len(path) != 3 {
		return ErrInvalidDerivationPathLength
	}
	// first elem must be hardened!
	if path[0] < hdkeychain.HardenedKeyStart {
		return ErrInvalidDerivationPathAccount
	}
	return nil
}
