package wallet

// Script types recognized by the size estimator.
const (
	P2PKH = iota
	P2SH_P2WPKH
	P2WPKH
)

var (
	scriptSigSizeByScriptType = map[int]int{
		P2PKH:       107, // len + sig + len + compressed pubkey
		P2SH_P2WPKH: 23,  // len + p2wpkh redeem script
		P2WPKH:      1,   // no scriptsig, still len is serialized
	}
	scriptPubKeySizeByScriptType = map[int]int{
		P2PKH:       26, // len + opcodes (3) + hash(pubkey) + opcodes (2)
		P2SH_P2WPKH: 24, // len + opcodes (2) + hash(script) + opcode
		P2WPKH:      23, // len + opcodes (2) + hash(pubkey)
	}
)

// EstimateTxSize makes an estimation of the virtual size of a transaction
// for which is required to specify the script type of every input and output.
// Unknown types are treated as P2WPKH.
func EstimateTxSize(inScriptTypes, outScriptTypes []int) int {
	baseSize := calcTxSize(false, inScriptTypes, outScriptTypes)
	totalSize := calcTxSize(true, inScriptTypes, outScriptTypes)

	weight := baseSize*3 + totalSize
	vsize := (weight + 3) / 4

	return vsize
}

func calcTxSize(withWitness bool, inScriptTypes, outScriptTypes []int) int {
	txSize := calcTxBaseSize(inScriptTypes, outScriptTypes)
	if withWitness && anySegwitInput(inScriptTypes) {
		txSize += calcTxWitnessSize(inScriptTypes)
	}
	return txSize
}

func calcTxBaseSize(inScriptTypes, outScriptTypes []int) int {
	// hash + index + sequence
	inBaseSize := 40
	insSize := 0
	for _, scriptType := range inScriptTypes {
		scriptSize, ok := scriptSigSizeByScriptType[scriptType]
		if !ok {
			scriptSize = scriptSigSizeByScriptType[P2WPKH]
		}
		insSize += inBaseSize + scriptSize
	}

	// 8-byte value
	outBaseSize := 8
	outsSize := 0
	for _, scriptType := range outScriptTypes {
		scriptSize, ok := scriptPubKeySizeByScriptType[scriptType]
		if !ok {
			scriptSize = scriptPubKeySizeByScriptType[P2WPKH]
		}
		outsSize += outBaseSize + scriptSize
	}

	// version + locktime
	return 8 +
		varIntSerializeSize(uint64(len(inScriptTypes))) +
		varIntSerializeSize(uint64(len(outScriptTypes))) +
		insSize + outsSize
}

func calcTxWitnessSize(inScriptTypes []int) int {
	insSize := 0
	for _, scriptType := range inScriptTypes {
		switch scriptType {
		case P2SH_P2WPKH, P2WPKH:
			// count + witness[sig, pubkey]
			insSize += 1 + 73 + 34
		default:
			// empty witness for non-segwit inputs
			insSize++
		}
	}
	// segwit marker + flag
	return 2 + insSize
}

func anySegwitInput(inScriptTypes []int) bool {
	for _, scriptType := range inScriptTypes {
		if scriptType == P2WPKH || scriptType == P2SH_P2WPKH {
			return true
		}
	}
	return false
}
