package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SignTransactionOpts is the struct given to SignTransaction method
type SignTransactionOpts struct {
	Tx       *wire.MsgTx
	PrevOuts map[wire.OutPoint]*wire.TxOut
	// DerivationPathByScript maps the hex encoded pkScript of every spent
	// output to the relative derivation path owning it.
	DerivationPathByScript map[string]string
	Scheme                 Scheme
	CoinType               uint32
}

func (o SignTransactionOpts) validate() error {
	if o.Tx == nil {
		return ErrNullTransaction
	}
	if len(o.Tx.TxIn) <= 0 {
		return ErrEmptyInputs
	}
	if len(o.DerivationPathByScript) <= 0 {
		return ErrEmptyDerivationPaths
	}

	for script, path := range o.DerivationPathByScript {
		derivationPath, err := ParseDerivationPath(path)
		if err != nil {
			return fmt.Errorf(
				"invalid derivation path '%s' for script '%s': %v",
				path, script, err,
			)
		}
		if err := checkDerivationPath(derivationPath); err != nil {
			return fmt.Errorf(
				"invalid derivation path '%s' for script '%s': %v",
				path, script, err,
			)
		}
	}

	for i, in := range o.Tx.TxIn {
		prevOut, ok := o.PrevOuts[in.PreviousOutPoint]
		if !ok {
			return fmt.Errorf("%v: input %d", ErrMissingPrevOut, i)
		}
		script := hex.EncodeToString(prevOut.PkScript)
		if _, ok := o.DerivationPathByScript[script]; !ok {
			return fmt.Errorf(
				"derivation path not found in list for input %d with script '%s'",
				i, script,
			)
		}
	}

	return nil
}

// SignTransaction signs all inputs of the transaction using the keys derived
// with the help of the map script:derivation_path. Every input is signed with
// exactly the key pair of the derivation that owns its previous output; a
// missing or mismatching path makes the whole operation fail upfront.
func (w *Wallet) SignTransaction(opts SignTransactionOpts) (*wire.MsgTx, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	tx := opts.Tx.Copy()
	prevOutFetcher := txscript.NewMultiPrevOutFetcher(opts.PrevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	for i, in := range tx.TxIn {
		prevOut := opts.PrevOuts[in.PreviousOutPoint]
		path := opts.DerivationPathByScript[hex.EncodeToString(prevOut.PkScript)]
		if err := w.signInput(tx, i, prevOut, path, sigHashes, opts); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

func (w *Wallet) signInput(
	tx *wire.MsgTx,
	index int,
	prevOut *wire.TxOut,
	path string,
	sigHashes *txscript.TxSigHashes,
	opts SignTransactionOpts,
) error {
	privateKey, _, err := w.DeriveSigningKeyPair(DeriveSigningKeyPairOpts{
		Scheme:         opts.Scheme,
		CoinType:       opts.CoinType,
		DerivationPath: path,
	})
	if err != nil {
		return err
	}

	scriptClass := txscript.GetScriptClass(prevOut.PkScript)
	switch scriptClass {
	case txscript.WitnessV0PubKeyHashTy:
		witness, err := txscript.WitnessSignature(
			tx, sigHashes, index, prevOut.Value, prevOut.PkScript,
			txscript.SigHashAll, privateKey, true,
		)
		if err != nil {
			return err
		}
		tx.TxIn[index].Witness = witness
		return nil
	case txscript.PubKeyHashTy:
		sigScript, err := txscript.SignatureScript(
			tx, index, prevOut.PkScript, txscript.SigHashAll, privateKey, true,
		)
		if err != nil {
			return err
		}
		tx.TxIn[index].SignatureScript = sigScript
		return nil
	default:
		return ErrUnsupportedInputScript
	}
}
