// Package bond validates submitted bond transactions and continuously
// monitors accepted bonds for double-spend attempts, punishing violators
// by broadcasting their bond.
//
// Grounded on the teacher's fee/size estimation conventions in
// internal/wallet/multi_address_tx.go and internal/swap/coordinator_funding.go,
// and on its background-loop shape in internal/swap/monitor.go, reused via
// internal/taskloop.
package bond

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/taptrade/coordinatord/internal/nodeclient"
)

var (
	// ErrMalformedTx is returned when the submitted bond hex does not
	// decode as a transaction.
	ErrMalformedTx = errors.New("bond: malformed transaction")
	// ErrNotFinalized is returned when a bond input carries no witness,
	// i.e. it is not yet a broadcastable, finalized transaction.
	ErrNotFinalized = errors.New("bond: transaction is not finalized")
	// ErrNoInputs is returned for a bond with zero inputs.
	ErrNoInputs = errors.New("bond: transaction has no inputs")
	// ErrOutputTooSmall is returned when no output pays the bond address
	// at least the required locking amount.
	ErrOutputTooSmall = errors.New("bond: output sum too small")
	// ErrInputSumTooSmall is returned when the bond's total input value
	// falls short of the required proof-of-reserves floor.
	ErrInputSumTooSmall = errors.New("bond: input sum too small")
	// ErrMissingInputTx is returned when a referenced previous output
	// cannot be resolved via the node.
	ErrMissingInputTx = errors.New("bond: missing input transaction")
	// ErrFeerateTooLow is returned when the bond's feerate undercuts the
	// configured floor.
	ErrFeerateTooLow = errors.New("bond: feerate too low")
	// ErrInvalidSignature is returned when an input fails script
	// verification against its claimed previous output.
	ErrInvalidSignature = errors.New("bond: invalid input signature")
)

// Requirements describes what a submitted bond must satisfy, fixed by the
// offer it is posted against.
type Requirements struct {
	BondAddressScript []byte
	LockingAmountSat  int64
	MinInputSumSat    int64
	MinFeerateSatVB   int64
}

// Validated is a bond that has passed all four checks, ready to be
// inserted into the MonitoredBonds index.
type Validated struct {
	TxHex       string
	Tx          *wire.MsgTx
	InputSum    int64
	OutputSum   int64
	FeerateSatVB float64
	StableID    string
}

// Validate runs the full four-step bond validation: structural, input-sum,
// feerate, and signature validity. The node client resolves each input's
// previous output for the input-sum check and for signature verification.
func Validate(ctx context.Context, node *nodeclient.Client, txHex string, req Requirements) (*Validated, error) {
	rawBytes, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawBytes)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}

	if len(tx.TxIn) == 0 {
		return nil, ErrNoInputs
	}
	for _, in := range tx.TxIn {
		if len(in.Witness) == 0 {
			return nil, ErrNotFinalized
		}
	}

	var outputSum int64
	bondOutputSeen := false
	for _, out := range tx.TxOut {
		outputSum += out.Value
		if bytes.Equal(out.PkScript, req.BondAddressScript) && out.Value >= req.LockingAmountSat {
			bondOutputSeen = true
		}
	}
	if !bondOutputSeen {
		return nil, ErrOutputTooSmall
	}

	prevOuts := make([]*wire.TxOut, len(tx.TxIn))
	var inputSum int64
	for i, in := range tx.TxIn {
		prevTx, err := node.DecodedTransaction(&in.PreviousOutPoint.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d referencing %s: %v", ErrMissingInputTx, i, in.PreviousOutPoint, err)
		}
		vout := in.PreviousOutPoint.Index
		if int(vout) >= len(prevTx.TxOut) {
			return nil, fmt.Errorf("%w: input %d vout %d out of range", ErrMissingInputTx, i, vout)
		}
		prevOuts[i] = prevTx.TxOut[vout]
		inputSum += prevOuts[i].Value
	}
	if inputSum < req.MinInputSumSat {
		return nil, ErrInputSumTooSmall
	}

	vsize := transactionVSize(&tx)
	fee := inputSum - outputSum
	feerate := float64(fee) / float64(vsize)
	if feerate < float64(req.MinFeerateSatVB) {
		return nil, fmt.Errorf("%w: %.2f sat/vB below floor %d sat/vB", ErrFeerateTooLow, feerate, req.MinFeerateSatVB)
	}

	if err := verifySignatures(&tx, prevOuts); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(rawBytes)
	return &Validated{
		TxHex:        txHex,
		Tx:           &tx,
		InputSum:     inputSum,
		OutputSum:    outputSum,
		FeerateSatVB: feerate,
		StableID:     hex.EncodeToString(sum[:]),
	}, nil
}

// decodeBondTx decodes a stored bond's hex back into a *wire.MsgTx, used
// by the monitor loop each tick rather than re-running full validation.
func decodeBondTx(txHex string) (*wire.MsgTx, error) {
	rawBytes, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(rawBytes)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTx, err)
	}
	return &tx, nil
}

// transactionVSize computes the standard virtual size (weight / 4,
// rounded up) of a fully-witnessed transaction.
func transactionVSize(tx *wire.MsgTx) int64 {
	weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx))
	return (weight + (blockchain.WitnessScaleFactor - 1)) / blockchain.WitnessScaleFactor
}

// verifySignatures checks every input's witness/signature script against
// its claimed previous output, delegating to txscript's standard script
// verification engine rather than reimplementing consensus rules.
func verifySignatures(tx *wire.MsgTx, prevOuts []*wire.TxOut) error {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, prevOuts[i])
	}
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, out := range prevOuts {
		engine, err := txscript.NewEngine(
			out.PkScript, tx, i,
			txscript.StandardVerifyFlags, nil, sigHashes, out.Value, fetcher,
		)
		if err != nil {
			return fmt.Errorf("%w: input %d: %v", ErrInvalidSignature, i, err)
		}
		if err := engine.Execute(); err != nil {
			return fmt.Errorf("%w: input %d: %v", ErrInvalidSignature, i, err)
		}
	}
	return nil
}
