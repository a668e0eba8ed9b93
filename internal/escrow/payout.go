package escrow

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Fixed vsize estimates for the two payout spend paths. Keyspend is a
// single 64-byte Schnorr signature witness; script-path additionally
// carries the leaf script and its control block, both larger for the
// cooperative/arbitration leaves than a bare key-path spend.
const (
	KeyspendPayoutVBytes    = 140
	ScriptPathPayoutVBytes  = 210
	payoutDustLimitSat      = 546
)

// payoutOutput pairs a destination script with the amount it should
// receive before the shared payout fee is subtracted.
type payoutOutput struct {
	Script []byte
	Amount int64
}

func buildPayoutTx(escrowUTXO UTXO, outputs []payoutOutput, vsize int64, feerateSatVB int64) (*wire.MsgTx, error) {
	if feerateSatVB <= 0 {
		return nil, fmt.Errorf("escrow: payout feerate must be positive")
	}
	fee := vsize * feerateSatVB
	perOutputFee := fee / int64(len(outputs))

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(&escrowUTXO.OutPoint, nil, nil))

	var remaining []payoutOutput
	for _, o := range outputs {
		net := o.Amount - perOutputFee
		if net < 0 {
			return nil, fmt.Errorf("escrow: payout output of %d sat cannot cover its share of the %d sat fee", o.Amount, perOutputFee)
		}
		if net >= payoutDustLimitSat {
			remaining = append(remaining, payoutOutput{Script: o.Script, Amount: net})
		}
	}
	if len(remaining) == 0 {
		return nil, fmt.Errorf("escrow: payout leaves no non-dust outputs")
	}
	for _, o := range remaining {
		tx.AddTxOut(wire.NewTxOut(o.Amount, o.Script))
	}
	return tx, nil
}

func newPayoutPSBT(tx *wire.MsgTx, escrowUTXO UTXO) (*psbt.Packet, error) {
	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("escrow: creating payout psbt: %w", err)
	}
	p.Inputs[0].WitnessUtxo = &wire.TxOut{
		Value:    escrowUTXO.Value,
		PkScript: escrowUTXO.PkScript,
	}
	return p, nil
}

// BuildHappyPathPayoutPSBT assembles the cooperative key-path payout: the
// escrow output spent straight to the maker and taker's settlement
// amounts, signed later by the MuSig2-combined signature over this
// transaction's single input. Used whenever both sides agree on the
// trade's outcome without arbitration.
func BuildHappyPathPayoutPSBT(escrowUTXO UTXO, makerScript []byte, makerAmount int64, takerScript []byte, takerAmount int64, feerateSatVB int64) (*psbt.Packet, error) {
	outputs := []payoutOutput{
		{Script: makerScript, Amount: makerAmount},
		{Script: takerScript, Amount: takerAmount},
	}
	tx, err := buildPayoutTx(escrowUTXO, outputs, KeyspendPayoutVBytes, feerateSatVB)
	if err != nil {
		return nil, err
	}
	return newPayoutPSBT(tx, escrowUTXO)
}

// BuildScriptPathPayoutPSBT assembles an arbitrated payout spending leaf C
// (maker wins) or leaf D (taker wins): the full escrow balance, minus fee,
// paid to the winning side alone. winnerScript/winnerAmount belong to
// whichever trader the arbiter decided for.
func BuildScriptPathPayoutPSBT(escrowUTXO UTXO, winnerScript []byte, winnerAmount int64, feerateSatVB int64) (*psbt.Packet, error) {
	outputs := []payoutOutput{{Script: winnerScript, Amount: winnerAmount}}
	tx, err := buildPayoutTx(escrowUTXO, outputs, ScriptPathPayoutVBytes, feerateSatVB)
	if err != nil {
		return nil, err
	}
	return newPayoutPSBT(tx, escrowUTXO)
}

// KeySpendSighash computes the BIP-341 key-path sighash for a payout
// PSBT's single escrow input, the message the maker and taker each sign
// their MuSig2 partial signature over.
func KeySpendSighash(tx *wire.MsgTx, escrowUTXO UTXO) ([32]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(escrowUTXO.PkScript, escrowUTXO.Value)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	hash, err := txscript.CalcTaprootSignatureHash(sigHashes, txscript.SigHashDefault, tx, 0, fetcher)
	if err != nil {
		return [32]byte{}, fmt.Errorf("escrow: computing key-spend sighash: %w", err)
	}
	var out [32]byte
	copy(out[:], hash)
	return out, nil
}

// ScriptSpendSighash computes the BIP-341 script-path sighash for a
// payout PSBT's single escrow input over the given leaf, the message the
// coordinator and the winning trader each sign.
func ScriptSpendSighash(tx *wire.MsgTx, escrowUTXO UTXO, leaf txscript.TapLeaf) ([32]byte, error) {
	fetcher := txscript.NewCannedPrevOutputFetcher(escrowUTXO.PkScript, escrowUTXO.Value)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	hash, err := txscript.CalcTapscriptSignatureHash(sigHashes, txscript.SigHashDefault, tx, 0, fetcher, leaf)
	if err != nil {
		return [32]byte{}, fmt.Errorf("escrow: computing script-spend sighash: %w", err)
	}
	var out [32]byte
	copy(out[:], hash)
	return out, nil
}

// ApplyScriptPathWitness attaches the script-path spend witness for leaf C
// or D to a payout PSBT's single input: leaf C/D's script pushes the
// winning trader's pubkey before OP_CHECKSIGVERIFY and the coordinator's
// pubkey before the final OP_CHECKSIG, so Script pops winnerSig from the
// top of the stack first, checking it against the trader's key, and then
// coordinatorSig beneath it against the coordinator's key. The witness stack is therefore ordered
// coordinatorSig, winnerSig, leaf script, control block.
func ApplyScriptPathWitness(p *psbt.Packet, desc *Descriptor, leaf LeafIndex, winnerSig, coordinatorSig *schnorr.Signature) error {
	witness := wire.TxWitness{
		coordinatorSig.Serialize(),
		winnerSig.Serialize(),
		desc.LeafScript(leaf),
		desc.ControlBlockFor(leaf),
	}
	var buf bytes.Buffer
	if err := psbt.WriteTxWitness(&buf, witness); err != nil {
		return fmt.Errorf("escrow: encoding script-path witness: %w", err)
	}
	p.Inputs[0].FinalScriptWitness = buf.Bytes()
	return nil
}

// ApplyKeySpendWitness attaches the combined MuSig2 signature to a happy
// path payout PSBT's single key-path input.
func ApplyKeySpendWitness(p *psbt.Packet, sig *schnorr.Signature) error {
	var buf bytes.Buffer
	if err := psbt.WriteTxWitness(&buf, wire.TxWitness{sig.Serialize()}); err != nil {
		return fmt.Errorf("escrow: encoding key-spend witness: %w", err)
	}
	p.Inputs[0].FinalScriptWitness = buf.Bytes()
	return nil
}
