package escrow

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// UTXO is a single spendable coin offered to an escrow, contributed by
// either the maker or the taker when funding.
type UTXO struct {
	OutPoint wire.OutPoint
	Value    int64
	PkScript []byte
}

// sum returns the total value of a UTXO slice.
func sum(utxos []UTXO) int64 {
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

// FundingParams carries everything needed to assemble the two-party
// funding PSBT: each side's chosen inputs, their change destination, the
// escrow amount, and the feerate to split between them.
type FundingParams struct {
	MakerUTXOs        []UTXO
	TakerUTXOs        []UTXO
	MakerChangeScript []byte
	TakerChangeScript []byte
	EscrowAmountSat   int64
	FeerateSatVB      int64
}

// Funding estimated transaction weight: 2 Taproot key-path outputs (escrow
// + no multisig inputs on this side — inputs are typically P2TR or P2WPKH
// from each trader's wallet) plus two change outputs. This is a rough
// per-participant estimate, not a consensus-exact vsize calculation; the
// coordinator errs generous since traders, not the coordinator, pay the
// funding fee from their own change.
const fundingBaseVBytes = 110

// perInputVBytes approximates a single P2TR key-path input's marginal
// vsize contribution (outpoint + witness stack of one 64-byte signature).
const perInputVBytes = 58

// FundingResult is the assembled funding PSBT plus the per-side
// contribution and fee figures the orchestrator reports back on the wire.
type FundingResult struct {
	Psbt               *psbt.Packet
	MakerContribution  int64
	TakerContribution  int64
	FeeSatPerParticipant int64
}

// BuildFundingPSBT assembles the unsigned funding PSBT: the union of the
// maker's and taker's offered inputs, the single escrow descriptor output,
// and up to two change outputs (one per side). The escrow amount and the
// funding fee are each split between maker and taker in proportion to
// the value of the inputs each side offered, so the fee is not split
// evenly unless both sides offered equal input sums;
// FeeSatPerParticipant reports half of the total fee. A side's change
// below the dust limit is dropped rather than emitted.
func BuildFundingPSBT(desc *Descriptor, params FundingParams) (*FundingResult, error) {
	if len(params.MakerUTXOs) == 0 {
		return nil, fmt.Errorf("escrow: funding requires at least one maker input")
	}
	if len(params.TakerUTXOs) == 0 {
		return nil, fmt.Errorf("escrow: funding requires at least one taker input")
	}
	if params.FeerateSatVB <= 0 {
		return nil, fmt.Errorf("escrow: funding feerate must be positive")
	}

	makerIn, takerIn := sum(params.MakerUTXOs), sum(params.TakerUTXOs)
	totalIn := makerIn + takerIn
	if totalIn < params.EscrowAmountSat {
		return nil, fmt.Errorf("escrow: funding inputs %d sat insufficient for escrow amount %d sat", totalIn, params.EscrowAmountSat)
	}

	vsize := int64(fundingBaseVBytes) + int64(len(params.MakerUTXOs)+len(params.TakerUTXOs))*int64(perInputVBytes)
	totalFee := vsize * params.FeerateSatVB
	makerFee := totalFee * makerIn / totalIn
	takerFee := totalFee - makerFee

	// Fee and escrow contribution are split proportionally to each side's
	// offered input sum; what remains per side becomes that side's change.
	makerContribution := params.EscrowAmountSat * makerIn / totalIn
	takerContribution := params.EscrowAmountSat - makerContribution

	makerChange := makerIn - makerContribution - makerFee
	takerChange := takerIn - takerContribution - takerFee
	if makerChange < 0 || takerChange < 0 {
		return nil, fmt.Errorf("escrow: funding inputs insufficient to cover proportional fee split")
	}

	tx := wire.NewMsgTx(2)
	for _, u := range params.MakerUTXOs {
		tx.AddTxIn(wire.NewTxIn(&u.OutPoint, nil, nil))
	}
	for _, u := range params.TakerUTXOs {
		tx.AddTxIn(wire.NewTxIn(&u.OutPoint, nil, nil))
	}

	escrowScript, err := desc.ScriptPubKey()
	if err != nil {
		return nil, fmt.Errorf("escrow: building escrow scriptPubKey: %w", err)
	}
	tx.AddTxOut(wire.NewTxOut(params.EscrowAmountSat, escrowScript))

	const dustLimit = 546
	if makerChange >= dustLimit {
		tx.AddTxOut(wire.NewTxOut(makerChange, params.MakerChangeScript))
	}
	if takerChange >= dustLimit {
		tx.AddTxOut(wire.NewTxOut(takerChange, params.TakerChangeScript))
	}

	p, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("escrow: creating funding psbt: %w", err)
	}

	allUTXOs := append(append([]UTXO{}, params.MakerUTXOs...), params.TakerUTXOs...)
	for i, u := range allUTXOs {
		p.Inputs[i].WitnessUtxo = &wire.TxOut{
			Value:    u.Value,
			PkScript: u.PkScript,
		}
	}

	return &FundingResult{
		Psbt:                 p,
		MakerContribution:    makerContribution,
		TakerContribution:    takerContribution,
		FeeSatPerParticipant: (makerFee + takerFee) / 2,
	}, nil
}
