package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/taptrade/coordinatord/internal/apierr"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/pkg/hexid"
)

// SubmitSignedEscrowPsbt records one party's signature over the escrow
// funding PSBT. Once both the maker's and taker's signed copies are on
// file, the two are merged per-input, finalized, and broadcast.
func (o *Orchestrator) SubmitSignedEscrowPsbt(ctx context.Context, offerID, robohash, signedPsbtHex string) (*SubmitSignedEscrowPsbtResult, error) {
	t, err := o.store.GetTakenOffer(offerID)
	if err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}
	if t.EscrowTxid != "" {
		return &SubmitSignedEscrowPsbtResult{Broadcast: true, EscrowTxid: t.EscrowTxid}, nil
	}

	switch {
	case t.IsMaker(robohash):
		t.EscrowMakerSignedPsbt = signedPsbtHex
	case t.IsTaker(robohash):
		t.EscrowTakerSignedPsbt = signedPsbtHex
	default:
		return nil, apierr.NewValidation("UnknownParty", "robohash is not a party to this offer")
	}

	if t.EscrowMakerSignedPsbt == "" || t.EscrowTakerSignedPsbt == "" {
		t.UpdatedAt = time.Now().Unix()
		if err := o.store.UpdateTakenOffer(t); err != nil {
			return nil, apierr.FromStore(err, "NotFound")
		}
		return &SubmitSignedEscrowPsbtResult{Broadcast: false}, nil
	}

	tx, err := mergeAndFinalizePsbts(t.EscrowFundingPsbt, t.EscrowMakerSignedPsbt, t.EscrowTakerSignedPsbt)
	if err != nil {
		return nil, apierr.NewValidationWrap("PsbtNotFinalizable", "escrow funding psbt could not be finalized", err)
	}

	hash, err := o.node.BroadcastTx(tx)
	if err != nil {
		return nil, apierr.NewInternal("Broadcast", err)
	}

	t.EscrowTxid = hash.String()
	t.State = store.StateAwaitingEscrowConfirmation
	t.UpdatedAt = time.Now().Unix()
	if err := o.store.UpdateTakenOffer(t); err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}

	return &SubmitSignedEscrowPsbtResult{Broadcast: true, EscrowTxid: t.EscrowTxid}, nil
}

// PollEscrowConfirmed reports whether the Confirmation Watcher has marked
// this offer's escrow funding transaction confirmed.
func (o *Orchestrator) PollEscrowConfirmed(ctx context.Context, offerID string) (*PollEscrowConfirmedResult, error) {
	t, err := o.store.GetTakenOffer(offerID)
	if err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}
	if t.EscrowTxid == "" {
		return nil, apierr.NewProtocolState("NotConfirmed", "escrow funding transaction not yet broadcast")
	}
	if !t.EscrowConfirmed {
		return &PollEscrowConfirmedResult{Confirmed: false}, nil
	}
	return &PollEscrowConfirmedResult{Confirmed: true}, nil
}

// mergeAndFinalizePsbts combines the maker's and taker's independently
// signed copies of the same unsigned funding PSBT — each trader only
// signs the inputs they contributed — finalizes every input, and extracts
// the broadcastable transaction.
func mergeAndFinalizePsbts(unsignedHex, makerSignedHex, takerSignedHex string) (*wire.MsgTx, error) {
	base, err := decodePsbtHex(unsignedHex)
	if err != nil {
		return nil, fmt.Errorf("unsigned psbt: %w", err)
	}
	makerSigned, err := decodePsbtHex(makerSignedHex)
	if err != nil {
		return nil, fmt.Errorf("maker signed psbt: %w", err)
	}
	takerSigned, err := decodePsbtHex(takerSignedHex)
	if err != nil {
		return nil, fmt.Errorf("taker signed psbt: %w", err)
	}
	if len(base.Inputs) != len(makerSigned.Inputs) || len(base.Inputs) != len(takerSigned.Inputs) {
		return nil, fmt.Errorf("signed psbt input count mismatch")
	}

	for i := range base.Inputs {
		if inputIsSigned(&makerSigned.Inputs[i]) {
			base.Inputs[i] = makerSigned.Inputs[i]
			continue
		}
		if inputIsSigned(&takerSigned.Inputs[i]) {
			base.Inputs[i] = takerSigned.Inputs[i]
		}
	}

	for i := range base.Inputs {
		if err := psbt.Finalize(base, i); err != nil {
			return nil, fmt.Errorf("finalizing input %d: %w", i, err)
		}
	}

	tx, err := psbt.Extract(base)
	if err != nil {
		return nil, fmt.Errorf("extracting final transaction: %w", err)
	}
	return tx, nil
}

func inputIsSigned(in *psbt.PInput) bool {
	return len(in.PartialSigs) > 0 || in.FinalScriptSig != nil || in.FinalScriptWitness != nil || in.TaprootKeySpendSig != nil
}

func decodePsbtHex(s string) (*psbt.Packet, error) {
	raw, err := hexid.Decode(s)
	if err != nil {
		return nil, err
	}
	return psbt.NewFromRawBytes(bytes.NewReader(raw), false)
}
