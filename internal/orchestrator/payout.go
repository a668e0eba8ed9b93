package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/taptrade/coordinatord/internal/apierr"
	"github.com/taptrade/coordinatord/internal/arbiter"
	"github.com/taptrade/coordinatord/internal/escrow"
	"github.com/taptrade/coordinatord/internal/musig2agg"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/pkg/hexid"
)

// stateRank orders the taken_offers lifecycle so handlers can express
// "offer must be at or past state X" preconditions.
var stateRank = map[store.State]int{
	store.StateTakenAwaitingEscrow:        0,
	store.StateAwaitingEscrowConfirmation: 1,
	store.StateObligationsPending:         2,
	store.StatePayoutCooperative:          3,
	store.StatePayoutArbitrated:           3,
	store.StateFinalized:                  4,
}

func atLeast(t *store.TakenOffer, s store.State) bool {
	return stateRank[t.State] >= stateRank[s]
}

// SignalObligations records one party's satisfaction with the trade once
// the escrow has confirmed. Both flags true moves the offer to
// PayoutCooperative; either flag false moves it to PayoutArbitrated. A
// call after the offer has already left ObligationsPending is treated as
// an idempotent replay of an earlier success.
func (o *Orchestrator) SignalObligations(ctx context.Context, p SignalObligationsParams) error {
	t, err := o.store.GetTakenOffer(p.OfferID)
	if err != nil {
		return apierr.FromStore(err, "NotFound")
	}
	if !atLeast(t, store.StateObligationsPending) {
		return apierr.NewProtocolState("NotConfirmed", "escrow has not yet confirmed")
	}
	if t.State != store.StateObligationsPending {
		return nil
	}

	happy := p.Happy
	switch {
	case t.IsMaker(p.Robohash):
		t.MakerHappy = &happy
	case t.IsTaker(p.Robohash):
		t.TakerHappy = &happy
	default:
		return apierr.NewValidation("UnknownParty", "robohash is not a party to this offer")
	}

	if !happy {
		t.State = store.StatePayoutArbitrated
	} else if t.MakerHappy != nil && t.TakerHappy != nil && *t.MakerHappy && *t.TakerHappy {
		t.State = store.StatePayoutCooperative
	}

	t.UpdatedAt = time.Now().Unix()
	if err := o.store.UpdateTakenOffer(t); err != nil {
		return apierr.FromStore(err, "NotFound")
	}
	return nil
}

// rebuildEscrowDescriptor reconstructs the escrow descriptor from the five
// pubkeys a taken offer persisted at escrow-build time, deterministically
// regenerating the same descriptor SubmitTakerBond built.
func (o *Orchestrator) rebuildEscrowDescriptor(t *store.TakenOffer) (*escrow.Descriptor, error) {
	makerTaprootPK, err := musig2agg.ParsePubkeyHex(t.MakerTaprootPK)
	if err != nil {
		return nil, fmt.Errorf("maker taproot pubkey: %w", err)
	}
	takerTaprootPK, err := musig2agg.ParsePubkeyHex(t.TakerTaprootPK)
	if err != nil {
		return nil, fmt.Errorf("taker taproot pubkey: %w", err)
	}
	makerMusigPK, err := musig2agg.ParsePubkeyHex(t.MakerMusigPK)
	if err != nil {
		return nil, fmt.Errorf("maker musig pubkey: %w", err)
	}
	takerMusigPK, err := musig2agg.ParsePubkeyHex(t.TakerMusigPK)
	if err != nil {
		return nil, fmt.Errorf("taker musig pubkey: %w", err)
	}
	return escrow.Build(makerTaprootPK, takerTaprootPK, o.wallet.CoordinatorPubKey(), makerMusigPK, takerMusigPK)
}

func (o *Orchestrator) escrowUTXOFor(t *store.TakenOffer, desc *escrow.Descriptor) (escrow.UTXO, error) {
	hash, err := chainhash.NewHashFromStr(t.EscrowTxid)
	if err != nil {
		return escrow.UTXO{}, fmt.Errorf("escrow txid: %w", err)
	}
	script, err := desc.ScriptPubKey()
	if err != nil {
		return escrow.UTXO{}, fmt.Errorf("escrow scriptPubKey: %w", err)
	}
	return escrow.UTXO{
		OutPoint: wire.OutPoint{Hash: *hash, Index: 0},
		Value:    t.AmountSat,
		PkScript: script,
	}, nil
}

// PollPayout returns the payout bundle appropriate to the offer's current
// lifecycle stage, building and persisting it on first poll and returning
// the same stored bundle on subsequent polls.
func (o *Orchestrator) PollPayout(ctx context.Context, offerID, robohash string) (*PollPayoutResult, error) {
	t, err := o.store.GetTakenOffer(offerID)
	if err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}
	if !t.IsMaker(robohash) && !t.IsTaker(robohash) {
		return nil, apierr.NewValidation("UnknownParty", "robohash is not a party to this offer")
	}

	switch t.State {
	case store.StateFinalized:
		return &PollPayoutResult{Status: StatusFinalized, PayoutTxid: t.PayoutTxid}, nil

	case store.StatePayoutCooperative:
		return o.pollCooperativePayout(t)

	case store.StatePayoutArbitrated:
		return o.pollArbitratedPayout(t, robohash)

	default:
		return nil, apierr.NewProtocolState("NotConfirmed", "obligations not yet resolved")
	}
}

func (o *Orchestrator) pollCooperativePayout(t *store.TakenOffer) (*PollPayoutResult, error) {
	if t.PayoutPsbt != "" {
		return &PollPayoutResult{
			Status:          StatusAwaitingPartialSigs,
			PayoutPsbtHex:   t.PayoutPsbt,
			AggNonceHex:     t.PayoutAggNonce,
			AggPubkeyCtxHex: t.PayoutAggPubkeyCtx,
		}, nil
	}

	desc, err := o.rebuildEscrowDescriptor(t)
	if err != nil {
		return nil, apierr.NewInternal("EscrowDescriptor", err)
	}
	escrowUTXO, err := o.escrowUTXOFor(t, desc)
	if err != nil {
		return nil, apierr.NewInternal("EscrowUTXO", err)
	}
	makerScript, err := scriptForAddress(t.MakerPayoutAddress, o.cfg.Params)
	if err != nil {
		return nil, apierr.NewInternal("PayoutAddress", err)
	}
	takerScript, err := scriptForAddress(t.TakerPayoutAddress, o.cfg.Params)
	if err != nil {
		return nil, apierr.NewInternal("PayoutAddress", err)
	}

	feerate, err := o.node.EstimateSmartFeeSatVB(confirmTargetBlocks, o.cfg.BondMinFeerateSatVB)
	if err != nil {
		return nil, apierr.NewInternal("EstimateFee", err)
	}

	p, err := escrow.BuildHappyPathPayoutPSBT(escrowUTXO, makerScript, t.EscrowAmountMakerSat, takerScript, t.EscrowAmountTakerSat, feerate)
	if err != nil {
		return nil, apierr.NewValidationWrap("PayoutUnaffordable", "escrow balance cannot cover payout fee", err)
	}

	makerNonce, err := musig2agg.ParseNonceHex(t.MakerMusigPubNonce)
	if err != nil {
		return nil, apierr.NewInternal("ParseNonce", err)
	}
	takerNonce, err := musig2agg.ParseNonceHex(t.TakerMusigPubNonce)
	if err != nil {
		return nil, apierr.NewInternal("ParseNonce", err)
	}
	aggNonce, err := musig2agg.AggregateNonces(makerNonce, takerNonce)
	if err != nil {
		return nil, apierr.NewInternal("AggregateNonces", err)
	}

	var psbtBuf bytes.Buffer
	if err := p.Serialize(&psbtBuf); err != nil {
		return nil, apierr.NewInternal("PsbtEncode", err)
	}

	t.PayoutPsbt = hexid.Encode(psbtBuf.Bytes())
	t.PayoutAggNonce = musig2agg.EncodeNonceHex(aggNonce)
	t.PayoutAggPubkeyCtx = hexid.Encode(desc.Keys.InternalKey.SerializeCompressed())
	t.UpdatedAt = time.Now().Unix()
	if err := o.store.UpdateTakenOffer(t); err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}

	return &PollPayoutResult{
		Status:          StatusAwaitingPartialSigs,
		PayoutPsbtHex:   t.PayoutPsbt,
		AggNonceHex:     t.PayoutAggNonce,
		AggPubkeyCtxHex: t.PayoutAggPubkeyCtx,
	}, nil
}

func (o *Orchestrator) pollArbitratedPayout(t *store.TakenOffer, robohash string) (*PollPayoutResult, error) {
	if t.ArbiterWinner == "" {
		return &PollPayoutResult{Status: StatusDecidingEscrow}, nil
	}

	winnerIsMaker := t.ArbiterWinner == string(arbiter.WinnerMaker)
	callerWon := (winnerIsMaker && t.IsMaker(robohash)) || (!winnerIsMaker && t.IsTaker(robohash))
	if !callerWon {
		return &PollPayoutResult{Status: StatusLostEscrow}, nil
	}

	if t.PayoutPsbt != "" {
		return &PollPayoutResult{Status: StatusAwaitingPartialSigs, PayoutPsbtHex: t.PayoutPsbt}, nil
	}

	desc, err := o.rebuildEscrowDescriptor(t)
	if err != nil {
		return nil, apierr.NewInternal("EscrowDescriptor", err)
	}
	escrowUTXO, err := o.escrowUTXOFor(t, desc)
	if err != nil {
		return nil, apierr.NewInternal("EscrowUTXO", err)
	}

	winnerAmount := t.EscrowAmountMakerSat + t.EscrowAmountTakerSat
	var winnerScript []byte
	if winnerIsMaker {
		winnerScript, err = scriptForAddress(t.MakerPayoutAddress, o.cfg.Params)
	} else {
		winnerScript, err = scriptForAddress(t.TakerPayoutAddress, o.cfg.Params)
	}
	if err != nil {
		return nil, apierr.NewInternal("PayoutAddress", err)
	}

	feerate, err := o.node.EstimateSmartFeeSatVB(confirmTargetBlocks, o.cfg.BondMinFeerateSatVB)
	if err != nil {
		return nil, apierr.NewInternal("EstimateFee", err)
	}

	p, err := escrow.BuildScriptPathPayoutPSBT(escrowUTXO, winnerScript, winnerAmount, feerate)
	if err != nil {
		return nil, apierr.NewValidationWrap("PayoutUnaffordable", "escrow balance cannot cover payout fee", err)
	}

	var psbtBuf bytes.Buffer
	if err := p.Serialize(&psbtBuf); err != nil {
		return nil, apierr.NewInternal("PsbtEncode", err)
	}

	t.PayoutPsbt = hexid.Encode(psbtBuf.Bytes())
	t.UpdatedAt = time.Now().Unix()
	if err := o.store.UpdateTakenOffer(t); err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}

	return &PollPayoutResult{Status: StatusAwaitingPartialSigs, PayoutPsbtHex: t.PayoutPsbt}, nil
}

// SubmitPartialSignature records the caller's signature share over the
// payout PSBT. In the cooperative case this is a MuSig2 partial signature;
// once both are on file they are combined into the final key-path
// signature. In the arbitrated case only the winner submits, a plain
// Schnorr signature the coordinator combines with its own leaf signature.
// Either path broadcasts and finalizes the offer once complete.
func (o *Orchestrator) SubmitPartialSignature(ctx context.Context, p SubmitPartialSignatureParams) (*SubmitPartialSignatureResult, error) {
	t, err := o.store.GetTakenOffer(p.OfferID)
	if err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}
	if t.State == store.StateFinalized {
		return &SubmitPartialSignatureResult{Broadcast: true, PayoutTxid: t.PayoutTxid}, nil
	}

	switch t.State {
	case store.StatePayoutCooperative:
		return o.submitCooperativeSig(t, p)
	case store.StatePayoutArbitrated:
		return o.submitArbitratedSig(t, p)
	default:
		return nil, apierr.NewProtocolState("NotConfirmed", "payout not yet assembled")
	}
}

func (o *Orchestrator) submitCooperativeSig(t *store.TakenOffer, p SubmitPartialSignatureParams) (*SubmitPartialSignatureResult, error) {
	switch {
	case t.IsMaker(p.Robohash):
		t.MakerPartialSig = p.PartialSigHex
	case t.IsTaker(p.Robohash):
		t.TakerPartialSig = p.PartialSigHex
	default:
		return nil, apierr.NewValidation("UnknownParty", "robohash is not a party to this offer")
	}

	if t.MakerPartialSig == "" || t.TakerPartialSig == "" {
		t.UpdatedAt = time.Now().Unix()
		if err := o.store.UpdateTakenOffer(t); err != nil {
			return nil, apierr.FromStore(err, "NotFound")
		}
		return &SubmitPartialSignatureResult{Broadcast: false}, nil
	}

	desc, err := o.rebuildEscrowDescriptor(t)
	if err != nil {
		return nil, apierr.NewInternal("EscrowDescriptor", err)
	}
	escrowUTXO, err := o.escrowUTXOFor(t, desc)
	if err != nil {
		return nil, apierr.NewInternal("EscrowUTXO", err)
	}

	pkt, err := decodePsbtHex(t.PayoutPsbt)
	if err != nil {
		return nil, apierr.NewInternal("PsbtDecode", err)
	}
	sighash, err := escrow.KeySpendSighash(pkt.UnsignedTx, escrowUTXO)
	if err != nil {
		return nil, apierr.NewInternal("Sighash", err)
	}

	makerSig, err := musig2agg.ParsePartialSigHex(t.MakerPartialSig)
	if err != nil {
		return nil, apierr.NewValidationWrap("InvalidPartialSig", "maker partial signature malformed", err)
	}
	takerSig, err := musig2agg.ParsePartialSigHex(t.TakerPartialSig)
	if err != nil {
		return nil, apierr.NewValidationWrap("InvalidPartialSig", "taker partial signature malformed", err)
	}
	aggNonce, err := musig2agg.ParseNonceHex(t.PayoutAggNonce)
	if err != nil {
		return nil, apierr.NewInternal("ParseNonce", err)
	}
	var aggNonceArr [musig2.PubNonceSize]byte
	copy(aggNonceArr[:], aggNonce[:])

	finalSig, err := musig2agg.CombinePartialSigs(desc.Keys, aggNonceArr, sighash, desc.MerkleRoot, makerSig, takerSig)
	if err != nil {
		return nil, apierr.NewValidationWrap("InvalidPartialSig", "partial signatures did not combine", err)
	}

	if err := escrow.ApplyKeySpendWitness(pkt, finalSig); err != nil {
		return nil, apierr.NewInternal("Witness", err)
	}

	return o.broadcastPayout(t, pkt)
}

func (o *Orchestrator) submitArbitratedSig(t *store.TakenOffer, p SubmitPartialSignatureParams) (*SubmitPartialSignatureResult, error) {
	winnerIsMaker := t.ArbiterWinner == string(arbiter.WinnerMaker)
	callerWon := (winnerIsMaker && t.IsMaker(p.Robohash)) || (!winnerIsMaker && t.IsTaker(p.Robohash))
	if !callerWon {
		return nil, apierr.NewValidation("NotWinner", "robohash did not win this dispute")
	}

	winnerSig, err := musig2agg.ParseSchnorrSigHex(p.PartialSigHex)
	if err != nil {
		return nil, apierr.NewValidationWrap("InvalidPartialSig", "winner signature malformed", err)
	}

	desc, err := o.rebuildEscrowDescriptor(t)
	if err != nil {
		return nil, apierr.NewInternal("EscrowDescriptor", err)
	}
	escrowUTXO, err := o.escrowUTXOFor(t, desc)
	if err != nil {
		return nil, apierr.NewInternal("EscrowUTXO", err)
	}

	pkt, err := decodePsbtHex(t.PayoutPsbt)
	if err != nil {
		return nil, apierr.NewInternal("PsbtDecode", err)
	}

	leaf := escrow.LeafC
	if !winnerIsMaker {
		leaf = escrow.LeafD
	}
	sighash, err := escrow.ScriptSpendSighash(pkt.UnsignedTx, escrowUTXO, desc.Leaves[leaf])
	if err != nil {
		return nil, apierr.NewInternal("Sighash", err)
	}
	coordinatorSig, err := o.wallet.SignSchnorr(sighash)
	if err != nil {
		return nil, apierr.NewInternal("CoordinatorSign", err)
	}

	if err := escrow.ApplyScriptPathWitness(pkt, desc, leaf, winnerSig, coordinatorSig); err != nil {
		return nil, apierr.NewInternal("Witness", err)
	}

	return o.broadcastPayout(t, pkt)
}

func (o *Orchestrator) broadcastPayout(t *store.TakenOffer, pkt *psbt.Packet) (*SubmitPartialSignatureResult, error) {
	if err := psbt.Finalize(pkt, 0); err != nil {
		return nil, apierr.NewValidationWrap("PsbtNotFinalizable", "payout psbt could not be finalized", err)
	}
	tx, err := psbt.Extract(pkt)
	if err != nil {
		return nil, apierr.NewInternal("PsbtExtract", err)
	}

	hash, err := o.node.BroadcastTx(tx)
	if err != nil {
		return nil, apierr.NewInternal("Broadcast", err)
	}

	t.PayoutTxid = hash.String()
	t.State = store.StateFinalized
	t.UpdatedAt = time.Now().Unix()
	if err := o.store.UpdateTakenOffer(t); err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}

	return &SubmitPartialSignatureResult{Broadcast: true, PayoutTxid: t.PayoutTxid}, nil
}
