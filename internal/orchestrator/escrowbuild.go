package orchestrator

import (
	"bytes"

	"github.com/taptrade/coordinatord/internal/apierr"
	"github.com/taptrade/coordinatord/internal/escrow"
	"github.com/taptrade/coordinatord/internal/musig2agg"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/pkg/hexid"
)

// buildEscrow assembles the escrow descriptor and funding PSBT for a
// trade once the taker's bond has been accepted.
func (o *Orchestrator) buildEscrow(active *store.ActiveOffer, takerSub BondSubmission) (*EscrowBundle, string, int64, error) {
	makerTaprootPK, err := musig2agg.ParsePubkeyHex(active.MakerTaprootPK)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidPubkey", "maker taproot pubkey invalid", err)
	}
	takerTaprootPK, err := musig2agg.ParsePubkeyHex(takerSub.TaprootPubkeyHex)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidPubkey", "taker taproot pubkey invalid", err)
	}
	makerMusigPK, err := musig2agg.ParsePubkeyHex(active.MakerMusigPK)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidPubkey", "maker musig pubkey invalid", err)
	}
	takerMusigPK, err := musig2agg.ParsePubkeyHex(takerSub.MusigPubkeyHex)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidPubkey", "taker musig pubkey invalid", err)
	}

	desc, err := escrow.Build(makerTaprootPK, takerTaprootPK, o.wallet.CoordinatorPubKey(), makerMusigPK, takerMusigPK)
	if err != nil {
		return nil, "", 0, apierr.NewInternal("EscrowDescriptor", err)
	}

	makerUTXOs, err := ParsePsbtInputsCSV(active.MakerPsbtInputs)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidPsbtInputs", "maker psbt inputs malformed", err)
	}
	takerUTXOs, err := ParsePsbtInputsCSV(takerSub.PsbtInputsHexCSV)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidPsbtInputs", "taker psbt inputs malformed", err)
	}
	makerChangeScript, err := scriptForAddress(active.MakerChangeAddress, o.cfg.Params)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidChangeAddress", "maker change address invalid", err)
	}
	takerChangeScript, err := scriptForAddress(takerSub.ChangeAddress, o.cfg.Params)
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("InvalidChangeAddress", "taker change address invalid", err)
	}

	funding, err := escrow.BuildFundingPSBT(desc, escrow.FundingParams{
		MakerUTXOs:        makerUTXOs,
		TakerUTXOs:        takerUTXOs,
		MakerChangeScript: makerChangeScript,
		TakerChangeScript: takerChangeScript,
		EscrowAmountSat:   active.AmountSat,
		FeerateSatVB:      o.cfg.CoordinatorFeerate,
	})
	if err != nil {
		return nil, "", 0, apierr.NewValidationWrap("FundingUnaffordable", "offered inputs cannot fund this escrow", err)
	}

	var psbtBuf bytes.Buffer
	if err := funding.Psbt.Serialize(&psbtBuf); err != nil {
		return nil, "", 0, apierr.NewInternal("PsbtEncode", err)
	}

	script, err := desc.ScriptPubKey()
	if err != nil {
		return nil, "", 0, apierr.NewInternal("EscrowScriptPubKey", err)
	}

	bundle := &EscrowBundle{
		EscrowPsbtHex:              hexid.Encode(psbtBuf.Bytes()),
		EscrowOutputDescriptor:     hexid.Encode(script),
		EscrowAmountMakerSat:       funding.MakerContribution,
		EscrowAmountTakerSat:       funding.TakerContribution,
		EscrowFeeSatPerParticipant: funding.FeeSatPerParticipant,
	}
	return bundle, hexid.Encode(script), o.cfg.CoordinatorFeerate, nil
}
