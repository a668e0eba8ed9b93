package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taptrade/coordinatord/internal/apierr"
	"github.com/taptrade/coordinatord/internal/bond"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/pkg/hexid"
)

// RequestOffer validates a maker's declared trade terms and allocates a
// fresh bond address, writing the AwaitingBond record.
func (o *Orchestrator) RequestOffer(ctx context.Context, p RequestOfferParams) (*RequestOfferResult, error) {
	if err := hexid.ValidateRobohashHex(p.Robohash); err != nil {
		return nil, apierr.NewValidationWrap("InvalidRobohash", "robohash is not valid hex", err)
	}
	if p.BondRatio < BondRatioMin || p.BondRatio > BondRatioMax {
		return nil, apierr.NewValidation("InvalidBondRatio", fmt.Sprintf("bond_ratio must be in [%d,%d]", BondRatioMin, BondRatioMax))
	}
	if p.AmountSat < AmountMinSat || p.AmountSat > AmountMaxSat {
		return nil, apierr.NewValidation("InvalidAmount", fmt.Sprintf("amount_sat must be in [%d,%d]", AmountMinSat, AmountMaxSat))
	}
	now := time.Now().Unix()
	if delta := p.OfferDurationTS - now; delta < DurationMin || delta > DurationMax {
		return nil, apierr.NewValidation("InvalidDuration", fmt.Sprintf("offer_duration_ts must be within [now+%d, now+%d]", DurationMin, DurationMax))
	}

	requiredBondSat := p.AmountSat * int64(p.BondRatio) / 100
	minInputSumSat := requiredBondSat * MinInputSumMultiplier

	idx, err := o.store.AllocateAddressIndex()
	if err != nil {
		return nil, apierr.NewInternal("WalletIndex", err)
	}
	addr, err := o.wallet.DeriveAddress(idx)
	if err != nil {
		return nil, apierr.NewInternal("WalletDerive", err)
	}

	req := store.MakerRequest{
		Robohash:         p.Robohash,
		AmountSat:        p.AmountSat,
		IsBuyOrder:       p.IsBuyOrder,
		BondRatio:        p.BondRatio,
		OfferDurationTS:  p.OfferDurationTS,
		MakerBondAddress: addr.Address,
		RequiredBondSat:  requiredBondSat,
		MinInputSumSat:   minInputSumSat,
		CreatedAt:        now,
	}
	if err := o.store.CreateMakerRequest(req); err != nil {
		return nil, apierr.FromStore(err, "NotFound")
	}

	return &RequestOfferResult{BondAddress: addr.Address, LockingAmountSat: requiredBondSat}, nil
}

// SubmitMakerBond validates the maker's posted bond and, on success,
// promotes the AwaitingBond record to ActiveOrderbook.
func (o *Orchestrator) SubmitMakerBond(ctx context.Context, sub BondSubmission) (*SubmitMakerBondResult, error) {
	mr, err := o.store.GetMakerRequest(sub.Robohash)
	if err != nil {
		return nil, apierr.FromStore(err, "BondNotFound")
	}

	bondScript, err := scriptForAddress(mr.MakerBondAddress, o.cfg.Params)
	if err != nil {
		return nil, apierr.NewInternal("BondAddressScript", err)
	}
	validated, err := bond.Validate(ctx, o.node, sub.SignedBondHex, bond.Requirements{
		BondAddressScript: bondScript,
		LockingAmountSat:  mr.RequiredBondSat,
		MinInputSumSat:    mr.MinInputSumSat,
		MinFeerateSatVB:   o.cfg.BondMinFeerateSatVB,
	})
	if err != nil {
		return nil, apierr.FromBondValidation(err)
	}

	now := time.Now().Unix()
	var offerID string
	for attempt := 0; ; attempt++ {
		offerID, err = hexid.NewOfferID()
		if err != nil {
			return nil, apierr.NewInternal("OfferIDGeneration", err)
		}

		takerIdx, err := o.store.AllocateAddressIndex()
		if err != nil {
			return nil, apierr.NewInternal("WalletIndex", err)
		}
		takerAddr, err := o.wallet.DeriveAddress(takerIdx)
		if err != nil {
			return nil, apierr.NewInternal("WalletDerive", err)
		}

		active := store.ActiveOffer{
			OfferID:            offerID,
			Robohash:           sub.Robohash,
			AmountSat:          mr.AmountSat,
			IsBuyOrder:         mr.IsBuyOrder,
			BondRatio:          mr.BondRatio,
			OfferDurationTS:    mr.OfferDurationTS,
			RequiredBondSat:    mr.RequiredBondSat,
			MinInputSumSat:     mr.MinInputSumSat,
			TakerBondAddress:   takerAddr.Address,
			MakerBondTx:        sub.SignedBondHex,
			MakerPayoutAddress: sub.PayoutAddress,
			MakerTaprootPK:     sub.TaprootPubkeyHex,
			MakerMusigPK:       sub.MusigPubkeyHex,
			MakerMusigPubNonce: sub.MusigPubNonceHex,
			MakerChangeAddress: sub.ChangeAddress,
			MakerPsbtInputs:    sub.PsbtInputsHexCSV,
			CreatedAt:          now,
		}

		err = o.store.PromoteToActiveOffer(sub.Robohash, active)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrAlreadyExists) && attempt < offerIDMaxAttempts-1 {
			continue
		}
		return nil, apierr.FromStore(err, "BondNotFound")
	}

	if err := o.store.AddMonitoredBond(store.MonitoredBond{
		BondID:          validated.StableID,
		OfferID:         offerID,
		Robohash:        sub.Robohash,
		BondTxHex:       validated.TxHex,
		RequiredBondSat: mr.RequiredBondSat,
		MinInputSumSat:  mr.MinInputSumSat,
		ParentTable:     store.TableOrderbook,
		CreatedAt:       now,
	}); err != nil {
		o.log.Error("failed to register maker bond for monitoring", "offer_id", offerID, "error", err)
	}

	return &SubmitMakerBondResult{OfferID: offerID, BondLockedUntilTS: mr.OfferDurationTS}, nil
}

// FetchOffers returns the ActiveOrderbook rows matching a taker's query.
func (o *Orchestrator) FetchOffers(ctx context.Context, p FetchOffersParams) (*FetchOffersResult, error) {
	offers, err := o.store.FetchActiveOffers(p.IsBuyOrder, p.AmountMinSat, p.AmountMaxSat, time.Now().Unix())
	if err != nil {
		return nil, apierr.NewInternal("FetchOffers", err)
	}
	if len(offers) == 0 {
		return nil, apierr.NewProtocolState("NoOffersAvailable", "no offers match the requested side and amount band")
	}

	result := &FetchOffersResult{Offers: make([]PublicOffer, 0, len(offers))}
	for _, a := range offers {
		result.Offers = append(result.Offers, PublicOffer{
			OfferID:            a.OfferID,
			AmountSat:          a.AmountSat,
			RequiredBondSat:    a.RequiredBondSat,
			BondLockingAddress: a.TakerBondAddress,
		})
	}
	return result, nil
}

// SubmitTakerBond validates the taker's posted bond, assembles the escrow
// descriptor and funding PSBT, and moves the offer to TakenAwaitingEscrow.
func (o *Orchestrator) SubmitTakerBond(ctx context.Context, offerID string, sub BondSubmission) (*EscrowBundle, error) {
	active, err := o.store.GetActiveOffer(offerID)
	if err != nil {
		return nil, apierr.FromStore(err, "BondNotFound")
	}
	if active.Robohash == sub.Robohash {
		return nil, apierr.NewValidation("SelfTrade", "a trader cannot take their own offer")
	}

	bondScript, err := scriptForAddress(active.TakerBondAddress, o.cfg.Params)
	if err != nil {
		return nil, apierr.NewInternal("BondAddressScript", err)
	}
	validated, err := bond.Validate(ctx, o.node, sub.SignedBondHex, bond.Requirements{
		BondAddressScript: bondScript,
		LockingAmountSat:  active.RequiredBondSat,
		MinInputSumSat:    active.MinInputSumSat,
		MinFeerateSatVB:   o.cfg.BondMinFeerateSatVB,
	})
	if err != nil {
		return nil, apierr.FromBondValidation(err)
	}

	bundle, descriptorHex, feerate, err := o.buildEscrow(active, sub)
	if err != nil {
		return nil, err
	}
	_ = feerate

	now := time.Now().Unix()
	taken := store.TakenOffer{
		TakerRobohash:      sub.Robohash,
		TakerBondTx:        sub.SignedBondHex,
		TakerPayoutAddress: sub.PayoutAddress,
		TakerTaprootPK:     sub.TaprootPubkeyHex,
		TakerMusigPK:       sub.MusigPubkeyHex,
		TakerMusigPubNonce: sub.MusigPubNonceHex,
		TakerChangeAddress: sub.ChangeAddress,
		TakerPsbtInputs:    sub.PsbtInputsHexCSV,

		EscrowOutputDescriptor:     descriptorHex,
		EscrowFundingPsbt:          bundle.EscrowPsbtHex,
		EscrowAmountMakerSat:       bundle.EscrowAmountMakerSat,
		EscrowAmountTakerSat:       bundle.EscrowAmountTakerSat,
		EscrowFeeSatPerParticipant: bundle.EscrowFeeSatPerParticipant,

		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.TakeOffer(offerID, taken); err != nil {
		return nil, apierr.FromStore(err, "BondNotFound")
	}

	if err := o.store.AddMonitoredBond(store.MonitoredBond{
		BondID:          validated.StableID,
		OfferID:         offerID,
		Robohash:        sub.Robohash,
		BondTxHex:       validated.TxHex,
		RequiredBondSat: active.RequiredBondSat,
		MinInputSumSat:  active.MinInputSumSat,
		ParentTable:     store.TableActiveTrades,
		CreatedAt:       now,
	}); err != nil {
		o.log.Error("failed to register taker bond for monitoring", "offer_id", offerID, "error", err)
	}

	return bundle, nil
}

// PollTakenAsMaker returns the same funding PSBT bundle the taker
// received, for the maker to sign once a taker has arrived.
func (o *Orchestrator) PollTakenAsMaker(ctx context.Context, offerID, robohash string) (*EscrowBundle, error) {
	t, err := o.store.GetTakenOffer(offerID)
	if err != nil {
		return nil, apierr.FromStore(err, "NoOffersAvailable")
	}
	if !t.IsMaker(robohash) {
		return nil, apierr.NewValidation("NotMaker", "robohash is not the maker of this offer")
	}
	return &EscrowBundle{
		EscrowPsbtHex:              t.EscrowFundingPsbt,
		EscrowOutputDescriptor:     t.EscrowOutputDescriptor,
		EscrowAmountMakerSat:       t.EscrowAmountMakerSat,
		EscrowAmountTakerSat:       t.EscrowAmountTakerSat,
		EscrowFeeSatPerParticipant: t.EscrowFeeSatPerParticipant,
	}, nil
}
