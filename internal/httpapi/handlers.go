package httpapi

import (
	"context"
	"encoding/json"

	"github.com/taptrade/coordinatord/internal/apierr"
	"github.com/taptrade/coordinatord/internal/orchestrator"
)

// Wire request/response bodies. Field names follow spec.md §6's
// representative schemas: snake_case, with _hex/_sat/_ts suffixes naming
// the encoding or unit rather than leaving it implicit.

type createOfferRequest struct {
	RobohashHex     string `json:"robohash_hex"`
	AmountSatoshi   int64  `json:"amount_satoshi"`
	IsBuyOrder      bool   `json:"is_buy_order"`
	BondRatio       int    `json:"bond_ratio"`
	OfferDurationTS int64  `json:"offer_duration_ts"`
}

type createOfferResponse struct {
	BondAddress      string `json:"bond_address"`
	LockingAmountSat int64  `json:"locking_amount_sat"`
}

func (s *Server) createOffer(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[createOfferRequest](body)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.RequestOffer(ctx, orchestrator.RequestOfferParams{
		Robohash:        req.RobohashHex,
		AmountSat:       req.AmountSatoshi,
		IsBuyOrder:      req.IsBuyOrder,
		BondRatio:       req.BondRatio,
		OfferDurationTS: req.OfferDurationTS,
	})
	if err != nil {
		return nil, err
	}
	return createOfferResponse{BondAddress: res.BondAddress, LockingAmountSat: res.LockingAmountSat}, nil
}

// bondSubmissionRequest is the wire shape both /submit-maker-bond and
// /submit-taker-bond accept, named BondSubmissionRequest in spec.md §6.
type bondSubmissionRequest struct {
	RobohashHex         string `json:"robohash_hex"`
	SignedBondHex       string `json:"signed_bond_hex"`
	PayoutAddress       string `json:"payout_address"`
	TaprootPubkeyHex    string `json:"taproot_pubkey_hex"`
	MusigPubkeyHex      string `json:"musig_pubkey_hex"`
	MusigPubNonceHex    string `json:"musig_pub_nonce_hex"`
	BdkPsbtInputsHexCSV string `json:"bdk_psbt_inputs_hex_csv"`
	ClientChangeAddress string `json:"client_change_address"`
}

func (r bondSubmissionRequest) toSubmission() orchestrator.BondSubmission {
	return orchestrator.BondSubmission{
		Robohash:         r.RobohashHex,
		SignedBondHex:    r.SignedBondHex,
		PayoutAddress:    r.PayoutAddress,
		TaprootPubkeyHex: r.TaprootPubkeyHex,
		MusigPubkeyHex:   r.MusigPubkeyHex,
		MusigPubNonceHex: r.MusigPubNonceHex,
		PsbtInputsHexCSV: r.BdkPsbtInputsHexCSV,
		ChangeAddress:    r.ClientChangeAddress,
	}
}

type submitMakerBondResponse struct {
	OfferIDHex               string `json:"offer_id_hex"`
	BondLockedUntilTimestamp int64  `json:"bond_locked_until_timestamp"`
}

func (s *Server) submitMakerBond(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[bondSubmissionRequest](body)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.SubmitMakerBond(ctx, req.toSubmission())
	if err != nil {
		return nil, err
	}
	return submitMakerBondResponse{OfferIDHex: res.OfferID, BondLockedUntilTimestamp: res.BondLockedUntilTS}, nil
}

type fetchAvailableOffersRequest struct {
	BuyOffers    bool  `json:"buy_offers"`
	AmountMinSat int64 `json:"amount_min_sat"`
	AmountMaxSat int64 `json:"amount_max_sat"`
}

type publicOfferWire struct {
	AmountSat             int64  `json:"amount_sat"`
	OfferIDHex            string `json:"offer_id_hex"`
	RequiredBondAmountSat int64  `json:"required_bond_amount_sat"`
	BondLockingAddress    string `json:"bond_locking_address"`
}

type fetchAvailableOffersResponse struct {
	Offers []publicOfferWire `json:"offers"`
}

func (s *Server) fetchAvailableOffers(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[fetchAvailableOffersRequest](body)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.FetchOffers(ctx, orchestrator.FetchOffersParams{
		IsBuyOrder:   req.BuyOffers,
		AmountMinSat: req.AmountMinSat,
		AmountMaxSat: req.AmountMaxSat,
	})
	if apiErr, ok := apierr.As(err); ok && apiErr.Code == "NoOffersAvailable" {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]publicOfferWire, 0, len(res.Offers))
	for _, o := range res.Offers {
		out = append(out, publicOfferWire{
			AmountSat:             o.AmountSat,
			OfferIDHex:            o.OfferID,
			RequiredBondAmountSat: o.RequiredBondSat,
			BondLockingAddress:    o.BondLockingAddress,
		})
	}
	return fetchAvailableOffersResponse{Offers: out}, nil
}

type escrowBundleResponse struct {
	EscrowPsbtHex              string `json:"escrow_psbt_hex"`
	EscrowOutputDescriptor     string `json:"escrow_output_descriptor"`
	EscrowAmountMakerSat       int64  `json:"escrow_amount_maker_sat"`
	EscrowAmountTakerSat       int64  `json:"escrow_amount_taker_sat"`
	EscrowFeeSatPerParticipant int64  `json:"escrow_fee_sat_per_participant"`
}

func escrowBundleWire(b *orchestrator.EscrowBundle) escrowBundleResponse {
	return escrowBundleResponse{
		EscrowPsbtHex:              b.EscrowPsbtHex,
		EscrowOutputDescriptor:     b.EscrowOutputDescriptor,
		EscrowAmountMakerSat:       b.EscrowAmountMakerSat,
		EscrowAmountTakerSat:       b.EscrowAmountTakerSat,
		EscrowFeeSatPerParticipant: b.EscrowFeeSatPerParticipant,
	}
}

type submitTakerBondRequest struct {
	OfferIDHex string                `json:"offer_id_hex"`
	TradeData  bondSubmissionRequest `json:"trade_data"`
}

func (s *Server) submitTakerBond(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[submitTakerBondRequest](body)
	if err != nil {
		return nil, err
	}
	bundle, err := s.orch.SubmitTakerBond(ctx, req.OfferIDHex, req.TradeData.toSubmission())
	if err != nil {
		return nil, err
	}
	return escrowBundleWire(bundle), nil
}

type offerRobohashRequest struct {
	OfferIDHex  string `json:"offer_id_hex"`
	RobohashHex string `json:"robohash_hex"`
}

func (s *Server) pollTakenAsMaker(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[offerRobohashRequest](body)
	if err != nil {
		return nil, err
	}
	bundle, err := s.orch.PollTakenAsMaker(ctx, req.OfferIDHex, req.RobohashHex)
	if err != nil {
		return nil, err
	}
	return escrowBundleWire(bundle), nil
}

type submitSignedEscrowRequest struct {
	OfferIDHex    string `json:"offer_id_hex"`
	RobohashHex   string `json:"robohash_hex"`
	SignedPsbtHex string `json:"signed_psbt_hex"`
}

type broadcastResponse struct {
	Broadcast bool   `json:"broadcast"`
	TxidHex   string `json:"txid_hex,omitempty"`
}

func (s *Server) submitSignedEscrow(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[submitSignedEscrowRequest](body)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.SubmitSignedEscrowPsbt(ctx, req.OfferIDHex, req.RobohashHex, req.SignedPsbtHex)
	if err != nil {
		return nil, err
	}
	return broadcastResponse{Broadcast: res.Broadcast, TxidHex: res.EscrowTxid}, nil
}

type pollEscrowConfirmedResponse struct {
	Confirmed bool `json:"confirmed"`
}

func (s *Server) pollEscrowConfirmed(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[offerRobohashRequest](body)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.PollEscrowConfirmed(ctx, req.OfferIDHex)
	if err != nil {
		return nil, err
	}
	return pollEscrowConfirmedResponse{Confirmed: res.Confirmed}, nil
}

type signalObligationsRequest struct {
	OfferIDHex  string `json:"offer_id_hex"`
	RobohashHex string `json:"robohash_hex"`
	Happy       bool   `json:"happy"`
}

func (s *Server) signalObligations(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[signalObligationsRequest](body)
	if err != nil {
		return nil, err
	}
	if err := s.orch.SignalObligations(ctx, orchestrator.SignalObligationsParams{
		OfferID:  req.OfferIDHex,
		Robohash: req.RobohashHex,
		Happy:    req.Happy,
	}); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

type pollPayoutResponse struct {
	Status          string `json:"status"`
	PayoutPsbtHex   string `json:"payout_psbt_hex,omitempty"`
	AggNonceHex     string `json:"agg_nonce_hex,omitempty"`
	AggPubkeyCtxHex string `json:"agg_pubkey_ctx_hex,omitempty"`
	PayoutTxidHex   string `json:"payout_txid_hex,omitempty"`
}

func (s *Server) pollPayout(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[offerRobohashRequest](body)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.PollPayout(ctx, req.OfferIDHex, req.RobohashHex)
	if err != nil {
		return nil, err
	}
	return pollPayoutResponse{
		Status:          string(res.Status),
		PayoutPsbtHex:   res.PayoutPsbtHex,
		AggNonceHex:     res.AggNonceHex,
		AggPubkeyCtxHex: res.AggPubkeyCtxHex,
		PayoutTxidHex:   res.PayoutTxid,
	}, nil
}

type submitPartialSignatureRequest struct {
	OfferIDHex    string `json:"offer_id_hex"`
	RobohashHex   string `json:"robohash_hex"`
	PartialSigHex string `json:"partial_sig_hex"`
}

func (s *Server) submitPartialSignature(ctx context.Context, body json.RawMessage) (any, error) {
	req, err := decode[submitPartialSignatureRequest](body)
	if err != nil {
		return nil, err
	}
	res, err := s.orch.SubmitPartialSignature(ctx, orchestrator.SubmitPartialSignatureParams{
		OfferID:       req.OfferIDHex,
		Robohash:      req.RobohashHex,
		PartialSigHex: req.PartialSigHex,
	})
	if err != nil {
		return nil, err
	}
	return broadcastResponse{Broadcast: res.Broadcast, TxidHex: res.PayoutTxid}, nil
}
