package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleMakerRequest(robohash string) MakerRequest {
	return MakerRequest{
		Robohash:         robohash,
		AmountSat:        100000,
		IsBuyOrder:       true,
		BondRatio:        10,
		OfferDurationTS:  9999999999,
		MakerBondAddress: "bcrt1qbondaddress",
		RequiredBondSat:  10000,
		MinInputSumSat:   20000,
		CreatedAt:        1,
	}
}

func TestCreateAndGetMakerRequest(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")

	require.NoError(t, s.CreateMakerRequest(r))

	got, err := s.GetMakerRequest("robo-1")
	require.NoError(t, err)
	require.Equal(t, r.AmountSat, got.AmountSat)
	require.Equal(t, r.MakerBondAddress, got.MakerBondAddress)
}

func TestCreateMakerRequestRejectsDuplicateRobohash(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))

	err := s.CreateMakerRequest(r)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func samplePromotedOffer(offerID, robohash string) ActiveOffer {
	return ActiveOffer{
		OfferID:            offerID,
		Robohash:           robohash,
		AmountSat:          100000,
		IsBuyOrder:         true,
		BondRatio:          10,
		OfferDurationTS:    9999999999,
		RequiredBondSat:    10000,
		MinInputSumSat:     20000,
		TakerBondAddress:   "bcrt1qtakerbond",
		MakerBondTx:        "deadbeef",
		MakerPayoutAddress: "bcrt1qmakerpayout",
		MakerTaprootPK:     "aa",
		MakerMusigPK:       "bb",
		MakerMusigPubNonce: "cc",
		MakerChangeAddress: "bcrt1qmakerchange",
		MakerPsbtInputs:    "dd",
		CreatedAt:          1,
	}
}

func TestPromoteToActiveOfferMovesRecord(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))

	offer := samplePromotedOffer("offer-1", "robo-1")
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))

	_, err := s.GetMakerRequest("robo-1")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetActiveOffer("offer-1")
	require.NoError(t, err)
	require.Equal(t, offer.MakerBondTx, got.MakerBondTx)
}

func TestPromoteToActiveOfferRequiresExistingRequest(t *testing.T) {
	s := newTestStore(t)
	offer := samplePromotedOffer("offer-1", "robo-1")
	err := s.PromoteToActiveOffer("robo-1", offer)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchActiveOffersFiltersBySideAmountAndExpiry(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))
	offer := samplePromotedOffer("offer-1", "robo-1")
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))

	matches, err := s.FetchActiveOffers(true, 0, 200000, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	none, err := s.FetchActiveOffers(false, 0, 200000, 0)
	require.NoError(t, err)
	require.Empty(t, none)

	expired, err := s.FetchActiveOffers(true, 0, 200000, 99999999999)
	require.NoError(t, err)
	require.Empty(t, expired)
}

func TestExpireActiveOffersRemovesElapsed(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))
	offer := samplePromotedOffer("offer-1", "robo-1")
	offer.OfferDurationTS = 100
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))

	expired, err := s.ExpireActiveOffers(200)
	require.NoError(t, err)
	require.Equal(t, []string{"offer-1"}, expired)

	_, err = s.GetActiveOffer("offer-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTakeOfferTransitionsToTakenAwaitingEscrow(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))
	offer := samplePromotedOffer("offer-1", "robo-1")
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))

	taker := TakenOffer{
		TakerRobohash:      "robo-2",
		TakerBondTx:        "beef",
		TakerPayoutAddress: "bcrt1qtakerpayout",
		TakerTaprootPK:     "ee",
		TakerMusigPK:       "ff",
		TakerMusigPubNonce: "gg",
		TakerChangeAddress: "bcrt1qtakerchange",
		TakerPsbtInputs:    "hh",
		CreatedAt:          2,
		UpdatedAt:          2,
	}
	require.NoError(t, s.TakeOffer("offer-1", taker))

	_, err := s.GetActiveOffer("offer-1")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetTakenOffer("offer-1")
	require.NoError(t, err)
	require.Equal(t, StateTakenAwaitingEscrow, got.State)
	require.Equal(t, "robo-1", got.MakerRobohash)
	require.Equal(t, "robo-2", got.TakerRobohash)
	require.True(t, got.IsMaker("robo-1"))
	require.True(t, got.IsTaker("robo-2"))
}

func TestUpdateTakenOfferPersistsMutations(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))
	offer := samplePromotedOffer("offer-1", "robo-1")
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))
	require.NoError(t, s.TakeOffer("offer-1", TakenOffer{TakerRobohash: "robo-2", CreatedAt: 2, UpdatedAt: 2}))

	got, err := s.GetTakenOffer("offer-1")
	require.NoError(t, err)

	got.State = StateAwaitingEscrowConfirmation
	got.EscrowTxid = "cafebabe"
	happy := true
	got.MakerHappy = &happy
	got.UpdatedAt = 3
	require.NoError(t, s.UpdateTakenOffer(got))

	reloaded, err := s.GetTakenOffer("offer-1")
	require.NoError(t, err)
	require.Equal(t, StateAwaitingEscrowConfirmation, reloaded.State)
	require.Equal(t, "cafebabe", reloaded.EscrowTxid)
	require.NotNil(t, reloaded.MakerHappy)
	require.True(t, *reloaded.MakerHappy)
	require.Nil(t, reloaded.TakerHappy)
}

func TestUpdateTakenOfferRejectsUnknownOffer(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateTakenOffer(&TakenOffer{OfferID: "nope"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnconfirmedEscrowsOnlyReturnsPendingTxids(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))
	offer := samplePromotedOffer("offer-1", "robo-1")
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))
	require.NoError(t, s.TakeOffer("offer-1", TakenOffer{TakerRobohash: "robo-2", CreatedAt: 2, UpdatedAt: 2}))

	empty, err := s.UnconfirmedEscrows()
	require.NoError(t, err)
	require.Empty(t, empty)

	got, err := s.GetTakenOffer("offer-1")
	require.NoError(t, err)
	got.EscrowTxid = "cafebabe"
	require.NoError(t, s.UpdateTakenOffer(got))

	pending, err := s.UnconfirmedEscrows()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "offer-1", pending[0].OfferID)
}

func TestListDisputedOffersOnlyReturnsUndecidedArbitration(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))
	offer := samplePromotedOffer("offer-1", "robo-1")
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))
	require.NoError(t, s.TakeOffer("offer-1", TakenOffer{TakerRobohash: "robo-2", CreatedAt: 2, UpdatedAt: 2}))

	got, err := s.GetTakenOffer("offer-1")
	require.NoError(t, err)
	got.State = StatePayoutArbitrated
	require.NoError(t, s.UpdateTakenOffer(got))

	disputed, err := s.ListDisputedOffers()
	require.NoError(t, err)
	require.Len(t, disputed, 1)

	got.ArbiterWinner = "maker"
	require.NoError(t, s.UpdateTakenOffer(got))

	disputed, err = s.ListDisputedOffers()
	require.NoError(t, err)
	require.Empty(t, disputed)
}
