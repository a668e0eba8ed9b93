package bond

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taptrade/coordinatord/internal/store"
)

func newTestStoreForBond(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(store.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestExpireOffersReleasesExpiredOffersAndBonds(t *testing.T) {
	st := newTestStoreForBond(t)
	require.NoError(t, st.CreateMakerRequest(store.MakerRequest{
		Robohash:         "robo-1",
		AmountSat:        100000,
		BondRatio:        10,
		OfferDurationTS:  100,
		MakerBondAddress: "bcrt1qbond",
		RequiredBondSat:  10000,
		MinInputSumSat:   20000,
		CreatedAt:        1,
	}))
	require.NoError(t, st.PromoteToActiveOffer("robo-1", store.ActiveOffer{
		OfferID:         "offer-1",
		Robohash:        "robo-1",
		AmountSat:       100000,
		BondRatio:       10,
		OfferDurationTS: 100,
		RequiredBondSat: 10000,
		MinInputSumSat:  20000,
		CreatedAt:       1,
	}))
	require.NoError(t, st.AddMonitoredBond(store.MonitoredBond{
		BondID:          "bond-1",
		OfferID:         "offer-1",
		Robohash:        "robo-1",
		BondTxHex:       "deadbeef",
		RequiredBondSat: 10000,
		MinInputSumSat:  20000,
		ParentTable:     store.TableOrderbook,
		CreatedAt:       1,
	}))

	m := NewMonitor(nil, st, false)
	m.expireOffers()

	_, err := st.GetActiveOffer("offer-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	bonds, err := st.ListMonitoredBonds()
	require.NoError(t, err)
	require.Empty(t, bonds)
}

func TestExpireOffersLeavesUnexpiredOffersAlone(t *testing.T) {
	st := newTestStoreForBond(t)
	require.NoError(t, st.CreateMakerRequest(store.MakerRequest{
		Robohash:         "robo-1",
		AmountSat:        100000,
		BondRatio:        10,
		OfferDurationTS:  9999999999,
		MakerBondAddress: "bcrt1qbond",
		RequiredBondSat:  10000,
		MinInputSumSat:   20000,
		CreatedAt:        1,
	}))
	require.NoError(t, st.PromoteToActiveOffer("robo-1", store.ActiveOffer{
		OfferID:         "offer-1",
		Robohash:        "robo-1",
		AmountSat:       100000,
		BondRatio:       10,
		OfferDurationTS: 9999999999,
		RequiredBondSat: 10000,
		MinInputSumSat:  20000,
		CreatedAt:       1,
	}))

	m := NewMonitor(nil, st, false)
	m.expireOffers()

	_, err := st.GetActiveOffer("offer-1")
	require.NoError(t, err)
}
