package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleMonitoredBond(id, offerID string) MonitoredBond {
	return MonitoredBond{
		BondID:          id,
		OfferID:         offerID,
		Robohash:        "robo-1",
		BondTxHex:       "deadbeef",
		RequiredBondSat: 10000,
		MinInputSumSat:  20000,
		ParentTable:     TableOrderbook,
		CreatedAt:       1,
	}
}

func TestAddAndListMonitoredBonds(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddMonitoredBond(sampleMonitoredBond("bond-1", "offer-1")))
	require.NoError(t, s.AddMonitoredBond(sampleMonitoredBond("bond-2", "offer-2")))

	bonds, err := s.ListMonitoredBonds()
	require.NoError(t, err)
	require.Len(t, bonds, 2)
}

func TestRemoveMonitoredBond(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddMonitoredBond(sampleMonitoredBond("bond-1", "offer-1")))

	require.NoError(t, s.RemoveMonitoredBond("bond-1"))

	bonds, err := s.ListMonitoredBonds()
	require.NoError(t, err)
	require.Empty(t, bonds)
}

func TestRemoveMonitoredBondsForOffer(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AddMonitoredBond(sampleMonitoredBond("bond-1", "offer-1")))
	require.NoError(t, s.AddMonitoredBond(sampleMonitoredBond("bond-2", "offer-1")))
	require.NoError(t, s.AddMonitoredBond(sampleMonitoredBond("bond-3", "offer-2")))

	require.NoError(t, s.RemoveMonitoredBondsForOffer("offer-1"))

	bonds, err := s.ListMonitoredBonds()
	require.NoError(t, err)
	require.Len(t, bonds, 1)
	require.Equal(t, "bond-3", bonds[0].BondID)
}

func TestRemoveOfferEverywhereClearsAllTables(t *testing.T) {
	s := newTestStore(t)
	r := sampleMakerRequest("robo-1")
	require.NoError(t, s.CreateMakerRequest(r))
	offer := samplePromotedOffer("offer-1", "robo-1")
	require.NoError(t, s.PromoteToActiveOffer("robo-1", offer))
	require.NoError(t, s.AddMonitoredBond(sampleMonitoredBond("bond-1", "offer-1")))

	require.NoError(t, s.RemoveOfferEverywhere("offer-1"))

	_, err := s.GetActiveOffer("offer-1")
	require.ErrorIs(t, err, ErrNotFound)

	bonds, err := s.ListMonitoredBonds()
	require.NoError(t, err)
	require.Empty(t, bonds)
}
