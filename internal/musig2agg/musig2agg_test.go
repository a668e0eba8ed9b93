package musig2agg

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/stretchr/testify/require"
)

func TestAggregatePubkeysBIP86(t *testing.T) {
	maker, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	taker, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	keys, err := AggregatePubkeys(maker.PubKey(), taker.PubKey(), nil)
	require.NoError(t, err)
	require.NotNil(t, keys.InternalKey)
	require.NotNil(t, keys.FinalKey)
}

func TestAggregatePubkeysWithMerkleRoot(t *testing.T) {
	maker, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	taker, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	root := make([]byte, 32)
	for i := range root {
		root[i] = byte(i + 1)
	}

	withRoot, err := AggregatePubkeys(maker.PubKey(), taker.PubKey(), root)
	require.NoError(t, err)
	withoutRoot, err := AggregatePubkeys(maker.PubKey(), taker.PubKey(), nil)
	require.NoError(t, err)

	// Same internal key either way, different final (tweaked) key.
	require.True(t, withRoot.InternalKey.IsEqual(withoutRoot.InternalKey))
	require.False(t, withRoot.FinalKey.IsEqual(withoutRoot.FinalKey))
}

func TestAggregateNoncesDeterministic(t *testing.T) {
	makerNonces, err := musig2.GenNonces()
	require.NoError(t, err)
	takerNonces, err := musig2.GenNonces()
	require.NoError(t, err)

	agg1, err := AggregateNonces(makerNonces.PubNonce, takerNonces.PubNonce)
	require.NoError(t, err)
	agg2, err := AggregateNonces(makerNonces.PubNonce, takerNonces.PubNonce)
	require.NoError(t, err)
	require.Equal(t, agg1, agg2)
}

func TestAggregateNoncesRejectsGarbage(t *testing.T) {
	var garbage [66]byte
	for i := range garbage {
		garbage[i] = byte(i)
	}
	valid, err := musig2.GenNonces()
	require.NoError(t, err)

	_, err = AggregateNonces(garbage, valid.PubNonce)
	require.Error(t, err)
}
