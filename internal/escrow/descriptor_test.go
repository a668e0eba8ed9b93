package escrow

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func genKeys(t *testing.T, n int) []*btcec.PublicKey {
	t.Helper()
	keys := make([]*btcec.PublicKey, n)
	for i := range keys {
		priv, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		keys[i] = priv.PubKey()
	}
	return keys
}

func buildTestDescriptor(t *testing.T) *Descriptor {
	t.Helper()
	keys := genKeys(t, 5)
	d, err := Build(keys[0], keys[1], keys[2], keys[3], keys[4])
	require.NoError(t, err)
	return d
}

func TestBuildIsDeterministic(t *testing.T) {
	keys := genKeys(t, 5)
	a, err := Build(keys[0], keys[1], keys[2], keys[3], keys[4])
	require.NoError(t, err)
	b, err := Build(keys[0], keys[1], keys[2], keys[3], keys[4])
	require.NoError(t, err)

	require.Equal(t, a.MerkleRoot, b.MerkleRoot)
	require.True(t, a.OutputKey.IsEqual(b.OutputKey))
	for i := 0; i < 4; i++ {
		require.Equal(t, a.ControlBlocks[i], b.ControlBlocks[i])
	}
}

func TestBuildProducesFourDistinctLeaves(t *testing.T) {
	d := buildTestDescriptor(t)
	seen := make(map[string]bool)
	for _, leaf := range d.Leaves {
		s := string(leaf.Script)
		require.False(t, seen[s], "leaf scripts must be distinct")
		seen[s] = true
	}
}

func TestScriptPubKeyIsP2TR(t *testing.T) {
	d := buildTestDescriptor(t)
	script, err := d.ScriptPubKey()
	require.NoError(t, err)
	require.Len(t, script, 34)
	require.Equal(t, byte(0x51), script[0]) // OP_1
	require.Equal(t, byte(0x20), script[1]) // OP_DATA_32
}

func TestAddressEncodesUnderNetwork(t *testing.T) {
	d := buildTestDescriptor(t)
	addr, err := d.Address(&chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.NotEmpty(t, addr.EncodeAddress())
}

func TestControlBlockForAndLeafScript(t *testing.T) {
	d := buildTestDescriptor(t)
	for _, leaf := range []LeafIndex{LeafC, LeafD, LeafE, LeafF} {
		require.NotEmpty(t, d.ControlBlockFor(leaf))
		require.NotEmpty(t, d.LeafScript(leaf))
	}
}
