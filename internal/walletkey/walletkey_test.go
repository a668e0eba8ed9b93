package walletkey

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

const testXprv = "tprv8ZgxMBicQKsPdy6LMhUtFHAgpXoR6Chy1gfTEsxcbHcxF9hDXEPBmz79dPSpZUJE6vpBgBgCDArQHHzpTGcbxyYrwbDzTwqc8jvKHTxmyfw"

func TestNewParsesXprvAndDerivesCoordinatorKey(t *testing.T) {
	w, err := New(testXprv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.NotNil(t, w.CoordinatorPubKey())
}

func TestNewRejectsGarbageXprv(t *testing.T) {
	_, err := New("not-an-xprv", &chaincfg.RegressionNetParams)
	require.Error(t, err)
}

func TestCoordinatorPubKeyIsStable(t *testing.T) {
	w, err := New(testXprv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	a := w.CoordinatorPubKey()
	b := w.CoordinatorPubKey()
	require.True(t, a.IsEqual(b))
}

func TestSignSchnorrProducesValidSignature(t *testing.T) {
	w, err := New(testXprv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	var msg [32]byte
	for i := range msg {
		msg[i] = byte(i)
	}

	sig, err := w.SignSchnorr(msg)
	require.NoError(t, err)
	require.True(t, sig.Verify(msg[:], w.CoordinatorPubKey()))
}

func TestDeriveAddressIsDeterministicPerIndex(t *testing.T) {
	w, err := New(testXprv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	a, err := w.DeriveAddress(0)
	require.NoError(t, err)
	b, err := w.DeriveAddress(0)
	require.NoError(t, err)
	require.Equal(t, a.Address, b.Address)

	c, err := w.DeriveAddress(1)
	require.NoError(t, err)
	require.NotEqual(t, a.Address, c.Address)
}

func TestDeriveAddressProducesValidP2WPKH(t *testing.T) {
	w, err := New(testXprv, &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	addr, err := w.DeriveAddress(7)
	require.NoError(t, err)
	require.NotEmpty(t, addr.Address)
	require.Len(t, addr.Script, 22) // OP_0 <20-byte hash>
	require.Equal(t, uint32(7), addr.Index)
}
