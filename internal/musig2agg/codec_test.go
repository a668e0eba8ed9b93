package musig2agg

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"

	"github.com/taptrade/coordinatord/pkg/hexid"
)

func TestParsePubkeyHexRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubHex := hexid.Encode(priv.PubKey().SerializeCompressed())

	got, err := ParsePubkeyHex(pubHex)
	require.NoError(t, err)
	require.True(t, priv.PubKey().IsEqual(got))
}

func TestParsePubkeyHexRejectsGarbage(t *testing.T) {
	_, err := ParsePubkeyHex("not-hex")
	require.Error(t, err)
}

func TestParseNonceHexRejectsWrongSize(t *testing.T) {
	_, err := ParseNonceHex("deadbeef")
	require.Error(t, err)
}

func TestEncodeNonceHexRoundTrip(t *testing.T) {
	var nonce [66]byte
	for i := range nonce {
		nonce[i] = byte(i)
	}
	s := EncodeNonceHex(nonce)
	got, err := ParseNonceHex(s)
	require.NoError(t, err)
	require.Equal(t, nonce, got)
}

func TestParseSchnorrSigHexRejectsWrongSize(t *testing.T) {
	_, err := ParseSchnorrSigHex("deadbeef")
	require.Error(t, err)
}

func TestEncodeSchnorrSigHexRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	sig, err := schnorr.Sign(priv, make([]byte, 32))
	require.NoError(t, err)

	s := EncodeSchnorrSigHex(sig)
	got, err := ParseSchnorrSigHex(s)
	require.NoError(t, err)
	require.Equal(t, sig.Serialize(), got.Serialize())
}
