package hexid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := []byte{0xde, 0xad, 0xbe, 0xef}
	s := Encode(b)
	require.Equal(t, "deadbeef", s)

	got, err := Decode(s)
	require.NoError(t, err)
	require.Equal(t, b, got)
}

func TestDecodeRejectsInvalidHex(t *testing.T) {
	_, err := Decode("not-hex")
	require.Error(t, err)
}

func TestDecodeFixedRejectsWrongLength(t *testing.T) {
	_, err := DecodeFixed("deadbeef", 5)
	require.Error(t, err)
}

func TestDecodeFixedAcceptsExactLength(t *testing.T) {
	b, err := DecodeFixed("deadbeef", 4)
	require.NoError(t, err)
	require.Len(t, b, 4)
}

func TestNewOfferIDIsSixteenBytesHex(t *testing.T) {
	id, err := NewOfferID()
	require.NoError(t, err)
	require.Len(t, id, 32)

	b, err := Decode(id)
	require.NoError(t, err)
	require.Len(t, b, 16)
}

func TestNewOfferIDIsRandom(t *testing.T) {
	a, err := NewOfferID()
	require.NoError(t, err)
	b, err := NewOfferID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestSHA256Hex(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(nil))
}

func TestValidateRobohashHex(t *testing.T) {
	require.NoError(t, ValidateRobohashHex("deadbeef"))
	require.Error(t, ValidateRobohashHex(""))
	require.Error(t, ValidateRobohashHex("zz"))
}
