package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taptrade/coordinatord/internal/bond"
	"github.com/taptrade/coordinatord/internal/store"
)

func TestFromStoreMapsKnownSentinels(t *testing.T) {
	notFound := FromStore(store.ErrNotFound, "BondNotFound")
	require.Equal(t, ProtocolState, notFound.Category)
	require.Equal(t, "BondNotFound", notFound.Code)

	exists := FromStore(store.ErrAlreadyExists, "NotFound")
	require.Equal(t, Validation, exists.Category)

	wrongState := FromStore(store.ErrWrongState, "NotFound")
	require.Equal(t, ProtocolState, wrongState.Category)
	require.Equal(t, "WrongState", wrongState.Code)

	other := FromStore(errors.New("disk full"), "NotFound")
	require.Equal(t, Internal, other.Category)
}

func TestFromBondValidationMapsKnownSentinels(t *testing.T) {
	cases := []struct {
		err          error
		wantCategory Category
		wantCode     string
	}{
		{bond.ErrMalformedTx, Validation, "InvalidBond"},
		{bond.ErrOutputTooSmall, Validation, "InvalidBond"},
		{bond.ErrInputSumTooSmall, Validation, "InvalidBond"},
		{bond.ErrMissingInputTx, Validation, "MissingInputTx"},
		{bond.ErrFeerateTooLow, Validation, "InvalidBond"},
		{bond.ErrInvalidSignature, Validation, "InvalidBond"},
	}
	for _, c := range cases {
		got := FromBondValidation(c.err)
		require.Equal(t, c.wantCategory, got.Category, c.err)
		require.Equal(t, c.wantCode, got.Code, c.err)
	}

	unknown := FromBondValidation(errors.New("unrelated"))
	require.Equal(t, Internal, unknown.Category)
}
