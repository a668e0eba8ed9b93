package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusByCategory(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, NewValidation("InvalidAmount", "bad").HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, NewInternal("DBFail", errors.New("boom")).HTTPStatus())
}

func TestHTTPStatusProtocolStateCodes(t *testing.T) {
	require.Equal(t, http.StatusNotFound, NewProtocolState("NotFound", "gone").HTTPStatus())
	require.Equal(t, http.StatusNotFound, NewProtocolState("BondNotFound", "gone").HTTPStatus())
	require.Equal(t, http.StatusNotFound, NewProtocolState("NoOffersAvailable", "none").HTTPStatus())
	require.Equal(t, http.StatusConflict, NewProtocolState("NotConfirmed", "wait").HTTPStatus())
	require.Equal(t, http.StatusTooManyRequests, NewProtocolState("RateLimited", "slow down").HTTPStatus())
	require.Equal(t, http.StatusConflict, NewProtocolState("SomethingElse", "wait").HTTPStatus())
}

func TestAsUnwrapsClassifiedError(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := NewValidationWrap("InvalidRobohash", "bad hex", cause)

	var plain error = wrapped
	got, ok := As(plain)
	require.True(t, ok)
	require.Equal(t, "InvalidRobohash", got.Code)
	require.ErrorIs(t, got, cause)
}

func TestAsFailsOnUnclassifiedError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	require.False(t, ok)
}

func TestErrorStringIncludesCauseWhenPresent(t *testing.T) {
	cause := errors.New("root cause")
	err := NewValidationWrap("Code", "message", cause)
	require.Contains(t, err.Error(), "root cause")

	plain := NewValidation("Code", "message")
	require.NotContains(t, plain.Error(), "<nil>")
}
