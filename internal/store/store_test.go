package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewInitializesSchema(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMakerRequest("nobody")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAllocateAddressIndexIncrements(t *testing.T) {
	s := newTestStore(t)

	first, err := s.AllocateAddressIndex()
	require.NoError(t, err)
	require.Equal(t, uint32(0), first)

	second, err := s.AllocateAddressIndex()
	require.NoError(t, err)
	require.Equal(t, uint32(1), second)
}
