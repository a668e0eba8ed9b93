package arbiter

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecideAcceptsMaker(t *testing.T) {
	in := strings.NewReader("M\n")
	var out bytes.Buffer
	o := New(in, &out)

	winner, err := o.Decide(context.Background(), "offer-1")
	require.NoError(t, err)
	require.Equal(t, WinnerMaker, winner)
	require.Contains(t, out.String(), "offer-1")
}

func TestDecideAcceptsTakerCaseInsensitive(t *testing.T) {
	in := strings.NewReader("t\n")
	var out bytes.Buffer
	o := New(in, &out)

	winner, err := o.Decide(context.Background(), "offer-2")
	require.NoError(t, err)
	require.Equal(t, WinnerTaker, winner)
}

func TestDecideReprompsOnGarbageInput(t *testing.T) {
	in := strings.NewReader("banana\nM\n")
	var out bytes.Buffer
	o := New(in, &out)

	winner, err := o.Decide(context.Background(), "offer-3")
	require.NoError(t, err)
	require.Equal(t, WinnerMaker, winner)
	require.Contains(t, out.String(), "unrecognized input")
}

func TestDecideRespectsContextCancellation(t *testing.T) {
	in := strings.NewReader("banana\n")
	var out bytes.Buffer
	o := New(in, &out)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	_, err := o.Decide(ctx, "offer-4")
	require.Error(t, err)
}
