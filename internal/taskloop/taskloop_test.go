package taskloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taptrade/coordinatord/pkg/logging"
)

func TestRunTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count atomic.Int32

	done := make(chan struct{})
	go func() {
		Run(ctx, logging.GetDefault(), "test-loop", 5*time.Millisecond, func(context.Context) {
			count.Add(1)
		})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	require.GreaterOrEqual(t, count.Load(), int32(2))
}

func TestRunRecoversPanickingTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var ticks atomic.Int32

	done := make(chan struct{})
	go func() {
		Run(ctx, logging.GetDefault(), "panicking-loop", 5*time.Millisecond, func(context.Context) {
			ticks.Add(1)
			panic("boom")
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	require.GreaterOrEqual(t, ticks.Load(), int32(1))
}
