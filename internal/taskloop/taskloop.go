// Package taskloop provides the ticker-driven background task shape shared
// by the bond monitor, the confirmation watcher, and the arbitration
// prompt loop: a named goroutine that ticks on a fixed interval and
// survives a panicking tick by pausing for a fixed backoff before ticking
// again. Tick bodies return no error: a tick handles and logs its own
// errors, and the work is retried on the next regular tick, with no
// backoff.
//
// Grounded on the teacher's internal/swap/monitor.go and
// internal/node/retry_worker.go, both of which run a ticker inside a
// context-cancellable goroutine; the panic-recovery and backoff wrapper
// around the tick body is new, generalizing the two teacher loops (which
// assume their tick bodies never panic) into the explicit supervisor the
// protocol's scheduling model requires.
package taskloop

import (
	"context"
	"time"

	"github.com/taptrade/coordinatord/pkg/logging"
)

// Backoff is the pause after a tick body panicked before the loop resumes
// ticking. It is the only case in which the loop backs off.
const Backoff = 5 * time.Second

// Run starts a supervised ticker loop that calls tick once per interval
// until ctx is cancelled. A panic inside tick is recovered, logged, and
// followed by a Backoff pause before the loop resumes ticking.
func Run(ctx context.Context, log *logging.Logger, name string, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runTickSafely(ctx, log, name, tick)
		}
	}
}

func runTickSafely(ctx context.Context, log *logging.Logger, name string, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task tick panicked, backing off", "task", name, "panic", r)
			time.Sleep(Backoff)
		}
	}()
	tick(ctx)
}
