package arbiter

import (
	"context"
	"time"

	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/pkg/logging"
)

// PollInterval is how often the loop checks for newly disputed trades.
// The protocol does not fix this figure; 10s matches the bond monitor's
// order of magnitude without competing for the oracle's attention on
// every tick; it is shorter than the 30s confirmation watcher interval.
const PollInterval = 10 * time.Second

// Loop drives PayoutArbitrated trades lacking an arbiter decision through
// the Oracle and persists the resulting winner.
type Loop struct {
	store  *store.Store
	oracle *Oracle
	log    *logging.Logger
}

// NewLoop constructs an arbitration Loop over st, prompting decisions
// through oracle.
func NewLoop(st *store.Store, oracle *Oracle) *Loop {
	return &Loop{
		store:  st,
		oracle: oracle,
		log:    logging.GetDefault().Component("arbiter-loop"),
	}
}

// Tick decides every currently disputed trade in turn. Exported so the
// caller's taskloop.Run wiring can reference it directly.
func (l *Loop) Tick(ctx context.Context) {
	disputed, err := l.store.ListDisputedOffers()
	if err != nil {
		l.log.Error("failed to list disputed offers", "error", err)
		return
	}

	for _, t := range disputed {
		winner, err := l.oracle.Decide(ctx, t.OfferID)
		if err != nil {
			l.log.Error("arbitration decision failed", "offer_id", t.OfferID, "error", err)
			continue
		}

		t.ArbiterWinner = string(winner)
		t.UpdatedAt = time.Now().Unix()
		if err := l.store.UpdateTakenOffer(&t); err != nil {
			l.log.Error("failed to persist arbiter decision", "offer_id", t.OfferID, "error", err)
		}
	}
}
