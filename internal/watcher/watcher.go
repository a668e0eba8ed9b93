// Package watcher implements the Confirmation Watcher: a 30-second poll
// over every taken offer with a broadcast but not-yet-confirmed escrow
// funding transaction, advancing it to ObligationsPending once it clears
// the confirmation threshold.
//
// Grounded on the teacher's internal/swap/monitor.go confirmation-polling
// loop shape (ticker over a snapshot of tracked IDs, per-ID timeout), run
// here via internal/taskloop instead of the teacher's bespoke ctx/ticker
// wiring.
package watcher

import (
	"context"
	"time"

	"github.com/taptrade/coordinatord/internal/nodeclient"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/internal/taskloop"
	"github.com/taptrade/coordinatord/pkg/logging"
)

// Interval is the confirmation watcher's poll period.
const Interval = 30 * time.Second

// ConfirmationThreshold is the confirmation count an escrow funding
// transaction must exceed (strictly) before the trade is considered
// settled on-chain.
const ConfirmationThreshold = 3

// Watcher polls the node for each unconfirmed escrow's transaction and
// marks it confirmed once it passes ConfirmationThreshold.
type Watcher struct {
	node  *nodeclient.Client
	store *store.Store
	log   *logging.Logger

	cancel context.CancelFunc
}

// New constructs a confirmation watcher.
func New(node *nodeclient.Client, st *store.Store) *Watcher {
	return &Watcher{
		node:  node,
		store: st,
		log:   logging.GetDefault().Component("confirmation-watcher"),
	}
}

// Start launches the supervised poll loop.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go taskloop.Run(ctx, w.log, "confirmation-watcher", Interval, w.tick)
	w.log.Info("confirmation watcher started", "interval", Interval)
}

// Stop halts the poll loop.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) tick(ctx context.Context) {
	pending, err := w.store.UnconfirmedEscrows()
	if err != nil {
		w.log.Warn("listing unconfirmed escrows failed", "error", err)
		return
	}

	for i := range pending {
		w.checkOne(&pending[i])
	}
}

func (w *Watcher) checkOne(offer *store.TakenOffer) {
	hash, err := chainhashFromString(offer.EscrowTxid)
	if err != nil {
		w.log.Warn("stored escrow txid malformed", "offer_id", offer.OfferID, "txid", offer.EscrowTxid, "error", err)
		return
	}

	res, err := w.node.RawTransaction(hash)
	if err != nil {
		w.log.Debug("escrow tx not found yet", "offer_id", offer.OfferID, "txid", offer.EscrowTxid, "error", err)
		return
	}

	if res.Confirmations <= uint64(ConfirmationThreshold) {
		w.log.Debug("escrow awaiting confirmations",
			"offer_id", offer.OfferID, "confirmations", res.Confirmations, "threshold", ConfirmationThreshold)
		return
	}

	offer.EscrowConfirmed = true
	offer.State = store.StateObligationsPending
	if err := w.store.UpdateTakenOffer(offer); err != nil {
		w.log.Error("failed to mark escrow confirmed", "offer_id", offer.OfferID, "error", err)
		return
	}
	w.log.Info("escrow confirmed", "offer_id", offer.OfferID, "confirmations", res.Confirmations)
}
