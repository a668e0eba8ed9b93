package bond

import (
	"context"
	"time"

	"github.com/taptrade/coordinatord/internal/nodeclient"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/internal/taskloop"
	"github.com/taptrade/coordinatord/pkg/logging"
)

// Interval is the bond monitor's rescan period, per the 15-second
// monitoring loop the protocol specifies.
const Interval = 15 * time.Second

// Monitor periodically rescans every monitored bond against a mempool
// mirror, punishing any bond whose funding inputs have been conflictingly
// spent elsewhere.
type Monitor struct {
	node              *nodeclient.Client
	store             *store.Store
	mirror            *mempoolMirror
	punishmentEnabled bool
	log               *logging.Logger

	cancel context.CancelFunc
}

// NewMonitor constructs a bond monitor. punishmentEnabled gates whether a
// detected violation actually broadcasts the bond or only logs it.
func NewMonitor(node *nodeclient.Client, st *store.Store, punishmentEnabled bool) *Monitor {
	return &Monitor{
		node:              node,
		store:             st,
		mirror:            newMempoolMirror(),
		punishmentEnabled: punishmentEnabled,
		log:               logging.GetDefault().Component("bond-monitor"),
	}
}

// Start launches the supervised monitor loop.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go taskloop.Run(ctx, m.log, "bond-monitor", Interval, m.tick)
	m.log.Info("bond monitor started", "interval", Interval)
}

// Stop halts the monitor loop.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Monitor) tick(ctx context.Context) {
	m.expireOffers()

	if err := m.mirror.refresh(m.node); err != nil {
		m.log.Warn("mempool mirror refresh failed", "error", err)
		return
	}

	bonds, err := m.store.ListMonitoredBonds()
	if err != nil {
		m.log.Warn("listing monitored bonds failed", "error", err)
		return
	}

	for _, b := range bonds {
		m.checkBond(b)
	}
}

// expireOffers discards ActiveOrderbook offers whose offer_duration_ts has
// elapsed without a taker, releasing their maker bonds from monitoring
// without punishment, per the protocol's plain-timeout discard rule.
func (m *Monitor) expireOffers() {
	expired, err := m.store.ExpireActiveOffers(time.Now().Unix())
	if err != nil {
		m.log.Warn("expiring active offers failed", "error", err)
		return
	}
	for _, offerID := range expired {
		m.log.Info("offer expired without a taker, bond released", "offer_id", offerID)
		if err := m.store.RemoveMonitoredBondsForOffer(offerID); err != nil {
			m.log.Error("failed to release bonds for expired offer", "offer_id", offerID, "error", err)
		}
	}
}

func (m *Monitor) checkBond(mb store.MonitoredBond) {
	decoded, err := decodeBondTx(mb.BondTxHex)
	if err != nil {
		m.log.Warn("stored bond tx no longer decodes", "bond_id", mb.BondID, "error", err)
		return
	}

	for _, in := range decoded.TxIn {
		spender, conflicted := m.mirror.conflicts(in.PreviousOutPoint)
		if !conflicted {
			continue
		}
		m.log.Warn("bond violation detected: input double-spent",
			"bond_id", mb.BondID, "offer_id", mb.OfferID, "conflicting_txid", spender)
		m.punish(mb)
		return
	}
}

func (m *Monitor) punish(mb store.MonitoredBond) {
	if !m.punishmentEnabled {
		m.log.Warn("punishment disabled, not broadcasting", "bond_id", mb.BondID)
		return
	}

	decoded, err := decodeBondTx(mb.BondTxHex)
	if err != nil {
		m.log.Error("cannot decode bond for punishment", "bond_id", mb.BondID, "error", err)
		return
	}

	if _, err := m.node.BroadcastTx(decoded); err != nil {
		// Best-effort: retained and retried on the next tick, per the
		// protocol's punishment error-handling contract.
		m.log.Error("punishment broadcast failed, will retry", "bond_id", mb.BondID, "error", err)
		return
	}

	m.log.Info("bond punished: broadcast and offer removed", "bond_id", mb.BondID, "offer_id", mb.OfferID)
	if err := m.store.RemoveOfferEverywhere(mb.OfferID); err != nil {
		m.log.Error("failed to remove punished offer", "offer_id", mb.OfferID, "error", err)
	}
}
