// Package orchestrator implements the Trade Orchestrator: the nine
// protocol operations that drive an offer from a maker's initial request
// through to a broadcast payout. It is the seam where the Persistence
// Facade, Bond Subsystem, Escrow/PSBT Builder, MuSig2 Aggregator, Wallet
// Facade, and Arbitration Oracle are wired together.
//
// Grounded on the teacher's internal/swap.Coordinator (a single struct
// holding the store/wallet/backend handles referenced by every swap
// operation), narrowed from the teacher's stateful in-memory swap map to
// a stateless façade over internal/store — every operation here loads,
// mutates, and persists a single offer record rather than caching it.
package orchestrator

import (
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/taptrade/coordinatord/internal/arbiter"
	"github.com/taptrade/coordinatord/internal/nodeclient"
	"github.com/taptrade/coordinatord/internal/store"
	"github.com/taptrade/coordinatord/internal/walletkey"
	"github.com/taptrade/coordinatord/pkg/logging"
)

// Trade parameter bounds, named in spec.md §3/§8.
const (
	AmountMinSat = 10_000
	AmountMaxSat = 20_000_000

	BondRatioMin = 2
	BondRatioMax = 50

	DurationMin = 10_800  // 3h
	DurationMax = 604_800 // 7d

	// MinInputSumMultiplier is the coordinator-configured ratio of the
	// proof-of-reserves floor to the bond-address payment floor: a bond
	// must show skin in the game beyond the amount actually locked.
	// Resolved as an Open Question in DESIGN.md; not numerically fixed
	// by spec.md §4.2.
	MinInputSumMultiplier = 2

	// offerIDMaxAttempts bounds the retry loop on a colliding 16-byte
	// random offer_id, per spec.md §9's open question.
	offerIDMaxAttempts = 5

	// confirmTargetBlocks is the confirmation target used to estimate
	// the happy-path and script-path payout feerates.
	confirmTargetBlocks = 6
)

// Config carries the process-wide settings the orchestrator needs beyond
// its component handles.
type Config struct {
	Params              *chaincfg.Params
	BondMinFeerateSatVB  int64
	CoordinatorFeerate   int64
}

// Orchestrator wires the store, node, wallet, and arbiter handles together
// behind the nine protocol operations. It holds no per-trade state of its
// own; every operation is a read-mutate-persist cycle against the store.
type Orchestrator struct {
	store   *store.Store
	node    *nodeclient.Client
	wallet  *walletkey.Wallet
	arbiter *arbiter.Oracle
	cfg     Config
	log     *logging.Logger
}

// New constructs the Trade Orchestrator.
func New(st *store.Store, node *nodeclient.Client, wallet *walletkey.Wallet, arb *arbiter.Oracle, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:   st,
		node:    node,
		wallet:  wallet,
		arbiter: arb,
		cfg:     cfg,
		log:     logging.GetDefault().Component("orchestrator"),
	}
}
