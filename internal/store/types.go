package store

import "errors"

// State names the taken_offers lifecycle stage a record occupies, from
// escrow funding through terminal payout. AwaitingBond and ActiveOrderbook
// are represented by distinct tables (maker_requests, active_maker_offers)
// rather than a state column, since no further per-state fields apply to
// either prior to a bond/taker arriving.
type State string

const (
	StateTakenAwaitingEscrow        State = "taken_awaiting_escrow"
	StateAwaitingEscrowConfirmation State = "awaiting_escrow_confirmation"
	StateObligationsPending        State = "obligations_pending"
	StatePayoutCooperative         State = "payout_cooperative"
	StatePayoutArbitrated          State = "payout_arbitrated"
	StateFinalized                 State = "finalized"
)

// Errors returned by store operations. Callers classify these via
// errors.Is into the validation/protocol-state/internal categories at the
// orchestrator and HTTP boundary (see internal/apierr).
var (
	ErrNotFound      = errors.New("store: record not found")
	ErrAlreadyExists = errors.New("store: record already exists")
	ErrWrongState    = errors.New("store: record not in expected state")
)

// MakerRequest is an AwaitingBond record: the maker's declared trade
// parameters and the bond address allocated for them, before any bond has
// been accepted.
type MakerRequest struct {
	Robohash         string
	AmountSat        int64
	IsBuyOrder       bool
	BondRatio        int
	OfferDurationTS  int64
	MakerBondAddress string
	RequiredBondSat  int64
	MinInputSumSat   int64
	CreatedAt        int64
}

// ActiveOffer is an ActiveOrderbook record: a maker bond has been accepted
// and the offer is now listed for takers.
type ActiveOffer struct {
	OfferID          string
	Robohash         string
	AmountSat        int64
	IsBuyOrder       bool
	BondRatio        int
	OfferDurationTS  int64
	RequiredBondSat  int64
	MinInputSumSat   int64
	TakerBondAddress string

	MakerBondTx         string
	MakerPayoutAddress  string
	MakerTaprootPK      string
	MakerMusigPK        string
	MakerMusigPubNonce  string
	MakerChangeAddress  string
	MakerPsbtInputs     string

	CreatedAt int64
}

// TakenOffer spans every state from TakenAwaitingEscrow through Finalized;
// the State field discriminates. Fields unused by the current state are
// left at their zero value.
type TakenOffer struct {
	OfferID  string
	State    State

	MakerRobohash   string
	TakerRobohash   string
	AmountSat       int64
	IsBuyOrder      bool
	RequiredBondSat int64
	MinInputSumSat  int64

	MakerBondTx        string
	MakerPayoutAddress string
	MakerTaprootPK     string
	MakerMusigPK       string
	MakerMusigPubNonce string
	MakerChangeAddress string
	MakerPsbtInputs    string

	TakerBondTx        string
	TakerPayoutAddress string
	TakerTaprootPK     string
	TakerMusigPK       string
	TakerMusigPubNonce string
	TakerChangeAddress string
	TakerPsbtInputs    string

	EscrowOutputDescriptor     string
	EscrowFundingPsbt          string
	EscrowMakerSignedPsbt      string
	EscrowTakerSignedPsbt      string
	EscrowTxid                 string
	EscrowConfirmed            bool
	EscrowAmountMakerSat       int64
	EscrowAmountTakerSat       int64
	EscrowFeeSatPerParticipant int64

	MakerHappy *bool
	TakerHappy *bool

	PayoutPsbt         string
	PayoutAggNonce     string
	PayoutAggPubkeyCtx string
	MakerPartialSig    string
	TakerPartialSig    string

	ArbiterWinner string
	PayoutTxid    string

	CreatedAt int64
	UpdatedAt int64
}

// IsMaker reports whether robohash is the maker side of this trade.
func (t *TakenOffer) IsMaker(robohash string) bool { return t.MakerRobohash == robohash }

// IsTaker reports whether robohash is the taker side of this trade.
func (t *TakenOffer) IsTaker(robohash string) bool { return t.TakerRobohash == robohash }

// BondTable names which parent table a monitored bond currently backs, per
// the original protocol's three-way classification.
type BondTable string

const (
	TableOrderbook    BondTable = "orderbook"
	TableActiveTrades BondTable = "active_trades"
	TableMemory       BondTable = "memory"
)

// MonitoredBond is an index entry the Bond Subsystem's monitor loop
// rescans every tick, identified by SHA-256 of its raw transaction bytes
// rather than its txid (unlike the txid, this hash also covers the
// witness data).
type MonitoredBond struct {
	BondID          string
	OfferID         string
	Robohash        string
	BondTxHex       string
	RequiredBondSat int64
	MinInputSumSat  int64
	ParentTable     BondTable
	CreatedAt       int64
}
