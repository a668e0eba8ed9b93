package orchestrator

// RequestOfferParams is the maker's initial declaration of trade terms.
type RequestOfferParams struct {
	Robohash        string
	AmountSat       int64
	IsBuyOrder      bool
	BondRatio       int
	OfferDurationTS int64
}

// RequestOfferResult tells the maker where and how much to lock.
type RequestOfferResult struct {
	BondAddress      string
	LockingAmountSat int64
}

// BondSubmission carries a trader's bond and trade-identity material,
// common to both SubmitMakerBond and SubmitTakerBond.
type BondSubmission struct {
	Robohash         string
	SignedBondHex    string
	PayoutAddress    string
	TaprootPubkeyHex string
	MusigPubkeyHex   string
	MusigPubNonceHex string
	PsbtInputsHexCSV string
	ChangeAddress    string
}

// SubmitMakerBondResult confirms the promotion to ActiveOrderbook.
type SubmitMakerBondResult struct {
	OfferID           string
	BondLockedUntilTS int64
}

// FetchOffersParams selects the orderbook side and amount band to search.
type FetchOffersParams struct {
	IsBuyOrder  bool
	AmountMinSat int64
	AmountMaxSat int64
}

// PublicOffer is the subset of an ActiveOrderbook record a prospective
// taker is shown.
type PublicOffer struct {
	OfferID             string
	AmountSat           int64
	RequiredBondSat     int64
	BondLockingAddress  string
}

// FetchOffersResult is the orderbook slice matching a taker's query.
type FetchOffersResult struct {
	Offers []PublicOffer
}

// EscrowBundle is the funding-PSBT bundle returned by both
// SubmitTakerBond and PollTakenAsMaker — the same data either party reads
// until both signatures are in.
type EscrowBundle struct {
	EscrowPsbtHex              string
	EscrowOutputDescriptor     string
	EscrowAmountMakerSat       int64
	EscrowAmountTakerSat       int64
	EscrowFeeSatPerParticipant int64
}

// SubmitSignedEscrowPsbtResult reports whether the funding transaction
// broadcast on this call (the second signature to arrive triggers it).
type SubmitSignedEscrowPsbtResult struct {
	Broadcast  bool
	EscrowTxid string
}

// PollEscrowConfirmedResult reports the Confirmation Watcher's verdict.
type PollEscrowConfirmedResult struct {
	Confirmed bool
}

// PayoutStatus names the terminal or in-progress state PollPayout reports.
type PayoutStatus string

const (
	// StatusAwaitingPartialSigs is returned for the happy path until both
	// partial signatures have been submitted, and to the winner of an
	// arbitrated dispute until the winner's signature has been submitted.
	StatusAwaitingPartialSigs PayoutStatus = "AwaitingPartialSigs"
	// StatusDecidingEscrow is returned while a dispute awaits the
	// Arbitration Oracle's decision.
	StatusDecidingEscrow PayoutStatus = "DecidingEscrow"
	// StatusLostEscrow is returned to the losing side of an arbitrated
	// dispute; no payout PSBT is issued to them.
	StatusLostEscrow PayoutStatus = "LostEscrow"
	// StatusFinalized is returned once the payout transaction broadcast.
	StatusFinalized PayoutStatus = "Finalized"
)

// PollPayoutResult carries either a payout PSBT bundle to sign (happy
// path or arbitrated winner) or a terminal status with no bundle.
type PollPayoutResult struct {
	Status PayoutStatus

	PayoutPsbtHex   string
	AggNonceHex     string
	AggPubkeyCtxHex string

	PayoutTxid string
}

// SignalObligationsParams reports one party's satisfaction with the trade
// once the escrow has confirmed.
type SignalObligationsParams struct {
	OfferID  string
	Robohash string
	Happy    bool
}

// SubmitPartialSignatureParams carries one party's MuSig2 partial
// signature over the payout PSBT's key-spend sighash or, for an
// arbitrated payout, the winner's plain Schnorr signature over the
// script-path sighash in PartialSigHex. Named on the wire
// as a distinct endpoint in spec.md §6 alongside the nine tabulated
// operations, since PollPayout alone cannot carry a request body large
// enough for both directions of the payout handshake.
type SubmitPartialSignatureParams struct {
	OfferID       string
	Robohash      string
	PartialSigHex string
}

// SubmitPartialSignatureResult reports whether the payout transaction
// broadcast on this call (the second partial signature triggers it; for
// an arbitrated payout, the winner's single signature does).
type SubmitPartialSignatureResult struct {
	Broadcast  bool
	PayoutTxid string
}
