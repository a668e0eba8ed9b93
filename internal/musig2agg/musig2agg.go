// Package musig2agg implements the three pure MuSig2 aggregation
// operations the coordinator performs as a non-signing third party: public
// key aggregation (with the BIP-341 Taproot tweak folded in), public nonce
// aggregation, and partial signature combination. The coordinator never
// holds either trader's secret key share or secret nonce, so it never
// calls musig2.Sign itself — only the stateless Aggregate*/Combine*
// primitives exposed by btcec/v2/schnorr/musig2.
//
// Grounded on the key-aggregation and nonce-handling conventions in the
// teacher's internal/swap/musig2.go (MuSig2Session), generalized from a
// two-party signing session to a pure aggregator with no local keys.
package musig2agg

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
)

// Canonical signer ordering. Per the protocol contract, keys are always
// aggregated in (maker, taker) order; the underlying library additionally
// sorts keys lexicographically for coefficient computation, so the output
// is deterministic regardless, but callers must still pass this order.
const (
	SignerMaker = 0
	SignerTaker = 1
)

var (
	// ErrKeyAggregation is returned when the two trader MuSig2 public
	// keys cannot be combined (malformed key material).
	ErrKeyAggregation = errors.New("musig2agg: key aggregation failed")
	// ErrNonceAggregation is returned when the two public nonces cannot
	// be combined.
	ErrNonceAggregation = errors.New("musig2agg: nonce aggregation failed")
	// ErrCombineSigs is returned when the two partial signatures do not
	// combine into a valid final signature.
	ErrCombineSigs = errors.New("musig2agg: partial signature combination failed")
)

// KeySet is the result of aggregating the maker and taker MuSig2 public
// keys, carrying both the untweaked aggregate (the internal key of the
// Taproot output) and the final tweaked key (what actually appears on
// chain as the output key).
type KeySet struct {
	InternalKey *btcec.PublicKey
	FinalKey    *btcec.PublicKey
	ctxKeys     []*btcec.PublicKey
}

// AggregatePubkeys combines the maker's and taker's MuSig2 public keys
// into the escrow's Taproot internal key, applying the BIP-341 output-key
// tweak for the given Merkle root (the root of the four-leaf script tree
// built by internal/escrow). A nil/empty root performs the BIP-86
// key-path-only tweak.
func AggregatePubkeys(makerPK, takerPK *btcec.PublicKey, merkleRoot []byte) (*KeySet, error) {
	keys := []*btcec.PublicKey{makerPK, takerPK}

	var tweakOpt musig2.KeyAggOption
	if len(merkleRoot) == 32 {
		tweakOpt = musig2.WithTaprootKeyTweak(merkleRoot)
	} else {
		tweakOpt = musig2.WithBIP86KeyTweak()
	}

	aggKey, _, _, err := musig2.AggregateKeys(keys, true, tweakOpt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyAggregation, err)
	}

	return &KeySet{
		InternalKey: aggKey.PreTweakedKey,
		FinalKey:    aggKey.FinalKey,
		ctxKeys:     keys,
	}, nil
}

// AggregateNonces combines the maker's and taker's public nonces into the
// aggregate nonce used to compute both partial signatures and the final
// combined signature. Nonce aggregation is commutative; order does not
// matter for correctness, but (maker, taker) is kept for consistency with
// key aggregation.
func AggregateNonces(makerNonce, takerNonce [musig2.PubNonceSize]byte) ([musig2.PubNonceSize]byte, error) {
	agg, err := musig2.AggregateNonces([][musig2.PubNonceSize]byte{makerNonce, takerNonce})
	if err != nil {
		return [musig2.PubNonceSize]byte{}, fmt.Errorf("%w: %v", ErrNonceAggregation, err)
	}
	return agg, nil
}

// CombinePartialSigs combines the maker's and taker's partial signatures
// into a final, verifiable Schnorr signature over msg (the BIP-341
// key-spend sighash of the payout PSBT). merkleRoot must be the same root
// passed to AggregatePubkeys for this escrow, nil for a pure key-path
// (BIP-86) aggregate.
func CombinePartialSigs(
	keys *KeySet,
	aggNonce [musig2.PubNonceSize]byte,
	msg [32]byte,
	merkleRoot []byte,
	makerSig, takerSig *musig2.PartialSignature,
) (*schnorr.Signature, error) {
	combineOpt := musig2.WithTaprootTweakedCombine(msg, keys.ctxKeys, merkleRoot, true)
	if len(merkleRoot) != 32 {
		combineOpt = musig2.WithBIP86TweakedCombine(msg, keys.ctxKeys, true)
	}

	finalSig, err := musig2.CombineSigs(
		aggNonce,
		[]*musig2.PartialSignature{makerSig, takerSig},
		combineOpt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCombineSigs, err)
	}
	return finalSig, nil
}
