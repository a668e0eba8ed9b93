// Package escrow builds the coordinator's Taproot escrow output descriptor
// and assembles the funding and payout PSBTs around it. The script-tree
// construction is grounded on the teacher's internal/swap/script.go
// (TaprootScriptTree, BuildRefundScript), generalized from a single refund
// leaf to the four-leaf arbitration tree this protocol requires.
package escrow

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/taptrade/coordinatord/internal/musig2agg"
)

// Timelocks for the two safety-hatch leaves, in relative blocks (OP_CSV).
const (
	MakerUnilateralExitBlocks    = 12228 // ~85 days
	CooperativeTimelockExitBlocks = 2048  // ~14 days
)

// LeafIndex names the four script-path leaves by their role.
type LeafIndex int

const (
	LeafC LeafIndex = iota // maker + coordinator (arbitration: maker wins)
	LeafD                  // taker + coordinator (arbitration: taker wins)
	LeafE                  // maker unilateral exit after long timeout
	LeafF                  // maker+taker cooperative timelocked exit
)

// Descriptor is the fully built Taproot escrow output: the internal
// MuSig2-aggregated key, the tweaked output key, the four-leaf script
// tree, and a control block per leaf for script-path spends.
type Descriptor struct {
	MakerTaprootPK *btcec.PublicKey
	TakerTaprootPK *btcec.PublicKey
	CoordinatorPK  *btcec.PublicKey

	Keys *musig2agg.KeySet

	MerkleRoot    []byte
	OutputKey     *btcec.PublicKey
	Leaves        [4]txscript.TapLeaf
	ControlBlocks [4][]byte
}

// Build constructs the escrow descriptor from the two traders' Taproot
// (script-path) public keys, the coordinator's own public key, and the two
// traders' MuSig2 public keys (aggregated for the key path). The result is
// deterministic in its five public key inputs, matching the invariant that
// escrow descriptors are idempotent for a fixed (maker, taker) pair.
func Build(makerTaprootPK, takerTaprootPK, coordinatorPK, makerMusigPK, takerMusigPK *btcec.PublicKey) (*Descriptor, error) {
	leafC, err := leafAndPk(makerTaprootPK, coordinatorPK)
	if err != nil {
		return nil, fmt.Errorf("escrow: building leaf C: %w", err)
	}
	leafD, err := leafAndPk(takerTaprootPK, coordinatorPK)
	if err != nil {
		return nil, fmt.Errorf("escrow: building leaf D: %w", err)
	}
	leafE, err := leafUnilateralAfter(makerTaprootPK, MakerUnilateralExitBlocks)
	if err != nil {
		return nil, fmt.Errorf("escrow: building leaf E: %w", err)
	}
	leafF, err := leafCooperativeAfter(makerTaprootPK, takerTaprootPK, CooperativeTimelockExitBlocks)
	if err != nil {
		return nil, fmt.Errorf("escrow: building leaf F: %w", err)
	}

	// Leaves are passed in this exact order so AssembleTaprootScriptTree's
	// balanced pairing produces the tree shape ((C,D),(E,F)).
	tree := txscript.AssembleTaprootScriptTree(leafC, leafD, leafE, leafF)
	merkleRoot := tree.RootNode.TapHash()

	keys, err := musig2agg.AggregatePubkeys(makerMusigPK, takerMusigPK, merkleRoot[:])
	if err != nil {
		return nil, fmt.Errorf("escrow: aggregating musig2 keys: %w", err)
	}

	d := &Descriptor{
		MakerTaprootPK: makerTaprootPK,
		TakerTaprootPK: takerTaprootPK,
		CoordinatorPK:  coordinatorPK,
		Keys:           keys,
		MerkleRoot:     merkleRoot[:],
		OutputKey:      keys.FinalKey,
		Leaves:         [4]txscript.TapLeaf{leafC, leafD, leafE, leafF},
	}

	for i := range d.Leaves {
		ctrl := tree.LeafMerkleProofs[i].ToControlBlock(keys.InternalKey)
		ctrlBytes, err := ctrl.ToBytes()
		if err != nil {
			return nil, fmt.Errorf("escrow: serializing control block %d: %w", i, err)
		}
		d.ControlBlocks[i] = ctrlBytes
	}

	return d, nil
}

// leafAndPk builds and(pk(a), pk(b)): a CHECKSIGVERIFY b CHECKSIG.
func leafAndPk(a, b *btcec.PublicKey) (txscript.TapLeaf, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddData(schnorr.SerializePubKey(a))
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddData(schnorr.SerializePubKey(b))
	builder.AddOp(txscript.OP_CHECKSIG)
	script, err := builder.Script()
	if err != nil {
		return txscript.TapLeaf{}, err
	}
	return txscript.NewBaseTapLeaf(script), nil
}

// leafUnilateralAfter builds and(pk(a), after(n)): a CHECKSIGVERIFY <n> CSV.
func leafUnilateralAfter(a *btcec.PublicKey, blocks int64) (txscript.TapLeaf, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddData(schnorr.SerializePubKey(a))
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddInt64(blocks)
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	script, err := builder.Script()
	if err != nil {
		return txscript.TapLeaf{}, err
	}
	return txscript.NewBaseTapLeaf(script), nil
}

// leafCooperativeAfter builds and(and(pk(a), pk(b)), after(n)):
// a CHECKSIGVERIFY b CHECKSIGVERIFY <n> CSV.
func leafCooperativeAfter(a, b *btcec.PublicKey, blocks int64) (txscript.TapLeaf, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddData(schnorr.SerializePubKey(a))
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddData(schnorr.SerializePubKey(b))
	builder.AddOp(txscript.OP_CHECKSIGVERIFY)
	builder.AddInt64(blocks)
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	script, err := builder.Script()
	if err != nil {
		return txscript.TapLeaf{}, err
	}
	return txscript.NewBaseTapLeaf(script), nil
}

// ScriptPubKey returns the P2TR scriptPubKey for this descriptor's output
// key: OP_1 <32-byte x-only pubkey>.
func (d *Descriptor) ScriptPubKey() ([]byte, error) {
	xOnly := schnorr.SerializePubKey(d.OutputKey)
	script := make([]byte, 0, 34)
	script = append(script, txscript.OP_1, txscript.OP_DATA_32)
	script = append(script, xOnly...)
	return script, nil
}

// Address returns the bech32m P2TR address for this descriptor under the
// given network parameters.
func (d *Descriptor) Address(params *chaincfg.Params) (btcutil.Address, error) {
	xOnly := schnorr.SerializePubKey(d.OutputKey)
	addr, err := btcutil.NewAddressTaproot(xOnly, params)
	if err != nil {
		return nil, fmt.Errorf("escrow: encoding taproot address: %w", err)
	}
	return addr, nil
}

// ControlBlockFor returns the script-path control block for a given leaf,
// for assembling an arbitrated payout witness.
func (d *Descriptor) ControlBlockFor(leaf LeafIndex) []byte {
	return d.ControlBlocks[leaf]
}

// LeafScript returns the raw tapscript for a given leaf.
func (d *Descriptor) LeafScript(leaf LeafIndex) []byte {
	return d.Leaves[leaf].Script
}
