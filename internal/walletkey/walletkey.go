// Package walletkey is the coordinator's Wallet Facade: it owns the
// coordinator's own static signing key (used in escrow leaves C and D)
// and derives fresh bond/change addresses from the configured extended
// private key.
//
// Grounded on the teacher's internal/wallet package (hdkeychain-based
// derivation, deriveP2WPKH's pubkey-hash-to-address conversion), narrowed
// from the teacher's multi-purpose BIP44 tree walk to two fixed,
// hardened derivation branches: index 0 for the coordinator's own static
// key, and an incrementing index under branch 1 for one-time bond/change
// addresses.
package walletkey

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// coordinatorKeyIndex is the hardened child index holding the
// coordinator's own static public key, used in escrow leaves C and D.
const coordinatorKeyIndex = hdkeychain.HardenedKeyStart + 0

// addressBranch is the hardened branch one-time bond/change addresses are
// derived under, indexed by the store's persistent wallet_index counter.
const addressBranch = hdkeychain.HardenedKeyStart + 1

// Wallet derives the coordinator's signing key and one-time addresses
// from a single extended private key.
type Wallet struct {
	master *hdkeychain.ExtendedKey
	params *chaincfg.Params

	coordinatorPriv *btcec.PrivateKey
	coordinatorPK   *btcec.PublicKey
}

// New parses the configured WALLET_XPRV and caches the coordinator's
// static keypair.
func New(xprv string, params *chaincfg.Params) (*Wallet, error) {
	master, err := hdkeychain.NewKeyFromString(xprv)
	if err != nil {
		return nil, fmt.Errorf("walletkey: parsing xprv: %w", err)
	}

	coordKey, err := master.Derive(coordinatorKeyIndex)
	if err != nil {
		return nil, fmt.Errorf("walletkey: deriving coordinator key: %w", err)
	}
	coordPriv, err := coordKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("walletkey: coordinator privkey: %w", err)
	}
	coordPub, err := coordKey.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("walletkey: coordinator pubkey: %w", err)
	}

	return &Wallet{master: master, params: params, coordinatorPriv: coordPriv, coordinatorPK: coordPub}, nil
}

// CoordinatorPubKey returns the coordinator's own static public key, used
// in the escrow descriptor's arbitration leaves.
func (w *Wallet) CoordinatorPubKey() *btcec.PublicKey {
	return w.coordinatorPK
}

// SignSchnorr produces the coordinator's own BIP-340 signature over a
// script-path sighash, the half of an arbitrated payout's two-signature
// leaf the coordinator itself contributes.
func (w *Wallet) SignSchnorr(msg [32]byte) (*schnorr.Signature, error) {
	sig, err := schnorr.Sign(w.coordinatorPriv, msg[:])
	if err != nil {
		return nil, fmt.Errorf("walletkey: signing: %w", err)
	}
	return sig, nil
}

// Address is a freshly derived one-time address plus its scriptPubKey and
// the child index it was derived at (for audit/debugging; the protocol
// itself never needs to re-derive from the index).
type Address struct {
	Address  string
	Script   []byte
	Index    uint32
}

// DeriveAddress derives a new P2WPKH address at the given child index
// under the one-time address branch, used for both bond addresses
// (coordinator-controlled deposit targets) and the coordinator's own
// change outputs where applicable.
func (w *Wallet) DeriveAddress(index uint32) (*Address, error) {
	branchKey, err := w.master.Derive(addressBranch)
	if err != nil {
		return nil, fmt.Errorf("walletkey: deriving address branch: %w", err)
	}
	childKey, err := branchKey.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("walletkey: deriving address index %d: %w", index, err)
	}
	pubKey, err := childKey.ECPubKey()
	if err != nil {
		return nil, fmt.Errorf("walletkey: address pubkey: %w", err)
	}

	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, w.params)
	if err != nil {
		return nil, fmt.Errorf("walletkey: encoding address: %w", err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("walletkey: building scriptPubKey: %w", err)
	}

	return &Address{Address: addr.EncodeAddress(), Script: script, Index: index}, nil
}
