package watcher

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// chainhashFromString parses a hex txid as stored on a taken_offers row
// into the hash type the node client's lookup calls expect.
func chainhashFromString(txid string) (*chainhash.Hash, error) {
	return chainhash.NewHashFromStr(txid)
}
