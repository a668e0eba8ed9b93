package orchestrator

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// scriptForAddress decodes a bech32/base58 address under params and
// returns its scriptPubKey, used to turn a stored bond_address back into
// the script bond.Validate checks a submitted bond's output against.
func scriptForAddress(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: decoding address %q: %w", address, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: building script for %q: %w", address, err)
	}
	return script, nil
}
