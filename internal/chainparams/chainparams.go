// Package chainparams resolves the coordinator's configured network into
// the btcsuite chain parameters used throughout address encoding, PSBT
// assembly, and script construction. It replaces the teacher's multi-chain
// internal/chain registry (BIP44 coin types, per-chain bech32 HRPs across
// Bitcoin/Litecoin/Dogecoin/Ethereum/Solana/Monero) with a single
// Bitcoin-only lookup, since this coordinator speaks only Bitcoin.
package chainparams

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/taptrade/coordinatord/internal/config"
)

// Params returns the btcsuite chain parameters for the given network.
func Params(network config.Network) (*chaincfg.Params, error) {
	switch network {
	case config.Mainnet:
		return &chaincfg.MainNetParams, nil
	case config.Testnet:
		return &chaincfg.TestNet3Params, nil
	case config.Regtest:
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("chainparams: unknown network %q", network)
	}
}
