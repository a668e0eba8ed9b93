// Package nodeclient wraps a Bitcoin Core JSON-RPC connection, grounded on
// the wrapper pattern in the pack's coinjoin-engine client (RawRequest
// fallbacks for RPC fields that drift between Core releases).
package nodeclient

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/taptrade/coordinatord/pkg/logging"
)

// Client wraps a single Bitcoin Core RPC connection used by every
// coordinator subsystem that needs chain state: the bond monitor's mempool
// mirror, the confirmation watcher, bond validation's prevout lookups, and
// the payout builder's feerate estimates.
type Client struct {
	rpc    *rpcclient.Client
	params *chaincfg.Params
	log    *logging.Logger
}

// Config holds the Bitcoin Core RPC connection parameters.
type Config struct {
	HostPort string
	User     string
	Pass     string
	Params   *chaincfg.Params
}

// New dials Bitcoin Core and verifies the connection with getblockcount.
func New(cfg Config) (*Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.HostPort,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	rc, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("nodeclient: dial: %w", err)
	}

	height, err := rc.GetBlockCount()
	if err != nil {
		rc.Shutdown()
		return nil, fmt.Errorf("nodeclient: connectivity check: %w", err)
	}

	log := logging.GetDefault().Component("nodeclient")
	log.Infof("connected to bitcoind, height=%d", height)

	return &Client{rpc: rc, params: cfg.Params, log: log}, nil
}

// Shutdown closes the underlying RPC connection.
func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

// Params returns the network parameters this client was constructed with.
func (c *Client) Params() *chaincfg.Params {
	return c.params
}

// BlockCount returns the current chain tip height.
func (c *Client) BlockCount() (int64, error) {
	return c.rpc.GetBlockCount()
}

// RawMempoolTxids returns the current mempool's txids, used by the bond
// monitor's 15-second mempool mirror tick.
func (c *Client) RawMempoolTxids() ([]*chainhash.Hash, error) {
	hashes, err := c.rpc.GetRawMempool()
	if err != nil {
		return nil, fmt.Errorf("nodeclient: getrawmempool: %w", err)
	}
	return hashes, nil
}

// RawTransaction fetches a transaction's full verbose result, including
// confirmation count, used by the confirmation watcher.
func (c *Client) RawTransaction(txid *chainhash.Hash) (*btcjson.TxRawResult, error) {
	res, err := c.rpc.GetRawTransactionVerbose(txid)
	if err != nil {
		return nil, fmt.Errorf("nodeclient: getrawtransaction %s: %w", txid, err)
	}
	return res, nil
}

// DecodedTransaction fetches and fully decodes a transaction into a
// *wire.MsgTx, used by the bond subsystem's input-sum and feerate
// validation and by the mempool mirror (to read a new mempool entry's
// inputs), which need concrete TxIn/TxOut structures rather than the
// verbose JSON shape.
func (c *Client) DecodedTransaction(txid *chainhash.Hash) (*wire.MsgTx, error) {
	raw, err := c.rpc.GetRawTransaction(txid)
	if err != nil {
		return nil, fmt.Errorf("nodeclient: getrawtransaction (raw) %s: %w", txid, err)
	}
	return raw.MsgTx(), nil
}

// BroadcastTx relays a fully signed transaction to the network. Used both
// for the coordinator's own funding/payout flows and for bond punishment
// (broadcasting the bond transaction itself against a detected double
// spend).
func (c *Client) BroadcastTx(tx *wire.MsgTx) (*chainhash.Hash, error) {
	hash, err := c.rpc.SendRawTransaction(tx, false)
	if err != nil {
		return nil, fmt.Errorf("nodeclient: sendrawtransaction: %w", err)
	}
	return hash, nil
}

// EstimateSmartFeeSatVB estimates the feerate in sat/vB for confirmation
// within confTarget blocks, falling back to the coordinator-configured
// floor on estimation failure (an empty mempool on regtest, for instance,
// has no fee history to estimate from).
func (c *Client) EstimateSmartFeeSatVB(confTarget int64, floor int64) (int64, error) {
	res, err := c.rpc.EstimateSmartFee(int64(confTarget), &btcjson.EstimateModeConservative)
	if err != nil {
		return 0, fmt.Errorf("nodeclient: estimatesmartfee: %w", err)
	}
	if res.FeeRate == nil || *res.FeeRate <= 0 {
		c.log.Warnf("estimatesmartfee returned no usable feerate, using floor %d sat/vB", floor)
		return floor, nil
	}
	btcPerKvB := *res.FeeRate
	satPerVB := int64(btcPerKvB * float64(btcutil.SatoshiPerBitcoin) / 1000)
	if satPerVB < floor {
		return floor, nil
	}
	return satPerVB, nil
}

// MempoolEntryVerbose returns the verbose mempool entries, backfilling the
// Fee field from the fees.base subfield Bitcoin Core switched to, mirroring
// the pack's coinjoin-engine RPC wrapper.
func (c *Client) MempoolEntryVerbose() (map[string]btcjson.GetRawMempoolVerboseResult, error) {
	rawResp, err := c.rpc.RawRequest("getrawmempool", []json.RawMessage{json.RawMessage(`true`)})
	if err != nil {
		return nil, fmt.Errorf("nodeclient: getrawmempool verbose: %w", err)
	}

	verbose := make(map[string]btcjson.GetRawMempoolVerboseResult)
	if err := json.Unmarshal(rawResp, &verbose); err != nil {
		return nil, fmt.Errorf("nodeclient: decoding getrawmempool verbose: %w", err)
	}

	var modern map[string]struct {
		Fee  float64 `json:"fee"`
		Fees struct {
			Base float64 `json:"base"`
		} `json:"fees"`
	}
	if err := json.Unmarshal(rawResp, &modern); err == nil {
		for txid, entry := range verbose {
			if entry.Fee > 0 {
				continue
			}
			raw := modern[txid]
			switch {
			case raw.Fees.Base > 0:
				entry.Fee = raw.Fees.Base
			case raw.Fee > 0:
				entry.Fee = raw.Fee
			}
			verbose[txid] = entry
		}
	}

	return verbose, nil
}
