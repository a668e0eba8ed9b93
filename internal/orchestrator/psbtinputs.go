package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/taptrade/coordinatord/internal/escrow"
	"github.com/taptrade/coordinatord/pkg/hexid"
)

// PsbtInputSubmission is a single UTXO a trader offers to an escrow
// funding transaction. The original protocol's bdk_psbt_inputs_hex_csv
// wire field carries bincode-serialized {psbt_input, utxo} pairs; Go has
// no bincode, so each entry here is hex-encoded JSON carrying the same
// witness-utxo information (value and scriptPubKey) a PSBT input's
// PSBT_IN_WITNESS_UTXO field would hold, plus the outpoint it spends.
type PsbtInputSubmission struct {
	Txid        string `json:"txid"`
	Vout        uint32 `json:"vout"`
	ValueSat    int64  `json:"value_sat"`
	PkScriptHex string `json:"pk_script_hex"`
}

// ParsePsbtInputsCSV decodes the bdk_psbt_inputs_hex_csv wire field into
// escrow UTXOs ready for BuildFundingPSBT.
func ParsePsbtInputsCSV(csv string) ([]escrow.UTXO, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, fmt.Errorf("orchestrator: empty psbt inputs")
	}

	parts := strings.Split(csv, ",")
	utxos := make([]escrow.UTXO, 0, len(parts))
	for i, part := range parts {
		raw, err := hexid.Decode(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("orchestrator: psbt input %d: %w", i, err)
		}
		var sub PsbtInputSubmission
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("orchestrator: psbt input %d: decoding: %w", i, err)
		}

		hash, err := chainhash.NewHashFromStr(sub.Txid)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: psbt input %d: txid: %w", i, err)
		}
		pkScript, err := hexid.Decode(sub.PkScriptHex)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: psbt input %d: pk_script: %w", i, err)
		}

		utxos = append(utxos, escrow.UTXO{
			OutPoint: wire.OutPoint{Hash: *hash, Index: sub.Vout},
			Value:    sub.ValueSat,
			PkScript: pkScript,
		})
	}
	return utxos, nil
}
