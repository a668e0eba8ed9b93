package escrow

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func dummyUTXO(vout uint32, value int64) UTXO {
	var hash chainhash.Hash
	hash[0] = byte(vout + 1)
	return UTXO{
		OutPoint: wire.OutPoint{Hash: hash, Index: vout},
		Value:    value,
		PkScript: []byte{0x51, 0x20},
	}
}

func TestBuildFundingPSBTRequiresBothSides(t *testing.T) {
	desc := buildTestDescriptor(t)

	_, err := BuildFundingPSBT(desc, FundingParams{
		TakerUTXOs:      []UTXO{dummyUTXO(0, 100000)},
		EscrowAmountSat: 50000,
		FeerateSatVB:    10,
	})
	require.Error(t, err)

	_, err = BuildFundingPSBT(desc, FundingParams{
		MakerUTXOs:      []UTXO{dummyUTXO(0, 100000)},
		EscrowAmountSat: 50000,
		FeerateSatVB:    10,
	})
	require.Error(t, err)
}

func TestBuildFundingPSBTRejectsNonPositiveFeerate(t *testing.T) {
	desc := buildTestDescriptor(t)
	_, err := BuildFundingPSBT(desc, FundingParams{
		MakerUTXOs:      []UTXO{dummyUTXO(0, 100000)},
		TakerUTXOs:      []UTXO{dummyUTXO(1, 100000)},
		EscrowAmountSat: 50000,
		FeerateSatVB:    0,
	})
	require.Error(t, err)
}

func TestBuildFundingPSBTRejectsInsufficientInputs(t *testing.T) {
	desc := buildTestDescriptor(t)
	_, err := BuildFundingPSBT(desc, FundingParams{
		MakerUTXOs:      []UTXO{dummyUTXO(0, 1000)},
		TakerUTXOs:      []UTXO{dummyUTXO(1, 1000)},
		EscrowAmountSat: 50000,
		FeerateSatVB:    10,
	})
	require.Error(t, err)
}

func TestBuildFundingPSBTSplitsFeeAndChangeProportionally(t *testing.T) {
	desc := buildTestDescriptor(t)
	result, err := BuildFundingPSBT(desc, FundingParams{
		MakerUTXOs:        []UTXO{dummyUTXO(0, 100000)},
		TakerUTXOs:        []UTXO{dummyUTXO(1, 100000)},
		MakerChangeScript: []byte{0x00, 0x14},
		TakerChangeScript: []byte{0x00, 0x14},
		EscrowAmountSat:   100000,
		FeerateSatVB:      10,
	})
	require.NoError(t, err)
	require.Equal(t, result.MakerContribution, result.TakerContribution)
	require.NotNil(t, result.Psbt)
	require.Len(t, result.Psbt.UnsignedTx.TxIn, 2)

	escrowScript, err := desc.ScriptPubKey()
	require.NoError(t, err)
	require.Equal(t, escrowScript, result.Psbt.UnsignedTx.TxOut[0].PkScript)
	require.Equal(t, int64(100000), result.Psbt.UnsignedTx.TxOut[0].Value)
}

func TestBuildFundingPSBTOmitsDustChange(t *testing.T) {
	desc := buildTestDescriptor(t)
	result, err := BuildFundingPSBT(desc, FundingParams{
		MakerUTXOs:        []UTXO{dummyUTXO(0, 2000)},
		TakerUTXOs:        []UTXO{dummyUTXO(1, 200000)},
		MakerChangeScript: []byte{0x00, 0x14},
		TakerChangeScript: []byte{0x00, 0x14},
		EscrowAmountSat:   191674,
		FeerateSatVB:      1,
	})
	require.NoError(t, err)
	// maker's proportional change is under the dust limit and gets dropped,
	// leaving the escrow output and the taker's change output only.
	require.Len(t, result.Psbt.UnsignedTx.TxOut, 2)
}
