package escrow

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/require"
)

func escrowUTXOFromDescriptor(t *testing.T, desc *Descriptor, value int64) UTXO {
	t.Helper()
	script, err := desc.ScriptPubKey()
	require.NoError(t, err)
	return UTXO{
		OutPoint: dummyUTXO(0, value).OutPoint,
		Value:    value,
		PkScript: script,
	}
}

func TestBuildHappyPathPayoutPSBTSplitsFeeEvenly(t *testing.T) {
	desc := buildTestDescriptor(t)
	escrowUTXO := escrowUTXOFromDescriptor(t, desc, 200000)

	p, err := BuildHappyPathPayoutPSBT(escrowUTXO, []byte{0x00, 0x14}, 99000, []byte{0x00, 0x14}, 99000, 10)
	require.NoError(t, err)
	require.Len(t, p.UnsignedTx.TxOut, 2)
	require.Equal(t, p.UnsignedTx.TxOut[0].Value, p.UnsignedTx.TxOut[1].Value)
}

func TestBuildHappyPathPayoutPSBTRejectsUnaffordableFee(t *testing.T) {
	desc := buildTestDescriptor(t)
	escrowUTXO := escrowUTXOFromDescriptor(t, desc, 1000)

	_, err := BuildHappyPathPayoutPSBT(escrowUTXO, []byte{0x00, 0x14}, 500, []byte{0x00, 0x14}, 500, 100)
	require.Error(t, err)
}

func TestBuildScriptPathPayoutPSBTPaysWinnerAlone(t *testing.T) {
	desc := buildTestDescriptor(t)
	escrowUTXO := escrowUTXOFromDescriptor(t, desc, 200000)

	p, err := BuildScriptPathPayoutPSBT(escrowUTXO, []byte{0x00, 0x14}, 195000, 10)
	require.NoError(t, err)
	require.Len(t, p.UnsignedTx.TxOut, 1)
}

func TestKeySpendAndScriptSpendSighashesDiffer(t *testing.T) {
	desc := buildTestDescriptor(t)
	escrowUTXO := escrowUTXOFromDescriptor(t, desc, 200000)

	p, err := BuildHappyPathPayoutPSBT(escrowUTXO, []byte{0x00, 0x14}, 99000, []byte{0x00, 0x14}, 99000, 10)
	require.NoError(t, err)

	keySighash, err := KeySpendSighash(p.UnsignedTx, escrowUTXO)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, keySighash)

	scriptSighash, err := ScriptSpendSighash(p.UnsignedTx, escrowUTXO, desc.Leaves[LeafC])
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, scriptSighash)

	require.NotEqual(t, keySighash, scriptSighash)
}

func TestApplyKeySpendWitnessSetsFinalWitness(t *testing.T) {
	desc := buildTestDescriptor(t)
	escrowUTXO := escrowUTXOFromDescriptor(t, desc, 200000)
	p, err := BuildHappyPathPayoutPSBT(escrowUTXO, []byte{0x00, 0x14}, 99000, []byte{0x00, 0x14}, 99000, 10)
	require.NoError(t, err)

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	sig, err := schnorr.Sign(priv, make([]byte, 32))
	require.NoError(t, err)

	require.NoError(t, ApplyKeySpendWitness(p, sig))
	require.NotEmpty(t, p.Inputs[0].FinalScriptWitness)
}

func TestApplyScriptPathWitnessSetsFinalWitness(t *testing.T) {
	desc := buildTestDescriptor(t)
	escrowUTXO := escrowUTXOFromDescriptor(t, desc, 200000)
	p, err := BuildScriptPathPayoutPSBT(escrowUTXO, []byte{0x00, 0x14}, 195000, 10)
	require.NoError(t, err)

	winnerPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	coordPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	winnerSig, err := schnorr.Sign(winnerPriv, make([]byte, 32))
	require.NoError(t, err)
	coordSig, err := schnorr.Sign(coordPriv, make([]byte, 32))
	require.NoError(t, err)

	require.NoError(t, ApplyScriptPathWitness(p, desc, LeafC, winnerSig, coordSig))
	require.NotEmpty(t, p.Inputs[0].FinalScriptWitness)
}
