package chainparams

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/taptrade/coordinatord/internal/config"
)

func TestParamsKnownNetworks(t *testing.T) {
	cases := []struct {
		network config.Network
		want    *chaincfg.Params
	}{
		{config.Mainnet, &chaincfg.MainNetParams},
		{config.Testnet, &chaincfg.TestNet3Params},
		{config.Regtest, &chaincfg.RegressionNetParams},
	}
	for _, c := range cases {
		got, err := Params(c.network)
		require.NoError(t, err)
		require.Same(t, c.want, got)
	}
}

func TestParamsRejectsUnknownNetwork(t *testing.T) {
	_, err := Params(config.Network("litecoin"))
	require.Error(t, err)
}
