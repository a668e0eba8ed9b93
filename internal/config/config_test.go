package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_PATH":            ":memory:",
		"BITCOIN_RPC_ADDRESS_PORT": "127.0.0.1:18443",
		"BITCOIN_RPC_USER":         "user",
		"BITCOIN_RPC_PASSWORD":     "pass",
		"WALLET_XPRV":              "tprv8ZgxMBicQKsPdy6LMhUtFHAgpXoR6Chy1gfTEsxcbHcxF9hDXEPBmz79dPSpZUJE6vpBgBgCDArQHHzpTGcbxyYrwbDzTwqc8jvKHTxmyfw",
		"NETWORK":                 "regtest",
	}
}

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("COORDINATOR_FEERATE")
	os.Unsetenv("PUNISHMENT_ENABLED")
	os.Unsetenv("BOND_MIN_FEERATE_SAT_VB")
	setEnv(t, baseEnv())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Regtest, cfg.Network)
	require.EqualValues(t, 2, cfg.CoordinatorFeerate)
	require.True(t, cfg.PunishmentEnabled)
	require.EqualValues(t, 1, cfg.BondMinFeerateSatVB)
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	env := baseEnv()
	env["NETWORK"] = "litecoin"
	setEnv(t, env)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonPositiveFeerate(t *testing.T) {
	env := baseEnv()
	env["COORDINATOR_FEERATE"] = "0"
	setEnv(t, env)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresDatabasePath(t *testing.T) {
	env := baseEnv()
	delete(env, "DATABASE_PATH")
	setEnv(t, env)

	_, err := Load()
	require.Error(t, err)
}
