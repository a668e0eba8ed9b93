// Package config provides centralized, environment-variable driven
// configuration for coordinatord. ALL coordinator-wide parameters (network
// selection, RPC credentials, fee floors) are defined here; no package
// should read os.Getenv directly.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Network selects the Bitcoin network the coordinator operates against.
type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// Config holds every environment-variable-backed coordinator setting named
// in the external interface: database location, Bitcoin Core RPC
// connection, the coordinator's own wallet extended private key, the
// feerate it funds its own transactions at, whether bond punishment
// actually broadcasts, the minimum feerate a bond transaction must pay, and
// the active network.
type Config struct {
	DatabasePath string `envconfig:"DATABASE_PATH" required:"true"`

	BitcoinRPCAddressPort string `envconfig:"BITCOIN_RPC_ADDRESS_PORT" required:"true"`
	BitcoinRPCUser        string `envconfig:"BITCOIN_RPC_USER" required:"true"`
	BitcoinRPCPassword    string `envconfig:"BITCOIN_RPC_PASSWORD" required:"true"`

	WalletXprv string `envconfig:"WALLET_XPRV" required:"true"`

	CoordinatorFeerate int64 `envconfig:"COORDINATOR_FEERATE" default:"2"`

	PunishmentEnabled bool `envconfig:"PUNISHMENT_ENABLED" default:"true"`

	BondMinFeerateSatVB int64 `envconfig:"BOND_MIN_FEERATE_SAT_VB" default:"1"`

	Network Network `envconfig:"NETWORK" default:"testnet"`
}

// Load reads and validates configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Network {
	case Mainnet, Testnet, Regtest:
	default:
		return fmt.Errorf("unknown NETWORK %q (want mainnet, testnet, or regtest)", c.Network)
	}
	if c.CoordinatorFeerate <= 0 {
		return fmt.Errorf("COORDINATOR_FEERATE must be positive, got %d", c.CoordinatorFeerate)
	}
	if c.BondMinFeerateSatVB <= 0 {
		return fmt.Errorf("BOND_MIN_FEERATE_SAT_VB must be positive, got %d", c.BondMinFeerateSatVB)
	}
	return nil
}
