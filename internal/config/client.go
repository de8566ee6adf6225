package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/medledger/medledger/internal/ledger"
)

// ClientConfig configures the wallet client. Keys are read from MEDLEDGER_*
// environment variables; flags bound onto the same viper instance win.
type ClientConfig struct {
	WalletURL       string `mapstructure:"WALLET_URL"`
	NodeURL         string `mapstructure:"NODE_URL"`
	SessionPath     string `mapstructure:"SESSION_PATH"`
	RelayURL        string `mapstructure:"RELAY_URL"`
	RegistryAddress string `mapstructure:"REGISTRY_ADDRESS"`
	CustodyAddress  string `mapstructure:"CUSTODY_ADDRESS"`
}

const ClientEnvPrefix = "MEDLEDGER"

var clientKeys = []string{"WALLET_URL", "NODE_URL", "SESSION_PATH", "RELAY_URL", "REGISTRY_ADDRESS", "CUSTODY_ADDRESS"}

// LoadClient reads the client configuration into v, which may already carry
// bound flags.
func LoadClient(v *viper.Viper) (*ClientConfig, error) {
	v.SetEnvPrefix(ClientEnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("SESSION_PATH", defaultSessionPath())
	v.SetDefault("RELAY_URL", "http://localhost:3000")
	v.SetDefault("REGISTRY_ADDRESS", ledger.DefaultRegistryAddress.Hex())
	v.SetDefault("CUSTODY_ADDRESS", ledger.DefaultCustodyAddress.Hex())

	for _, key := range clientKeys {
		_ = v.BindEnv(key)
	}

	cfg := &ClientConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	return cfg, nil
}

// ReadURL is the endpoint for read-only calls; it falls back to the wallet.
func (c *ClientConfig) ReadURL() string {
	if c.NodeURL != "" {
		return c.NodeURL
	}
	return c.WalletURL
}

// Addresses resolves the contract deployment, rejecting malformed overrides.
func (c *ClientConfig) Addresses() (ledger.Addresses, error) {
	addrs := ledger.DefaultAddresses()
	if c.RegistryAddress != "" {
		if !common.IsHexAddress(c.RegistryAddress) {
			return addrs, fmt.Errorf("registry address %q is not a valid address", c.RegistryAddress)
		}
		addrs.Registry = common.HexToAddress(c.RegistryAddress)
	}
	if c.CustodyAddress != "" {
		if !common.IsHexAddress(c.CustodyAddress) {
			return addrs, fmt.Errorf("custody address %q is not a valid address", c.CustodyAddress)
		}
		addrs.Custody = common.HexToAddress(c.CustodyAddress)
	}
	return addrs, nil
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".medledger", "session")
	}
	return filepath.Join(home, ".medledger", "session")
}
