package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"vaultlock/core/types"
)

// Config is the node-facing configuration of the lock orchestration engine.
// Every canister and ledger identifier is injected here; the engine itself
// carries no compile-time constants.
type Config struct {
	ServiceRPCURL    string `toml:"ServiceRPCURL"`
	LedgerRPCURL     string `toml:"LedgerRPCURL"`
	ServicePrincipal string `toml:"ServicePrincipal"`
	FeeLedgerID      string `toml:"FeeLedgerID"`
	// FeeLedgerFee is the fee ledger's transfer fee in base units, kept as
	// a decimal string so it survives amounts beyond int64.
	FeeLedgerFee   string `toml:"FeeLedgerFee"`
	FeeSymbol      string `toml:"FeeSymbol"`
	RequestTimeout string `toml:"RequestTimeout"`
	// QueryRatePerSec caps balance and schedule queries per second issued
	// against the RPC endpoints. Zero disables the limiter.
	QueryRatePerSec float64 `toml:"QueryRatePerSec"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file %s does not exist", path)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown field %s", path, undecoded[0].String())
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.FeeSymbol) == "" {
		c.FeeSymbol = "ICP"
	}
	if strings.TrimSpace(c.FeeLedgerFee) == "" {
		c.FeeLedgerFee = "10000"
	}
	if strings.TrimSpace(c.RequestTimeout) == "" {
		c.RequestTimeout = "10s"
	}
}

// Validate checks the identifiers and amounts without performing I/O.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServiceRPCURL) == "" {
		return fmt.Errorf("config: ServiceRPCURL required")
	}
	if strings.TrimSpace(c.LedgerRPCURL) == "" {
		return fmt.Errorf("config: LedgerRPCURL required")
	}
	if _, err := types.ParsePrincipal(c.ServicePrincipal); err != nil {
		return fmt.Errorf("config: ServicePrincipal: %w", err)
	}
	if _, err := types.ParsePrincipal(c.FeeLedgerID); err != nil {
		return fmt.Errorf("config: FeeLedgerID: %w", err)
	}
	if _, ok := new(big.Int).SetString(strings.TrimSpace(c.FeeLedgerFee), 10); !ok {
		return fmt.Errorf("config: FeeLedgerFee %q is not a base-unit integer", c.FeeLedgerFee)
	}
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("config: RequestTimeout: %w", err)
	}
	if c.QueryRatePerSec < 0 {
		return fmt.Errorf("config: QueryRatePerSec must not be negative")
	}
	return nil
}

// Service returns the parsed lock service principal. Call Validate first.
func (c *Config) Service() types.Principal {
	p, _ := types.ParsePrincipal(c.ServicePrincipal)
	return p
}

// FeeLedger returns the parsed fee ledger principal. Call Validate first.
func (c *Config) FeeLedger() types.Principal {
	p, _ := types.ParsePrincipal(c.FeeLedgerID)
	return p
}

// FeeLedgerFeeAmount returns the fee ledger transfer fee in base units.
func (c *Config) FeeLedgerFeeAmount() *big.Int {
	v, _ := new(big.Int).SetString(strings.TrimSpace(c.FeeLedgerFee), 10)
	if v == nil {
		v = big.NewInt(0)
	}
	return v
}

// Timeout returns the parsed per-request timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
