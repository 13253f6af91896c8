package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultlock.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
ServiceRPCURL = "http://localhost:8645"
LedgerRPCURL = "http://localhost:8646"
ServicePrincipal = "svc-aaaaa-aaa"
FeeLedgerID = "ryjl3-tyaaa-aaaaa-aaaba-cai"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FeeSymbol != "ICP" {
		t.Fatalf("expected default fee symbol ICP, got %q", cfg.FeeSymbol)
	}
	if got := cfg.FeeLedgerFeeAmount(); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("expected default ledger fee 10000, got %s", got)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Fatalf("expected default timeout 10s, got %s", cfg.Timeout())
	}
	if cfg.FeeLedger().String() != "ryjl3-tyaaa-aaaaa-aaaba-cai" {
		t.Fatalf("unexpected fee ledger %s", cfg.FeeLedger())
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `
ServiceRPCURL = "http://localhost:8645"
LedgerRPCURL = "http://localhost:8646"
ServicePrincipal = "svc-aaaaa-aaa"
FeeLedgerID = "ryjl3-tyaaa-aaaaa-aaaba-cai"
FeLedgerFee = "10000"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected misspelled field to be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ServiceRPCURL:    "http://localhost:8645",
			LedgerRPCURL:     "http://localhost:8646",
			ServicePrincipal: "svc-aaaaa-aaa",
			FeeLedgerID:      "ryjl3-tyaaa-aaaaa-aaaba-cai",
			FeeLedgerFee:     "10000",
			FeeSymbol:        "ICP",
			RequestTimeout:   "10s",
		}
	}
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing service url", mutate: func(c *Config) { c.ServiceRPCURL = " " }, wantErr: true},
		{name: "missing ledger url", mutate: func(c *Config) { c.LedgerRPCURL = "" }, wantErr: true},
		{name: "bad service principal", mutate: func(c *Config) { c.ServicePrincipal = "Not A Principal" }, wantErr: true},
		{name: "bad fee ledger", mutate: func(c *Config) { c.FeeLedgerID = "" }, wantErr: true},
		{name: "non numeric fee", mutate: func(c *Config) { c.FeeLedgerFee = "0.0001" }, wantErr: true},
		{name: "bad timeout", mutate: func(c *Config) { c.RequestTimeout = "soon" }, wantErr: true},
		{name: "negative query rate", mutate: func(c *Config) { c.QueryRatePerSec = -1 }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
