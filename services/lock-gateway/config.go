package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TelemetryConfig selects which OpenTelemetry exporters the gateway wires.
type TelemetryConfig struct {
	Endpoint string            `yaml:"endpoint"`
	Insecure bool              `yaml:"insecure"`
	Headers  map[string]string `yaml:"headers"`
	Traces   bool              `yaml:"traces"`
	Metrics  bool              `yaml:"metrics"`
}

// GatewayConfig captures runtime configuration for the lock gateway.
type GatewayConfig struct {
	ListenAddress string `yaml:"listen"`
	// EngineConfigPath points at the TOML engine configuration holding the
	// canister and ledger identifiers.
	EngineConfigPath string          `yaml:"engineConfig"`
	Environment      string          `yaml:"environment"`
	LogFile          string          `yaml:"logFile"`
	NodeAuthTokenEnv string          `yaml:"nodeAuthTokenEnv"`
	Telemetry        TelemetryConfig `yaml:"telemetry"`
}

// LoadGatewayConfig reads and validates the YAML gateway configuration.
func LoadGatewayConfig(path string) (*GatewayConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := &GatewayConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8089"
	}
	if strings.TrimSpace(cfg.EngineConfigPath) == "" {
		return nil, fmt.Errorf("config %s: engineConfig required", path)
	}
	return cfg, nil
}

// NodeAuthToken resolves the optional RPC bearer token from the environment.
func (c *GatewayConfig) NodeAuthToken() string {
	name := strings.TrimSpace(c.NodeAuthTokenEnv)
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
