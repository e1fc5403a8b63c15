package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds everything the exchange binary needs to boot.
// Values loaded by Load may be overridden by EXCHANGE_* environment variables.
type Config struct {
	Engine struct {
		Reference     string `yaml:"reference"`
		LimitMatching bool   `yaml:"limit_matching"`
		CommandBuffer int    `yaml:"command_buffer"`
	} `yaml:"engine"`

	Assets []Asset `yaml:"assets"`

	// Wallets seed the in-memory reservoirs and approve the exchange for the same amount.
	Wallets []Wallet `yaml:"wallets"`

	Journal struct {
		Dir string `yaml:"dir"`
	} `yaml:"journal"`

	Snapshot struct {
		Dir string `yaml:"dir"`
	} `yaml:"snapshot"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

type Asset struct {
	Symbol   string `yaml:"symbol"`
	Decimals int32  `yaml:"decimals"`
}

type Wallet struct {
	Trader string          `yaml:"trader"`
	Symbol string          `yaml:"symbol"`
	Amount decimal.Decimal `yaml:"amount"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Asset returns the listed asset with symbol.
func (c *Config) Asset(symbol string) (Asset, bool) {
	for _, a := range c.Assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Engine.Reference == "" {
		return errors.New("engine.reference is required")
	}
	if c.Engine.CommandBuffer < 0 {
		return errors.New("engine.command_buffer must not be negative")
	}

	seen := make(map[string]bool, len(c.Assets))
	for _, a := range c.Assets {
		if a.Symbol == "" || len(a.Symbol) > 32 {
			return fmt.Errorf("asset symbol %q must be 1 to 32 bytes", a.Symbol)
		}
		if seen[a.Symbol] {
			return fmt.Errorf("asset %s listed twice", a.Symbol)
		}
		// 10^78 no longer fits in 256 bits.
		if a.Decimals < 0 || a.Decimals > 77 {
			return fmt.Errorf("asset %s: decimals %d out of range", a.Symbol, a.Decimals)
		}
		seen[a.Symbol] = true
	}
	if !seen[c.Engine.Reference] {
		return fmt.Errorf("reference asset %s is not listed", c.Engine.Reference)
	}

	for i, w := range c.Wallets {
		if !common.IsHexAddress(w.Trader) {
			return fmt.Errorf("wallets[%d]: invalid trader %q", i, w.Trader)
		}
		if !seen[w.Symbol] {
			return fmt.Errorf("wallets[%d]: unknown asset %s", i, w.Symbol)
		}
		if !w.Amount.IsPositive() {
			return fmt.Errorf("wallets[%d]: amount must be positive", i)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}

// overrideWithEnv replaces settings with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if level := os.Getenv("EXCHANGE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if dir := os.Getenv("EXCHANGE_JOURNAL_DIR"); dir != "" {
		cfg.Journal.Dir = dir
	}
	if addr := os.Getenv("EXCHANGE_METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
	}
}
