package appgw

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"mintgram/mintclub"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for the app gateway.
type Config struct {
	ListenAddress string         `yaml:"listen"`
	Database      DatabaseConfig `yaml:"database"`
	JWTSecret     string         `yaml:"jwt_secret"`
	JWTSecretEnv  string         `yaml:"jwt_secret_env"`
	Chain         ChainConfig    `yaml:"chain"`
	Index         IndexConfig    `yaml:"index"`
	Pinning       PinningConfig  `yaml:"pinning"`
	Confirm       ConfirmConfig  `yaml:"confirm"`
	Existence     PollConfig     `yaml:"existence"`
	RateLimit     float64        `yaml:"rate_limit"`
	RateBurst     int            `yaml:"rate_burst"`
}

// DatabaseConfig selects the operation store backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ChainConfig carries the on-chain endpoints and addresses.
type ChainConfig struct {
	RPCEndpoint    string `yaml:"rpc_endpoint"`
	ChainID        uint64 `yaml:"chain_id"`
	FactoryAddress string `yaml:"factory_address"`
	ReserveToken   string `yaml:"reserve_token"`
	SymbolPrefix   string `yaml:"symbol_prefix"`
	SignerKey      string `yaml:"signer_key"`
	SignerKeyEnv   string `yaml:"signer_key_env"`
}

// IndexConfig configures the token index client.
type IndexConfig struct {
	Endpoint          string  `yaml:"endpoint"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	FeedConcurrency   int     `yaml:"feed_concurrency"`
}

// PinningConfig configures the IPFS upload client.
type PinningConfig struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// ConfirmConfig tunes the confirmation race.
type ConfirmConfig struct {
	Deadline      Duration `yaml:"deadline"`
	PollInterval  Duration `yaml:"poll_interval"`
	Timeout       Duration `yaml:"timeout"`
	Confirmations uint64   `yaml:"confirmations"`
}

// PollConfig tunes the post-confirmation existence poll.
type PollConfig struct {
	Attempts int      `yaml:"attempts"`
	Interval Duration `yaml:"interval"`
}

// LoadConfig reads and validates the YAML configuration at path.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.Database.Driver) == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && strings.TrimSpace(c.Database.DSN) == "" {
		c.Database.DSN = "appgw.db"
	}
	if c.Chain.ChainID == 0 {
		c.Chain.ChainID = mintclub.BaseChainID
	}
	if strings.TrimSpace(c.Chain.SymbolPrefix) == "" {
		c.Chain.SymbolPrefix = mintclub.DefaultSymbolPrefix
	}
	if c.Index.RequestsPerSecond <= 0 {
		c.Index.RequestsPerSecond = 3
	}
	if c.Index.FeedConcurrency <= 0 {
		c.Index.FeedConcurrency = 3
	}
	if c.JWTSecret == "" && c.JWTSecretEnv != "" {
		c.JWTSecret = strings.TrimSpace(os.Getenv(c.JWTSecretEnv))
	}
	if c.Pinning.APIKey == "" && c.Pinning.APIKeyEnv != "" {
		c.Pinning.APIKey = strings.TrimSpace(os.Getenv(c.Pinning.APIKeyEnv))
	}
	if c.Chain.SignerKey == "" && c.Chain.SignerKeyEnv != "" {
		c.Chain.SignerKey = strings.TrimSpace(os.Getenv(c.Chain.SignerKeyEnv))
	}
}

// Validate rejects configurations that cannot produce a working gateway.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Chain.RPCEndpoint) == "" {
		return fmt.Errorf("chain rpc_endpoint required")
	}
	if !common.IsHexAddress(strings.TrimSpace(c.Chain.FactoryAddress)) {
		return fmt.Errorf("invalid factory_address %q", c.Chain.FactoryAddress)
	}
	if !common.IsHexAddress(strings.TrimSpace(c.Chain.ReserveToken)) {
		return fmt.Errorf("invalid reserve_token %q", c.Chain.ReserveToken)
	}
	if strings.TrimSpace(c.Index.Endpoint) == "" {
		return fmt.Errorf("index endpoint required")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("jwt secret required")
	}
	if strings.TrimSpace(c.Chain.SignerKey) == "" {
		return fmt.Errorf("chain signer_key required")
	}
	return nil
}

// FactoryAddress returns the parsed launchpad factory address.
func (c Config) FactoryAddress() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.Chain.FactoryAddress))
}

// ReserveToken returns the parsed base reserve token address.
func (c Config) ReserveToken() common.Address {
	return common.HexToAddress(strings.TrimSpace(c.Chain.ReserveToken))
}
