// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/zeebo/errs"
	"gopkg.in/yaml.v3"
)

// MissingErr marks settings that are required for a request but absent.
var MissingErr = errs.Class("configuration missing")

// InvalidErr marks settings that are present but cannot be used.
var InvalidErr = errs.Class("configuration invalid")

// NativeMint is the wrapped SOL mint Jupiter uses for the native asset.
const NativeMint = "So11111111111111111111111111111111111111112"

// App captures process-wide runtime settings such as listen addresses and logging level.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	EnvFile     string `yaml:"env_file"`
	// WSOrigins lists browser origins allowed on the status websocket besides the serving host.
	WSOrigins []string `yaml:"ws_origins"`
}

// Relay describes the bundle relay (Jito block engine) the backend submits through.
type Relay struct {
	BlockEngineURL string `yaml:"block_engine_url"`
	AuthUUID       string `yaml:"auth_uuid"`
	MaxBundleSize  int    `yaml:"max_bundle_size"`
	TipLamports    uint64 `yaml:"tip_lamports"`
	TrackStatus    bool   `yaml:"track_status"`
	StatusPollMs   int    `yaml:"status_poll_ms"`
	StatusAttempts int    `yaml:"status_attempts"`
}

// Fee configures the service fee leg added to order-creation bundles.
type Fee struct {
	Collector           string `yaml:"collector"`
	Bps                 int64  `yaml:"bps"`
	DefaultInputMint    string `yaml:"default_input_mint"`
	DefaultMakingAmount uint64 `yaml:"default_making_amount"`
	MaxMakingAmount     uint64 `yaml:"max_making_amount"`
	LegacyFallback      bool   `yaml:"legacy_fallback"`
}

// Orders tunes the cancellation watcher.
type Orders struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
	PollAttempts   int `yaml:"poll_attempts"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App    App    `yaml:"app"`
	Relay  Relay  `yaml:"relay"`
	Dex    Dex    `yaml:"dex"`
	Fee    Fee    `yaml:"fee"`
	Orders Orders `yaml:"orders"`
	Wallet Wallet `yaml:"wallet"`
}

// Default returns the configuration used when a key is absent from both file and environment.
func Default() Config {
	return Config{
		App: App{
			Name:        "juplimits",
			Env:         "dev",
			HTTPAddr:    ":8080",
			MetricsAddr: ":9100",
			LogLevel:    "info",
			EnvFile:     ".env",
		},
		Relay: Relay{
			BlockEngineURL: "https://mainnet.block-engine.jito.wtf",
			MaxBundleSize:  5,
			TipLamports:    1000,
			TrackStatus:    true,
			StatusPollMs:   2000,
			StatusAttempts: 15,
		},
		Dex: Dex{
			Chain:       "solana",
			RpcURL:      "https://api.mainnet-beta.solana.com",
			Commitment:  "confirmed",
			JupiterBase: "https://api.jup.ag",
			JupiterRPS:  1,
		},
		Fee: Fee{
			Bps:                 100,
			DefaultInputMint:    NativeMint,
			DefaultMakingAmount: 50_000_000,
		},
		Orders: Orders{
			PollIntervalMs: 2000,
			PollAttempts:   10,
		},
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// CheckSubmission reports every setting bundle submission cannot work without.
func (c *Config) CheckSubmission() error {
	var missing []string
	if strings.TrimSpace(c.Relay.BlockEngineURL) == "" {
		missing = append(missing, "relay.block_engine_url")
	}
	if strings.TrimSpace(c.Dex.RpcURL) == "" {
		missing = append(missing, "dex.rpc_url")
	}
	if strings.TrimSpace(c.Wallet.PrivateKey) == "" {
		missing = append(missing, "wallet.private_key")
	}
	if strings.TrimSpace(c.Fee.Collector) == "" {
		missing = append(missing, "fee.collector")
	}
	if c.Relay.MaxBundleSize <= 0 {
		missing = append(missing, "relay.max_bundle_size")
	}
	if len(missing) > 0 {
		return MissingErr.New("%s", strings.Join(missing, ", "))
	}
	return nil
}
