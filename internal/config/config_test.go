package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "juplimits-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.HTTPAddr != ":18080" {
		t.Fatalf("unexpected App.HTTPAddr: %s", cfg.App.HTTPAddr)
	}
	if cfg.Relay.BlockEngineURL != "https://ny.mainnet.block-engine.jito.wtf" {
		t.Fatalf("unexpected Relay.BlockEngineURL: %s", cfg.Relay.BlockEngineURL)
	}
	if cfg.Relay.MaxBundleSize != 4 {
		t.Fatalf("unexpected Relay.MaxBundleSize: %d", cfg.Relay.MaxBundleSize)
	}
	if cfg.Relay.TipLamports != 2000 {
		t.Fatalf("unexpected Relay.TipLamports: %d", cfg.Relay.TipLamports)
	}
	if cfg.Relay.TrackStatus {
		t.Fatalf("expected status tracking disabled")
	}
	// not in the file, so the default survives
	if cfg.Relay.StatusAttempts != 15 {
		t.Fatalf("expected default status attempts, got %d", cfg.Relay.StatusAttempts)
	}
	if cfg.Dex.Commitment != "processed" {
		t.Fatalf("expected processed commitment, got %s", cfg.Dex.Commitment)
	}
	if cfg.Fee.Collector != "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T" {
		t.Fatalf("unexpected Fee.Collector: %s", cfg.Fee.Collector)
	}
	if !cfg.Fee.LegacyFallback {
		t.Fatalf("expected legacy fallback enabled")
	}
	if cfg.Fee.DefaultInputMint != NativeMint {
		t.Fatalf("expected native default mint, got %s", cfg.Fee.DefaultInputMint)
	}
	if cfg.Fee.DefaultMakingAmount != 50_000_000 {
		t.Fatalf("unexpected default making amount %d", cfg.Fee.DefaultMakingAmount)
	}
	if cfg.Orders.PollAttempts != 4 || cfg.Orders.PollIntervalMs != 500 {
		t.Fatalf("unexpected orders config: %+v", cfg.Orders)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Fee.Collector = "collector"
	if err := Save(path, &cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Fee.Collector != "collector" {
		t.Fatalf("expected collector to persist, got %q", loaded.Fee.Collector)
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyOverrides(MapSource(map[string]string{
		"JITO_BLOCK_ENGINE_URL": "https://relay.local",
		"SOLANA_RPC_URL":        "https://rpc.local",
		"SOLANA_PRIVATE_KEY":    "[1,2,3]",
		"MAX_BUNDLE_SIZE":       "3",
		"TIP_LAMPORTS":          "5000",
		"FEE_COLLECTOR":         "fee",
		"WS_ORIGINS":            "https://a.example.org, ,https://b.example.org",
	}))
	if err != nil {
		t.Fatalf("ApplyOverrides returned error: %v", err)
	}
	if cfg.Relay.BlockEngineURL != "https://relay.local" || cfg.Dex.RpcURL != "https://rpc.local" {
		t.Fatalf("string overrides not applied: %+v", cfg)
	}
	if cfg.Relay.MaxBundleSize != 3 || cfg.Relay.TipLamports != 5000 {
		t.Fatalf("numeric overrides not applied: %+v", cfg.Relay)
	}
	if cfg.Wallet.PrivateKey != "[1,2,3]" {
		t.Fatalf("private key override missing")
	}
	if len(cfg.App.WSOrigins) != 2 || cfg.App.WSOrigins[1] != "https://b.example.org" {
		t.Fatalf("origin override not applied: %v", cfg.App.WSOrigins)
	}
}

func TestApplyOverridesRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyOverrides(MapSource(map[string]string{"MAX_BUNDLE_SIZE": "five"}))
	if err == nil || !InvalidErr.Has(err) {
		t.Fatalf("expected invalid configuration error, got %v", err)
	}
	if cfg.Relay.MaxBundleSize != 5 {
		t.Fatalf("expected default bundle size to survive, got %d", cfg.Relay.MaxBundleSize)
	}
}

func TestEnvSourcePrefersProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FEE_COLLECTOR=from-file\nJUPITER_API_KEY=file-key\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("FEE_COLLECTOR", "from-env")

	lookup := EnvSource(path)
	if v, _ := lookup("FEE_COLLECTOR"); v != "from-env" {
		t.Fatalf("expected process env to win, got %q", v)
	}
	if v, _ := lookup("JUPITER_API_KEY"); v != "file-key" {
		t.Fatalf("expected file value, got %q", v)
	}
	if _, ok := lookup("NOT_SET_ANYWHERE_123"); ok {
		t.Fatalf("expected unknown key to be absent")
	}
}

func TestCheckSubmission(t *testing.T) {
	cfg := Default()
	err := cfg.CheckSubmission()
	if err == nil || !MissingErr.Has(err) {
		t.Fatalf("expected missing configuration error, got %v", err)
	}
	for _, key := range []string{"wallet.private_key", "fee.collector"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in %q", key, err.Error())
		}
	}

	cfg.Wallet.PrivateKey = "[1]"
	cfg.Fee.Collector = "x"
	if err := cfg.CheckSubmission(); err != nil {
		t.Fatalf("expected complete config, got %v", err)
	}
}
