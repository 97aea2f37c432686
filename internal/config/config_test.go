package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadNodeConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr: /ip4/127.0.0.1/tcp/4001
commitment_service_addr: "0x1111111111111111111111111111111111111111"
`)
	cfg, err := LoadNodeConfig(path)
	if err != nil {
		t.Fatalf("LoadNodeConfig: %v", err)
	}
	if cfg.DefaultOrderTimeout <= 0 {
		t.Errorf("expected default order timeout to be applied, got %v", cfg.DefaultOrderTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadNodeConfigMissingListenAddr(t *testing.T) {
	path := writeTempConfig(t, `
commitment_service_addr: "0x1111111111111111111111111111111111111111"
`)
	if _, err := LoadNodeConfig(path); err == nil {
		t.Fatal("expected validation error for missing listen_addr")
	}
}

func TestLoadCommitmentServiceConfigTokenPairValidation(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr: /ip4/127.0.0.1/tcp/4002
fee_rate_basis_points: 100
token_pairs:
  - base_token: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
    quote_token: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
    base_decimals: 8
    quote_decimals: 18
`)
	if _, err := LoadCommitmentServiceConfig(path); err == nil {
		t.Fatal("expected validation error for base_token == quote_token")
	}
}

func TestLoadCommitmentServiceConfigFeeRateBounds(t *testing.T) {
	path := writeTempConfig(t, `
listen_addr: /ip4/127.0.0.1/tcp/4002
fee_rate_basis_points: 10000
`)
	if _, err := LoadCommitmentServiceConfig(path); err == nil {
		t.Fatal("expected validation error for fee_rate_basis_points >= 10000")
	}
}
