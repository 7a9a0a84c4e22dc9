package appgw

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validConfig = `
listen: ":9090"
jwt_secret: "super-secret"
database:
  driver: sqlite
  dsn: ":memory:"
chain:
  rpc_endpoint: "https://mainnet.base.org"
  factory_address: "0xc5a076cad94176c2996B32d8466Be1cE757FAa27"
  reserve_token: "0x4200000000000000000000000000000000000006"
  signer_key: "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
confirm:
  deadline: 10s
  poll_interval: 2s
  timeout: 1m
index:
  endpoint: "https://mint.club/api"
existence:
  attempts: 10
  interval: 2s
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddress != ":9090" {
		t.Fatalf("unexpected listen address %q", cfg.ListenAddress)
	}
	if cfg.Confirm.Deadline.Duration != 10*time.Second {
		t.Fatalf("unexpected deadline %s", cfg.Confirm.Deadline.Duration)
	}
	if cfg.Confirm.Timeout.Duration != time.Minute {
		t.Fatalf("unexpected timeout %s", cfg.Confirm.Timeout.Duration)
	}
	if cfg.Chain.ChainID != 8453 {
		t.Fatalf("expected default chain id 8453, got %d", cfg.Chain.ChainID)
	}
	if cfg.Chain.SymbolPrefix != "OWHA" {
		t.Fatalf("expected default symbol prefix, got %q", cfg.Chain.SymbolPrefix)
	}
	if cfg.Index.RequestsPerSecond != 3 {
		t.Fatalf("expected default index rate, got %v", cfg.Index.RequestsPerSecond)
	}
}

func TestLoadConfigRejectsBadFactory(t *testing.T) {
	bad := `
jwt_secret: "s"
chain:
  rpc_endpoint: "https://mainnet.base.org"
  factory_address: "not-an-address"
  reserve_token: "0x4200000000000000000000000000000000000006"
  signer_key: "ab"
index:
  endpoint: "https://mint.club/api"
`
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("expected invalid factory address to be rejected")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	bad := `
chain:
  rpc_endpoint: "https://mainnet.base.org"
  factory_address: "0xc5a076cad94176c2996B32d8466Be1cE757FAa27"
  reserve_token: "0x4200000000000000000000000000000000000006"
  signer_key: "ab"
index:
  endpoint: "https://mint.club/api"
`
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("expected missing jwt secret to be rejected")
	}
}

func TestJWTSecretFromEnv(t *testing.T) {
	t.Setenv("APPGW_TEST_JWT", "env-secret")
	cfg := `
jwt_secret_env: "APPGW_TEST_JWT"
chain:
  rpc_endpoint: "https://mainnet.base.org"
  factory_address: "0xc5a076cad94176c2996B32d8466Be1cE757FAa27"
  reserve_token: "0x4200000000000000000000000000000000000006"
  signer_key: "ab"
index:
  endpoint: "https://mint.club/api"
`
	loaded, err := LoadConfig(writeConfig(t, cfg))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.JWTSecret != "env-secret" {
		t.Fatalf("expected secret from env, got %q", loaded.JWTSecret)
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	bad := `
jwt_secret: "s"
confirm:
  deadline: "soon"
chain:
  rpc_endpoint: "x"
  factory_address: "0xc5a076cad94176c2996B32d8466Be1cE757FAa27"
  reserve_token: "0x4200000000000000000000000000000000000006"
  signer_key: "ab"
index:
  endpoint: "x"
`
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("expected unparseable duration to be rejected")
	}
}
