package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("VS_TEST_STR", "hello")
	t.Setenv("VS_TEST_BOOL", "true")
	t.Setenv("VS_TEST_DUR", "90s")
	t.Setenv("VS_TEST_BAD_DUR", "soon")

	if got := Env("VS_TEST_STR", "def"); got != "hello" {
		t.Errorf("Env = %q, want hello", got)
	}
	if got := Env("VS_TEST_MISSING", "def"); got != "def" {
		t.Errorf("Env default = %q, want def", got)
	}
	if !EnvBool("VS_TEST_BOOL", false) {
		t.Error("EnvBool = false, want true")
	}
	if got := EnvDuration("VS_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("EnvDuration = %v, want 90s", got)
	}
	if got := EnvDuration("VS_TEST_BAD_DUR", time.Second); got != time.Second {
		t.Errorf("EnvDuration fallback = %v, want 1s", got)
	}
}

func TestParseStaticPrices(t *testing.T) {
	prices, err := ParseStaticPrices("SOL=150, usdc=1, ETH=3000")
	if err != nil {
		t.Fatalf("ParseStaticPrices: %v", err)
	}
	if prices["SOL"] != 150 || prices["USDC"] != 1 || prices["ETH"] != 3000 {
		t.Errorf("unexpected table: %v", prices)
	}

	if _, err := ParseStaticPrices("SOL"); err == nil {
		t.Error("missing '=' accepted")
	}
	if _, err := ParseStaticPrices("SOL=-1"); err == nil {
		t.Error("negative price accepted")
	}

	empty, err := ParseStaticPrices("  ")
	if err != nil {
		t.Fatalf("ParseStaticPrices empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("empty input yielded %v", empty)
	}
}

func TestLoadSymbolTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.json")
	content := `{"aabb/wsol": {"symbol": "SOL", "decimals": 9}, "aabb/usdc": {"symbol": "USDC"}}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := LoadSymbolTable(path)
	if err != nil {
		t.Fatalf("LoadSymbolTable: %v", err)
	}

	sym, dec := table.Resolve("AABB", []byte("wsol"))
	if sym != "SOL" || dec != 9 {
		t.Errorf("Resolve(aabb, wsol) = %s/%d, want SOL/9", sym, dec)
	}
	sym, dec = table.Resolve("aabb", []byte("usdc"))
	if sym != "USDC" || dec != 6 {
		t.Errorf("Resolve(aabb, usdc) = %s/%d, want USDC/6 with defaulted decimals", sym, dec)
	}

	if _, err := LoadSymbolTable(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file accepted")
	}

	bare := filepath.Join(t.TempDir(), "bare.json")
	if err := os.WriteFile(bare, []byte(`{"aabb": {"symbol": "SOL"}}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadSymbolTable(bare); err == nil {
		t.Error("key without an asset name accepted")
	}

	table, err = LoadSymbolTable("")
	if err != nil || table == nil {
		t.Fatalf("empty path: table=%v err=%v", table, err)
	}
}
