package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseConfig = `
environment: development
clickhouse:
  host: localhost
engine:
  symbols: [BTCUSDT, ETHUSDT]
`

func TestLoadRiskThresholds(t *testing.T) {
	path := writeConfig(t, baseConfig+`
  warn_risk_fraction: 0.8
  warn_loss_pct: 2.5
  exit_loss_pct: 5
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Engine.WarnRiskFraction != 0.8 {
		t.Fatalf("expected warn_risk_fraction 0.8, got %v", c.Engine.WarnRiskFraction)
	}
	if c.Engine.WarnLossPct != 2.5 || c.Engine.ExitLossPct != 5 {
		t.Fatalf("loss thresholds not parsed: %+v", c.Engine)
	}
}

func TestLoadRejectsBadRiskFraction(t *testing.T) {
	path := writeConfig(t, baseConfig+`
  warn_risk_fraction: 1.5
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for fraction above 1")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	path := writeConfig(t, `
environment: development
clickhouse:
  host: localhost
engine:
  symbols: []
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty symbol list")
	}
}
