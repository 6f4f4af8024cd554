package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const simYAML = `
environment: test
broker:
  type: sim
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(simYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := strings.Join(c.Trading.Symbols, ","); got != "TSLA,AAPL,AMD" {
		t.Fatalf("unexpected symbols %s", got)
	}
	if c.Trading.FeatureWindow != 30 || c.Trading.Interval != time.Minute {
		t.Fatalf("unexpected trading defaults %+v", c.Trading)
	}
	if c.Risk.CashBuffer != 0.1 || c.Risk.StopLossPct != 0.02 || c.Risk.TakeProfitPct != 0.04 {
		t.Fatalf("unexpected risk defaults %+v", c.Risk)
	}
	if c.Risk.Cooldown != 5*time.Minute || c.Risk.MaxTradesPerDay != 10 {
		t.Fatalf("unexpected cadence defaults %+v", c.Risk)
	}
	if c.MaxDailyLoss() != -100 {
		t.Fatalf("paper loss limit should be -100, got %v", c.MaxDailyLoss())
	}
	if c.BrokerURL() != "https://paper-api.alpaca.markets" {
		t.Fatalf("unexpected broker url %s", c.BrokerURL())
	}
	if c.TickTimeout() != time.Minute {
		t.Fatalf("tick timeout should default to the interval")
	}
}

func TestLiveModeSwitchesLimitAndURL(t *testing.T) {
	c, err := Parse([]byte(simYAML + "mode: live\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.MaxDailyLoss() != -50 {
		t.Fatalf("live loss limit should be -50, got %v", c.MaxDailyLoss())
	}
	if c.BrokerURL() != "https://api.alpaca.markets" {
		t.Fatalf("unexpected broker url %s", c.BrokerURL())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"alpaca without keys": "environment: test\n",
		"bad mode":            simYAML + "mode: yolo\n",
		"duplicate symbols":   simYAML + "trading:\n  symbols: [AAPL, AAPL]\n",
		"timeout over tick":   simYAML + "trading:\n  interval: 1m\n  tick_timeout: 2m\n",
		"inverted window":     simYAML + "trading:\n  window:\n    open: '16:00'\n    close: '09:30'\n",
		"remote without url":  simYAML + "model:\n  type: remote\n",
		"positive loss limit": simYAML + "risk:\n  max_daily_loss:\n    paper: 10\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("environment: test\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ALPACA_API_KEY", "key")
	t.Setenv("ALPACA_SECRET_KEY", "secret")
	t.Setenv("SYMBOLS", "nvda, msft")
	t.Setenv("TRADING_MODE", "LIVE")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Broker.APIKey != "key" || c.Broker.SecretKey != "secret" {
		t.Fatalf("credentials not applied")
	}
	if got := strings.Join(c.Trading.Symbols, ","); got != "NVDA,MSFT" {
		t.Fatalf("unexpected symbols %s", got)
	}
	if c.Mode != ModeLive {
		t.Fatalf("unexpected mode %s", c.Mode)
	}
}
