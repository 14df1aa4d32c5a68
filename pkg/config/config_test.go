package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
environment: test
marketdata:
  base_url: https://api.example.com
  symbols: [BTCUSDT, ETHUSDT]
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Scan.Workers)
	}
	if cfg.Scan.Degree != 2 || cfg.Scan.KStd != 2.0 {
		t.Errorf("degree/kstd = %d/%v, want 2/2.0", cfg.Scan.Degree, cfg.Scan.KStd)
	}
	if cfg.Scan.Interval != "1d" {
		t.Errorf("interval = %s, want 1d", cfg.Scan.Interval)
	}
	if cfg.Scan.BatchTimeout != 2*time.Minute {
		t.Errorf("batch timeout = %v, want 2m", cfg.Scan.BatchTimeout)
	}
	if cfg.Scan.Retry.MaxAttempts != 3 || cfg.Scan.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("retry = %+v", cfg.Scan.Retry)
	}
	if cfg.MarketData.RateLimit.Requests != 10 || cfg.MarketData.RateLimit.Window != time.Second {
		t.Errorf("rate limit = %+v", cfg.MarketData.RateLimit)
	}
	if cfg.Sink.Type != "none" {
		t.Errorf("sink = %s, want none", cfg.Sink.Type)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing environment", `
marketdata:
  base_url: https://api.example.com
  symbols: [BTCUSDT]
`},
		{"no symbols", `
environment: test
marketdata:
  base_url: https://api.example.com
`},
		{"no base url", `
environment: test
marketdata:
  symbols: [BTCUSDT]
`},
		{"bad sink", `
environment: test
sink:
  type: postgres
marketdata:
  base_url: https://api.example.com
  symbols: [BTCUSDT]
`},
		{"negative kstd", `
environment: test
scan:
  kstd: -1
marketdata:
  base_url: https://api.example.com
  symbols: [BTCUSDT]
`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, c.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOLS", "SOLUSDT,ADAUSDT")
	t.Setenv("SINK", "kafka")
	t.Setenv("KAFKA_TOPIC", "scan.signals")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if len(cfg.MarketData.Symbols) != 2 || cfg.MarketData.Symbols[0] != "SOLUSDT" {
		t.Errorf("symbols = %v", cfg.MarketData.Symbols)
	}
	if cfg.Sink.Type != "kafka" || cfg.Kafka.Topic != "scan.signals" {
		t.Errorf("sink/topic = %s/%s", cfg.Sink.Type, cfg.Kafka.Topic)
	}
}
