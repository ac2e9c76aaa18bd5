package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/logger"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
log:
  mode: prod
  level: debug
schedule:
  cron: "*/15 * * * *"
  eval_concurrency: 4
cooldown:
  window: 45m
queue:
  interval: 6s
inference:
  base_url: "http://localhost:9000"
  model: risk-model
  api_key_env: TEST_INFERENCE_KEY
  timeout: 5s
  max_retries: 3
  retry_base_delay: 500ms
risk:
  fallback_on_failure: true
alerts:
  create_on_low: true
  webhooks:
    - type: slack
      url_env: SLACK_URL
storage:
  backend: sqlite
  path: /tmp/assessor.db
safe_ranges:
  - produce: okra
    environment: cold
    temp: [7, 10]
    humidity: [90, 95]
`
	cfg := loadFromString(t, yaml)

	if cfg.Schedule.Cron != "*/15 * * * *" {
		t.Errorf("schedule.cron: got %q", cfg.Schedule.Cron)
	}
	if cfg.Cooldown.Window != 45*time.Minute {
		t.Errorf("cooldown.window: got %v", cfg.Cooldown.Window)
	}
	if cfg.Queue.Interval != 6*time.Second {
		t.Errorf("queue.interval: got %v", cfg.Queue.Interval)
	}
	if cfg.Inference.MaxRetries != 3 || cfg.Inference.RetryBaseDelay != 500*time.Millisecond {
		t.Errorf("inference retries: got %d/%v", cfg.Inference.MaxRetries, cfg.Inference.RetryBaseDelay)
	}
	if !cfg.Risk.FallbackOnFailure {
		t.Error("risk.fallback_on_failure: got false, want true")
	}
	if !cfg.Alerts.CreateOnLow || len(cfg.Alerts.Webhooks) != 1 {
		t.Errorf("alerts: got %+v", cfg.Alerts)
	}
	if len(cfg.SafeRanges) != 1 {
		t.Fatalf("safe_ranges: got %d, want 1", len(cfg.SafeRanges))
	}
	r := cfg.SafeRanges[0].Range()
	if r.Temp != (types.Band{Min: 7, Max: 10}) || r.Humidity != (types.Band{Min: 90, Max: 95}) {
		t.Errorf("safe_ranges[0]: got %+v", r)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "log:\n  mode: dev\n")

	if cfg.Schedule.Cron != DefaultCron {
		t.Errorf("default cron: got %q, want %q", cfg.Schedule.Cron, DefaultCron)
	}
	if cfg.Cooldown.Window != DefaultCooldown {
		t.Errorf("default cooldown: got %v, want %v", cfg.Cooldown.Window, DefaultCooldown)
	}
	if cfg.Queue.Interval != DefaultQueueInterval {
		t.Errorf("default queue interval: got %v, want %v", cfg.Queue.Interval, DefaultQueueInterval)
	}
	if cfg.Inference.MaxRetries != DefaultMaxRetries {
		t.Errorf("default max_retries: got %d, want %d", cfg.Inference.MaxRetries, DefaultMaxRetries)
	}
	if cfg.Risk.FallbackOnFailure {
		t.Error("default fallback_on_failure: got true, want false")
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("default storage backend: got %q", cfg.Storage.Backend)
	}
	if cfg.HTTP.StreamInterval != DefaultStreamInterval {
		t.Errorf("default stream interval: got %v, want %v", cfg.HTTP.StreamInterval, DefaultStreamInterval)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad cron", "schedule:\n  cron: \"every day\"\n"},
		{"zero cooldown", "cooldown:\n  window: 0s\n"},
		{"negative retries", "inference:\n  max_retries: -1\n"},
		{"unknown webhook", "alerts:\n  webhooks:\n    - type: pager\n      url_env: X\n"},
		{"unknown backend", "storage:\n  backend: mongo\n"},
		{"negative stream interval", "http:\n  stream_interval: -1s\n"},
		{"bad range", "safe_ranges:\n  - produce: okra\n    environment: cold\n    temp: [10, 7]\n    humidity: [90, 95]\n"},
		{"unknown environment", "safe_ranges:\n  - produce: okra\n    environment: arctic\n    temp: [7, 10]\n    humidity: [90, 95]\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestInferenceConfig_APIKey(t *testing.T) {
	t.Setenv("TEST_INFERENCE_KEY", "supersecret")
	c := InferenceConfig{APIKeyEnv: "TEST_INFERENCE_KEY"}
	if got := c.APIKey(); got != "supersecret" {
		t.Errorf("APIKey(): got %q, want %q", got, "supersecret")
	}
	if got := (InferenceConfig{}).APIKey(); got != "" {
		t.Errorf("APIKey() with no env: got %q, want empty", got)
	}
}

func TestWebhookConfig_URL(t *testing.T) {
	t.Setenv("TEAMS_URL", "https://teams.example.com/webhook")
	w := WebhookConfig{Type: "teams", URLEnv: "TEAMS_URL"}
	if got := w.URL(); got != "https://teams.example.com/webhook" {
		t.Errorf("URL(): got %q", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cooldown:\n  window: 10m\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan *Config, 1)
	started := make(chan struct{})
	go func() {
		close(started)
		_ = Watch(ctx, path, logger.Nop(), func(c *Config) {
			// A truncating write can surface an empty file first; wait for the
			// final content.
			if c.Cooldown.Window != 20*time.Minute {
				return
			}
			select {
			case got <- c:
			default:
			}
		})
	}()
	<-started

	// Keep rewriting until the watcher has registered and seen a write.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-got:
			return
		case <-tick.C:
			_ = os.WriteFile(path, []byte("cooldown:\n  window: 20m\n"), 0o600)
		case <-deadline:
			t.Fatal("Watch did not call onChange within 5s")
		}
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
