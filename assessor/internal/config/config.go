package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultCron            = "0 2 * * *"
	DefaultEvalConcurrency = 8
	DefaultCooldown        = 30 * time.Minute
	DefaultQueueInterval   = 12 * time.Second
	DefaultBaseURL         = "https://api.openai.com"
	DefaultModel           = "gpt-4o-mini"
	DefaultAPIKeyEnv       = "INFERENCE_API_KEY"
	DefaultTimeout         = 15 * time.Second
	DefaultMaxRetries      = 2
	DefaultRetryBaseDelay  = time.Second
	DefaultHTTPPort        = 8080
	DefaultStreamInterval  = 30 * time.Second
	DefaultSQLitePath      = "assessor.db"
)

// Config is the top-level assessor configuration. Fields map 1:1 to
// config.example.yaml.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Cooldown   CooldownConfig   `yaml:"cooldown"`
	Queue      QueueConfig      `yaml:"queue"`
	Inference  InferenceConfig  `yaml:"inference"`
	Risk       RiskConfig       `yaml:"risk"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Storage    StorageConfig    `yaml:"storage"`
	HTTP       HTTPConfig       `yaml:"http"`
	SafeRanges []SafeRangeEntry `yaml:"safe_ranges"`
}

// LogConfig selects the logger encoder and level.
type LogConfig struct {
	// Mode is dev | prod.
	Mode string `yaml:"mode"`
	// Level is a zap level name (debug, info, warn, error). Empty means info.
	Level string `yaml:"level"`
}

// ScheduleConfig controls the periodic assessment run.
type ScheduleConfig struct {
	// Cron is a standard five-field cron expression.
	Cron string `yaml:"cron"`

	// EvalConcurrency bounds how many batches are evaluated at once. Inference
	// itself is always serialized by the queue.
	EvalConcurrency int `yaml:"eval_concurrency"`
}

// CooldownConfig holds the re-assessment suppression window.
type CooldownConfig struct {
	Window time.Duration `yaml:"window"`
}

// QueueConfig holds the inference admission policy.
type QueueConfig struct {
	// Interval is the minimum spacing between two inference admissions.
	Interval time.Duration `yaml:"interval"`
}

// InferenceConfig describes the external risk-inference service.
type InferenceConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// APIKeyEnv is the name of the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// Timeout bounds each individual attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries"`

	// RetryBaseDelay is multiplied by the attempt number between retries.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
}

// APIKey returns the API key resolved from the environment.
func (c InferenceConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// RiskConfig controls risk write-back policy.
type RiskConfig struct {
	// FallbackOnFailure writes the local heuristic score when a scheduled
	// inference fails. Off by default: the batch is logged and skipped, and
	// retried on the next run. Manual assessments always surface the error.
	FallbackOnFailure bool `yaml:"fallback_on_failure"`
}

// AlertsConfig holds alert creation policy and webhook delivery targets.
type AlertsConfig struct {
	// CreateOnLow also records alerts for Low results.
	CreateOnLow bool            `yaml:"create_on_low"`
	Webhooks    []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// StorageConfig selects the collaborator store implementation.
type StorageConfig struct {
	// Backend is memory | sqlite | postgres.
	Backend string `yaml:"backend"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// DSNEnv names the environment variable holding the Postgres DSN.
	DSNEnv string `yaml:"dsn_env"`
}

// DSN returns the Postgres DSN resolved from the environment.
func (s StorageConfig) DSN() string {
	if s.DSNEnv == "" {
		return ""
	}
	return os.Getenv(s.DSNEnv)
}

// HTTPConfig holds the listener for the JSON surface.
type HTTPConfig struct {
	// Port 0 disables the listener.
	Port int `yaml:"port"`

	// StreamInterval is how often the alert stream re-sends the active alert
	// snapshot to connected clients. 0 sends it only on connect.
	StreamInterval time.Duration `yaml:"stream_interval"`
}

// SafeRangeEntry adds one (produce, environment) band to the catalog.
type SafeRangeEntry struct {
	Produce     string                 `yaml:"produce"`
	Environment types.EnvironmentClass `yaml:"environment"`
	Temp        []float64              `yaml:"temp"`
	Humidity    []float64              `yaml:"humidity"`
}

// Range converts the entry to a SafeRange. Call only on validated entries.
func (e SafeRangeEntry) Range() types.SafeRange {
	return types.SafeRange{
		Temp:     types.Band{Min: e.Temp[0], Max: e.Temp[1]},
		Humidity: types.Band{Min: e.Humidity[0], Max: e.Humidity[1]},
	}
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values. It is also the
// configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Mode: "dev"},
		Schedule: ScheduleConfig{
			Cron:            DefaultCron,
			EvalConcurrency: DefaultEvalConcurrency,
		},
		Cooldown: CooldownConfig{Window: DefaultCooldown},
		Queue:    QueueConfig{Interval: DefaultQueueInterval},
		Inference: InferenceConfig{
			BaseURL:        DefaultBaseURL,
			Model:          DefaultModel,
			APIKeyEnv:      DefaultAPIKeyEnv,
			Timeout:        DefaultTimeout,
			MaxRetries:     DefaultMaxRetries,
			RetryBaseDelay: DefaultRetryBaseDelay,
		},
		Storage: StorageConfig{Backend: "memory", Path: DefaultSQLitePath, DSNEnv: "DATABASE_URL"},
		HTTP:    HTTPConfig{Port: DefaultHTTPPort, StreamInterval: DefaultStreamInterval},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Mode) {
	case "dev", "development", "prod", "production", "":
	default:
		return fmt.Errorf("log.mode %q unknown: want dev|prod", cfg.Log.Mode)
	}
	if _, err := cron.ParseStandard(cfg.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron %q: %w", cfg.Schedule.Cron, err)
	}
	if cfg.Schedule.EvalConcurrency <= 0 {
		return fmt.Errorf("schedule.eval_concurrency must be positive")
	}
	if cfg.Cooldown.Window <= 0 {
		return fmt.Errorf("cooldown.window must be positive")
	}
	if cfg.Queue.Interval < 0 {
		return fmt.Errorf("queue.interval must not be negative")
	}
	if cfg.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required")
	}
	if cfg.Inference.Model == "" {
		return fmt.Errorf("inference.model is required")
	}
	if cfg.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout must be positive")
	}
	if cfg.Inference.MaxRetries < 0 {
		return fmt.Errorf("inference.max_retries must not be negative")
	}
	if cfg.Inference.RetryBaseDelay < 0 {
		return fmt.Errorf("inference.retry_base_delay must not be negative")
	}
	for i, wh := range cfg.Alerts.Webhooks {
		switch wh.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("alerts.webhooks[%d]: url_env is required", i)
		}
	}
	switch cfg.Storage.Backend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.backend %q unknown: want memory|sqlite|postgres", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for sqlite")
	}
	if cfg.Storage.Backend == "postgres" && cfg.Storage.DSNEnv == "" {
		return fmt.Errorf("storage.dsn_env is required for postgres")
	}
	if cfg.HTTP.Port < 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d is out of range [0, 65535]", cfg.HTTP.Port)
	}
	if cfg.HTTP.StreamInterval < 0 {
		return fmt.Errorf("http.stream_interval must not be negative")
	}
	for i, e := range cfg.SafeRanges {
		if strings.TrimSpace(e.Produce) == "" {
			return fmt.Errorf("safe_ranges[%d]: produce is required", i)
		}
		if !e.Environment.Valid() {
			return fmt.Errorf("safe_ranges[%d] %q: unknown environment %q", i, e.Produce, e.Environment)
		}
		if len(e.Temp) != 2 || e.Temp[0] > e.Temp[1] {
			return fmt.Errorf("safe_ranges[%d] %q: temp must be [min, max]", i, e.Produce)
		}
		if len(e.Humidity) != 2 || e.Humidity[0] > e.Humidity[1] {
			return fmt.Errorf("safe_ranges[%d] %q: humidity must be [min, max]", i, e.Produce)
		}
	}
	return nil
}
