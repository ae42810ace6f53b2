// Package config loads and validates the docweaver configuration: YAML
// with environment-variable expansion, layered on top of an optional .env
// file. Defaults are applied after unmarshalling so a minimal config file
// stays minimal.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/docweaver/internal/templates"
)

// Config represents the application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	NATS      NATSConfig      `yaml:"nats"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Retry     RetryConfig     `yaml:"retry"`
	Templates TemplatesConfig `yaml:"templates"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Sweep     SweepConfig     `yaml:"sweep"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug|info|warn|error
	Format string `yaml:"format,omitempty"` // text|json
}

// NATSConfig holds broker connection and stream settings.
type NATSConfig struct {
	URL           string `yaml:"url,omitempty"`
	RenderStream  string `yaml:"render_stream,omitempty"`
	RenderSubject string `yaml:"render_subject,omitempty"`
	RenderDurable string `yaml:"render_durable,omitempty"`
	NotifyStream  string `yaml:"notify_stream,omitempty"`
	NotifyPrefix  string `yaml:"notify_prefix,omitempty"`
}

// StorageConfig holds object-storage settings for fragment bodies and
// rendered documents.
type StorageConfig struct {
	BasePath string `yaml:"base_path,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
}

// DatabaseConfig holds fragment-metadata database settings.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// RetryConfig tunes the malformed-payload retry policy. Delays are
// duration strings ("1s", "500ms").
type RetryConfig struct {
	Backoff      string `yaml:"backoff,omitempty"` // fixed|linear|exponential
	InitialDelay string `yaml:"initial_delay,omitempty"`
	MaxDelay     string `yaml:"max_delay,omitempty"`
	MaxRetries   int    `yaml:"max_retries,omitempty"`
}

// TemplatesConfig declares the template directory and the document kinds
// it serves.
type TemplatesConfig struct {
	Dir   string               `yaml:"dir,omitempty"`
	Kinds []templates.KindSpec `yaml:"kinds,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Listen  string `yaml:"listen,omitempty"`
}

// SweepConfig tunes the render reconciliation sweep. Interval and window
// are duration strings.
type SweepConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Interval string `yaml:"interval,omitempty"`
	Window   string `yaml:"window,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Layer a .env file under the process environment if one exists.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment variables from .env")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

const exampleConfig = `# docweaver configuration
log:
  level: info
  format: text

nats:
  url: ${NATS_URL}
  render_stream: DOCWEAVER_RENDER
  render_subject: docweaver.render
  render_durable: docweaver-worker
  notify_stream: DOCWEAVER_EVENTS
  notify_prefix: docweaver.events

storage:
  base_path: ./data/objects
  bucket: contributions

database:
  path: ./data/docweaver.db

retry:
  backoff: linear
  initial_delay: 1s
  max_delay: 30s
  max_retries: 2

templates:
  dir: ./templates
  kinds:
    - document_key: business_case
      markdown: true
    - document_key: raw_analysis
      markdown: false

metrics:
  enabled: true
  listen: :9090

sweep:
  enabled: true
  interval: 5m
  window: 30m
`
