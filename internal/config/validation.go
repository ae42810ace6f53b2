package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/docweaver/internal/retry"
)

// Validate checks that every parsed field is usable. Duration strings are
// parsed here so later accessors cannot fail.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	policy, err := c.RetryPolicy()
	if err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	if _, err := time.ParseDuration(c.Sweep.Interval); err != nil {
		return fmt.Errorf("invalid sweep interval: %s: %w", c.Sweep.Interval, err)
	}
	if _, err := time.ParseDuration(c.Sweep.Window); err != nil {
		return fmt.Errorf("invalid sweep window: %s: %w", c.Sweep.Window, err)
	}

	seen := make(map[string]bool, len(c.Templates.Kinds))
	for _, kind := range c.Templates.Kinds {
		if kind.DocumentKey == "" {
			return fmt.Errorf("template kind with empty document_key")
		}
		lookup := kind.Stage + "/" + kind.DocumentKey
		if seen[lookup] {
			return fmt.Errorf("duplicate template kind: %s", kind.DocumentKey)
		}
		seen[lookup] = true
	}
	return nil
}

// RetryPolicy converts the retry section into a policy.
func (c *Config) RetryPolicy() (retry.Policy, error) {
	mode := retry.BackoffMode(strings.ToLower(strings.TrimSpace(c.Retry.Backoff)))
	switch mode {
	case retry.BackoffFixed, retry.BackoffLinear, retry.BackoffExponential:
	default:
		return retry.Policy{}, fmt.Errorf("invalid retry backoff: %s", c.Retry.Backoff)
	}
	initial, err := time.ParseDuration(c.Retry.InitialDelay)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("invalid retry initial_delay: %s: %w", c.Retry.InitialDelay, err)
	}
	maxDelay, err := time.ParseDuration(c.Retry.MaxDelay)
	if err != nil {
		return retry.Policy{}, fmt.Errorf("invalid retry max_delay: %s: %w", c.Retry.MaxDelay, err)
	}
	if maxDelay < initial {
		return retry.Policy{}, fmt.Errorf("retry max_delay (%s) must not be below initial_delay (%s)",
			c.Retry.MaxDelay, c.Retry.InitialDelay)
	}
	return retry.NewPolicy(mode, initial, maxDelay, c.Retry.MaxRetries), nil
}

// SweepInterval returns the parsed sweep interval.
func (c *Config) SweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.Sweep.Interval)
	return d
}

// SweepWindow returns the parsed sweep activity window.
func (c *Config) SweepWindow() time.Duration {
	d, _ := time.ParseDuration(c.Sweep.Window)
	return d
}

// LogLevel maps the configured level onto slog.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
