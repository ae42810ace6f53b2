package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docweaver/internal/retry"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  path: ./test.db\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "./test.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "DOCWEAVER_RENDER", cfg.NATS.RenderStream)
	assert.Equal(t, "contributions", cfg.Storage.Bucket)
	assert.Equal(t, 2, cfg.Retry.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval())
	assert.Equal(t, 30*time.Minute, cfg.SweepWindow())
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_NATS_URL", "nats://broker.internal:4222")
	path := writeConfig(t, "nats:\n  url: ${TEST_NATS_URL}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://broker.internal:4222", cfg.NATS.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadTemplateKinds(t *testing.T) {
	path := writeConfig(t, `
templates:
  dir: ./tpl
  kinds:
    - document_key: business_case
      markdown: true
      file: business_case.tmpl
    - document_key: raw_analysis
      markdown: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Templates.Kinds, 2)
	assert.Equal(t, "business_case", cfg.Templates.Kinds[0].DocumentKey)
	assert.True(t, cfg.Templates.Kinds[0].Markdown)
	assert.False(t, cfg.Templates.Kinds[1].Markdown)
}

func TestLoadRejectsDuplicateKinds(t *testing.T) {
	path := writeConfig(t, `
templates:
  kinds:
    - document_key: business_case
    - document_key: business_case
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate template kind")
}

func TestRetryPolicy(t *testing.T) {
	path := writeConfig(t, `
retry:
  backoff: exponential
  initial_delay: 500ms
  max_delay: 10s
  max_retries: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	policy, err := cfg.RetryPolicy()
	require.NoError(t, err)
	assert.Equal(t, retry.BackoffExponential, policy.Mode)
	assert.Equal(t, 500*time.Millisecond, policy.Initial)
	assert.Equal(t, 10*time.Second, policy.Max)
	assert.Equal(t, 4, policy.MaxRetries)
}

func TestRetryPolicyRejectsInvertedDelays(t *testing.T) {
	path := writeConfig(t, `
retry:
  initial_delay: 30s
  max_delay: 1s
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_delay")
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, "log:\n  level: loud\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Init(path, false))

	// Re-init without force is refused.
	err := Init(path, false)
	require.Error(t, err)
	require.NoError(t, Init(path, true))

	t.Setenv("NATS_URL", "nats://example:4222")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nats://example:4222", cfg.NATS.URL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Sweep.Enabled)
}
