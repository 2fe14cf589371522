package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesTuningOverridesOverDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	path := writeConfig(t, `
database:
  path: test.db
assets:
  dir: assets
pipeline:
  batch_size: 2
  confidence:
    confirm_threshold: 0.9
  duplicate:
    min_checks: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.OpenAI.APIKey)
	assert.Equal(t, 2, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.PollInterval)

	// overridden constants take the YAML value
	assert.Equal(t, 0.9, cfg.Pipeline.Confidence.ConfirmThreshold)
	assert.Equal(t, 3, cfg.Pipeline.Duplicate.MinChecks)

	// omitted constants keep the shipped defaults
	assert.Equal(t, 0.4, cfg.Pipeline.Confidence.RetakeThreshold)
	assert.Equal(t, 0.05, cfg.Pipeline.Confidence.CleanBonus)
	assert.Equal(t, 0.8, cfg.Pipeline.Duplicate.SupplierSimilarity)
	assert.Equal(t, 0.85, cfg.Pipeline.Duplicate.MatchRatio)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	path := writeConfig(t, `
database:
  path: test.db
assets:
  dir: assets
pipeline:
  confidence:
    confirm_threshold: 0.3
    retake_threshold: 0.5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retake_threshold")
}
