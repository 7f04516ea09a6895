package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 20, cfg.Classify.BatchSize)
	assert.Equal(t, 5, cfg.Classify.MaxConcurrentSearches)
	assert.Equal(t, 5, cfg.Classify.TargetLevel)
	assert.Equal(t, 120*time.Second, cfg.Classify.BatchTimeout())
	assert.Equal(t, 180*time.Second, cfg.Classify.SearchClassifyTimeout())
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLASSIFY_CLASSIFY_BATCH_SIZE", "7")
	t.Setenv("CLASSIFY_CLASSIFY_TARGET_LEVEL", "3")
	t.Setenv("CLASSIFY_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Classify.BatchSize)
	assert.Equal(t, 3, cfg.Classify.TargetLevel)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestLoad_InvalidTargetLevel(t *testing.T) {
	t.Setenv("CLASSIFY_CLASSIFY_TARGET_LEVEL", "9")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "target_level")
}

func TestClassifyConfig_Validate(t *testing.T) {
	valid := ClassifyConfig{BatchSize: 10, MaxConcurrentSearches: 3, TargetLevel: 4}
	assert.NoError(t, valid.Validate())

	assert.Error(t, ClassifyConfig{BatchSize: 0, MaxConcurrentSearches: 3, TargetLevel: 4}.Validate())
	assert.Error(t, ClassifyConfig{BatchSize: 10, MaxConcurrentSearches: 0, TargetLevel: 4}.Validate())
	assert.Error(t, ClassifyConfig{BatchSize: 10, MaxConcurrentSearches: 3, TargetLevel: 0}.Validate())
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
