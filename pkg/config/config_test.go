package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1111, cfg.Server.Port)
	assert.Equal(t, "perceptron", cfg.Normalizer.Tagger)
	assert.Equal(t, "dictionary", cfg.Normalizer.Lemmatizer)
	assert.Equal(t, 1000, cfg.Normalizer.BatchSize)
	assert.Equal(t, "csv", cfg.Corpus.Driver)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
server:
  port: 8088
index:
  dataDir: /srv/quotex
  loadAttempts: 5
  loadBackoff: 2s
normalizer:
  tagger: none
  batchSize: 50
kafka:
  brokers: ["kafka-1:9092"]
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))
	t.Setenv("QX_NORMALIZER_LEMMATIZER", "stem")
	t.Setenv("QX_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/srv/quotex", cfg.Index.DataDir)
	assert.Equal(t, 5, cfg.Index.LoadAttempts)
	assert.Equal(t, 2*time.Second, cfg.Index.LoadBackoff)
	assert.Equal(t, "none", cfg.Normalizer.Tagger)
	assert.Equal(t, "stem", cfg.Normalizer.Lemmatizer)
	assert.Equal(t, 50, cfg.Normalizer.BatchSize)
	assert.True(t, cfg.Kafka.Enabled())
	// Untouched sections keep their defaults.
	assert.Equal(t, "quotex.index.published", cfg.Kafka.Topics.IndexPublished)
}

func TestLoadRejectsUnknownResources(t *testing.T) {
	t.Setenv("QX_NORMALIZER_TAGGER", "crf")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tagger")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
