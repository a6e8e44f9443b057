package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CTAG07/readspeed/pkg/markov"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err, "expected default config to be written")

	var written map[string]any
	require.NoError(t, json.Unmarshal(data, &written))
	assert.EqualValues(t, 3, written["CHAIN_ORDER"])
	assert.Equal(t, "./corpus/large.txt", written["CORPUS_FILE"])
}

func TestLoadMergesKnownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"RESULT_AUTHOR": "reader",
		"CHAIN_ORDER": 2,
		"NUM_PARAGRAPHS": 3,
		"SOMETHING_ELSE": true
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "reader", cfg.ResultAuthor)
	assert.Equal(t, 2, cfg.ChainOrder)
	assert.Equal(t, 3, cfg.NumParagraphs)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30, cfg.MaxSentenceLen)
	assert.Equal(t, "./results", cfg.ResultDirectory)
	assert.Len(t, cfg.ResultEntries, 5)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"CHAIN_ORDER": 2}`), 0o644))

	t.Setenv("READSPEED_CHAIN_ORDER", "4")
	t.Setenv("READSPEED_LOG_LEVEL", "debug")
	t.Setenv("READSPEED_RESULT_ENTRIES", "a,b")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.ChainOrder)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"a", "b"}, cfg.ResultEntries)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"CHAIN_ORDER": "three"}`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestParams(t *testing.T) {
	cfg := Default()
	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, markov.DefaultParams(), p)

	cfg.MinSentenceLen = 40
	_, err = cfg.Params()
	assert.ErrorIs(t, err, markov.ErrInvalidConfiguration)

	cfg = Default()
	cfg.ParagraphSentenceVariation = -1
	_, err = cfg.Params()
	assert.ErrorIs(t, err, markov.ErrInvalidConfiguration)
}

func TestResultPath(t *testing.T) {
	cfg := Default()
	assert.Equal(t, filepath.Join("./results", "result.csv"), cfg.ResultPath())
}
