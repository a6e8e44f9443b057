// Package config loads the reading exercise configuration: defaults, then
// the JSON config file, then READSPEED_* environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/natefinch/atomic"

	"github.com/CTAG07/readspeed/pkg/markov"
)

// EnvPrefix prefixes every environment override, e.g. READSPEED_CHAIN_ORDER.
const EnvPrefix = "READSPEED_"

// Config holds every setting of the reading exercise. JSON keys are the
// upper-case names used by existing config.json files.
type Config struct {
	ResultAuthor        string   `json:"RESULT_AUTHOR" env:"RESULT_AUTHOR"`
	ResultDirectory     string   `json:"RESULT_DIRECTORY" env:"RESULT_DIRECTORY"`
	ResultFile          string   `json:"RESULT_FILE" env:"RESULT_FILE"`
	ResultEntries       []string `json:"RESULT_ENTRIES" env:"RESULT_ENTRIES"`
	LanguageProficiency float64  `json:"LANGUAGE_PROFICIENCY" env:"LANGUAGE_PROFICIENCY"`
	DataDirectory       string   `json:"DATA_DIRECTORY" env:"DATA_DIRECTORY"`
	CorpusFile          string   `json:"CORPUS_FILE" env:"CORPUS_FILE"`

	ChainOrder                 int    `json:"CHAIN_ORDER" env:"CHAIN_ORDER"`
	MinSentenceLen             int    `json:"MIN_SENTENCE_LEN" env:"MIN_SENTENCE_LEN"`
	MaxSentenceLen             int    `json:"MAX_SENTENCE_LEN" env:"MAX_SENTENCE_LEN"`
	NumSentences               int    `json:"NUM_SENTENCES" env:"NUM_SENTENCES"`
	NumParagraphs              int    `json:"NUM_PARAGRAPHS" env:"NUM_PARAGRAPHS"`
	ParagraphSentenceVariation int    `json:"PARAGRAPH_SENTENCE_VARIATION" env:"PARAGRAPH_SENTENCE_VARIATION"`
	SentenceCeilingPolicy      string `json:"SENTENCE_CEILING_POLICY" env:"SENTENCE_CEILING_POLICY"`

	LogLevel      string `json:"LOG_LEVEL" env:"LOG_LEVEL"`
	CacheDatabase string `json:"CACHE_DATABASE" env:"CACHE_DATABASE"`
}

// Default returns the configuration the exercise ships with.
func Default() *Config {
	p := markov.DefaultParams()
	return &Config{
		ResultAuthor:    "",
		ResultDirectory: "./results",
		ResultFile:      "result.csv",
		ResultEntries: []string{
			"author",
			"file_path",
			"start_timestamp",
			"end_timestamp",
			"language_proficiency",
		},
		LanguageProficiency:        0.5,
		DataDirectory:              "./data",
		CorpusFile:                 "./corpus/large.txt",
		ChainOrder:                 p.Order,
		MinSentenceLen:             p.MinSentenceLen,
		MaxSentenceLen:             p.MaxSentenceLen,
		NumSentences:               p.NumSentences,
		NumParagraphs:              p.NumParagraphs,
		ParagraphSentenceVariation: p.Variation,
		SentenceCeilingPolicy:      string(p.Ceiling),
		LogLevel:                   "info",
		CacheDatabase:              "./data/readspeed_cache.db",
	}
}

// Load reads the configuration from a JSON file at the given path. Keys
// missing from the file keep their defaults and unknown keys are ignored.
// If the file doesn't exist, it is created with default values. Environment
// overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err = writeDefault(path, cfg); err != nil {
			// The exercise can still run with defaults.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err = json.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err = env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}
	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Params converts the generation settings into validated engine parameters.
// Invalid values fail with an error matching markov.ErrInvalidConfiguration.
func (c *Config) Params() (markov.Params, error) {
	p := markov.Params{
		Order:          c.ChainOrder,
		MinSentenceLen: c.MinSentenceLen,
		MaxSentenceLen: c.MaxSentenceLen,
		NumSentences:   c.NumSentences,
		NumParagraphs:  c.NumParagraphs,
		Variation:      c.ParagraphSentenceVariation,
		Ceiling:        markov.CeilingPolicy(c.SentenceCeilingPolicy),
	}
	if err := p.Validate(); err != nil {
		return markov.Params{}, err
	}
	return p, nil
}

// ResultPath returns the path of the CSV results file.
func (c *Config) ResultPath() string {
	return filepath.Join(c.ResultDirectory, c.ResultFile)
}
