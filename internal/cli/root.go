// Package cli implements the readspeed command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CTAG07/readspeed/internal/config"
	"github.com/CTAG07/readspeed/pkg/markov"
)

var (
	cfgFile  string
	logLevel string
	seed     uint64
	noCache  bool

	currentConfig *config.Config
	logger        *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "readspeed",
	Short: "Markov-generated texts for reading-speed measurement",
	Long: `readspeed builds an order-k Markov chain from a text corpus and generates
paragraphs of synthetic prose, then times how long it takes to read them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Defaults < config file < READSPEED_* env < flags.
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		currentConfig = cfg
		logger = newLogger(cfg.LogLevel)
		return nil
	},
}

// Execute runs the root command and exits with a status that tells bad
// configuration (2) apart from a bad corpus (3).
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// SetVersion sets the version reported by --version.
func SetVersion(version, commit, buildDate string) {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, markov.ErrInvalidConfiguration):
		return 2
	case errors.Is(err, markov.ErrBadCorpus):
		return 3
	default:
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "./config.json", "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Uint64Var(&seed, "seed", 0, "seed the random source for reproducible output")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "build the chain in memory instead of using the cache database")
}

// generatorOptions returns the options shared by every command that generates text.
func generatorOptions(cmd *cobra.Command) []markov.GeneratorOption {
	opts := []markov.GeneratorOption{markov.WithLogger(logger)}
	if cmd.Flags().Changed("seed") {
		opts = append(opts, markov.WithSeed(seed))
	}
	return opts
}

// newGenerator loads the corpus and chain described by cfg and returns a
// Generator over it.
func newGenerator(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*markov.Generator, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	chain, err := loadChain(ctx, cfg, params.Order)
	if err != nil {
		return nil, err
	}
	return markov.NewGenerator(chain, params, generatorOptions(cmd)...)
}

// loadChain reads the corpus file and returns its chain, going through the
// cache database unless it is disabled.
func loadChain(ctx context.Context, cfg *config.Config, order int) (*markov.Chain, error) {
	corpus, err := os.ReadFile(cfg.CorpusFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	if noCache || cfg.CacheDatabase == "" {
		return markov.BuildCorpusChain(string(corpus), order, markov.NewDefaultTokenizer())
	}

	cache, err := openCache(cfg.CacheDatabase)
	if err != nil {
		return nil, err
	}
	defer cache.Close()

	return cache.store.LoadOrBuild(ctx, cacheName(cfg.CorpusFile, order), string(corpus), order, markov.NewDefaultTokenizer())
}

func cacheName(corpusFile string, order int) string {
	return fmt.Sprintf("%s#%d", corpusFile, order)
}
