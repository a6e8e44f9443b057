package cli

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

var exportFile string

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Inspect the Markov chain built from the corpus",
}

var chainStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics about the corpus chain and the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := currentConfig

		chain, err := loadChain(ctx, cfg, cfg.ChainOrder)
		if err != nil {
			return err
		}
		st := chain.Stats()

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Corpus:      %s\n", cfg.CorpusFile)
		_, _ = fmt.Fprintf(out, "Order:       %d\n", chain.Order())
		_, _ = fmt.Fprintf(out, "Keys:        %s\n", humanize.Comma(int64(st.Keys)))
		_, _ = fmt.Fprintf(out, "Transitions: %s\n", humanize.Comma(int64(st.Transitions)))
		_, _ = fmt.Fprintf(out, "Start keys:  %s\n", humanize.Comma(int64(st.StartKeys)))
		_, _ = fmt.Fprintf(out, "Vocabulary:  %s\n", humanize.Comma(int64(st.Vocabulary)))

		if noCache || cfg.CacheDatabase == "" {
			return nil
		}
		return printCacheStats(cmd, out)
	},
}

func printCacheStats(cmd *cobra.Command, out io.Writer) error {
	cache, err := openCache(currentConfig.CacheDatabase)
	if err != nil {
		return err
	}
	defer cache.Close()

	st, err := cache.store.GetStats(cmd.Context())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\nCache:       %s (%s chains, %s tokens, %s prefixes)\n",
		currentConfig.CacheDatabase,
		humanize.Comma(int64(len(st.Chains))),
		humanize.Comma(int64(st.VocabSize)),
		humanize.Comma(int64(st.PrefixSize)),
	)
	chains := st.Chains
	sort.Slice(chains, func(i, j int) bool { return chains[i].Name < chains[j].Name })
	for _, info := range chains {
		_, _ = fmt.Fprintf(out, "  %-40s order %d, %s links\n",
			info.Name, info.Order, humanize.Comma(int64(st.Links[info.Id])))
	}
	return nil
}

var chainExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the corpus chain as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := currentConfig
		chain, err := loadChain(cmd.Context(), cfg, cfg.ChainOrder)
		if err != nil {
			return err
		}

		if exportFile == "" {
			return chain.Export(cmd.OutOrStdout())
		}
		var buf bytes.Buffer
		if err = chain.Export(&buf); err != nil {
			return err
		}
		if err = atomic.WriteFile(exportFile, &buf); err != nil {
			return fmt.Errorf("failed to write chain export: %w", err)
		}
		logger.Info("Chain exported", "path", exportFile, "keys", chain.Len())
		return nil
	},
}

func init() {
	chainExportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "write to this file instead of stdout")
	chainCmd.AddCommand(chainStatsCmd, chainExportCmd)
	rootCmd.AddCommand(chainCmd)
}
