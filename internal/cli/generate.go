package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CTAG07/readspeed/internal/results"
)

var outDir string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a text blob from the corpus",
	Long: `Generate builds (or loads from the cache) the chain for the configured
corpus and prints NUM_PARAGRAPHS paragraphs of generated text. With --out
the text is written to a randomly named file in that directory instead and
the path is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		g, err := newGenerator(ctx, cmd, currentConfig)
		if err != nil {
			return err
		}
		text, err := g.Blob(ctx)
		if err != nil {
			return err
		}

		if outDir == "" {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		}
		path, err := results.WriteBlob(outDir, text)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	},
}

func init() {
	generateCmd.Flags().StringVarP(&outDir, "out", "o", "", "write the text to a randomly named file in this directory")
	rootCmd.AddCommand(generateCmd)
}
