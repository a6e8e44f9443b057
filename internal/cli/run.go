package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/CTAG07/readspeed/internal/results"
	"github.com/CTAG07/readspeed/internal/session"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a timed reading session",
	Long: `Run generates a text, saves it in the data directory, shows it and
times how long it takes to read. The reading is appended to the results
CSV file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := currentConfig

		if err := results.EnsureLayout(cfg.DataDirectory, cfg.ResultPath(), cfg.ResultEntries); err != nil {
			return err
		}

		g, err := newGenerator(ctx, cmd, cfg)
		if err != nil {
			return err
		}
		text, err := g.Blob(ctx)
		if err != nil {
			return err
		}
		path, err := results.WriteBlob(cfg.DataDirectory, text)
		if err != nil {
			return err
		}
		logger.Debug("Text saved", "path", path)

		recorder := results.NewRecorder(cfg.ResultPath())
		recorder.SetLogger(logger)

		s := session.New(os.Stdin, cmd.OutOrStdout(), recorder,
			session.WithReader(cfg.ResultAuthor, cfg.LanguageProficiency),
			session.WithLogger(logger),
		)
		_, err = s.Run(ctx, path, text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
