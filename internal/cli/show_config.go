package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the merged configuration",
	Long: `Config prints the configuration in effect after applying defaults, the
config file, READSPEED_* environment variables and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(currentConfig)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
