package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Generate the demo comparison report",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env.Service.SampleComparison(cmd.Context()))
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}
