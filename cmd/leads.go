package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and manage captured leads",
}

var leadsCursor string
var leadsLimit int

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads in submission order",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		leads, next, err := env.Service.ListLeads(cmd.Context(), leadsCursor, leadsLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(leads); err != nil {
			return err
		}
		if next != "" {
			zap.L().Info("more leads available", zap.String("cursor", next))
		}
		return nil
	},
}

var leadsDeleteCmd = &cobra.Command{
	Use:   "delete <lead-id>",
	Short: "Delete a lead with its report and tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.DeleteLead(cmd.Context(), args[0]); err != nil {
			return err
		}
		zap.L().Info("lead deleted", zap.String("lead_id", args[0]))
		return nil
	},
}

func init() {
	leadsListCmd.Flags().StringVar(&leadsCursor, "cursor", "", "pagination cursor")
	leadsListCmd.Flags().IntVar(&leadsLimit, "limit", 50, "page size")
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsDeleteCmd)
	rootCmd.AddCommand(leadsCmd)
}
