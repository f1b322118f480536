package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Inspect and override vendor pricing",
}

var pricingListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show effective pricing for every vendor",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(env.Resolver.List(cmd.Context()))
	},
}

var overrideQuoteOnly bool

var pricingSetCmd = &cobra.Command{
	Use:   "set <vendor-id> <base-price-per-month>",
	Short: "Override a vendor's base price",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		price, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return eris.Wrapf(err, "parse price %q", args[1])
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Resolver.SetOverride(cmd.Context(), args[0], price, overrideQuoteOnly); err != nil {
			return err
		}
		zap.L().Info("pricing override saved",
			zap.String("vendor_id", args[0]),
			zap.Float64("base_price_per_month", price),
		)
		return nil
	},
}

func init() {
	pricingSetCmd.Flags().BoolVar(&overrideQuoteOnly, "quote-only", false, "mark the vendor as quote-only")
	pricingCmd.AddCommand(pricingListCmd)
	pricingCmd.AddCommand(pricingSetCmd)
	rootCmd.AddCommand(pricingCmd)
}
