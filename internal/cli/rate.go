package cli

import (
	"github.com/spf13/cobra"
)

var rateCmd = &cobra.Command{
	Use:   "rate FROM TO",
	Short: "Resolve the exchange rate between two currencies",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Rate(cmd.Context(), args[0], args[1])
	},
}
