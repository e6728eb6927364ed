package cli

import (
	"github.com/spf13/cobra"
)

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List the supported currencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Currencies(cmd.Context())
	},
}
