package cli

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Run one synchronization pass and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Update(cmd.Context())
	},
}
