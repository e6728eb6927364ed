package cli

import (
	"github.com/spf13/cobra"

	"ratehub/internal/app"
)

var listBase string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Display the raw persisted rates snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ListOptions{
			Base: listBase,
		}
		return getApp().List(cmd.Context(), opts)
	},
}

func init() {
	listCmd.Flags().StringVar(&listBase, "base", "", "Also value each pair's from-currency in this base")
}
