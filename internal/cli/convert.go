package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert AMOUNT FROM TO",
	Short: "Convert an amount from one currency to another",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		if amount < 0 {
			return fmt.Errorf("amount must not be negative")
		}

		return getApp().Convert(cmd.Context(), amount, args[1], args[2])
	},
}
