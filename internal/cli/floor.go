package cli

import (
	"github.com/spf13/cobra"
)

var floorCmd = &cobra.Command{
	Use:   "floor <category>",
	Short: "Compute the floor price of a configured category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Floor(cmd.Context(), args[0])
	},
}
