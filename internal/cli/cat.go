package cli

import (
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <tokenId>",
	Short: "Fetch details for a specific MoonCat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		return getApp().Cat(cmd.Context(), tokenID)
	},
}

var dnaCmd = &cobra.Command{
	Use:   "dna <tokenId>",
	Short: "Print the DNA image URL for a specific token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		return getApp().DNA(tokenID)
	},
}
