package cli

import (
	"github.com/spf13/cobra"
)

var wrpCmd = &cobra.Command{
	Use:   "wrp <tokenId>",
	Short: "Resolve the rescue index from an old wrapper token id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		return getApp().Wrapper(cmd.Context(), tokenID)
	},
}
