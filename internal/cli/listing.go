package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var listingCmd = &cobra.Command{
	Use:   "listing <tokenId>",
	Short: "Check whether a MoonCat is currently listed for sale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenID, err := parseTokenID(args[0])
		if err != nil {
			return err
		}
		return getApp().Listing(cmd.Context(), tokenID)
	},
}

func parseTokenID(raw string) (uint64, error) {
	tokenID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token id %q: must be a non-negative integer", raw)
	}
	return tokenID, nil
}
