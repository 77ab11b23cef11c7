package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"herekitty/internal/market"
)

// Listing resolves and prints the current listing status of one token.
func (a *App) Listing(ctx context.Context, tokenID uint64) error {
	resolver := market.NewResolver(a.newOpenSeaClient(), a.Logger)

	status, err := resolver.ResolveListing(ctx, tokenID, time.Now().Unix())
	if err != nil {
		return err
	}

	if !status.Active {
		fmt.Fprintf(os.Stdout, "MoonCat #%d is not listed for sale\n", status.TokenID)
		return nil
	}

	fmt.Fprintf(os.Stdout, "MoonCat #%d is listed for %s ETH\n", status.TokenID, status.Price.StringFixed(2))
	if status.URL != "" {
		fmt.Fprintln(os.Stdout, status.URL)
	}
	return nil
}
