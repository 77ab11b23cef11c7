package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"herekitty/internal/market"
)

// Floor computes and prints the floor price of one configured category.
func (a *App) Floor(ctx context.Context, category string) error {
	tokenIDs, ok := a.Config.Category(category)
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}

	aggregator := market.NewAggregator(a.newOpenSeaClient(), a.Logger)

	result, err := aggregator.FloorPrice(ctx, tokenIDs, a.Config.OpenSea.BatchSize)
	if errors.Is(err, market.ErrNoListings) {
		fmt.Fprintf(os.Stdout, "no active listings found for %s (%d tokens)\n", category, len(tokenIDs))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s floor: %s ETH (%d listings across %d tokens)\n",
		category, result.Floor.StringFixed(2), result.Count, len(tokenIDs))
	return nil
}
