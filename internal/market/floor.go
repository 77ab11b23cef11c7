package market

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	// DefaultBatchSize caps how many token ids one batched order query carries.
	DefaultBatchSize = 30

	nativeAssetAddress = "0x0000000000000000000000000000000000000000"
	nativeAssetShift   = -18
)

var (
	// ErrNoListings indicates no valid active listing was observed.
	ErrNoListings = errors.New("market: no active listings")
	// ErrEmptyTokenSet rejects an aggregation before any fetch is attempted.
	ErrEmptyTokenSet = errors.New("market: token set must not be empty")
)

// FloorResult carries the minimum observed price and how many valid listings
// contributed to it. Count is informational; partial chunk failures lower it.
type FloorResult struct {
	Floor decimal.Decimal
	Count int
}

// Aggregator computes the floor price over a set of tokens with few, large
// order queries instead of one per token.
type Aggregator struct {
	orders OrderFetcher
	logger zerolog.Logger
}

// NewAggregator constructs a floor aggregator around an order fetcher.
func NewAggregator(orders OrderFetcher, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		orders: orders,
		logger: logger.With().Str("component", "floor_aggregator").Logger(),
	}
}

// FloorPrice returns the minimum native-currency price among all active
// orders touching the given tokens, querying in chunks of at most batchSize.
// Batching never changes the result, only the request shape. A chunk whose
// fetch fails is skipped; its tokens simply do not contribute.
func (a *Aggregator) FloorPrice(ctx context.Context, tokenIDs []uint64, batchSize int) (FloorResult, error) {
	if len(tokenIDs) == 0 {
		return FloorResult{}, ErrEmptyTokenSet
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	prices := make([]decimal.Decimal, 0, len(tokenIDs))
	for start := 0; start < len(tokenIDs); start += batchSize {
		end := start + batchSize
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		chunk := tokenIDs[start:end]

		orders, err := a.orders.FetchOrders(ctx, chunk)
		if err != nil {
			a.logger.Warn().Err(err).
				Int("chunk_start", start).
				Int("chunk_size", len(chunk)).
				Msg("order batch fetch failed; skipping chunk")
			continue
		}

		for _, order := range orders {
			price := orderPrice(order)
			if price.IsPositive() {
				prices = append(prices, price)
			}
		}
	}

	if len(prices) == 0 {
		return FloorResult{}, ErrNoListings
	}

	floor := prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(floor) {
			floor = p
		}
	}
	return FloorResult{Floor: floor, Count: len(prices)}, nil
}

// orderPrice sums the consideration components paid in the native currency.
// Orders priced in other assets come out zero and are dropped by the caller
// as non-comparable.
func orderPrice(order Order) decimal.Decimal {
	total := decimal.Zero
	for _, c := range order.Consideration {
		if !strings.EqualFold(c.Token, nativeAssetAddress) {
			continue
		}
		total = total.Add(c.StartAmount)
	}
	return total.Shift(nativeAssetShift)
}
