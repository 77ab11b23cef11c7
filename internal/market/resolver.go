package market

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrInvalidTokenID rejects a resolution before any fetch is attempted.
var ErrInvalidTokenID = errors.New("market: token id must be positive")

// Resolver answers whether a token has an active marketplace listing by
// reconciling the listing, sale, and transfer event feeds.
type Resolver struct {
	events EventFetcher
	logger zerolog.Logger
}

// NewResolver constructs a listing resolver around an event fetcher.
func NewResolver(events EventFetcher, logger zerolog.Logger) *Resolver {
	return &Resolver{
		events: events,
		logger: logger.With().Str("component", "listing_resolver").Logger(),
	}
}

// ResolveListing reports the current listing status of a token at the given
// Unix time. The three feeds are fetched sequentially; a feed that fails is
// treated as empty, so a sale or transfer the API failed to return can make
// the answer optimistically "active". That trade-off is deliberate: this is a
// read-only informational query and "not listed" beats a visible error.
func (r *Resolver) ResolveListing(ctx context.Context, tokenID uint64, now int64) (ListingStatus, error) {
	if tokenID == 0 {
		return ListingStatus{}, ErrInvalidTokenID
	}

	status := ListingStatus{TokenID: tokenID}

	listings := r.fetchFeed(ctx, tokenID, EventListing)
	sales := r.fetchFeed(ctx, tokenID, EventSale)
	transfers := r.fetchFeed(ctx, tokenID, EventTransfer)

	candidate, found := latestListing(listings)
	if !found {
		return status, nil
	}

	if candidate.StartTime > now || now >= candidate.ExpirationTime {
		return status, nil
	}

	// A sale or transfer after the listing was created means the token
	// changed hands and the listing is stale even inside its window.
	if anyEventAfter(sales, candidate.StartTime) || anyEventAfter(transfers, candidate.StartTime) {
		return status, nil
	}

	status.Active = true
	status.Price = listingPrice(candidate)
	status.URL = candidate.URL
	return status, nil
}

func (r *Resolver) fetchFeed(ctx context.Context, tokenID uint64, kind EventKind) []Event {
	events, err := r.events.FetchEvents(ctx, tokenID, kind)
	if err != nil {
		r.logger.Warn().Err(err).
			Uint64("token_id", tokenID).
			Str("kind", string(kind)).
			Msg("event feed fetch failed; treating as empty")
		return nil
	}
	return events
}

// latestListing selects the listing-kind event with the greatest start time.
// Feeds may mix event kinds and are not guaranteed to be ordered, so this
// never trusts the feed position.
func latestListing(events []Event) (Event, bool) {
	var best Event
	found := false
	for _, ev := range events {
		if ev.Kind != EventListing {
			continue
		}
		if !found || ev.StartTime > best.StartTime {
			best = ev
			found = true
		}
	}
	return best, found
}

func anyEventAfter(events []Event, ts int64) bool {
	for _, ev := range events {
		if ev.Timestamp > ts {
			return true
		}
	}
	return false
}

func listingPrice(ev Event) decimal.Decimal {
	return ev.PriceAtomic.Shift(-ev.PriceDecimals).Round(2)
}
