package opensea

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"herekitty/internal/market"
)

// FetchEvents retrieves one event feed for a single token. The feed is
// returned as-is: callers must not assume any ordering.
func (c *Client) FetchEvents(ctx context.Context, tokenID uint64, kind market.EventKind) ([]market.Event, error) {
	url := fmt.Sprintf("%s/events/chain/%s/contract/%s/nfts/%d?event_type=%s",
		c.baseURL, c.opts.Chain, c.opts.ContractAddress, tokenID, kind)

	var payload eventsResponse
	if err := c.getJSON(ctx, url, &payload); err != nil {
		return nil, fmt.Errorf("fetch %s events: %w", kind, err)
	}

	events := make([]market.Event, 0, len(payload.AssetEvents))
	for _, raw := range payload.AssetEvents {
		events = append(events, raw.toMarketEvent())
	}
	return events, nil
}

type eventsResponse struct {
	AssetEvents []assetEvent `json:"asset_events"`
}

type assetEvent struct {
	EventType      string `json:"event_type"`
	OrderType      string `json:"order_type"`
	EventTimestamp int64  `json:"event_timestamp"`
	StartDate      int64  `json:"start_date"`
	ExpirationDate int64  `json:"expiration_date"`
	Payment        struct {
		Quantity string `json:"quantity"`
		Decimals int32  `json:"decimals"`
	} `json:"payment"`
	Asset struct {
		OpenSeaURL string `json:"opensea_url"`
	} `json:"asset"`
}

func (e assetEvent) toMarketEvent() market.Event {
	// order_type carries the sub-kind when the feed mixes entries.
	kind := e.EventType
	if e.OrderType != "" {
		kind = e.OrderType
	}

	quantity := decimal.Zero
	if e.Payment.Quantity != "" {
		if parsed, err := decimal.NewFromString(e.Payment.Quantity); err == nil {
			quantity = parsed
		}
	}

	return market.Event{
		Kind:           market.EventKind(kind),
		Timestamp:      e.EventTimestamp,
		StartTime:      e.StartDate,
		ExpirationTime: e.ExpirationDate,
		PriceAtomic:    quantity,
		PriceDecimals:  e.Payment.Decimals,
		URL:            e.Asset.OpenSeaURL,
	}
}

var _ market.EventFetcher = (*Client)(nil)
