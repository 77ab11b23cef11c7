package market

import (
	"context"

	"github.com/shopspring/decimal"
)

// EventKind labels a marketplace event feed.
type EventKind string

const (
	EventListing  EventKind = "listing"
	EventSale     EventKind = "sale"
	EventTransfer EventKind = "transfer"
)

// Event is one observed marketplace event for a token. StartTime,
// ExpirationTime, PriceAtomic, PriceDecimals and URL are only populated for
// listing events.
type Event struct {
	Kind           EventKind
	Timestamp      int64
	StartTime      int64
	ExpirationTime int64
	PriceAtomic    decimal.Decimal
	PriceDecimals  int32
	URL            string
}

// Consideration is one payment component of an order.
type Consideration struct {
	Token       string
	StartAmount decimal.Decimal
}

// Order is a currently-active marketplace order touching a token.
type Order struct {
	Consideration []Consideration
}

// EventFetcher retrieves the event feed of one kind for a single token.
type EventFetcher interface {
	FetchEvents(ctx context.Context, tokenID uint64, kind EventKind) ([]Event, error)
}

// OrderFetcher retrieves all currently-active orders touching any of the
// given tokens.
type OrderFetcher interface {
	FetchOrders(ctx context.Context, tokenIDs []uint64) ([]Order, error)
}

// ListingStatus is the derived answer to "is this token listed right now".
// Price and URL are only meaningful when Active is true. It is computed fresh
// on every resolution and never cached.
type ListingStatus struct {
	TokenID uint64
	Active  bool
	Price   decimal.Decimal
	URL     string
}
