package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// FloorSample represents one persisted floor-price observation for a
// category at a bucket.
type FloorSample struct {
	Bucket       time.Time
	Category     string
	FloorETH     decimal.Decimal
	ListingCount int
	TokenCount   int
	Status       string
	Error        *string
	CreatedAt    time.Time
}

// AlertRecord captures an emitted alert for de-duplication/auditing.
type AlertRecord struct {
	ID           int64
	SampleTS     time.Time
	Category     string
	FloorETH     decimal.Decimal
	ThresholdETH decimal.Decimal
	Channels     []string
	CreatedAt    time.Time
}
