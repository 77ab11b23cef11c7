package market

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubEventFetcher struct {
	feeds map[EventKind][]Event
	errs  map[EventKind]error
	calls []EventKind
}

func (s *stubEventFetcher) FetchEvents(ctx context.Context, tokenID uint64, kind EventKind) ([]Event, error) {
	s.calls = append(s.calls, kind)
	if err, ok := s.errs[kind]; ok {
		return nil, err
	}
	return s.feeds[kind], nil
}

func wei(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func activeListing(start, expiration int64) Event {
	return Event{
		Kind:           EventListing,
		Timestamp:      start,
		StartTime:      start,
		ExpirationTime: expiration,
		PriceAtomic:    wei("1500000000000000000"),
		PriceDecimals:  18,
		URL:            "https://opensea.io/assets/ethereum/0xc3f7/42",
	}
}

func TestResolveListingRejectsZeroToken(t *testing.T) {
	stub := &stubEventFetcher{}
	r := NewResolver(stub, zerolog.Nop())

	if _, err := r.ResolveListing(context.Background(), 0, 1500); !errors.Is(err, ErrInvalidTokenID) {
		t.Fatalf("token id 为 0 时应返回 ErrInvalidTokenID, 实际 %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("前置校验失败时不应发起任何请求, 实际 %d 次", len(stub.calls))
	}
}

func TestResolveListingNoEvents(t *testing.T) {
	r := NewResolver(&stubEventFetcher{}, zerolog.Nop())

	status, err := r.ResolveListing(context.Background(), 42, 1500)
	if err != nil {
		t.Fatalf("空 feed 不应报错: %v", err)
	}
	if status.Active {
		t.Fatal("没有任何事件时应判定为未挂单")
	}
	if status.TokenID != 42 {
		t.Fatalf("应携带 token id, 实际 %d", status.TokenID)
	}
}

func TestResolveListingActiveWindow(t *testing.T) {
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing: {activeListing(1000, 2000)},
	}}
	r := NewResolver(stub, zerolog.Nop())

	status, err := r.ResolveListing(context.Background(), 42, 1500)
	if err != nil {
		t.Fatalf("ResolveListing 应成功: %v", err)
	}
	if !status.Active {
		t.Fatal("窗口内且无后续转移, 应判定为挂单中")
	}
	if status.Price.StringFixed(2) != "1.50" {
		t.Fatalf("期望价格 1.50, 实际 %s", status.Price.StringFixed(2))
	}
	if status.URL == "" {
		t.Fatal("挂单中应返回 marketplace URL")
	}
}

func TestResolveListingExpired(t *testing.T) {
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing: {activeListing(1000, 2000)},
	}}
	r := NewResolver(stub, zerolog.Nop())

	status, err := r.ResolveListing(context.Background(), 42, 2500)
	if err != nil {
		t.Fatalf("ResolveListing 应成功: %v", err)
	}
	if status.Active {
		t.Fatal("now 超过 expiration 后应判定为未挂单")
	}
}

func TestResolveListingExpirationBoundaryExclusive(t *testing.T) {
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing: {activeListing(1000, 2000)},
	}}
	r := NewResolver(stub, zerolog.Nop())

	status, _ := r.ResolveListing(context.Background(), 42, 2000)
	if status.Active {
		t.Fatal("now == expiration 应判定为未挂单 (上界开区间)")
	}

	status, _ = r.ResolveListing(context.Background(), 42, 1000)
	if !status.Active {
		t.Fatal("now == start 应判定为挂单中 (下界闭区间)")
	}
}

func TestResolveListingInvalidatedBySale(t *testing.T) {
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing: {activeListing(1000, 2000)},
		EventSale:    {{Kind: EventSale, Timestamp: 1100}},
	}}
	r := NewResolver(stub, zerolog.Nop())

	status, err := r.ResolveListing(context.Background(), 42, 1500)
	if err != nil {
		t.Fatalf("ResolveListing 应成功: %v", err)
	}
	if status.Active {
		t.Fatal("挂单后发生 sale 应强制判定为未挂单")
	}
}

func TestResolveListingInvalidatedByTransfer(t *testing.T) {
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing:  {activeListing(1000, 2000)},
		EventTransfer: {{Kind: EventTransfer, Timestamp: 1999}},
	}}
	r := NewResolver(stub, zerolog.Nop())

	status, _ := r.ResolveListing(context.Background(), 42, 1500)
	if status.Active {
		t.Fatal("挂单后发生 transfer 应强制判定为未挂单")
	}
}

func TestResolveListingOlderActivityDoesNotInvalidate(t *testing.T) {
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing:  {activeListing(1000, 2000)},
		EventSale:     {{Kind: EventSale, Timestamp: 900}},
		EventTransfer: {{Kind: EventTransfer, Timestamp: 1000}},
	}}
	r := NewResolver(stub, zerolog.Nop())

	status, _ := r.ResolveListing(context.Background(), 42, 1500)
	if !status.Active {
		t.Fatal("早于 startTime 的 sale/transfer 不应使挂单失效")
	}
}

func TestResolveListingPicksLatestStartTime(t *testing.T) {
	older := activeListing(1000, 2000)
	newer := activeListing(1200, 2200)
	newer.PriceAtomic = wei("800000000000000000")

	for name, feed := range map[string][]Event{
		"newer_first": {newer, older},
		"older_first": {older, newer},
	} {
		stub := &stubEventFetcher{feeds: map[EventKind][]Event{EventListing: feed}}
		r := NewResolver(stub, zerolog.Nop())

		status, _ := r.ResolveListing(context.Background(), 42, 1500)
		if !status.Active {
			t.Fatalf("%s: 应判定为挂单中", name)
		}
		if status.Price.StringFixed(2) != "0.80" {
			t.Fatalf("%s: 应选择 startTime 最大的挂单, 价格 0.80, 实际 %s", name, status.Price.StringFixed(2))
		}
	}
}

func TestResolveListingIgnoresNonListingKinds(t *testing.T) {
	// The listing feed can mix sub-kinds; only listing entries are candidates.
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing: {
			{Kind: EventSale, Timestamp: 1400, StartTime: 1400, ExpirationTime: 9000},
			activeListing(1000, 2000),
		},
	}}
	r := NewResolver(stub, zerolog.Nop())

	status, _ := r.ResolveListing(context.Background(), 42, 1500)
	if !status.Active {
		t.Fatal("应忽略非 listing 类型的条目并选中真正的挂单")
	}
	if status.Price.StringFixed(2) != "1.50" {
		t.Fatalf("期望价格 1.50, 实际 %s", status.Price.StringFixed(2))
	}
}

func TestResolveListingFeedFailureDegradesToEmpty(t *testing.T) {
	stub := &stubEventFetcher{
		feeds: map[EventKind][]Event{
			EventListing: {activeListing(1000, 2000)},
		},
		errs: map[EventKind]error{
			EventSale: errors.New("status 429"),
		},
	}
	r := NewResolver(stub, zerolog.Nop())

	status, err := r.ResolveListing(context.Background(), 42, 1500)
	if err != nil {
		t.Fatalf("sale feed 失败不应向外抛错: %v", err)
	}
	if !status.Active {
		t.Fatal("sale feed 失败应按零 sale 事件处理")
	}
}

func TestResolveListingPriceRoundsHalfUp(t *testing.T) {
	ev := activeListing(1000, 2000)
	ev.PriceAtomic = wei("1255")
	ev.PriceDecimals = 3

	stub := &stubEventFetcher{feeds: map[EventKind][]Event{EventListing: {ev}}}
	r := NewResolver(stub, zerolog.Nop())

	status, _ := r.ResolveListing(context.Background(), 42, 1500)
	if status.Price.StringFixed(2) != "1.26" {
		t.Fatalf("1.255 应半进位到 1.26, 实际 %s", status.Price.StringFixed(2))
	}
}

func TestResolveListingFetchesFeedsSequentially(t *testing.T) {
	stub := &stubEventFetcher{feeds: map[EventKind][]Event{
		EventListing: {activeListing(1000, 2000)},
	}}
	r := NewResolver(stub, zerolog.Nop())

	if _, err := r.ResolveListing(context.Background(), 42, 1500); err != nil {
		t.Fatalf("ResolveListing 应成功: %v", err)
	}

	want := []EventKind{EventListing, EventSale, EventTransfer}
	if len(stub.calls) != len(want) {
		t.Fatalf("期望 %d 次请求, 实际 %d", len(want), len(stub.calls))
	}
	for i, kind := range want {
		if stub.calls[i] != kind {
			t.Fatalf("第 %d 次请求应为 %s, 实际 %s", i+1, kind, stub.calls[i])
		}
	}
}
