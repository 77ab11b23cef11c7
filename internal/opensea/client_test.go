package opensea

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"herekitty/internal/market"
)

func testClient(baseURL, apiKey string) *Client {
	return NewClient(Options{
		BaseURL:         baseURL,
		APIKey:          apiKey,
		ContractAddress: "0xc3f733ca98e0dad0386979eb96fb1722a1a05e69",
		Timeout:         time.Second,
		UserAgent:       "test",
	}, zerolog.Nop())
}

func TestFetchEventsSuccess(t *testing.T) {
	var gotKey, gotPath, gotEventType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		gotPath = r.URL.Path
		gotEventType = r.URL.Query().Get("event_type")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"asset_events": []map[string]any{
				{
					"event_type":      "order",
					"order_type":      "listing",
					"event_timestamp": 1000,
					"start_date":      1000,
					"expiration_date": 2000,
					"payment":         map[string]any{"quantity": "1500000000000000000", "decimals": 18},
					"asset":           map[string]any{"opensea_url": "https://opensea.io/assets/ethereum/0xc3f7/42"},
				},
			},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL, "secret")
	events, err := c.FetchEvents(context.Background(), 42, market.EventListing)
	if err != nil {
		t.Fatalf("FetchEvents 应成功: %v", err)
	}
	if gotKey != "secret" {
		t.Fatalf("应发送 X-API-KEY 头, 实际 %q", gotKey)
	}
	if gotEventType != "listing" {
		t.Fatalf("event_type 参数应为 listing, 实际 %q", gotEventType)
	}
	if gotPath == "" || len(events) != 1 {
		t.Fatalf("期望 1 条事件, 实际 %d", len(events))
	}

	ev := events[0]
	if ev.Kind != market.EventListing {
		t.Fatalf("order_type 应覆盖 event_type, 实际 %s", ev.Kind)
	}
	if ev.StartTime != 1000 || ev.ExpirationTime != 2000 || ev.Timestamp != 1000 {
		t.Fatalf("时间字段解析不正确: %+v", ev)
	}
	if ev.PriceAtomic.String() != "1500000000000000000" || ev.PriceDecimals != 18 {
		t.Fatalf("payment 解析不正确: %+v", ev)
	}
	if ev.URL != "https://opensea.io/assets/ethereum/0xc3f7/42" {
		t.Fatalf("opensea_url 解析不正确: %q", ev.URL)
	}
}

func TestFetchEventsOmitsMissingAPIKey(t *testing.T) {
	var hasKey bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasKey = r.Header["X-Api-Key"]
		_ = json.NewEncoder(w).Encode(map[string]any{"asset_events": []any{}})
	}))
	defer srv.Close()

	c := testClient(srv.URL, "")
	if _, err := c.FetchEvents(context.Background(), 1, market.EventSale); err != nil {
		t.Fatalf("未配置 API key 仍应尝试请求: %v", err)
	}
	if hasKey {
		t.Fatal("未配置 API key 时不应发送该请求头")
	}
}

func TestFetchEventsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"errors": []string{"throttled"}})
	}))
	defer srv.Close()

	c := testClient(srv.URL, "secret")
	if _, err := c.FetchEvents(context.Background(), 1, market.EventListing); err == nil {
		t.Fatal("HTTP 429 应返回错误")
	}
}

func TestFetchEventsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "secret")
	if _, err := c.FetchEvents(context.Background(), 1, market.EventListing); err == nil {
		t.Fatal("非法 JSON 应返回错误")
	}
}

func TestFetchOrdersSuccess(t *testing.T) {
	var gotContract string
	var gotTokenIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContract = r.URL.Query().Get("asset_contract_address")
		gotTokenIDs = r.URL.Query()["token_ids"]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"orders": []map[string]any{
				{
					"protocol_data": map[string]any{
						"parameters": map[string]any{
							"consideration": []map[string]any{
								{"token": "0x0000000000000000000000000000000000000000", "startAmount": "900000000000000000"},
								{"token": "0x0000000000000000000000000000000000000000", "startAmount": "100000000000000000"},
							},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := testClient(srv.URL, "secret")
	orders, err := c.FetchOrders(context.Background(), []uint64{1, 2, 3})
	if err != nil {
		t.Fatalf("FetchOrders 应成功: %v", err)
	}
	if gotContract == "" {
		t.Fatal("应携带 asset_contract_address 参数")
	}
	if len(gotTokenIDs) != 3 {
		t.Fatalf("期望 3 个 token_ids 参数, 实际 %v", gotTokenIDs)
	}
	if len(orders) != 1 || len(orders[0].Consideration) != 2 {
		t.Fatalf("订单解析不正确: %+v", orders)
	}
	if orders[0].Consideration[0].StartAmount.String() != "900000000000000000" {
		t.Fatalf("startAmount 解析不正确: %s", orders[0].Consideration[0].StartAmount)
	}
}

func TestRequestDelayPacesCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"asset_events": []any{}})
	}))
	defer srv.Close()

	c := NewClient(Options{
		BaseURL:         srv.URL,
		ContractAddress: "0xc3f7",
		Timeout:         time.Second,
		RequestDelay:    50 * time.Millisecond,
	}, zerolog.Nop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.FetchEvents(context.Background(), 1, market.EventListing); err != nil {
			t.Fatalf("FetchEvents 应成功: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("3 次请求至少应间隔 2 个 delay, 实际耗时 %v", elapsed)
	}
}
