package opensea

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"herekitty/internal/market"
)

// FetchOrders retrieves all currently-active listings touching any of the
// given tokens in a single request.
func (c *Client) FetchOrders(ctx context.Context, tokenIDs []uint64) ([]market.Order, error) {
	query := url.Values{}
	query.Set("asset_contract_address", c.opts.ContractAddress)
	for _, id := range tokenIDs {
		query.Add("token_ids", strconv.FormatUint(id, 10))
	}

	endpoint := fmt.Sprintf("%s/orders/%s/seaport/listings?%s", c.baseURL, c.opts.Chain, query.Encode())

	var payload ordersResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}

	orders := make([]market.Order, 0, len(payload.Orders))
	for _, raw := range payload.Orders {
		order := market.Order{}
		for _, item := range raw.ProtocolData.Parameters.Consideration {
			amount := decimal.Zero
			if item.StartAmount != "" {
				if parsed, err := decimal.NewFromString(item.StartAmount); err == nil {
					amount = parsed
				}
			}
			order.Consideration = append(order.Consideration, market.Consideration{
				Token:       item.Token,
				StartAmount: amount,
			})
		}
		orders = append(orders, order)
	}
	return orders, nil
}

type ordersResponse struct {
	Orders []struct {
		ProtocolData struct {
			Parameters struct {
				Consideration []struct {
					Token       string `json:"token"`
					StartAmount string `json:"startAmount"`
				} `json:"consideration"`
			} `json:"parameters"`
		} `json:"protocol_data"`
	} `json:"orders"`
}

var _ market.OrderFetcher = (*Client)(nil)
