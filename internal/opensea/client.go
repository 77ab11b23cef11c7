package opensea

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const apiKeyHeader = "X-API-KEY"

// Options parameterise the OpenSea client.
type Options struct {
	BaseURL         string
	APIKey          string
	ContractAddress string
	Chain           string
	Timeout         time.Duration
	RequestDelay    time.Duration
	UserAgent       string
}

// Client talks to the OpenSea REST API. Every request first waits on a shared
// rate limiter sized from RequestDelay, which is what keeps the sequential
// feed fetches under the provider's per-key limit.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient constructs an OpenSea client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.opensea.io/api/v2"
	}

	if opts.Chain == "" {
		opts.Chain = "ethereum"
	}

	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "opensea_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// getJSON waits for the limiter, performs one authenticated GET, and decodes
// the response into out. The API key header is omitted when not configured;
// the call is still attempted unauthenticated.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "herekitty/1.0")
	}
	if c.opts.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.opts.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorResponse struct {
	Errors []string `json:"errors"`
	Detail string   `json:"detail"`
}

func parseHTTPError(resp *http.Response) error {
	var apiErr errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil {
		if len(apiErr.Errors) > 0 {
			return fmt.Errorf("opensea api error (%d): %s", resp.StatusCode, strings.Join(apiErr.Errors, "; "))
		}
		if apiErr.Detail != "" {
			return fmt.Errorf("opensea api error (%d): %s", resp.StatusCode, apiErr.Detail)
		}
	}
	return fmt.Errorf("opensea api error (%d)", resp.StatusCode)
}
