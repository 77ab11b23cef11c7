package mooncat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const accessorizedSuffix = " (accessorized)"

// ErrNotFound indicates the metadata service has no record for the token.
var ErrNotFound = errors.New("mooncat: token not found")

// Options parameterise the MoonCat metadata client.
type Options struct {
	BaseURL      string
	DNAGateway   string
	ChainStation string
	Timeout      time.Duration
	UserAgent    string
}

// Traits is the metadata record of one MoonCat. RescueIndex and CatID are
// canonically interchangeable; this service is the only place the conversion
// happens.
type Traits struct {
	Name        string
	RescueIndex uint64
	CatID       string
}

// Client talks to the MoonCat community metadata API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a metadata client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.mooncat.community"
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "mooncat_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// TraitsByRescueIndex looks up metadata by the integer rescue index.
func (c *Client) TraitsByRescueIndex(ctx context.Context, rescueIndex uint64) (Traits, error) {
	return c.fetchTraits(ctx, strconv.FormatUint(rescueIndex, 10))
}

// TraitsByCatID looks up metadata by the hexadecimal cat id, with or without
// the 0x prefix.
func (c *Client) TraitsByCatID(ctx context.Context, catID string) (Traits, error) {
	return c.fetchTraits(ctx, strings.TrimPrefix(catID, "0x"))
}

func (c *Client) fetchTraits(ctx context.Context, id string) (Traits, error) {
	url := fmt.Sprintf("%s/traits/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Traits{}, err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Traits{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Traits{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Traits{}, fmt.Errorf("mooncat api error (%d)", resp.StatusCode)
	}

	var payload traitsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Traits{}, fmt.Errorf("decode traits: %w", err)
	}

	name := strings.ReplaceAll(payload.Details.Name, accessorizedSuffix, "")
	return Traits{
		Name:        name,
		RescueIndex: payload.Details.RescueIndex,
		CatID:       payload.Details.CatID,
	}, nil
}

// ImageURL resolves the final image URL for a token, following redirects.
func (c *Client) ImageURL(ctx context.Context, rescueIndex uint64) (string, error) {
	url := fmt.Sprintf("%s/regular-image/%d", c.baseURL, rescueIndex)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mooncat api error (%d)", resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}

// DNAImageURL renders the IPFS gateway URL of the DNA image. Purely
// templated; the gateway is never queried.
func (c *Client) DNAImageURL(rescueIndex uint64) string {
	gateway := strings.TrimRight(c.opts.DNAGateway, "/")
	return fmt.Sprintf("%s/%d.png", gateway, rescueIndex)
}

// ChainStationURL renders the ChainStation page URL for a token.
func (c *Client) ChainStationURL(rescueIndex uint64) string {
	base := strings.TrimRight(c.opts.ChainStation, "/")
	if base == "" {
		base = "https://chainstation.mooncatrescue.com"
	}
	return fmt.Sprintf("%s/mooncats/%d", base, rescueIndex)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "herekitty/1.0")
	}
}

type traitsResponse struct {
	Details struct {
		Name        string `json:"name"`
		RescueIndex uint64 `json:"rescueIndex"`
		CatID       string `json:"catId"`
	} `json:"details"`
}
