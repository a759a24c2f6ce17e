package priceusd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client fetches USD token prices from CoinGecko's simple-price endpoint.
type Client struct {
	httpClient *http.Client
	// endpoints maps network name to the network's token_price URL.
	endpoints map[string]string
}

// NewClient builds a Client from the configured network → endpoint table.
func NewClient(endpoints map[string]string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoints:  endpoints,
	}
}

type simplePriceEntry struct {
	USD float64 `json:"usd"`
}

// PriceUSD returns the USD price of a token contract on the given network.
func (c *Client) PriceUSD(ctx context.Context, network, tokenAddress string) (float64, error) {
	endpoint, ok := c.endpoints[network]
	if !ok {
		return 0, fmt.Errorf("network %q has no price endpoint configured", network)
	}

	// CoinGecko keys responses by lowercase contract address.
	contract := strings.ToLower(tokenAddress)

	query := url.Values{}
	query.Set("contract_addresses", contract)
	query.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price endpoint returned %s", resp.Status)
	}

	var payload map[string]simplePriceEntry
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode price response: %w", err)
	}

	entry, ok := payload[contract]
	if !ok {
		return 0, fmt.Errorf("token %s not found in price data", contract)
	}
	return entry.USD, nil
}
