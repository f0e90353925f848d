package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"options-scalping-bot/internal/market"
)

// ChainClient fetches option-chain open interest from the broker REST
// API, feeding the periodic context refresh.
type ChainClient struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewChainClient builds an option-chain fetcher.
func NewChainClient(baseURL, accessToken string) *ChainClient {
	if baseURL == "" {
		baseURL = "https://api.upstox.com/v2"
	}
	return &ChainClient{
		baseURL:     baseURL,
		accessToken: accessToken,
		client:      &http.Client{Timeout: 8 * time.Second},
	}
}

type chainResponse struct {
	Status string `json:"status"`
	Data   []struct {
		StrikePrice float64 `json:"strike_price"`
		CallOptions struct {
			MarketData struct {
				OI float64 `json:"oi"`
			} `json:"market_data"`
		} `json:"call_options"`
		PutOptions struct {
			MarketData struct {
				OI float64 `json:"oi"`
			} `json:"market_data"`
		} `json:"put_options"`
	} `json:"data"`
}

// FetchOI sums call and put open interest across the chain and returns a
// timestamped snapshot with the put/call ratio.
func (c *ChainClient) FetchOI(ctx context.Context, instrumentKey, expiry string) (market.OISnapshot, error) {
	q := url.Values{}
	q.Set("instrument_key", instrumentKey)
	q.Set("expiry_date", expiry)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/option/chain?"+q.Encode(), nil)
	if err != nil {
		return market.OISnapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return market.OISnapshot{}, fmt.Errorf("fetch option chain: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return market.OISnapshot{}, fmt.Errorf("fetch option chain: status %d", resp.StatusCode)
	}

	var parsed chainResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return market.OISnapshot{}, fmt.Errorf("decode option chain: %w", err)
	}

	var callOI, putOI float64
	for _, row := range parsed.Data {
		callOI += row.CallOptions.MarketData.OI
		putOI += row.PutOptions.MarketData.OI
	}

	snap := market.OISnapshot{
		Timestamp: time.Now(),
		CallOI:    callOI,
		PutOI:     putOI,
	}
	if callOI > 0 {
		snap.PCR = putOI / callOI
	}
	return snap, nil
}
