package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const yahooQuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"

// YahooClient fetches quotes from the Yahoo Finance quote API.
type YahooClient struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewYahooClient creates a new Yahoo Finance quote client. The timeout
// bounds the whole batched request.
func NewYahooClient(timeout time.Duration, log zerolog.Logger) *YahooClient {
	return &YahooClient{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: yahooQuoteURL,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// yahooQuoteResponse represents the response from the Yahoo quote API
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// GetQuotes fetches current prices for all symbols in a single request.
// Symbols Yahoo does not return, or returns without a usable price,
// are left out of the result.
func (c *YahooClient) GetQuotes(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	params := url.Values{}
	params.Add("symbols", strings.Join(symbols, ","))
	params.Add("fields", "symbol,regularMarketPrice")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Yahoo Finance API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var result yahooQuoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("Yahoo Finance API error: %v", result.QuoteResponse.Error)
	}

	prices := make(map[string]decimal.Decimal, len(result.QuoteResponse.Result))
	for _, quote := range result.QuoteResponse.Result {
		if quote.Symbol == "" || quote.RegularMarketPrice == nil || *quote.RegularMarketPrice <= 0 {
			continue
		}
		prices[quote.Symbol] = decimal.NewFromFloat(*quote.RegularMarketPrice)
	}

	c.log.Debug().
		Int("requested", len(symbols)).
		Int("returned", len(prices)).
		Msg("Fetched quotes")

	return prices, nil
}
