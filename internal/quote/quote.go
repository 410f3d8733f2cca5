// Package quote looks up live share prices from an IEX Cloud compatible API.
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol is returned when the upstream has no quote for the symbol
var ErrUnknownSymbol = errors.New("unknown symbol")

// Quote is the current price of a ticker
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Quoter looks up a symbol
type Quoter interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}

// iexQuote is the subset of the /stock/{symbol}/quote response we read
type iexQuote struct {
	Symbol      string          `json:"symbol"`
	CompanyName string          `json:"companyName"`
	LatestPrice decimal.Decimal `json:"latestPrice"`
}

// Client calls the quote API over HTTP
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client; baseURL has no trailing slash, e.g.
// "https://cloud.iexapis.com/stable".
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Lookup fetches the latest price for symbol
func (c *Client) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, ErrUnknownSymbol
	}

	addr := fmt.Sprintf("%s/stock/%s/quote?token=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return Quote{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fetch quote %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, ErrUnknownSymbol
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("fetch quote %s: %s", symbol, resp.Status)
	}

	var result iexQuote
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Quote{}, fmt.Errorf("decode quote %s: %w", symbol, err)
	}
	if result.Symbol == "" || !result.LatestPrice.IsPositive() {
		return Quote{}, ErrUnknownSymbol
	}

	return Quote{
		Symbol: strings.ToUpper(result.Symbol),
		Name:   result.CompanyName,
		Price:  result.LatestPrice,
	}, nil
}
