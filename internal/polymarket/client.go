// Package polymarket fetches active binary markets from the Polymarket Gamma API.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
)

// DefaultBaseURL is the public Gamma API endpoint.
const DefaultBaseURL = "https://gamma-api.polymarket.com"

const pageSize = 100

// Client provides access to the Polymarket Gamma API
type Client struct {
	apiBaseURL string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	mu      sync.Mutex
	skipped []Skipped
}

// Skipped records a market dropped while parsing an API page.
type Skipped struct {
	MarketID string
	Reason   string
	At       time.Time
}

// GammaMarket is a market as returned by GET /markets. Outcomes and prices
// arrive as JSON-encoded strings and volumes as either numbers or strings.
type GammaMarket struct {
	ID            string     `json:"id"`
	ConditionID   string     `json:"conditionId"`
	Question      string     `json:"question"`
	Description   string     `json:"description"`
	Slug          string     `json:"slug"`
	Outcomes      stringList `json:"outcomes"`
	OutcomePrices stringList `json:"outcomePrices"`
	Volume        flexFloat  `json:"volume"`
	Volume24hr    flexFloat  `json:"volume24hr"`
	EndDate       string     `json:"endDate"`
	Active        *bool      `json:"active"`
	Closed        bool       `json:"closed"`
}

// NewClient creates a new Polymarket client
func NewClient(apiBaseURL string, timeout time.Duration) *Client {
	if apiBaseURL == "" {
		apiBaseURL = DefaultBaseURL
	}
	return &Client{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 3,
		retryDelay: time.Second,
		// Two requests per second between pages.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "gamma-api",
			Interval: time.Minute,
			Timeout:  time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// FetchActiveMarkets pages through open markets until maxMarkets binary
// markets are collected or the API runs out, then sorts them by 24h volume.
func (c *Client) FetchActiveMarkets(ctx context.Context, maxMarkets int) ([]*models.Market, error) {
	if maxMarkets <= 0 {
		return nil, nil
	}

	var all []*models.Market
	for offset := 0; len(all) < maxMarkets; offset += pageSize {
		page, raw, err := c.fetchPage(ctx, offset)
		if err != nil {
			if offset == 0 {
				return nil, err
			}
			logger.Warn("Stopping pagination at offset %d: %v", offset, err)
			break
		}
		all = append(all, page...)
		if raw < pageSize {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Volume24h > all[j].Volume24h
	})
	if len(all) > maxMarkets {
		all = all[:maxMarkets]
	}

	logger.Info("Fetched %d markets (skipped %d)", len(all), c.skippedCount())
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]*models.Market, int, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("active", "true")
	q.Set("closed", "false")

	resp, err := c.doRequest(ctx, c.apiBaseURL+"/markets?"+q.Encode())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}

	markets := make([]*models.Market, 0, len(raw))
	for _, item := range raw {
		var gm GammaMarket
		if err := json.Unmarshal(item, &gm); err != nil {
			c.skip(rawID(item), fmt.Errorf("Parse error: %w", err))
			continue
		}
		m, err := gm.toMarket()
		if err != nil {
			c.skip(gm.ID, err)
			continue
		}
		if !m.IsBinary() {
			c.skip(gm.ID, errors.New("Multi-outcome market (not binary)"))
			continue
		}
		markets = append(markets, m)
	}
	return markets, len(raw), nil
}

// FetchMarket retrieves a single market by ID. Non-binary markets are
// returned as-is; the edge detector rejects them.
func (c *Client) FetchMarket(ctx context.Context, id string) (*models.Market, error) {
	resp, err := c.doRequest(ctx, fmt.Sprintf("%s/markets/%s", c.apiBaseURL, url.PathEscape(id)))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("market %s: unexpected status code: %d", id, resp.StatusCode)
	}

	var gm GammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&gm); err != nil {
		return nil, fmt.Errorf("failed to decode market %s: %w", id, err)
	}
	return gm.toMarket()
}

// SkippedSummary counts skipped markets by reason prefix.
func (c *Client) SkippedSummary() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := make(map[string]int)
	for _, s := range c.skipped {
		prefix, _, _ := strings.Cut(s.Reason, ":")
		summary[prefix]++
	}
	return summary
}

// ClearSkipped forgets previously skipped markets.
func (c *Client) ClearSkipped() {
	c.mu.Lock()
	c.skipped = nil
	c.mu.Unlock()
}

func (c *Client) skip(id string, reason error) {
	if id == "" {
		id = "unknown"
	}
	c.mu.Lock()
	c.skipped = append(c.skipped, Skipped{MarketID: id, Reason: reason.Error(), At: time.Now()})
	c.mu.Unlock()
	logger.Debug("Skipped market %s: %v", id, reason)
}

// rawID recovers the id of a market that failed to decode, if it has one.
func rawID(item json.RawMessage) string {
	var partial struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(item, &partial); err != nil || len(partial.ID) == 0 {
		return ""
	}
	return strings.Trim(string(partial.ID), `"`)
}

func (c *Client) skippedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.skipped)
}

func (gm GammaMarket) toMarket() (*models.Market, error) {
	id := gm.ID
	if id == "" {
		id = gm.ConditionID
	}
	if strings.TrimSpace(gm.Question) == "" {
		return nil, errors.New("Missing question")
	}

	prices := make([]float64, 0, len(gm.OutcomePrices))
	for _, s := range gm.OutcomePrices {
		p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("Parse error: outcome price %q", s)
		}
		prices = append(prices, p)
	}
	if len(prices) < 2 {
		return nil, errors.New("Missing outcome prices")
	}

	var endDate *time.Time
	if gm.EndDate != "" {
		if t, err := parseTime(gm.EndDate); err == nil {
			endDate = &t
		}
	}

	active := true
	if gm.Active != nil {
		active = *gm.Active
	}

	m, err := models.NewMarket(models.MarketParams{
		ID:            id,
		Question:      gm.Question,
		Description:   gm.Description,
		Slug:          gm.Slug,
		Outcomes:      gm.Outcomes,
		OutcomePrices: prices,
		Volume:        float64(gm.Volume),
		Volume24h:     float64(gm.Volume24hr),
		EndDate:       endDate,
		Closed:        gm.Closed,
		Active:        active,
	})
	if err != nil {
		return nil, fmt.Errorf("Validation error: %w", err)
	}
	return m, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// doRequest performs HTTP request with retry logic. Exhausted retries count
// as one failure towards the circuit breaker; while it is open requests fail
// immediately with gobreaker.ErrOpenState.
func (c *Client) doRequest(ctx context.Context, url string) (*http.Response, error) {
	resp, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequestWithRetry(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*http.Response), nil
}

func (c *Client) doRequestWithRetry(ctx context.Context, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.retryDelay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "polyedge/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Warn("Request failed (attempt %d/%d): %v", i+1, c.maxRetries, err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Warn("Request failed (attempt %d/%d): %v", i+1, c.maxRetries, lastErr)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// stringList decodes either a JSON array of strings or a string holding one.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
			return nil
		}
		data = []byte(s)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("invalid list: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(item))
	}
	*l = out
	return nil
}

// flexFloat decodes a JSON number or a numeric string; empty or null is 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}
