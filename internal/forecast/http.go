package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rewired-gh/polyedge/internal/models"
)

// HTTP asks a remote forecasting service for a probability. The service
// receives the market as JSON and answers with free text (for example an LLM
// completion), which is parsed with ParseProbability.
type HTTP struct {
	url        string
	httpClient *http.Client
}

type forecastRequest struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Description string   `json:"description"`
	Outcomes    []string `json:"outcomes"`
}

// NewHTTP creates an HTTP forecaster.
func NewHTTP(url string, timeout time.Duration) *HTTP {
	return &HTTP{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Forecast implements Forecaster.
func (h *HTTP) Forecast(ctx context.Context, m *models.Market) (float64, error) {
	body, err := json.Marshal(forecastRequest{
		ID:          m.ID,
		Question:    m.Question,
		Description: m.Description,
		Outcomes:    m.Outcomes,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(text))
	}

	p, ok := ParseProbability(string(text))
	if !ok {
		return 0, fmt.Errorf("market %s: unparseable response: %w", m.ID, ErrNoForecast)
	}
	return p, nil
}
