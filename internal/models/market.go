// Package models defines the core domain entities for the polyedge application.
// These models represent Polymarket markets and the decisions made about them:
// edge analyses, position recommendations and bracket strategies.
//
// A Market is validated once at construction and treated as immutable afterwards.
// Decision values (EdgeAnalysis, PositionRecommendation, BracketStrategy) are
// produced by the edge, sizing and bracket packages and are never re-derived by
// their consumers.
package models

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidMarket is returned when upstream market data fails validation.
	ErrInvalidMarket = errors.New("invalid market")
	// ErrNotBinary is returned when a market does not have exactly Yes/No outcomes.
	ErrNotBinary = errors.New("market is not binary")
)

// Market is a validated snapshot of one Polymarket market.
type Market struct {
	ID            string     `json:"id"`
	Question      string     `json:"question"`
	Description   string     `json:"description,omitempty"`
	Slug          string     `json:"slug,omitempty"`
	Outcomes      []string   `json:"outcomes"`
	OutcomePrices []float64  `json:"outcome_prices"`
	Volume        float64    `json:"volume"`     // Total volume in USD
	Volume24h     float64    `json:"volume_24h"` // 24-hour volume in USD
	EndDate       *time.Time `json:"end_date,omitempty"`
	Closed        bool       `json:"closed"`
	Active        bool       `json:"active"`
}

// MarketParams carries raw upstream fields into NewMarket.
type MarketParams struct {
	ID            string
	Question      string
	Description   string
	Slug          string
	Outcomes      []string
	OutcomePrices []float64
	Volume        float64
	Volume24h     float64
	EndDate       *time.Time
	Closed        bool
	Active        bool
}

// NewMarket builds a Market and validates it. Malformed records are rejected
// here so that decision logic never sees them.
func NewMarket(p MarketParams) (*Market, error) {
	m := &Market{
		ID:            p.ID,
		Question:      strings.TrimSpace(p.Question),
		Description:   p.Description,
		Slug:          p.Slug,
		Outcomes:      append([]string(nil), p.Outcomes...),
		OutcomePrices: append([]float64(nil), p.OutcomePrices...),
		Volume:        p.Volume,
		Volume24h:     p.Volume24h,
		Closed:        p.Closed,
		Active:        p.Active,
	}
	if p.EndDate != nil {
		end := p.EndDate.UTC()
		m.EndDate = &end
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that all market fields are valid.
func (m *Market) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: market ID must not be empty", ErrInvalidMarket)
	}
	if m.Question == "" {
		return fmt.Errorf("%w: question must not be empty", ErrInvalidMarket)
	}
	if len(m.OutcomePrices) < 2 {
		return fmt.Errorf("%w: missing outcome prices (got %d)", ErrInvalidMarket, len(m.OutcomePrices))
	}
	for i, p := range m.OutcomePrices {
		if math.IsNaN(p) || p < 0.0 || p > 1.0 {
			return fmt.Errorf("%w: outcome price %d must be between 0.0 and 1.0", ErrInvalidMarket, i)
		}
	}
	if m.Volume < 0 {
		return fmt.Errorf("%w: volume must not be negative", ErrInvalidMarket)
	}
	if m.Volume24h < 0 {
		return fmt.Errorf("%w: volume 24h must not be negative", ErrInvalidMarket)
	}
	return nil
}

// IsBinary reports whether the market has exactly the outcomes Yes and No.
func (m *Market) IsBinary() bool {
	if len(m.Outcomes) != 2 {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(m.Outcomes[0]))
	b := strings.ToLower(strings.TrimSpace(m.Outcomes[1]))
	return (a == "yes" && b == "no") || (a == "no" && b == "yes")
}

// YesPrice returns the price of the first outcome, or 0 if absent.
func (m *Market) YesPrice() float64 {
	if len(m.OutcomePrices) > 0 {
		return m.OutcomePrices[0]
	}
	return 0
}

// NoPrice returns the price of the second outcome, or 0 if absent.
func (m *Market) NoPrice() float64 {
	if len(m.OutcomePrices) > 1 {
		return m.OutcomePrices[1]
	}
	return 0
}

// DaysToResolution returns the whole days between now and the end date,
// floored at zero. ok is false when the market has no end date.
func (m *Market) DaysToResolution(now time.Time) (days int, ok bool) {
	if m.EndDate == nil {
		return 0, false
	}
	delta := m.EndDate.Sub(now.UTC())
	if delta <= 0 {
		return 0, true
	}
	return int(delta / (24 * time.Hour)), true
}

// URL returns a Polymarket search link for the market. Slug links 404 for
// multi-outcome events, so search by question instead.
func (m *Market) URL() string {
	q := m.Question
	if r := []rune(q); len(r) > 60 {
		q = string(r[:60])
	}
	return "https://polymarket.com/markets?_q=" + url.QueryEscape(q)
}
