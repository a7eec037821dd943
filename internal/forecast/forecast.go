// Package forecast is the boundary to whatever produces a fair YES probability
// for a market. The edge pipeline never forecasts on its own; it only consumes
// the numbers returned here.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
)

// NeutralProbability is substituted when no forecast can be produced.
const NeutralProbability = 0.5

// ErrNoForecast is returned when a forecaster has nothing for a market.
var ErrNoForecast = errors.New("no forecast available")

// Forecaster returns the model YES probability for a market.
type Forecaster interface {
	Forecast(ctx context.Context, m *models.Market) (float64, error)
}

// Neutral always forecasts 50%.
type Neutral struct{}

// Forecast implements Forecaster.
func (Neutral) Forecast(context.Context, *models.Market) (float64, error) {
	return NeutralProbability, nil
}

// Static serves fixed probabilities keyed by market ID.
type Static struct {
	Probabilities map[string]float64
}

// NewStatic creates a Static forecaster. Values above 1 are read as percentages.
func NewStatic(probs map[string]float64) *Static {
	normalized := make(map[string]float64, len(probs))
	for id, p := range probs {
		if p > 1 {
			p /= 100
		}
		normalized[id] = p
	}
	return &Static{Probabilities: normalized}
}

// Forecast implements Forecaster.
func (s *Static) Forecast(_ context.Context, m *models.Market) (float64, error) {
	p, ok := s.Probabilities[m.ID]
	if !ok {
		return 0, fmt.Errorf("market %s: %w", m.ID, ErrNoForecast)
	}
	return p, nil
}

// Config selects and configures a Forecaster.
type Config struct {
	Mode          string             `mapstructure:"mode"` // static, neutral or http
	URL           string             `mapstructure:"url"`
	Timeout       time.Duration      `mapstructure:"timeout"`
	Probabilities map[string]float64 `mapstructure:"probabilities"`
}

// Validate checks that the selected mode has what it needs.
func (c Config) Validate() error {
	switch c.Mode {
	case "static", "neutral":
	case "http":
		if c.URL == "" {
			return errors.New("forecast.url is required when forecast.mode is http")
		}
		if c.Timeout <= 0 {
			return errors.New("forecast.timeout must be positive")
		}
	default:
		return fmt.Errorf("forecast.mode must be one of: static, neutral, http (got %q)", c.Mode)
	}
	for id, p := range c.Probabilities {
		if p < 0 || p > 100 {
			return fmt.Errorf("forecast.probabilities.%s must be a probability or percentage", id)
		}
	}
	return nil
}

// New builds the Forecaster selected by cfg.Mode.
func New(cfg Config) (Forecaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case "http":
		return NewHTTP(cfg.URL, cfg.Timeout), nil
	case "neutral":
		return Neutral{}, nil
	}
	return NewStatic(cfg.Probabilities), nil
}

// YesProbability asks f for a forecast and falls back to NeutralProbability on
// any error. The second return value is false when the fallback was used.
func YesProbability(ctx context.Context, f Forecaster, m *models.Market) (float64, bool) {
	p, err := f.Forecast(ctx, m)
	if err != nil {
		logger.Warn("Forecast failed for market %s, using %.0f%%: %v", m.ID, NeutralProbability*100, err)
		return NeutralProbability, false
	}
	return p, true
}

var (
	likelihoodPattern  = regexp.MustCompile("(?i)likelihood\\s*[`'\"]*([0-9.]+)%?[`'\"]*\\s*for\\s*outcome\\s*of\\s*[`'\"]*(\\w+)")
	probabilityPattern = regexp.MustCompile(`(?i)([0-9.]+)\s*%?\s*(?:probability|chance|likelihood)\s*(?:for|of)\s*(\w+)`)
	quotedPattern      = regexp.MustCompile("[`'\"]([0-9.]+)%?[`'\"]")
)

// ParseProbability extracts a YES probability from forecaster free text such
// as "likelihood `0.6` for outcome of `Yes`", "60% probability for Yes" or a
// bare quoted "`0.35`". A probability stated for No is converted to YES.
func ParseProbability(text string) (float64, bool) {
	if m := likelihoodPattern.FindStringSubmatch(text); m != nil {
		return toYes(m[1], m[2])
	}
	if m := probabilityPattern.FindStringSubmatch(text); m != nil {
		return toYes(m[1], m[2])
	}
	if m := quotedPattern.FindStringSubmatch(text); m != nil {
		return toYes(m[1], "Yes")
	}
	return 0, false
}

func toYes(raw, outcome string) (float64, bool) {
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || p < 0 {
		return 0, false
	}
	if p > 1 {
		p /= 100
	}
	if p > 1 {
		return 0, false
	}
	if strings.EqualFold(outcome, "no") {
		p = 1 - p
	}
	return p, true
}
