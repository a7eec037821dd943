// Package filter selects tradeable markets by volume, time horizon and price,
// recording why every other market was rejected.
package filter

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
)

// Config holds market selection thresholds.
type Config struct {
	MinTotalVolume      float64  `mapstructure:"min_total_volume"`
	MinVolume24h        float64  `mapstructure:"min_volume_24h"`
	MinDaysToResolution int      `mapstructure:"min_days_to_resolution"`
	MaxDaysToResolution int      `mapstructure:"max_days_to_resolution"`
	MaxHighPrice        float64  `mapstructure:"max_high_price"`
	MinLowPrice         float64  `mapstructure:"min_low_price"`
	EOYMode             bool     `mapstructure:"eoy_mode"`
	PriorityCategories  []string `mapstructure:"priority_categories"`
}

var eoyPriorityCategories = []string{"Politics", "Crypto", "Sports", "Economics", "AI", "Tech"}

// StrictConfig returns the production filter.
func StrictConfig() Config {
	return Config{
		MinTotalVolume:      150_000,
		MinVolume24h:        10_000,
		MinDaysToResolution: 30,
		MaxDaysToResolution: 180,
		MaxHighPrice:        0.90,
		MinLowPrice:         0.05,
	}
}

// RelaxedConfig allows near-term markets and thinner liquidity.
func RelaxedConfig() Config {
	return Config{
		MinTotalVolume:      50_000,
		MinVolume24h:        2_000,
		MinDaysToResolution: 1,
		MaxDaysToResolution: 365,
		MaxHighPrice:        0.95,
		MinLowPrice:         0.02,
		EOYMode:             true,
		PriorityCategories:  eoyPriorityCategories,
	}
}

// EOYConfig focuses on markets resolving within a month.
func EOYConfig() Config {
	return Config{
		MinTotalVolume:      25_000,
		MinVolume24h:        500,
		MinDaysToResolution: 1,
		MaxDaysToResolution: 30,
		MaxHighPrice:        0.95,
		MinLowPrice:         0.02,
		EOYMode:             true,
		PriorityCategories:  eoyPriorityCategories,
	}
}

// TestConfig is the loosest preset, for exercising the pipeline end to end.
func TestConfig() Config {
	return Config{
		MinTotalVolume:      10_000,
		MinVolume24h:        100,
		MinDaysToResolution: 1,
		MaxDaysToResolution: 365,
		MaxHighPrice:        0.98,
		MinLowPrice:         0.01,
		EOYMode:             true,
		PriorityCategories:  eoyPriorityCategories,
	}
}

// ConfigForMode returns the preset for a named scanner mode.
func ConfigForMode(mode string) (Config, error) {
	switch mode {
	case "", "strict":
		return StrictConfig(), nil
	case "relaxed":
		return RelaxedConfig(), nil
	case "eoy":
		return EOYConfig(), nil
	case "test":
		return TestConfig(), nil
	}
	return Config{}, fmt.Errorf("unknown mode %q", mode)
}

// Validate checks that thresholds are usable.
func (c Config) Validate() error {
	if c.MinTotalVolume < 0 || c.MinVolume24h < 0 {
		return fmt.Errorf("volume thresholds must not be negative")
	}
	if c.MinDaysToResolution < 0 || c.MaxDaysToResolution < c.MinDaysToResolution {
		return fmt.Errorf("days to resolution range [%d, %d] is invalid", c.MinDaysToResolution, c.MaxDaysToResolution)
	}
	if c.MaxHighPrice <= 0 || c.MaxHighPrice > 1 {
		return fmt.Errorf("max_high_price must be in (0, 1]")
	}
	if c.MinLowPrice < 0 || c.MinLowPrice >= c.MaxHighPrice {
		return fmt.Errorf("min_low_price must be in [0, max_high_price)")
	}
	return nil
}

// Rejection records why a market did not pass. Score estimates how close it
// came, from 0 to 100.
type Rejection struct {
	MarketID         string    `json:"market_id"`
	Question         string    `json:"question"`
	Reason           string    `json:"reason"`
	Score            float64   `json:"score"`
	Category         string    `json:"category,omitempty"`
	URL              string    `json:"url"`
	Volume           float64   `json:"volume"`
	Volume24h        float64   `json:"volume_24h"`
	DaysToResolution *int      `json:"days_to_resolution,omitempty"`
	Prices           []float64 `json:"prices"`
}

// ReasonCount is the number of rejections sharing a reason prefix.
type ReasonCount struct {
	Reason string
	Count  int
}

// Result is the outcome of filtering one batch of markets.
type Result struct {
	Passed     []*models.Market
	Rejections []Rejection
	NearMisses []Rejection // best scoring rejections, at most maxNearMisses
}

const (
	nearMissThreshold = 40.0
	maxNearMisses     = 5
)

// Summary counts rejections by reason prefix (the text before the first
// colon), most common first.
func (r Result) Summary() []ReasonCount {
	counts := make(map[string]int)
	for _, rej := range r.Rejections {
		prefix, _, _ := strings.Cut(rej.Reason, ":")
		counts[prefix]++
	}
	out := make([]ReasonCount, 0, len(counts))
	for reason, n := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Filter applies a Config to batches of markets.
type Filter struct {
	cfg Config
	now func() time.Time
}

// New creates a Filter.
func New(cfg Config) *Filter {
	return &Filter{cfg: cfg, now: time.Now}
}

// WithClock replaces the clock used to compute days to resolution.
func (f *Filter) WithClock(now func() time.Time) *Filter {
	f.now = now
	return f
}

// Apply filters markets, preserving input order for those that pass.
func (f *Filter) Apply(markets []*models.Market) Result {
	var res Result
	for _, m := range markets {
		reason, score := f.Check(m)
		if reason == "" {
			res.Passed = append(res.Passed, m)
			continue
		}
		rej := newRejection(m, reason, score, f.now())
		res.Rejections = append(res.Rejections, rej)
		if score > nearMissThreshold {
			res.NearMisses = append(res.NearMisses, rej)
		}
	}

	sort.SliceStable(res.NearMisses, func(i, j int) bool {
		return res.NearMisses[i].Score > res.NearMisses[j].Score
	})
	if len(res.NearMisses) > maxNearMisses {
		res.NearMisses = res.NearMisses[:maxNearMisses]
	}

	logger.Info("Market filtering: %d/%d passed", len(res.Passed), len(markets))
	for _, rc := range res.Summary() {
		logger.Debug("  rejected (%s): %d", rc.Reason, rc.Count)
	}
	return res
}

// Check returns the rejection reason for a market, or "" if it passes, with
// a near-miss score.
func (f *Filter) Check(m *models.Market) (string, float64) {
	score := 100.0
	c := f.cfg

	if m.Closed {
		return "Market is closed", 0
	}
	if !m.Active {
		return "Market is not active", 0
	}

	if m.Volume < c.MinTotalVolume {
		score *= m.Volume / c.MinTotalVolume
		return fmt.Sprintf("Low total volume: $%s < $%s", usd(m.Volume), usd(c.MinTotalVolume)), score
	}
	if m.Volume24h < c.MinVolume24h {
		ratio := 0.0
		if c.MinVolume24h > 0 {
			ratio = m.Volume24h / c.MinVolume24h
		}
		score *= math.Max(ratio, 0.5)
		return fmt.Sprintf("Low 24h volume: $%s < $%s", usd(m.Volume24h), usd(c.MinVolume24h)), score
	}

	days, ok := m.DaysToResolution(f.now())
	if !ok {
		return "No resolution date", 0
	}
	if days < c.MinDaysToResolution {
		if c.EOYMode && days >= 1 {
			score *= 0.9
		} else {
			score *= 0.5
		}
		return fmt.Sprintf("Too close to resolution: %d days < %d days", days, c.MinDaysToResolution), score
	}
	if days > c.MaxDaysToResolution {
		return fmt.Sprintf("Too far from resolution: %d days > %d days", days, c.MaxDaysToResolution), score * 0.3
	}

	if len(m.OutcomePrices) == 0 {
		return "No outcome prices", 0
	}
	hi, lo := m.OutcomePrices[0], m.OutcomePrices[0]
	for _, p := range m.OutcomePrices[1:] {
		hi = math.Max(hi, p)
		lo = math.Min(lo, p)
	}
	if hi > c.MaxHighPrice {
		penalty := 1.0
		if c.MaxHighPrice < 1 {
			penalty = (hi - c.MaxHighPrice) / (1 - c.MaxHighPrice)
		}
		score *= 1 - penalty*0.5
		return fmt.Sprintf("Outcome too certain: highest price $%.2f > $%.2f", hi, c.MaxHighPrice), score
	}
	if lo < c.MinLowPrice {
		return fmt.Sprintf("Outcome too unlikely: lowest price $%.2f < $%.2f", lo, c.MinLowPrice), score * 0.4
	}

	return "", f.priorityScore(m, score)
}

func (f *Filter) priorityScore(m *models.Market, score float64) float64 {
	if !f.cfg.EOYMode {
		return score
	}
	cat := InferCategory(m.Question)
	for _, p := range f.cfg.PriorityCategories {
		if cat != "" && cat == p {
			return math.Min(score*1.2, 100)
		}
	}
	return score
}

func newRejection(m *models.Market, reason string, score float64, now time.Time) Rejection {
	q := m.Question
	if r := []rune(q); len(r) > 60 {
		q = string(r[:60]) + "..."
	}
	rej := Rejection{
		MarketID:  m.ID,
		Question:  q,
		Reason:    reason,
		Score:     score,
		Category:  InferCategory(m.Question),
		URL:       m.URL(),
		Volume:    m.Volume,
		Volume24h: m.Volume24h,
		Prices:    m.OutcomePrices,
	}
	if days, ok := m.DaysToResolution(now); ok {
		rej.DaysToResolution = &days
	}
	return rej
}

func usd(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}
