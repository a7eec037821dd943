package bracket

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rewired-gh/polyedge/internal/models"
)

// Config holds bracket strategy parameters.
type Config struct {
	Enabled     bool    `mapstructure:"enabled"`
	MinEdge     float64 `mapstructure:"min_edge"`     // percentage points
	NotionalUSD float64 `mapstructure:"notional_usd"` // per leg

	// MaxExpectedWins caps how many legs are assumed to pay out when
	// estimating ROI. Brackets are mutually exclusive, so usually one leg
	// wins; resolution ambiguity occasionally pays two. This is a heuristic.
	MaxExpectedWins int `mapstructure:"max_expected_wins"`
}

// DefaultConfig returns the standard bracket parameters.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		MinEdge:         5.0,
		NotionalUSD:     100,
		MaxExpectedWins: 2,
	}
}

const (
	ThesisUnder = "Betting the UNDER on high scenarios. Model expects outcome in lower ranges."
	ThesisOver  = "Betting the OVER on low scenarios. Model expects outcome in higher ranges."
	ThesisMixed = "Mixed strategy across bracket ranges."
)

// Generator builds strategies for bracket groups.
type Generator struct {
	cfg Config
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Generate evaluates every bracket in a group and returns the combined
// strategy. forecast maps market IDs to model YES probabilities; brackets
// without a forecast use their own YES price. ok is false when no leg clears
// the minimum edge.
func (g *Generator) Generate(topic string, brackets []models.BracketMarket, forecast map[string]float64) (*models.BracketStrategy, bool) {
	if len(brackets) < 2 {
		return nil, false
	}

	sorted := make([]models.BracketMarket, len(brackets))
	copy(sorted, brackets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Lower() != sorted[j].Lower() {
			return sorted[i].Lower() < sorted[j].Lower()
		}
		return sorted[i].Upper() < sorted[j].Upper()
	})

	notional := decimal.NewFromFloat(g.cfg.NotionalUSD)
	totalCost := decimal.Zero
	maxPayout := decimal.Zero
	var trades []models.BracketTrade

	for _, b := range sorted {
		yesPrice := b.Market.YesPrice()
		noPrice := b.Market.NoPrice()
		prob, ok := forecast[b.Market.ID]
		if !ok {
			prob = yesPrice
		}

		yesEdge := (prob - yesPrice) * 100
		noEdge := ((1 - prob) - noPrice) * 100

		var trade models.BracketTrade
		switch {
		case yesEdge >= g.cfg.MinEdge && yesEdge >= noEdge:
			trade = models.BracketTrade{Action: models.ActionBuyYes, Price: yesPrice, Edge: yesEdge}
		case noEdge >= g.cfg.MinEdge && noEdge > yesEdge:
			trade = models.BracketTrade{Action: models.ActionBuyNo, Price: noPrice, Edge: noEdge}
		default:
			continue
		}

		cost := decimal.NewFromFloat(trade.Price).Mul(notional)
		trade.Bracket = b
		trade.ModelProb = prob
		trade.Cost = cost.Round(2).InexactFloat64()
		trade.Payout = g.cfg.NotionalUSD
		trades = append(trades, trade)

		totalCost = totalCost.Add(cost)
		maxPayout = maxPayout.Add(notional)
	}

	if len(trades) == 0 {
		return nil, false
	}

	wins := min(len(trades), g.cfg.MaxExpectedWins)
	expectedPayout := notional.Mul(decimal.NewFromInt(int64(wins)))
	var roi float64
	if totalCost.IsPositive() {
		roi = expectedPayout.Sub(totalCost).Div(totalCost).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}

	var edgeSum float64
	for _, t := range trades {
		edgeSum += t.Edge
	}

	return &models.BracketStrategy{
		Topic:             topic,
		Thesis:            thesis(trades),
		Brackets:          sorted,
		RecommendedTrades: trades,
		TotalCost:         totalCost.Round(2).InexactFloat64(),
		MaxPayout:         maxPayout.Round(2).InexactFloat64(),
		ExpectedROI:       roi,
		Confidence:        confidence(edgeSum / float64(len(trades))),
	}, true
}

// GenerateAll groups markets and returns a strategy for every qualifying
// topic, ordered by topic. forecasts maps market IDs to model YES
// probabilities; markets without one are priced at their own YES price.
func (g *Generator) GenerateAll(markets []*models.Market, forecasts map[string]float64) []*models.BracketStrategy {
	groups := Group(markets)
	var out []*models.BracketStrategy
	for _, topic := range Topics(groups) {
		if s, ok := g.Generate(topic, groups[topic], forecasts); ok {
			out = append(out, s)
		}
	}
	return out
}

func confidence(meanEdge float64) string {
	switch {
	case meanEdge >= 15:
		return "High"
	case meanEdge >= 10:
		return "Medium-High"
	case meanEdge >= 7:
		return "Medium"
	}
	return "Low"
}

// thesis compares where the YES legs and the NO legs sit in the range.
// YES legs are placed by their upper bound and NO legs by their lower bound,
// falling back to the other side for open-ended brackets.
func thesis(trades []models.BracketTrade) string {
	var yesSum, noSum float64
	var yesN, noN int
	for _, t := range trades {
		b := t.Bracket
		switch t.Action {
		case models.ActionBuyYes:
			yesSum += firstBound(b.UpperBound, b.LowerBound)
			yesN++
		case models.ActionBuyNo:
			noSum += firstBound(b.LowerBound, b.UpperBound)
			noN++
		}
	}

	avgYes, avgNo := math.Inf(1), math.Inf(-1)
	if yesN > 0 {
		avgYes = yesSum / float64(yesN)
	}
	if noN > 0 {
		avgNo = noSum / float64(noN)
	}

	switch {
	case avgYes < avgNo:
		return ThesisUnder
	case avgNo < avgYes:
		return ThesisOver
	}
	return ThesisMixed
}

func firstBound(a, b *float64) float64 {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return 0
}
