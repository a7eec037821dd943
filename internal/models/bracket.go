package models

import "math"

// BracketMarket is one leg of a set of markets that partition a single
// continuous quantity. A nil bound is unbounded on that side.
type BracketMarket struct {
	Market     *Market  `json:"market"`
	Label      string   `json:"label"` // e.g. "$100-200b"
	LowerBound *float64 `json:"lower_bound,omitempty"`
	UpperBound *float64 `json:"upper_bound,omitempty"`
}

// Lower returns the lower bound, or -Inf when unbounded.
func (b BracketMarket) Lower() float64 {
	if b.LowerBound == nil {
		return math.Inf(-1)
	}
	return *b.LowerBound
}

// Upper returns the upper bound, or +Inf when unbounded.
func (b BracketMarket) Upper() float64 {
	if b.UpperBound == nil {
		return math.Inf(1)
	}
	return *b.UpperBound
}

// BracketTrade is a recommended leg within a BracketStrategy.
type BracketTrade struct {
	Bracket   BracketMarket `json:"bracket"`
	Action    TradeAction   `json:"action"`
	Price     float64       `json:"price"`
	ModelProb float64       `json:"model_prob"`
	Edge      float64       `json:"edge"`
	Cost      float64       `json:"cost"`
	Payout    float64       `json:"payout"`
}

// BracketStrategy aggregates the recommended legs across one bracket group.
// At most one bracket of the group is expected to resolve YES.
type BracketStrategy struct {
	Topic             string          `json:"topic"`
	Thesis            string          `json:"thesis"`
	Brackets          []BracketMarket `json:"brackets"`
	RecommendedTrades []BracketTrade  `json:"recommended_trades"`
	TotalCost         float64         `json:"total_cost"`
	MaxPayout         float64         `json:"max_payout"`
	ExpectedROI       float64         `json:"expected_roi"`
	Confidence        string          `json:"confidence"` // Low, Medium, Medium-High, High
}
