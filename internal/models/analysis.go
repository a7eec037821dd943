package models

// TradeAction is the recommended side for a binary market.
type TradeAction string

const (
	ActionBuyYes  TradeAction = "BUY_YES"
	ActionBuyNo   TradeAction = "BUY_NO"
	ActionNoTrade TradeAction = "NO_TRADE"
)

// Confidence grades an edge by size.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Verdict is the machine-readable outcome of a decision. Reporting layers use
// it to tell "no edge" apart from "guardrail veto" and "no capacity".
type Verdict string

const (
	VerdictTrade              Verdict = "trade"
	VerdictNoEdge             Verdict = "no_edge"
	VerdictShortTermROI       Verdict = "short_term_roi"
	VerdictGuardrailSuperBowl Verdict = "guardrail_super_bowl"
	VerdictGuardrailVolume    Verdict = "guardrail_high_volume"
	VerdictInvalidMarket      Verdict = "invalid_market"
	VerdictPortfolioFull      Verdict = "portfolio_full"
	VerdictCapitalDeployed    Verdict = "capital_deployed"
	VerdictBelowMinSize       Verdict = "below_min_size"
)

// IsGuardrail reports whether the verdict is an absolute safety override.
func (v Verdict) IsGuardrail() bool {
	return v == VerdictGuardrailSuperBowl || v == VerdictGuardrailVolume
}

// EdgeAnalysis is the result of comparing a model probability with market prices.
// Edges are in percentage points; prices and probabilities are fractions.
type EdgeAnalysis struct {
	Market            *Market     `json:"market"`
	ModelYesProb      float64     `json:"model_yes_prob"`
	ModelNoProb       float64     `json:"model_no_prob"`
	MarketYesPrice    float64     `json:"market_yes_price"`
	MarketNoPrice     float64     `json:"market_no_price"`
	YesEdge           float64     `json:"yes_edge"`
	NoEdge            float64     `json:"no_edge"`
	RecommendedAction TradeAction `json:"recommended_action"`
	EdgePercent       float64     `json:"edge_percent"`
	MeetsThreshold    bool        `json:"meets_threshold"`
	Reason            string      `json:"reason"`
	Verdict           Verdict     `json:"verdict"`
	TargetPrice       float64     `json:"target_price"`
	PotentialROI      float64     `json:"potential_roi"`
	Confidence        Confidence  `json:"confidence"`

	// DaysToResolution is fixed at analysis time so that sizing sees the
	// same horizon. HasEndDate is false when the market has no end date.
	DaysToResolution int  `json:"days_to_resolution"`
	HasEndDate       bool `json:"has_end_date"`

	IsSports  bool   `json:"is_sports"`
	WasCapped bool   `json:"was_capped"`
	CapReason string `json:"cap_reason,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// EntryPrice returns the market price of the recommended side, or 0 for NO_TRADE.
func (a *EdgeAnalysis) EntryPrice() float64 {
	switch a.RecommendedAction {
	case ActionBuyYes:
		return a.MarketYesPrice
	case ActionBuyNo:
		return a.MarketNoPrice
	}
	return 0
}

// WinProbability returns the model probability of the recommended side, or 0 for NO_TRADE.
func (a *EdgeAnalysis) WinProbability() float64 {
	switch a.RecommendedAction {
	case ActionBuyYes:
		return a.ModelYesProb
	case ActionBuyNo:
		return a.ModelNoProb
	}
	return 0
}

// Risk levels reported on a PositionRecommendation.
const (
	RiskNotApplicable = "N/A"
	RiskModerate      = "MODERATE"
	RiskShortTerm     = "HIGH (short-term)"
)

// PositionRecommendation is a bounded position size for one EdgeAnalysis.
type PositionRecommendation struct {
	ShouldTrade     bool    `json:"should_trade"`
	PositionPercent float64 `json:"position_percent"`
	PositionUSD     float64 `json:"position_usd"`
	Reason          string  `json:"reason"`
	Verdict         Verdict `json:"verdict"`
	EdgePercent     float64 `json:"edge_percent"`
	ExpectedROI     float64 `json:"expected_roi"`
	RiskLevel       string  `json:"risk_level"`
}
