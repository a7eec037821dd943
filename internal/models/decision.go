package models

import (
	"errors"
	"time"
)

// Decision is the persisted record of one analysis and sizing outcome.
type Decision struct {
	ID              string      `json:"id"`
	MarketID        string      `json:"market_id"`
	Question        string      `json:"question"`
	ModelYesProb    float64     `json:"model_yes_prob"`
	MarketYesPrice  float64     `json:"market_yes_price"`
	Action          TradeAction `json:"action"`
	EdgePercent     float64     `json:"edge_percent"`
	Verdict         Verdict     `json:"verdict"`
	Reason          string      `json:"reason"`
	PositionUSD     float64     `json:"position_usd"`
	PositionPercent float64     `json:"position_percent"`
	Confidence      Confidence  `json:"confidence"`
	WasCapped       bool        `json:"was_capped"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Validate checks that all decision fields are valid
func (d *Decision) Validate() error {
	if d.ID == "" {
		return errors.New("decision ID must not be empty")
	}
	if d.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if d.ModelYesProb < 0.0 || d.ModelYesProb > 1.0 {
		return errors.New("model yes probability must be between 0.0 and 1.0")
	}
	if d.MarketYesPrice < 0.0 || d.MarketYesPrice > 1.0 {
		return errors.New("market yes price must be between 0.0 and 1.0")
	}
	switch d.Action {
	case ActionBuyYes, ActionBuyNo, ActionNoTrade:
	default:
		return errors.New("action must be BUY_YES, BUY_NO or NO_TRADE")
	}
	if d.Verdict == "" {
		return errors.New("verdict must not be empty")
	}
	if d.PositionUSD < 0 {
		return errors.New("position usd must not be negative")
	}
	if d.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	if d.CreatedAt.After(time.Now()) {
		return errors.New("created at must not be in the future")
	}
	return nil
}

// NewDecision flattens an analysis and its sizing outcome into a Decision.
// rec may be nil when sizing was not attempted.
func NewDecision(id string, a *EdgeAnalysis, rec *PositionRecommendation, at time.Time) Decision {
	d := Decision{
		ID:             id,
		ModelYesProb:   a.ModelYesProb,
		MarketYesPrice: a.MarketYesPrice,
		Action:         a.RecommendedAction,
		EdgePercent:    a.EdgePercent,
		Verdict:        a.Verdict,
		Reason:         a.Reason,
		Confidence:     a.Confidence,
		WasCapped:      a.WasCapped,
		CreatedAt:      at,
	}
	if a.Market != nil {
		d.MarketID = a.Market.ID
		d.Question = a.Market.Question
	}
	if rec != nil && a.MeetsThreshold {
		d.Verdict = rec.Verdict
		d.Reason = rec.Reason
		d.PositionUSD = rec.PositionUSD
		d.PositionPercent = rec.PositionPercent
	}
	return d
}
