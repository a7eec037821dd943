package models

import (
	"errors"
	"time"
)

// Position is a recommended position tracked to enforce portfolio limits.
// Orders are placed outside polyedge; a Position only records the intent.
type Position struct {
	ID        string      `json:"id"`
	MarketID  string      `json:"market_id"`
	Question  string      `json:"question"`
	Action    TradeAction `json:"action"`
	AmountUSD float64     `json:"amount_usd"`
	OpenedAt  time.Time   `json:"opened_at"`
	Closed    bool        `json:"closed"`
}

// Validate checks that all position fields are valid
func (p *Position) Validate() error {
	if p.ID == "" {
		return errors.New("position ID must not be empty")
	}
	if p.MarketID == "" {
		return errors.New("market ID must not be empty")
	}
	if p.Action != ActionBuyYes && p.Action != ActionBuyNo {
		return errors.New("action must be BUY_YES or BUY_NO")
	}
	if p.AmountUSD <= 0 {
		return errors.New("amount must be positive")
	}
	if p.OpenedAt.After(time.Now()) {
		return errors.New("opened at must not be in the future")
	}
	return nil
}
