package edge

import "fmt"

// Config holds edge detection thresholds. Edges, slippage and ROI values are
// percentage points; discounts and deviations are fractions.
type Config struct {
	MinEdgePercent   float64 `mapstructure:"min_edge_percent"`    // standard markets
	MinEdgeShortTerm float64 `mapstructure:"min_edge_short_term"` // markets resolving within ShortTermDays
	MinEdgeSports    float64 `mapstructure:"min_edge_sports"`     // sports markets, any horizon
	ShortTermDays    int     `mapstructure:"short_term_days"`

	ExpectedSlippage float64 `mapstructure:"expected_slippage"`
	MinROIShortTerm  float64 `mapstructure:"min_roi_short_term"`

	LimitOrderDiscount float64 `mapstructure:"limit_order_discount"`

	ApplySanityCaps       bool    `mapstructure:"apply_sanity_caps"`
	SuperBowlMaxDeviation float64 `mapstructure:"super_bowl_max_deviation"`
	HighVolumeGuardrail   float64 `mapstructure:"high_volume_guardrail"` // USD total volume
	MaxEdgeHighVolume     float64 `mapstructure:"max_edge_high_volume"`

	RelaxedMode bool `mapstructure:"relaxed_mode"`
}

// DefaultConfig returns the strict production thresholds.
func DefaultConfig() Config {
	return Config{
		MinEdgePercent:        5.0,
		MinEdgeShortTerm:      8.0,
		MinEdgeSports:         15.0,
		ShortTermDays:         14,
		ExpectedSlippage:      1.0,
		MinROIShortTerm:       10.0,
		LimitOrderDiscount:    0.02,
		ApplySanityCaps:       true,
		SuperBowlMaxDeviation: 0.20,
		HighVolumeGuardrail:   500_000,
		MaxEdgeHighVolume:     30.0,
	}
}

// RelaxedConfig returns the thresholds used by the relaxed, eoy and test modes.
// The numbers match the strict preset; only the mode flag differs.
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.RelaxedMode = true
	return cfg
}

// ConfigForMode returns the preset for a named scanner mode.
func ConfigForMode(mode string) (Config, error) {
	switch mode {
	case "", "strict":
		return DefaultConfig(), nil
	case "relaxed", "eoy", "test":
		return RelaxedConfig(), nil
	}
	return Config{}, fmt.Errorf("unknown mode %q", mode)
}

// Validate checks that thresholds are usable.
func (c Config) Validate() error {
	if c.MinEdgePercent < 0 || c.MinEdgeShortTerm < 0 || c.MinEdgeSports < 0 {
		return fmt.Errorf("edge thresholds must not be negative")
	}
	if c.ShortTermDays < 0 {
		return fmt.Errorf("short_term_days must not be negative")
	}
	if c.ExpectedSlippage < 0 {
		return fmt.Errorf("expected_slippage must not be negative")
	}
	if c.LimitOrderDiscount < 0 || c.LimitOrderDiscount >= 1 {
		return fmt.Errorf("limit_order_discount must be in [0, 1)")
	}
	if c.SuperBowlMaxDeviation <= 0 || c.SuperBowlMaxDeviation > 1 {
		return fmt.Errorf("super_bowl_max_deviation must be in (0, 1]")
	}
	if c.MaxEdgeHighVolume <= 0 {
		return fmt.Errorf("max_edge_high_volume must be positive")
	}
	return nil
}
