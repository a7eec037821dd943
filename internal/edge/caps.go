package edge

import (
	"fmt"
	"math"
)

const (
	highVolumeCapThreshold = 100_000.0
	highVolumeMaxDeviation = 0.20

	championshipMaxDeviation = 0.10
	longshotMarketCeiling    = 0.40
	longshotModelCeiling     = 0.50

	extremeLowPrice     = 0.05
	extremeHighPrice    = 0.95
	extremeMaxDeviation = 0.05

	probFloor   = 0.01
	probCeiling = 0.99
)

// ApplySanityCaps clamps a model YES probability against the market price so an
// overconfident forecaster cannot manufacture a large edge. Rules run in order on
// the current value:
//
//  1. total volume > $100k: within ±20pp of market
//  2. sports championship / Super Bowl: at most +10pp over market, and never
//     above 50% when the market prices the side under 40%
//  3. market price < 5% or > 95%: within ±5pp of market
//
// Only the reason of the last rule that changed the value is returned; an empty
// reason means the probability was not changed.
func ApplySanityCaps(modelProb, marketProb, totalVolume float64, question string, c Classifier) (float64, string) {
	original := modelProb
	reason := ""

	if totalVolume > highVolumeCapThreshold {
		lo := math.Max(probFloor, marketProb-highVolumeMaxDeviation)
		hi := math.Min(probCeiling, marketProb+highVolumeMaxDeviation)
		if modelProb < lo || modelProb > hi {
			modelProb = clamp(modelProb, lo, hi)
			reason = fmt.Sprintf("Capped from %.0f%% (high-vol market, max %.0f%% deviation)",
				original*100, highVolumeMaxDeviation*100)
		}
	}

	if c != nil && c.IsSports(question) && (c.IsSuperBowl(question) || c.IsChampionship(question)) {
		hi := math.Min(probCeiling, marketProb+championshipMaxDeviation)
		if marketProb < longshotMarketCeiling && modelProb > longshotModelCeiling {
			modelProb = math.Min(longshotModelCeiling, marketProb+championshipMaxDeviation)
			reason = fmt.Sprintf("Sports cap: %.0f%%→%.0f%% (championship market)", original*100, modelProb*100)
		} else if modelProb > hi {
			modelProb = hi
			reason = fmt.Sprintf("Sports cap: %.0f%%→%.0f%% (max +10%% over market)", original*100, modelProb*100)
		}
	}

	if marketProb < extremeLowPrice || marketProb > extremeHighPrice {
		lo := math.Max(probFloor, marketProb-extremeMaxDeviation)
		hi := math.Min(probCeiling, marketProb+extremeMaxDeviation)
		if modelProb < lo || modelProb > hi {
			modelProb = clamp(modelProb, lo, hi)
			reason = fmt.Sprintf("Extreme price cap: %.0f%%→%.0f%%", original*100, modelProb*100)
		}
	}

	return modelProb, reason
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
