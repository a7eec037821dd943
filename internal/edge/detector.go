// Package edge detects trading edge by comparing a model probability with
// Polymarket prices.
//
// Analysis runs as a fixed pipeline:
//
//	inputs → sanity caps → guardrails (Super Bowl, high-volume) → threshold/ROI selection
//
// and ends in BUY_YES, BUY_NO or NO_TRADE. Guardrails are terminal: once one
// fires no further edge math runs. Every result carries a human-readable reason
// and a machine-readable verdict.
//
// A Detector is stateless across calls and safe for concurrent use.
package edge

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
)

// missingHorizonDays stands in for markets without an end date so they are
// never treated as short-term.
const missingHorizonDays = 999

// Detector analyzes markets against a Config.
type Detector struct {
	cfg        Config
	classifier Classifier
	now        func() time.Time
}

// New creates a Detector. A nil classifier uses the keyword classifier.
func New(cfg Config, classifier Classifier) *Detector {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Detector{
		cfg:        cfg,
		classifier: classifier,
		now:        time.Now,
	}
}

// WithClock replaces the clock used to compute days to resolution.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

// Config returns the detector's thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// NormalizeProbability interprets values above 1 as percentages.
func NormalizeProbability(p float64) float64 {
	if p > 1 {
		return p / 100
	}
	return p
}

// SimpleROI returns (prob − price) / price in percent, or 0 when price is not positive.
func SimpleROI(prob, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return (prob - price) / price * 100
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Analyze computes the edge for a market given the model's YES probability.
// modelNo may be nil, in which case it is derived as 1 − modelYes.
func (d *Detector) Analyze(market *models.Market, modelYes float64, modelNo *float64) models.EdgeAnalysis {
	if market == nil || len(market.OutcomePrices) < 2 {
		return invalidAnalysis(market, "Missing outcome prices")
	}
	if len(market.Outcomes) > 0 && !market.IsBinary() {
		return invalidAnalysis(market, "Not a YES/NO market")
	}
	if !finite(modelYes) || (modelNo != nil && !finite(*modelNo)) {
		return invalidAnalysis(market, "Model probability is not a finite number")
	}

	modelYes = NormalizeProbability(modelYes)
	var modelNoProb float64
	if modelNo == nil {
		modelNoProb = 1 - modelYes
	} else {
		modelNoProb = NormalizeProbability(*modelNo)
	}

	marketYes := market.YesPrice()
	marketNo := market.NoPrice()

	isSports := d.classifier.IsSports(market.Question)
	isSuperBowl := d.classifier.IsSuperBowl(market.Question)

	days, hasEnd := market.DaysToResolution(d.now())
	horizon := days
	if !hasEnd {
		horizon = missingHorizonDays
	}

	a := models.EdgeAnalysis{
		Market:           market,
		MarketYesPrice:   marketYes,
		MarketNoPrice:    marketNo,
		Confidence:       models.ConfidenceLow,
		DaysToResolution: days,
		HasEndDate:       hasEnd,
		IsSports:         isSports,
	}

	originalYes := modelYes
	if d.cfg.ApplySanityCaps {
		capped, reason := ApplySanityCaps(modelYes, marketYes, market.Volume, market.Question, d.classifier)
		if reason != "" {
			modelYes = capped
			modelNoProb = 1 - capped
			a.WasCapped = true
			a.CapReason = reason
			logger.Warn("Sanity cap applied to market %s: %s", market.ID, reason)
		}
	}
	a.ModelYesProb = modelYes
	a.ModelNoProb = modelNoProb

	if isSuperBowl && math.Abs(modelYes-marketYes) > d.cfg.SuperBowlMaxDeviation {
		logger.Warn("Super Bowl guardrail on market %s: model %.0f%% vs market %.0f%%",
			market.ID, originalYes*100, marketYes*100)
		a.RecommendedAction = models.ActionNoTrade
		a.Verdict = models.VerdictGuardrailSuperBowl
		a.Reason = "Sports miscalibration guardrail triggered (Super Bowl)"
		a.IsSports = true
		a.WasCapped = true
		a.CapReason = "Super Bowl market - automatic skip"
		a.Warning = "Sports markets have high miscalibration risk"
		return a
	}

	a.YesEdge = (modelYes - marketYes) * 100
	a.NoEdge = (modelNoProb - marketNo) * 100

	isShortTerm := horizon < d.cfg.ShortTermDays
	var required float64
	switch {
	case isSports:
		required = d.cfg.MinEdgeSports
		a.Warning = "Sports market - higher risk of miscalibration"
	case isShortTerm:
		required = d.cfg.MinEdgeShortTerm
	default:
		required = d.cfg.MinEdgePercent
	}

	if market.Volume > d.cfg.HighVolumeGuardrail {
		maxEdge := math.Max(a.YesEdge, a.NoEdge)
		if maxEdge > d.cfg.MaxEdgeHighVolume {
			logger.Warn("Implausible edge in high-volume market %s: %.1f%%", market.ID, maxEdge)
			a.RecommendedAction = models.ActionNoTrade
			a.Verdict = models.VerdictGuardrailVolume
			a.Reason = fmt.Sprintf("Implausible %.1f%% edge in high-volume market ($%.1fM volume)",
				maxEdge, market.Volume/1e6)
			a.Warning = "High-volume markets are efficiently priced"
			return a
		}
	}

	effYes := a.YesEdge - d.cfg.ExpectedSlippage
	effNo := a.NoEdge - d.cfg.ExpectedSlippage
	yesROI := SimpleROI(modelYes, marketYes)
	noROI := SimpleROI(modelNoProb, marketNo)

	a.RecommendedAction = models.ActionNoTrade
	a.Verdict = models.VerdictNoEdge

	switch {
	case effYes >= required && effYes > effNo:
		if isShortTerm && yesROI < d.cfg.MinROIShortTerm {
			a.Verdict = models.VerdictShortTermROI
			a.Reason = fmt.Sprintf("YES edge %.1f%% but ROI %.1f%% < %.1f%% required for short-term",
				effYes, yesROI, d.cfg.MinROIShortTerm)
			break
		}
		a.RecommendedAction = models.ActionBuyYes
		a.EdgePercent = effYes
		a.PotentialROI = yesROI
		a.TargetPrice = marketYes * (1 - d.cfg.LimitOrderDiscount)
		a.Reason = fmt.Sprintf("YES undervalued by %.1f%% (model: %.1f%%, market: %.1f%%)",
			effYes, modelYes*100, marketYes*100)
	case effNo >= required && effNo > effYes:
		if isShortTerm && noROI < d.cfg.MinROIShortTerm {
			a.Verdict = models.VerdictShortTermROI
			a.Reason = fmt.Sprintf("NO edge %.1f%% but ROI %.1f%% < %.1f%% required for short-term",
				effNo, noROI, d.cfg.MinROIShortTerm)
			break
		}
		a.RecommendedAction = models.ActionBuyNo
		a.EdgePercent = effNo
		a.PotentialROI = noROI
		a.TargetPrice = marketNo * (1 - d.cfg.LimitOrderDiscount)
		a.Reason = fmt.Sprintf("NO undervalued by %.1f%% (model: %.1f%%, market: %.1f%%)",
			effNo, modelNoProb*100, marketNo*100)
	default:
		if best := math.Max(effYes, effNo); best > 0 {
			a.Reason = fmt.Sprintf("Edge too small: YES %.1f%%, NO %.1f%% < %.1f%% required", effYes, effNo, required)
		} else {
			a.Reason = "Market fairly priced (model ≈ market)"
		}
	}

	a.MeetsThreshold = a.RecommendedAction != models.ActionNoTrade
	if a.MeetsThreshold {
		a.Verdict = models.VerdictTrade
	}
	a.Confidence = confidenceFor(a.EdgePercent, isSports)
	return a
}

// confidenceFor grades an edge. Sports markets are always low confidence.
func confidenceFor(edge float64, isSports bool) models.Confidence {
	if isSports {
		return models.ConfidenceLow
	}
	switch {
	case edge >= 15:
		return models.ConfidenceHigh
	case edge >= 10:
		return models.ConfidenceMedium
	}
	return models.ConfidenceLow
}

func invalidAnalysis(market *models.Market, reason string) models.EdgeAnalysis {
	a := models.EdgeAnalysis{
		Market:            market,
		RecommendedAction: models.ActionNoTrade,
		Verdict:           models.VerdictInvalidMarket,
		Reason:            reason,
		Confidence:        models.ConfidenceLow,
	}
	if market != nil {
		a.MarketYesPrice = market.YesPrice()
		a.MarketNoPrice = market.NoPrice()
	}
	return a
}

// Rank returns the tradeable analyses sorted by edge, highest first.
func Rank(analyses []models.EdgeAnalysis) []models.EdgeAnalysis {
	var tradeable []models.EdgeAnalysis
	for _, a := range analyses {
		if a.MeetsThreshold {
			tradeable = append(tradeable, a)
		}
	}
	sort.SliceStable(tradeable, func(i, j int) bool {
		return tradeable[i].EdgePercent > tradeable[j].EdgePercent
	})
	return tradeable
}
