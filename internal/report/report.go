// Package report renders decisions as plain text for the terminal, log files
// and e-mail style summaries. It only formats; every number shown comes from
// an EdgeAnalysis, PositionRecommendation or BracketStrategy as produced.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/polyedge/internal/filter"
	"github.com/rewired-gh/polyedge/internal/models"
)

var (
	rule     = strings.Repeat("=", 80)
	thinRule = strings.Repeat("-", 80)
	wideRule = strings.Repeat("=", 100)
)

// AnalyzedRow is one market's outcome in a scan.
type AnalyzedRow struct {
	MarketID    string             `json:"market_id"`
	Question    string             `json:"question"`
	URL         string             `json:"url"`
	ModelProb   float64            `json:"model_prob"`
	MarketPrice float64            `json:"market_price"`
	Edge        float64            `json:"edge"`
	Action      models.TradeAction `json:"action"`
	Verdict     models.Verdict     `json:"verdict"`
	PositionUSD float64            `json:"position_usd"`
}

// Recommended reports whether the row carries a trade.
func (r AnalyzedRow) Recommended() bool {
	return r.Verdict == models.VerdictTrade
}

// Summary is the outcome of one scan cycle.
type Summary struct {
	GeneratedAt       time.Time                 `json:"generated_at"`
	MarketsScanned    int                       `json:"markets_scanned"`
	MarketsPassed     int                       `json:"markets_passed"`
	TradesRecommended int                       `json:"trades_recommended"`
	Rejections        []filter.ReasonCount      `json:"rejections"`
	NearMisses        []filter.Rejection        `json:"near_misses"`
	Analyzed          []AnalyzedRow             `json:"analyzed"`
	Strategies        []*models.BracketStrategy `json:"strategies"`
	Errors            int                       `json:"errors"`
	PositionsClosed   int                       `json:"positions_closed"`
	Notice            string                    `json:"notice,omitempty"`
}

// HitRate is the percentage of filtered markets that produced a trade.
func (s Summary) HitRate() float64 {
	if s.MarketsPassed == 0 {
		return 0
	}
	return float64(s.TradesRecommended) / float64(s.MarketsPassed) * 100
}

// Recommendation renders a single analysed market with its sizing outcome.
func Recommendation(a *models.EdgeAnalysis, rec models.PositionRecommendation, now time.Time) string {
	m := a.Market
	if m == nil {
		return NoTrade(a.Reason, nil, now)
	}

	outcome := "N/A"
	switch a.RecommendedAction {
	case models.ActionBuyYes:
		outcome = "YES"
	case models.ActionBuyNo:
		outcome = "NO"
	}

	resolution := "Unknown (Unknown days)"
	if m.EndDate != nil {
		resolution = fmt.Sprintf("%s (%d days)", m.EndDate.Format("January 02, 2006"), a.DaysToResolution)
	}

	met := "NOT MET"
	if a.MeetsThreshold {
		met = "MET"
	}

	action := "NO TRADE"
	if rec.ShouldTrade {
		action = "BUY " + outcome
	}

	var b strings.Builder
	header(&b, "POLYMARKET TRADE RECOMMENDATION", now)

	section(&b, "MARKET DETAILS")
	fmt.Fprintf(&b, "Question: %s\n", m.Question)
	fmt.Fprintf(&b, "Market Link: %s\n", m.URL())
	fmt.Fprintf(&b, "Current YES Price: $%.4f\n", a.MarketYesPrice)
	fmt.Fprintf(&b, "Current NO Price: $%.4f\n", a.MarketNoPrice)
	fmt.Fprintf(&b, "Volume (24h): $%s\n", usd(m.Volume24h))
	fmt.Fprintf(&b, "Total Volume: $%s\n", usd(m.Volume))
	fmt.Fprintf(&b, "Resolution Date: %s\n", resolution)

	section(&b, "MODEL FORECAST")
	fmt.Fprintf(&b, "Estimated probability of YES: %.1f%%\n", a.ModelYesProb*100)
	fmt.Fprintf(&b, "Estimated probability of NO: %.1f%%\n", a.ModelNoProb*100)
	fmt.Fprintf(&b, "Confidence: %s\n", strings.ToUpper(string(a.Confidence)))

	section(&b, "EDGE ANALYSIS")
	fmt.Fprintf(&b, "YES edge: %+.1f%%\n", a.YesEdge)
	fmt.Fprintf(&b, "NO edge: %+.1f%%\n", a.NoEdge)
	fmt.Fprintf(&b, "Detected edge: %.1f%% on %s\n", a.EdgePercent, outcome)
	fmt.Fprintf(&b, "Potential ROI: %.1f%%\n", a.PotentialROI)
	fmt.Fprintf(&b, "Threshold: %s\n", met)
	fmt.Fprintf(&b, "Reason: %s\n", a.Reason)

	section(&b, "TRADE RECOMMENDATION")
	fmt.Fprintf(&b, "ACTION: %s\n", action)
	if rec.ShouldTrade {
		fmt.Fprintf(&b, "Target Entry Price: $%.4f (market order) / $%.4f (limit order)\n", a.EntryPrice(), a.TargetPrice)
	}
	fmt.Fprintf(&b, "Position Size: %.1f%% of bankroll (~ $%.2f)\n", rec.PositionPercent, rec.PositionUSD)
	fmt.Fprintf(&b, "Risk Level: %s\n", rec.RiskLevel)
	if !rec.ShouldTrade {
		fmt.Fprintf(&b, "Why not: %s\n", rec.Reason)
	}

	if a.IsSports {
		section(&b, "SPORTS MARKET WARNING")
		b.WriteString("Sports predictions are often miscalibrated. Consider halving the position\n")
		b.WriteString("and verifying with external sports analysis.\n")
	}
	if a.Warning != "" && !a.IsSports {
		fmt.Fprintf(&b, "\nWarning: %s\n", a.Warning)
	}
	if a.WasCapped {
		section(&b, "MODEL ADJUSTMENT APPLIED")
		fmt.Fprintf(&b, "%s\n", a.CapReason)
		b.WriteString("Original model output was adjusted to prevent overconfident predictions.\n")
	}

	if rec.ShouldTrade {
		section(&b, "HOW TO EXECUTE ON POLYMARKET.COM")
		fmt.Fprintf(&b, "1. Visit: %s\n", m.URL())
		fmt.Fprintf(&b, "2. Click on the %s outcome\n", outcome)
		fmt.Fprintf(&b, "3. For market order: Buy at $%.4f\n", a.EntryPrice())
		fmt.Fprintf(&b, "4. For limit order: Set limit price at $%.4f\n", a.TargetPrice)
		fmt.Fprintf(&b, "5. Enter amount: $%.2f\n", rec.PositionUSD)
		b.WriteString("6. Review and confirm\n")
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString("This is automated analysis. Always verify and use your judgment.\n")
	b.WriteString(rule + "\n")
	return b.String()
}

// NoTrade renders a no-trade notice, listing near misses worth a manual look.
func NoTrade(reason string, nearMisses []filter.Rejection, now time.Time) string {
	var b strings.Builder
	header(&b, "POLYMARKET ANALYSIS - NO TRADE RECOMMENDED", now)
	b.WriteString("\nRECOMMENDATION: NO TRADE\n\n")
	fmt.Fprintf(&b, "Reason: %s\n", reason)

	if len(nearMisses) > 0 {
		section(&b, "NO STRONG RECOMMENDATIONS, BUT CHECK THESE MANUALLY")
		b.WriteString("These markets almost passed our filters and may be worth a look:\n")
		for i, nm := range nearMisses {
			if i == 5 {
				break
			}
			category := nm.Category
			if category == "" {
				category = "Other"
			}
			days := "?"
			if nm.DaysToResolution != nil {
				days = fmt.Sprint(*nm.DaysToResolution)
			}
			fmt.Fprintf(&b, "\n%d. %s\n", i+1, nm.Question)
			fmt.Fprintf(&b, "   Volume: $%s | 24h: $%s\n", usd(nm.Volume), usd(nm.Volume24h))
			fmt.Fprintf(&b, "   Days to resolution: %s\n", days)
			fmt.Fprintf(&b, "   Prices: Yes $%.2f / No $%.2f\n", price(nm.Prices, 0), price(nm.Prices, 1))
			fmt.Fprintf(&b, "   Category: %s\n", category)
			fmt.Fprintf(&b, "   Why filtered: %s\n", nm.Reason)
			fmt.Fprintf(&b, "   Near-miss score: %.0f/100\n", nm.Score)
			fmt.Fprintf(&b, "   Link: %s\n", nm.URL)
		}
	}

	b.WriteString("\n" + rule + "\n")
	return b.String()
}

// Bracket renders a combined bracket strategy.
func Bracket(s *models.BracketStrategy) string {
	var b strings.Builder
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "COMBINED BRACKET STRATEGY: %s\n", s.Topic)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Overall Thesis: %s\n\n", s.Thesis)

	b.WriteString("Recommended Trades:\n")
	for _, t := range s.RecommendedTrades {
		action := strings.ReplaceAll(string(t.Action), "_", " ")
		if t.Action == models.ActionBuyNo {
			fmt.Fprintf(&b, "  * %s on %s @ ~%dc (Yes price) -> Edge +%.1f%% on No\n",
				action, t.Bracket.Label, cents(t.Bracket.Market.YesPrice()), t.Edge)
			continue
		}
		fmt.Fprintf(&b, "  * %s on %s @ ~%dc -> Edge +%.1f%%\n", action, t.Bracket.Label, cents(t.Price), t.Edge)
	}

	fmt.Fprintf(&b, "\nTotal estimated cost: $%.0f for $%.0f potential payout\n", s.TotalCost, s.MaxPayout)
	fmt.Fprintf(&b, "Expected return if the likely brackets hit: %+.0f%%\n", s.ExpectedROI)
	b.WriteString("Max loss: all wrong -> -100%\n\n")

	b.WriteString("Direct links:\n")
	for _, t := range s.RecommendedTrades {
		note := ""
		if t.Action == models.ActionBuyNo {
			note = " (Buy No)"
		}
		fmt.Fprintf(&b, "  - %s%s: %s\n", t.Bracket.Label, note, t.Bracket.Market.URL())
	}

	fmt.Fprintf(&b, "\nConfidence: %s\n", s.Confidence)
	b.WriteString(rule + "\n")
	return b.String()
}

// Daily renders the scan summary with rejection counts, analysed markets,
// bracket strategies and near misses.
func Daily(s Summary) string {
	var b strings.Builder
	b.WriteString(wideRule + "\n")
	b.WriteString("                              POLYMARKET DAILY TRADING SUMMARY\n")
	b.WriteString(wideRule + "\n\n")
	fmt.Fprintf(&b, "Generated: %s UTC\n\n", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05"))
	if s.Notice != "" {
		fmt.Fprintf(&b, "Note: %s\n\n", s.Notice)
	}

	border := "+-------------------------+----------------+\n"
	b.WriteString(border)
	b.WriteString("| SCAN RESULTS            |                |\n")
	b.WriteString(border)
	fmt.Fprintf(&b, "| Markets scanned         | %14d |\n", s.MarketsScanned)
	fmt.Fprintf(&b, "| Markets passing filters | %14d |\n", s.MarketsPassed)
	fmt.Fprintf(&b, "| Trades recommended      | %14d |\n", s.TradesRecommended)
	fmt.Fprintf(&b, "| Hit rate                | %13.1f%% |\n", s.HitRate())
	if s.PositionsClosed > 0 {
		fmt.Fprintf(&b, "| Positions closed        | %14d |\n", s.PositionsClosed)
	}
	if s.Errors > 0 {
		fmt.Fprintf(&b, "| Errors                  | %14d |\n", s.Errors)
	}
	b.WriteString(border)

	if len(s.Rejections) > 0 {
		b.WriteString("\nREJECTION BREAKDOWN\n")
		for _, rc := range s.Rejections {
			fmt.Fprintf(&b, "  - %s: %d\n", rc.Reason, rc.Count)
		}
	}

	for _, st := range s.Strategies {
		b.WriteString("\n")
		b.WriteString(Bracket(st))
	}

	if len(s.Analyzed) > 0 {
		analyzedTable(&b, s.Analyzed)
	}
	if len(s.NearMisses) > 0 {
		nearMissTable(&b, s.NearMisses)
	}
	return b.String()
}

func analyzedTable(b *strings.Builder, rows []AnalyzedRow) {
	b.WriteString("\n" + wideRule + "\n")
	b.WriteString("                              MARKETS ANALYZED\n")
	b.WriteString(wideRule + "\n\n")

	sep := fmt.Sprintf("+%s+%s+%s+%s+%s+\n",
		strings.Repeat("-", 50), strings.Repeat("-", 8), strings.Repeat("-", 8), strings.Repeat("-", 8), strings.Repeat("-", 15))
	b.WriteString(sep)
	fmt.Fprintf(b, "| %-48s | %6s | %6s | %6s | %-13s |\n", "MARKET", "MODEL", "PRICE", "EDGE", "ACTION")
	b.WriteString(sep)
	for i, r := range rows {
		if i == 15 {
			break
		}
		marker, action := "   ", string(r.Action)
		if r.Recommended() {
			marker, action = ">>>", "* "+action+" *"
		}
		fmt.Fprintf(b, "|%s%-47s | %5.0f%% | %5.0f%% | %+5.1f%% | %-13s |\n",
			marker, truncate(r.Question, 47), r.ModelProb*100, r.MarketPrice*100, r.Edge, action)
	}
	b.WriteString(sep)

	var recommended []AnalyzedRow
	for _, r := range rows {
		if r.Recommended() {
			recommended = append(recommended, r)
		}
	}
	if len(recommended) == 0 {
		return
	}
	b.WriteString("\n>>> RECOMMENDED TRADES <<<\n")
	for i, r := range recommended {
		fmt.Fprintf(b, "\n  [%d] %s\n", i+1, r.Question)
		fmt.Fprintf(b, "      ACTION: %s | Edge: %+.1f%% | Model: %.0f%% vs Market: %.0f%% | Size: $%.2f\n",
			r.Action, r.Edge, r.ModelProb*100, r.MarketPrice*100, r.PositionUSD)
		fmt.Fprintf(b, "      TRADE HERE: %s\n", r.URL)
	}
}

func nearMissTable(b *strings.Builder, nearMisses []filter.Rejection) {
	b.WriteString("\n" + wideRule + "\n")
	b.WriteString("                     NEAR-MISS MARKETS (Review Manually)\n")
	b.WriteString(wideRule + "\n")

	sep := fmt.Sprintf("+%s+%s+%s+\n", strings.Repeat("-", 70), strings.Repeat("-", 15), strings.Repeat("-", 26))
	b.WriteString(sep)
	fmt.Fprintf(b, "| %-68s | %13s | %-24s |\n", "MARKET", "VOLUME", "REASON")
	b.WriteString(sep)
	for _, nm := range nearMisses {
		prefix, _, _ := strings.Cut(nm.Reason, ":")
		fmt.Fprintf(b, "| %-68s | $%12s | %-24s |\n", truncate(nm.Question, 68), usd(nm.Volume), truncate(prefix, 24))
	}
	b.WriteString(sep)

	b.WriteString("\nMANUAL CHECK LINKS:\n")
	for i, nm := range nearMisses {
		fmt.Fprintf(b, "  %d. %s\n", i+1, nm.URL)
	}
}

func header(b *strings.Builder, title string, now time.Time) {
	b.WriteString(rule + "\n")
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(b, "Generated: %s UTC\n", now.UTC().Format("2006-01-02 15:04:05"))
}

func section(b *strings.Builder, title string) {
	b.WriteString("\n" + title + "\n")
	b.WriteString(thinRule + "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func price(prices []float64, i int) float64 {
	if i < len(prices) {
		return prices[i]
	}
	return 0
}

func cents(p float64) int {
	return int(math.Round(p * 100))
}

func usd(v float64) string {
	return humanize.Comma(int64(math.Round(v)))
}
