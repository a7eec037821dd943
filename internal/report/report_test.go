package report

import (
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/polyedge/internal/filter"
	"github.com/rewired-gh/polyedge/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testMarket(t *testing.T, id, question string, yes float64) *models.Market {
	t.Helper()
	end := now.Add(45 * 24 * time.Hour)
	m, err := models.NewMarket(models.MarketParams{
		ID:            id,
		Question:      question,
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []float64{yes, 1 - yes},
		Volume:        1_234_567,
		Volume24h:     45_000,
		EndDate:       &end,
		Active:        true,
	})
	if err != nil {
		t.Fatalf("NewMarket() error = %v", err)
	}
	return m
}

func TestRecommendation(t *testing.T) {
	m := testMarket(t, "m1", "Will the Fed cut rates in June?", 0.60)
	a := &models.EdgeAnalysis{
		Market:            m,
		ModelYesProb:      0.70,
		ModelNoProb:       0.30,
		MarketYesPrice:    0.60,
		MarketNoPrice:     0.40,
		YesEdge:           10,
		NoEdge:            -10,
		RecommendedAction: models.ActionBuyYes,
		EdgePercent:       9,
		MeetsThreshold:    true,
		Reason:            "YES undervalued by 9.0% (model: 70.0%, market: 60.0%)",
		Verdict:           models.VerdictTrade,
		TargetPrice:       0.588,
		PotentialROI:      16.7,
		Confidence:        models.ConfidenceLow,
		DaysToResolution:  45,
		HasEndDate:        true,
		WasCapped:         true,
		CapReason:         "Model capped at 20% deviation from market",
	}
	rec := models.PositionRecommendation{
		ShouldTrade:     true,
		PositionPercent: 2,
		PositionUSD:     20,
		Verdict:         models.VerdictTrade,
		RiskLevel:       models.RiskModerate,
	}

	out := Recommendation(a, rec, now)

	for _, want := range []string{
		"POLYMARKET TRADE RECOMMENDATION",
		"Generated: 2026-03-01 12:00:00 UTC",
		"Question: Will the Fed cut rates in June?",
		"Total Volume: $1,234,567",
		"Volume (24h): $45,000",
		"Resolution Date: April 15, 2026 (45 days)",
		"Estimated probability of YES: 70.0%",
		"YES edge: +10.0%",
		"Detected edge: 9.0% on YES",
		"ACTION: BUY YES",
		"Target Entry Price: $0.6000 (market order) / $0.5880 (limit order)",
		"Position Size: 2.0% of bankroll (~ $20.00)",
		"Risk Level: MODERATE",
		"MODEL ADJUSTMENT APPLIED",
		"Model capped at 20% deviation from market",
		"5. Enter amount: $20.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Recommendation() missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "SPORTS MARKET WARNING") {
		t.Error("Recommendation() contains sports warning for a non-sports market")
	}
}

func TestRecommendation_Rejected(t *testing.T) {
	m := testMarket(t, "m1", "Will the Super Bowl go to overtime?", 0.30)
	a := &models.EdgeAnalysis{
		Market:            m,
		ModelYesProb:      0.60,
		ModelNoProb:       0.40,
		MarketYesPrice:    0.30,
		MarketNoPrice:     0.70,
		RecommendedAction: models.ActionNoTrade,
		Reason:            "Sports miscalibration guardrail triggered (Super Bowl)",
		Verdict:           models.VerdictGuardrailSuperBowl,
		Confidence:        models.ConfidenceLow,
		IsSports:          true,
	}
	rec := models.PositionRecommendation{
		Reason:    a.Reason,
		Verdict:   a.Verdict,
		RiskLevel: models.RiskNotApplicable,
	}

	out := Recommendation(a, rec, now)

	for _, want := range []string{"ACTION: NO TRADE", "Why not: Sports miscalibration", "SPORTS MARKET WARNING", "Threshold: NOT MET"} {
		if !strings.Contains(out, want) {
			t.Errorf("Recommendation() missing %q", want)
		}
	}
	if strings.Contains(out, "HOW TO EXECUTE") {
		t.Error("Recommendation() shows execution steps for a rejected trade")
	}
}

func TestNoTrade(t *testing.T) {
	days := 12
	nearMisses := []filter.Rejection{
		{MarketID: "a", Question: "Will BTC hit $150k?", Reason: "Too close to resolution: 12 days < 30 days", Score: 50,
			Category: "Crypto", Volume: 900_000, Volume24h: 20_000, DaysToResolution: &days, Prices: []float64{0.2, 0.8}, URL: "https://example.com/a"},
		{MarketID: "b", Question: "Will it rain?", Reason: "Low total volume: $100,000 < $150,000", Score: 66},
	}

	out := NoTrade("No markets passed filters", nearMisses, now)

	for _, want := range []string{
		"RECOMMENDATION: NO TRADE",
		"Reason: No markets passed filters",
		"1. Will BTC hit $150k?",
		"Volume: $900,000 | 24h: $20,000",
		"Days to resolution: 12",
		"Prices: Yes $0.20 / No $0.80",
		"Category: Crypto",
		"Near-miss score: 50/100",
		"2. Will it rain?",
		"Days to resolution: ?",
		"Category: Other",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("NoTrade() missing %q\n%s", want, out)
		}
	}

	if strings.Contains(NoTrade("nothing", nil, now), "CHECK THESE MANUALLY") {
		t.Error("NoTrade() without near misses lists near misses")
	}
}

func testStrategy(t *testing.T) *models.BracketStrategy {
	lo, hi := 100.0, 200.0
	under := models.BracketMarket{Market: testMarket(t, "b1", "US tariff revenue in 2025: <$100b?", 0.29), Label: "<$100b", UpperBound: &lo}
	mid := models.BracketMarket{Market: testMarket(t, "b2", "US tariff revenue in 2025: $100-200b?", 0.30), Label: "$100-200b", LowerBound: &lo, UpperBound: &hi}
	return &models.BracketStrategy{
		Topic:    "US tariff revenue in 2025",
		Thesis:   "Revenue likely LOWER than market expects",
		Brackets: []models.BracketMarket{under, mid},
		RecommendedTrades: []models.BracketTrade{
			{Bracket: under, Action: models.ActionBuyYes, Price: 0.29, ModelProb: 0.40, Edge: 11, Cost: 29, Payout: 100},
			{Bracket: mid, Action: models.ActionBuyNo, Price: 0.70, ModelProb: 0.80, Edge: 10, Cost: 70, Payout: 100},
		},
		TotalCost:   99,
		MaxPayout:   200,
		ExpectedROI: 102,
		Confidence:  "Medium-High",
	}
}

func TestBracket(t *testing.T) {
	out := Bracket(testStrategy(t))

	for _, want := range []string{
		"COMBINED BRACKET STRATEGY: US tariff revenue in 2025",
		"Overall Thesis: Revenue likely LOWER than market expects",
		"BUY YES on <$100b @ ~29c -> Edge +11.0%",
		"BUY NO on $100-200b @ ~30c (Yes price) -> Edge +10.0% on No",
		"Total estimated cost: $99 for $200 potential payout",
		"+102%",
		"$100-200b (Buy No): https://polymarket.com/markets?_q=",
		"Confidence: Medium-High",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Bracket() missing %q\n%s", want, out)
		}
	}
}

func TestDaily(t *testing.T) {
	s := Summary{
		GeneratedAt:       now,
		MarketsScanned:    500,
		MarketsPassed:     8,
		TradesRecommended: 2,
		Rejections:        []filter.ReasonCount{{Reason: "Low total volume", Count: 400}, {Reason: "No resolution date", Count: 92}},
		NearMisses: []filter.Rejection{
			{Question: "Will it rain?", Reason: "Low total volume: $100,000 < $150,000", Volume: 100_000, URL: "https://example.com/rain"},
		},
		Analyzed: []AnalyzedRow{
			{Question: "Will the Fed cut rates in June?", ModelProb: 0.7, MarketPrice: 0.6, Edge: 9, Action: models.ActionBuyYes, Verdict: models.VerdictTrade, PositionUSD: 20, URL: "https://example.com/fed"},
			{Question: "Will GDP grow?", ModelProb: 0.5, MarketPrice: 0.5, Edge: 0, Action: models.ActionNoTrade, Verdict: models.VerdictNoEdge},
		},
		Strategies: []*models.BracketStrategy{testStrategy(t)},
	}

	out := Daily(s)

	for _, want := range []string{
		"POLYMARKET DAILY TRADING SUMMARY",
		"| Markets scanned         |            500 |",
		"| Hit rate                |          25.0% |",
		"  - Low total volume: 400",
		"COMBINED BRACKET STRATEGY",
		"|>>>Will the Fed cut rates in June?",
		"* BUY_YES *",
		"[1] Will the Fed cut rates in June?",
		"TRADE HERE: https://example.com/fed",
		"NEAR-MISS MARKETS",
		"Low total volume",
		"1. https://example.com/rain",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Daily() missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "[2]") {
		t.Error("Daily() lists a non-recommended market as a trade")
	}
}

func TestHitRate(t *testing.T) {
	if got := (Summary{}).HitRate(); got != 0 {
		t.Errorf("HitRate() = %v, want 0", got)
	}
	if got := (Summary{MarketsPassed: 4, TradesRecommended: 1}).HitRate(); got != 25 {
		t.Errorf("HitRate() = %v, want 25", got)
	}
}
