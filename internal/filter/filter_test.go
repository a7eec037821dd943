package filter

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rewired-gh/polyedge/internal/models"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type marketOpt func(*models.MarketParams)

func withVolume(total, day float64) marketOpt {
	return func(p *models.MarketParams) { p.Volume, p.Volume24h = total, day }
}

func withDays(d int) marketOpt {
	return func(p *models.MarketParams) {
		end := now.Add(time.Duration(d)*24*time.Hour + time.Hour)
		p.EndDate = &end
	}
}

func withYes(yes float64) marketOpt {
	return func(p *models.MarketParams) { p.OutcomePrices = []float64{yes, 1 - yes} }
}

func noEnd() marketOpt {
	return func(p *models.MarketParams) { p.EndDate = nil }
}

func market(t *testing.T, id string, opts ...marketOpt) *models.Market {
	t.Helper()
	end := now.Add(60*24*time.Hour + time.Hour)
	p := models.MarketParams{
		ID:            id,
		Question:      "Will inflation exceed 3% this year?",
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []float64{0.4, 0.6},
		Volume:        500_000,
		Volume24h:     50_000,
		EndDate:       &end,
		Active:        true,
	}
	for _, o := range opts {
		o(&p)
	}
	m, err := models.NewMarket(p)
	if err != nil {
		t.Fatalf("NewMarket() error = %v", err)
	}
	return m
}

func TestCheck(t *testing.T) {
	f := New(StrictConfig()).WithClock(func() time.Time { return now })

	closed := market(t, "c")
	closed.Closed = true
	inactive := market(t, "i")
	inactive.Active = false

	tests := []struct {
		name       string
		m          *models.Market
		wantReason string
		wantScore  float64
	}{
		{"passes", market(t, "ok"), "", 100},
		{"closed", closed, "Market is closed", 0},
		{"inactive", inactive, "Market is not active", 0},
		{"low volume", market(t, "v", withVolume(75_000, 50_000)), "Low total volume: $75,000 < $150,000", 50},
		{"low 24h volume", market(t, "v24", withVolume(500_000, 1_000)), "Low 24h volume: $1,000 < $10,000", 50},
		{"no end date", market(t, "e", noEnd()), "No resolution date", 0},
		{"too close", market(t, "tc", withDays(10)), "Too close to resolution: 10 days < 30 days", 50},
		{"too far", market(t, "tf", withDays(400)), "Too far from resolution: 400 days > 180 days", 30},
		{"too certain", market(t, "hi", withYes(0.95)), "Outcome too certain: highest price $0.95 > $0.90", 75},
		{"skewed market is too certain", market(t, "lo", withYes(0.03)), "Outcome too certain: highest price $0.97 > $0.90", 65},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, score := f.Check(tt.m)
			if reason != tt.wantReason {
				t.Errorf("Check() reason = %q, want %q", reason, tt.wantReason)
			}
			if math.Abs(score-tt.wantScore) > 1e-6 {
				t.Errorf("Check() score = %v, want %v", score, tt.wantScore)
			}
		})
	}
}

func TestCheck_LowPrice(t *testing.T) {
	cfg := StrictConfig()
	cfg.MaxHighPrice = 1.0
	f := New(cfg).WithClock(func() time.Time { return now })

	reason, score := f.Check(market(t, "lo", withYes(0.03)))
	if reason != "Outcome too unlikely: lowest price $0.03 < $0.05" {
		t.Errorf("Check() reason = %q", reason)
	}
	if math.Abs(score-40) > 1e-6 {
		t.Errorf("Check() score = %v, want 40", score)
	}
}

func TestCheck_EOYNearTerm(t *testing.T) {
	cfg := EOYConfig()
	cfg.MinDaysToResolution = 7
	f := New(cfg).WithClock(func() time.Time { return now })

	_, score := f.Check(market(t, "x", withDays(3)))
	if math.Abs(score-90) > 1e-6 {
		t.Errorf("Check() score = %v, want 90", score)
	}
}

func TestApply(t *testing.T) {
	f := New(StrictConfig()).WithClock(func() time.Time { return now })

	markets := []*models.Market{
		market(t, "a"),
		market(t, "b", withVolume(140_000, 50_000)),
		market(t, "c", withDays(10)),
		market(t, "d", noEnd()),
		market(t, "e"),
	}
	for i := 0; i < 6; i++ {
		markets = append(markets, market(t, fmt.Sprintf("v%d", i), withVolume(float64(100_000+i*1000), 50_000)))
	}

	res := f.Apply(markets)

	if len(res.Passed) != 2 || res.Passed[0].ID != "a" || res.Passed[1].ID != "e" {
		t.Errorf("Apply() passed = %v, want [a e]", ids(res.Passed))
	}
	if len(res.Rejections) != 9 {
		t.Errorf("Apply() rejections = %d, want 9", len(res.Rejections))
	}
	if len(res.NearMisses) != maxNearMisses {
		t.Fatalf("Apply() near misses = %d, want %d", len(res.NearMisses), maxNearMisses)
	}
	if res.NearMisses[0].MarketID != "b" {
		t.Errorf("Apply() best near miss = %s, want b", res.NearMisses[0].MarketID)
	}
	for i := 1; i < len(res.NearMisses); i++ {
		if res.NearMisses[i].Score > res.NearMisses[i-1].Score {
			t.Errorf("Apply() near misses not sorted at %d", i)
		}
	}

	summary := res.Summary()
	if summary[0].Reason != "Low total volume" || summary[0].Count != 7 {
		t.Errorf("Summary()[0] = %+v, want Low total volume x7", summary[0])
	}
}

func TestRejectionTruncatesQuestion(t *testing.T) {
	f := New(StrictConfig()).WithClock(func() time.Time { return now })
	m := market(t, "long", withVolume(1, 0))
	m.Question = strings.Repeat("x", 80)

	res := f.Apply([]*models.Market{m})

	if got := res.Rejections[0].Question; len(got) != 63 || !strings.HasSuffix(got, "...") {
		t.Errorf("Rejection.Question = %q", got)
	}
}

func TestRejectionTruncatesMultibyteQuestion(t *testing.T) {
	f := New(StrictConfig()).WithClock(func() time.Time { return now })
	m := market(t, "dash", withVolume(1, 0))
	m.Question = strings.Repeat("a", 59) + "–" + strings.Repeat("b", 20)

	got := f.Apply([]*models.Market{m}).Rejections[0].Question

	if !utf8.ValidString(got) {
		t.Fatalf("Rejection.Question = %q, not valid UTF-8", got)
	}
	if want := strings.Repeat("a", 59) + "–..."; got != want {
		t.Errorf("Rejection.Question = %q, want %q", got, want)
	}
}

func TestConfigForMode(t *testing.T) {
	for _, mode := range []string{"strict", "relaxed", "eoy", "test"} {
		cfg, err := ConfigForMode(mode)
		if err != nil {
			t.Fatalf("ConfigForMode(%q) error = %v", mode, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("ConfigForMode(%q).Validate() = %v", mode, err)
		}
	}
	if _, err := ConfigForMode("nope"); err == nil {
		t.Error("ConfigForMode(nope) error = nil, want error")
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		q    string
		want string
	}{
		{"Will Trump win the election?", "Politics"},
		{"Will Bitcoin hit $150k?", "Crypto"},
		{"Will the Fed cut rates?", "Economics"},
		{"Will it snow in Paris?", ""},
	}
	for _, tt := range tests {
		if got := InferCategory(tt.q); got != tt.want {
			t.Errorf("InferCategory(%q) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func ids(ms []*models.Market) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
