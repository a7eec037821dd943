package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polyedge/internal/filter"
	"github.com/rewired-gh/polyedge/internal/models"
	"github.com/rewired-gh/polyedge/internal/report"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	failures int
	updates  chan tgbotapi.Update
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {}

func (f *fakeBot) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type fakeStatus struct {
	summary   report.Summary
	ok        bool
	positions []models.Position
	err       error
}

func (f fakeStatus) LastSummary() (report.Summary, bool) { return f.summary, f.ok }

func (f fakeStatus) OpenPositions(context.Context) ([]models.Position, error) {
	return f.positions, f.err
}

func testClient(t *testing.T, bot *fakeBot) *Client {
	t.Helper()
	c, err := newClient(bot, "42", 3, time.Millisecond)
	if err != nil {
		t.Fatalf("newClient() error = %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{1 * time.Hour, "1h"},
		{2 * time.Hour, "2h"},
		{30 * time.Minute, "30m"},
		{1 * time.Minute, "1m"},
	}

	for _, tt := range tests {
		result := formatDuration(tt.duration)
		if result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", tt.duration, result, tt.expected)
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"9.5% (BUY_YES)", `9\.5% \(BUY\_YES\)`},
		{"a-b+c=d!", `a\-b\+c\=d\!`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSend_Retries(t *testing.T) {
	bot := &fakeBot{failures: 2}
	c := testClient(t, bot)

	if err := c.SendRecovery(3); err != nil {
		t.Fatalf("SendRecovery() error = %v", err)
	}
	msgs := bot.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	if msgs[0].ChatID != 42 || msgs[0].ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("message chat/mode = %d/%s, want 42/MarkdownV2", msgs[0].ChatID, msgs[0].ParseMode)
	}
	if !strings.Contains(msgs[0].Text, "after 3 failed cycles") {
		t.Errorf("SendRecovery() text = %q", msgs[0].Text)
	}
}

func TestSend_GivesUp(t *testing.T) {
	bot := &fakeBot{failures: 5}
	c := testClient(t, bot)

	if err := c.SendError(errors.New("fetch failed")); err == nil {
		t.Error("SendError() error = nil, want error after retries")
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	if _, err := newClient(&fakeBot{}, "not-a-number", 3, time.Second); err == nil {
		t.Error("newClient() error = nil, want invalid chat ID error")
	}
}

func testAnalysis(t *testing.T) (*models.EdgeAnalysis, models.PositionRecommendation) {
	t.Helper()
	m, err := models.NewMarket(models.MarketParams{
		ID:            "m1",
		Question:      "Will the Fed cut rates in June?",
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []float64{0.6, 0.4},
		Active:        true,
	})
	if err != nil {
		t.Fatalf("NewMarket() error = %v", err)
	}
	a := &models.EdgeAnalysis{
		Market:            m,
		ModelYesProb:      0.7,
		ModelNoProb:       0.3,
		MarketYesPrice:    0.6,
		MarketNoPrice:     0.4,
		RecommendedAction: models.ActionBuyYes,
		EdgePercent:       9,
		MeetsThreshold:    true,
		Verdict:           models.VerdictTrade,
		TargetPrice:       0.588,
		Confidence:        models.ConfidenceLow,
		DaysToResolution:  30,
		HasEndDate:        true,
	}
	rec := models.PositionRecommendation{ShouldTrade: true, PositionPercent: 2, PositionUSD: 20, RiskLevel: models.RiskModerate}
	return a, rec
}

func TestFormatRecommendation(t *testing.T) {
	a, rec := testAnalysis(t)

	got := formatRecommendation(a, rec)

	for _, want := range []string{
		"[Will the Fed cut rates in June?](https://polymarket.com/markets?_q=",
		`*BUY YES* @ $0\.6000 \(limit $0\.5880\)`,
		`Edge: *9\.0%*`,
		`Model 70\.0% vs market 60\.0%`,
		`Size: *$20\.00* \(2\.0% of bankroll\)`,
		`30 days to resolution`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatRecommendation() missing %q\n%s", want, got)
		}
	}
}

func TestFormatStrategy(t *testing.T) {
	lo := 100.0
	s := &models.BracketStrategy{
		Topic:  "US tariff revenue in 2025",
		Thesis: "Revenue likely LOWER than market expects",
		RecommendedTrades: []models.BracketTrade{
			{Bracket: models.BracketMarket{Label: "<$100b", UpperBound: &lo}, Action: models.ActionBuyYes, Price: 0.2, Edge: 10},
		},
		TotalCost:   20,
		MaxPayout:   100,
		ExpectedROI: 400,
		Confidence:  "Medium-High",
	}

	got := formatStrategy(s)

	for _, want := range []string{
		"*Bracket Strategy*: US tariff revenue in 2025",
		`1\. BUY\_YES <$100b @ 20¢ → edge \+10\.0%`,
		`Expected ROI: *\+400%*`,
		`Confidence: Medium\-High`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatStrategy() missing %q\n%s", want, got)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	s := report.Summary{
		GeneratedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		MarketsScanned:    500,
		MarketsPassed:     8,
		TradesRecommended: 0,
		Rejections:        []filter.ReasonCount{{Reason: "Low total volume", Count: 400}},
		NearMisses:        []filter.Rejection{{Question: "Will it rain?", Reason: "Low 24h volume", URL: "https://example.com/x"}},
	}

	got := formatSummary(s)

	for _, want := range []string{
		"Scanned: 500 \\| Passed: 8 \\| Trades: 0",
		"• Low total volume: 400",
		"*Near misses*",
		"[Will it rain?](https://example.com/x) \\(Low 24h volume\\)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("formatSummary() missing %q\n%s", want, got)
		}
	}
}

func TestHandleCommand(t *testing.T) {
	c := testClient(t, &fakeBot{})
	ctx := context.Background()

	status := fakeStatus{
		summary: report.Summary{GeneratedAt: c.now().Add(-2 * time.Hour), MarketsScanned: 10, MarketsPassed: 3, TradesRecommended: 1},
		ok:      true,
		positions: []models.Position{
			{ID: "p1", Question: "Will it happen?", Action: models.ActionBuyNo, AmountUSD: 12.5, OpenedAt: c.now()},
		},
	}

	tests := []struct {
		name    string
		command string
		status  fakeStatus
		want    string
	}{
		{"status", "status", status, "Last scan: 2h ago"},
		{"status before first scan", "status", fakeStatus{}, "No scan has completed yet"},
		{"positions", "positions", status, `BUY\_NO $12\.50`},
		{"positions total", "positions", status, `Deployed: *$12\.50*`},
		{"no positions", "positions", fakeStatus{}, "No open positions"},
		{"positions error", "positions", fakeStatus{err: errors.New("db closed")}, "db closed"},
		{"unknown", "help", status, "/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.handleCommand(ctx, tt.command, tt.status); !strings.Contains(got, tt.want) {
				t.Errorf("handleCommand(%q) = %q, want it to contain %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestListenForCommands(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 2)}
	c := testClient(t, bot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.ListenForCommands(ctx, fakeStatus{})

	command := func(chatID int64, text string) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			Text:     text,
			Chat:     &tgbotapi.Chat{ID: chatID},
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		}}
	}
	bot.updates <- command(7, "/status")
	bot.updates <- command(42, "/positions")

	deadline := time.Now().Add(2 * time.Second)
	for len(bot.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	msgs := bot.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d replies, want 1 (other chats ignored)", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "No open positions") {
		t.Errorf("reply = %q, want positions answer", msgs[0].Text)
	}
}
