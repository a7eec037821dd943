// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats trade recommendations, bracket strategies and scan summaries into
// MarkdownV2 messages and handles delivery with retry logic for reliability.
//
// The client also answers /status and /positions commands from the configured
// chat while ListenForCommands is running.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
	"github.com/rewired-gh/polyedge/internal/report"
)

// botAPI is the subset of tgbotapi.BotAPI used by Client.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// StatusProvider supplies the data behind /status and /positions.
type StatusProvider interface {
	LastSummary() (report.Summary, bool)
	OpenPositions(ctx context.Context) ([]models.Position, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            botAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	now            func() time.Time
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot botAPI, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		now:            time.Now,
	}, nil
}

// SendRecommendation notifies about a sized trade.
func (c *Client) SendRecommendation(a *models.EdgeAnalysis, rec models.PositionRecommendation) error {
	return c.send(formatRecommendation(a, rec))
}

// SendStrategy notifies about a bracket strategy.
func (c *Client) SendStrategy(s *models.BracketStrategy) error {
	return c.send(formatStrategy(s))
}

// SendSummary sends the scan summary.
func (c *Client) SendSummary(s report.Summary) error {
	return c.send(formatSummary(s))
}

// SendError reports a failed scan cycle.
func (c *Client) SendError(err error) error {
	msg := fmt.Sprintf("⚠️ *Scan cycle failed*\n\n%s\n\n📅 %s",
		escapeMarkdownV2(err.Error()),
		escapeMarkdownV2(c.now().UTC().Format("2006-01-02 15:04:05")))
	return c.send(msg)
}

// SendRecovery reports that scanning works again after failures.
func (c *Client) SendRecovery(consecutiveFailures int) error {
	msg := fmt.Sprintf("✅ *Scanning recovered* after %d failed cycle%s",
		consecutiveFailures, plural(consecutiveFailures))
	return c.send(msg)
}

// send delivers a MarkdownV2 message with retry
func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send failed (attempt %d/%d): %v", i+1, c.maxRetries, err)
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// ListenForCommands answers bot commands until ctx is cancelled. It returns
// immediately; updates are processed in a background goroutine.
func (c *Client) ListenForCommands(ctx context.Context, status StatusProvider) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		defer c.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != c.chatID {
					continue
				}
				if !update.Message.IsCommand() {
					continue
				}
				reply := c.handleCommand(ctx, update.Message.Command(), status)
				if err := c.send(reply); err != nil {
					logger.Warn("Failed to answer /%s: %v", update.Message.Command(), err)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, command string, status StatusProvider) string {
	switch command {
	case "status":
		s, ok := status.LastSummary()
		if !ok {
			return "⏳ No scan has completed yet\\."
		}
		return fmt.Sprintf("📊 *Status*\n\nLast scan: %s ago\nScanned: %d \\| Passed: %d \\| Trades: %d",
			escapeMarkdownV2(formatDuration(c.now().Sub(s.GeneratedAt))),
			s.MarketsScanned, s.MarketsPassed, s.TradesRecommended)

	case "positions":
		positions, err := status.OpenPositions(ctx)
		if err != nil {
			return "❌ " + escapeMarkdownV2(err.Error())
		}
		if len(positions) == 0 {
			return "📭 No open positions\\."
		}
		var b strings.Builder
		var total float64
		fmt.Fprintf(&b, "💼 *Open positions* \\(%d\\)\n\n", len(positions))
		for i, p := range positions {
			total += p.AmountUSD
			fmt.Fprintf(&b, "%d\\. %s %s\n   %s since %s\n", i+1,
				escapeMarkdownV2(string(p.Action)),
				escapeMarkdownV2(fmt.Sprintf("$%.2f", p.AmountUSD)),
				escapeMarkdownV2(p.Question),
				escapeMarkdownV2(p.OpenedAt.UTC().Format("2006-01-02")))
		}
		fmt.Fprintf(&b, "\nDeployed: *%s*", escapeMarkdownV2(fmt.Sprintf("$%.2f", total)))
		return b.String()
	}
	return "Commands: /status, /positions"
}

// formatRecommendation formats a sized trade into a Telegram message
func formatRecommendation(a *models.EdgeAnalysis, rec models.PositionRecommendation) string {
	var b strings.Builder
	b.WriteString("🎯 *Trade Recommendation*\n\n")

	if a.Market != nil {
		fmt.Fprintf(&b, "[%s](%s)\n\n", escapeMarkdownV2(a.Market.Question), escapeURL(a.Market.URL()))
	}

	side := strings.TrimPrefix(string(a.RecommendedAction), "BUY_")
	fmt.Fprintf(&b, "*BUY %s* @ %s \\(limit %s\\)\n",
		side,
		escapeMarkdownV2(fmt.Sprintf("$%.4f", a.EntryPrice())),
		escapeMarkdownV2(fmt.Sprintf("$%.4f", a.TargetPrice)))
	fmt.Fprintf(&b, "📈 Edge: *%s* \\| Confidence: %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", a.EdgePercent)),
		escapeMarkdownV2(string(a.Confidence)))
	fmt.Fprintf(&b, "🧮 Model %s vs market %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", a.WinProbability()*100)),
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", a.EntryPrice()*100)))
	fmt.Fprintf(&b, "💵 Size: *%s* \\(%s of bankroll\\)\n",
		escapeMarkdownV2(fmt.Sprintf("$%.2f", rec.PositionUSD)),
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", rec.PositionPercent)))
	fmt.Fprintf(&b, "⏱ Risk: %s", escapeMarkdownV2(rec.RiskLevel))
	if a.HasEndDate {
		fmt.Fprintf(&b, " \\| %d days to resolution", a.DaysToResolution)
	}
	b.WriteString("\n")

	if a.Warning != "" {
		fmt.Fprintf(&b, "\n⚠️ %s\n", escapeMarkdownV2(a.Warning))
	}
	if a.WasCapped {
		fmt.Fprintf(&b, "ℹ️ %s\n", escapeMarkdownV2(a.CapReason))
	}
	return b.String()
}

// formatStrategy formats a bracket strategy into a Telegram message
func formatStrategy(s *models.BracketStrategy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧩 *Bracket Strategy*: %s\n", escapeMarkdownV2(s.Topic))
	fmt.Fprintf(&b, "_%s_\n\n", escapeMarkdownV2(s.Thesis))

	for i, t := range s.RecommendedTrades {
		label := escapeMarkdownV2(t.Bracket.Label)
		if t.Bracket.Market != nil {
			label = fmt.Sprintf("[%s](%s)", label, escapeURL(t.Bracket.Market.URL()))
		}
		fmt.Fprintf(&b, "%d\\. %s %s @ %s → edge %s\n", i+1,
			escapeMarkdownV2(string(t.Action)), label,
			escapeMarkdownV2(fmt.Sprintf("%.0f¢", t.Price*100)),
			escapeMarkdownV2(fmt.Sprintf("+%.1f%%", t.Edge)))
	}

	fmt.Fprintf(&b, "\n💵 Cost %s for %s max payout\n",
		escapeMarkdownV2(fmt.Sprintf("$%.0f", s.TotalCost)),
		escapeMarkdownV2(fmt.Sprintf("$%.0f", s.MaxPayout)))
	fmt.Fprintf(&b, "📈 Expected ROI: *%s* \\| Confidence: %s",
		escapeMarkdownV2(fmt.Sprintf("%+.0f%%", s.ExpectedROI)),
		escapeMarkdownV2(s.Confidence))
	return b.String()
}

// formatSummary formats a scan summary into a Telegram message
func formatSummary(s report.Summary) string {
	var b strings.Builder
	b.WriteString("📊 *Scan Summary*\n")
	fmt.Fprintf(&b, "📅 %s\n\n", escapeMarkdownV2(s.GeneratedAt.UTC().Format("2006-01-02 15:04:05")))
	fmt.Fprintf(&b, "Scanned: %d \\| Passed: %d \\| Trades: %d\n", s.MarketsScanned, s.MarketsPassed, s.TradesRecommended)
	if s.Errors > 0 {
		fmt.Fprintf(&b, "Errors: %d\n", s.Errors)
	}
	if s.Notice != "" {
		fmt.Fprintf(&b, "_%s_\n", escapeMarkdownV2(s.Notice))
	}

	if len(s.Rejections) > 0 {
		b.WriteString("\n*Top rejections*\n")
		for i, rc := range s.Rejections {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "• %s: %d\n", escapeMarkdownV2(rc.Reason), rc.Count)
		}
	}

	var trades []report.AnalyzedRow
	for _, r := range s.Analyzed {
		if r.Recommended() {
			trades = append(trades, r)
		}
	}
	if len(trades) > 0 {
		b.WriteString("\n*Recommended*\n")
		for i, r := range trades {
			fmt.Fprintf(&b, "%d\\. [%s](%s) %s %s\n", i+1,
				escapeMarkdownV2(r.Question), escapeURL(r.URL),
				escapeMarkdownV2(string(r.Action)),
				escapeMarkdownV2(fmt.Sprintf("%+.1f%% $%.2f", r.Edge, r.PositionUSD)))
		}
	}

	if len(s.Strategies) > 0 {
		fmt.Fprintf(&b, "\n🧩 %d bracket strateg%s\n", len(s.Strategies), pluralY(len(s.Strategies)))
	}
	if len(trades) == 0 && len(s.NearMisses) > 0 {
		b.WriteString("\n*Near misses*\n")
		for i, nm := range s.NearMisses {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "• [%s](%s) \\(%s\\)\n",
				escapeMarkdownV2(nm.Question), escapeURL(nm.URL), escapeMarkdownV2(nm.Reason))
		}
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeURL escapes the characters MarkdownV2 reserves inside link targets.
func escapeURL(u string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(u)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
