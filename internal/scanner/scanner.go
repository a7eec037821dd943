// Package scanner runs one trading-assistant cycle over the live market list.
//
// A cycle fetches active markets, filters them, asks the forecaster for the
// top candidates, analyses edges concurrently, then sizes, persists and
// notifies serially so that each sizing call sees the positions opened by
// the ones before it. Bracket strategies are generated from the same batch.
//
// Nothing here places orders: a recommended trade is recorded as an open
// Position so that portfolio limits hold across cycles.
package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/polyedge/internal/bracket"
	"github.com/rewired-gh/polyedge/internal/edge"
	"github.com/rewired-gh/polyedge/internal/filter"
	"github.com/rewired-gh/polyedge/internal/forecast"
	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
	"github.com/rewired-gh/polyedge/internal/report"
	"github.com/rewired-gh/polyedge/internal/sizing"
)

// Config holds scan cycle settings.
type Config struct {
	MaxMarkets     int           `mapstructure:"max_markets"`
	AnalyzeTop     int           `mapstructure:"analyze_top"`
	Concurrency    int           `mapstructure:"concurrency"`
	Bankroll       float64       `mapstructure:"bankroll"`
	NotifyCooldown time.Duration `mapstructure:"notify_cooldown"`
}

// DefaultConfig returns the production scan settings.
func DefaultConfig() Config {
	return Config{
		MaxMarkets:     500,
		AnalyzeTop:     10,
		Concurrency:    4,
		Bankroll:       1000,
		NotifyCooldown: 24 * time.Hour,
	}
}

// Validate checks that scan settings are usable.
func (c Config) Validate() error {
	if c.MaxMarkets < 1 {
		return fmt.Errorf("scanner.max_markets must be at least 1")
	}
	if c.AnalyzeTop < 1 {
		return fmt.Errorf("scanner.analyze_top must be at least 1")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("scanner.concurrency must be at least 1")
	}
	if c.Bankroll <= 0 {
		return fmt.Errorf("scanner.bankroll must be positive")
	}
	if c.NotifyCooldown < 0 {
		return fmt.Errorf("scanner.notify_cooldown must not be negative")
	}
	return nil
}

// MarketSource lists active binary markets and looks up single markets.
type MarketSource interface {
	FetchActiveMarkets(ctx context.Context, maxMarkets int) ([]*models.Market, error)
	FetchMarket(ctx context.Context, id string) (*models.Market, error)
	SkippedSummary() map[string]int
	ClearSkipped()
}

// Store persists decisions and tracks recommended positions.
type Store interface {
	AddDecision(ctx context.Context, d models.Decision) error
	AddPosition(ctx context.Context, p models.Position) error
	OpenPositions(ctx context.Context) ([]models.Position, error)
	HasOpenPosition(ctx context.Context, marketID string) (bool, error)
	ClosePosition(ctx context.Context, id string) error
	PortfolioState(ctx context.Context) (int, float64, error)
}

// Notifier delivers recommendations and bracket strategies.
type Notifier interface {
	SendRecommendation(a *models.EdgeAnalysis, rec models.PositionRecommendation) error
	SendStrategy(s *models.BracketStrategy) error
}

// ScanError represents a per-market error during a scan cycle
type ScanError struct {
	MarketID string
	Err      error
}

func (e ScanError) Error() string {
	return fmt.Sprintf("scan error for market %s: %v", e.MarketID, e.Err)
}

func (e ScanError) Unwrap() error { return e.Err }

// notifiedRecord tracks a previously sent notification for cooldown deduplication.
type notifiedRecord struct {
	Action models.TradeAction
	SentAt time.Time
}

// Scanner runs scan cycles. Run must not be called concurrently; LastSummary
// and OpenPositions may be called from any goroutine.
type Scanner struct {
	cfg        Config
	source     MarketSource
	filter     *filter.Filter
	forecaster forecast.Forecaster
	detector   *edge.Detector
	sizing     sizing.Config
	brackets   *bracket.Generator
	store      Store
	notifier   Notifier

	now   func() time.Time
	newID func() string

	notified map[string]notifiedRecord // key = market ID + action, or bracket topic

	mu   sync.RWMutex
	last *report.Summary
}

// New creates a Scanner. brackets may be nil to skip bracket strategies.
func New(cfg Config, source MarketSource, f *filter.Filter, fc forecast.Forecaster, d *edge.Detector,
	sizingCfg sizing.Config, brackets *bracket.Generator, store Store) *Scanner {
	return &Scanner{
		cfg:        cfg,
		source:     source,
		filter:     f,
		forecaster: fc,
		detector:   d,
		sizing:     sizingCfg,
		brackets:   brackets,
		store:      store,
		now:        time.Now,
		newID:      uuid.NewString,
		notified:   make(map[string]notifiedRecord),
	}
}

// WithNotifier sets where recommendations are sent.
func (s *Scanner) WithNotifier(n Notifier) *Scanner {
	s.notifier = n
	return s
}

// WithClock replaces the clock stamped on decisions and positions.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

// LastSummary returns the summary of the most recent completed cycle.
func (s *Scanner) LastSummary() (report.Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return report.Summary{}, false
	}
	return *s.last, true
}

// OpenPositions lists positions recorded by earlier cycles.
func (s *Scanner) OpenPositions(ctx context.Context) ([]models.Position, error) {
	return s.store.OpenPositions(ctx)
}

type analyzed struct {
	analysis   models.EdgeAnalysis
	prob       float64 // forecaster output before sanity caps
	forecasted bool
}

// Run executes one scan cycle. Per-market failures are returned as
// ScanErrors and never stop the batch; the error return is reserved for
// failures that make the whole cycle meaningless.
func (s *Scanner) Run(ctx context.Context) (report.Summary, []ScanError, error) {
	now := s.now()
	summary := report.Summary{GeneratedAt: now}

	var scanErrors []ScanError
	summary.PositionsClosed = s.closeResolved(ctx, &scanErrors)

	positions, deployed, err := s.store.PortfolioState(ctx)
	if err != nil {
		return summary, scanErrors, fmt.Errorf("failed to load portfolio state: %w", err)
	}
	if positions >= s.sizing.MaxConcurrentPositions {
		summary.Notice = fmt.Sprintf("Maximum concurrent positions (%d) reached. Wait for current positions to resolve.",
			s.sizing.MaxConcurrentPositions)
		logger.Warn("%s", summary.Notice)
		summary.Errors = len(scanErrors)
		s.setLast(summary)
		return summary, scanErrors, nil
	}

	markets, err := s.source.FetchActiveMarkets(ctx, s.cfg.MaxMarkets)
	if err != nil {
		return summary, nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	filtered := s.filter.Apply(markets)
	summary.MarketsScanned = len(markets)
	summary.MarketsPassed = len(filtered.Passed)
	summary.NearMisses = filtered.NearMisses
	summary.Rejections = mergeRejections(s.source.SkippedSummary(), filtered.Summary())
	s.source.ClearSkipped()

	candidates := s.candidates(ctx, filtered.Passed, &scanErrors)

	results, err := s.analyze(ctx, candidates)
	if err != nil {
		return summary, scanErrors, err
	}

	sizer := sizing.New(s.cfg.Bankroll, positions, deployed, s.sizing)
	forecasts := make(map[string]float64, len(results))
	for i := range results {
		a := &results[i].analysis
		if results[i].forecasted {
			forecasts[a.Market.ID] = results[i].prob
		}

		rec := sizer.Calculate(a)
		decision := models.NewDecision(s.newID(), a, &rec, now)
		if err := s.store.AddDecision(ctx, decision); err != nil {
			scanErrors = append(scanErrors, ScanError{MarketID: a.Market.ID, Err: err})
		}

		if rec.ShouldTrade {
			err := s.store.AddPosition(ctx, models.Position{
				ID:        s.newID(),
				MarketID:  a.Market.ID,
				Question:  a.Market.Question,
				Action:    a.RecommendedAction,
				AmountUSD: rec.PositionUSD,
				OpenedAt:  now,
			})
			if err != nil {
				scanErrors = append(scanErrors, ScanError{MarketID: a.Market.ID, Err: err})
			} else {
				positions++
				deployed += rec.PositionUSD
				sizer.UpdatePortfolio(positions, deployed)
			}
			summary.TradesRecommended++

			logger.Info("Recommended %s on %q: edge %.1f%%, $%.2f", a.RecommendedAction, a.Market.Question,
				a.EdgePercent, rec.PositionUSD)
			s.notifyRecommendation(a, rec, now)
		} else {
			logger.Debug("No trade on %q: %s", a.Market.Question, rec.Reason)
		}

		summary.Analyzed = append(summary.Analyzed, report.AnalyzedRow{
			MarketID:    a.Market.ID,
			Question:    a.Market.Question,
			URL:         a.Market.URL(),
			ModelProb:   a.ModelYesProb,
			MarketPrice: a.MarketYesPrice,
			Edge:        a.EdgePercent,
			Action:      a.RecommendedAction,
			Verdict:     rec.Verdict,
			PositionUSD: rec.PositionUSD,
		})
	}

	if s.brackets != nil {
		summary.Strategies = s.brackets.GenerateAll(markets, forecasts)
		for _, st := range summary.Strategies {
			s.notifyStrategy(st, now)
		}
	}

	for _, se := range scanErrors {
		logger.Warn("%v", se)
	}
	summary.Errors = len(scanErrors)
	logger.Info("Scan complete: %d scanned, %d passed, %d analysed, %d trades, %d strategies",
		summary.MarketsScanned, summary.MarketsPassed, len(results), summary.TradesRecommended, len(summary.Strategies))

	s.setLast(summary)
	return summary, scanErrors, nil
}

// closeResolved closes open positions whose market is no longer trading and
// returns how many were closed. A failed lookup leaves the position open.
func (s *Scanner) closeResolved(ctx context.Context, scanErrors *[]ScanError) int {
	open, err := s.store.OpenPositions(ctx)
	if err != nil {
		*scanErrors = append(*scanErrors, ScanError{MarketID: "portfolio", Err: err})
		return 0
	}

	closed := 0
	for _, p := range open {
		if ctx.Err() != nil {
			break
		}
		m, err := s.source.FetchMarket(ctx, p.MarketID)
		if err != nil {
			*scanErrors = append(*scanErrors, ScanError{MarketID: p.MarketID, Err: err})
			continue
		}
		if m.Active && !m.Closed {
			continue
		}
		if err := s.store.ClosePosition(ctx, p.ID); err != nil {
			*scanErrors = append(*scanErrors, ScanError{MarketID: p.MarketID, Err: err})
			continue
		}
		closed++
		logger.Info("Closed position %s on %q: market no longer trading", p.ID, p.Question)
	}
	return closed
}

// candidates returns the first AnalyzeTop passed markets that have no open
// position yet.
func (s *Scanner) candidates(ctx context.Context, passed []*models.Market, scanErrors *[]ScanError) []*models.Market {
	var out []*models.Market
	for _, m := range passed {
		if len(out) == s.cfg.AnalyzeTop {
			break
		}
		open, err := s.store.HasOpenPosition(ctx, m.ID)
		if err != nil {
			*scanErrors = append(*scanErrors, ScanError{MarketID: m.ID, Err: err})
			continue
		}
		if open {
			logger.Debug("Skipping %s: position already open", m.ID)
			continue
		}
		out = append(out, m)
	}
	return out
}

// analyze forecasts and analyses markets concurrently. Results keep the
// order of markets.
func (s *Scanner) analyze(ctx context.Context, markets []*models.Market) ([]analyzed, error) {
	results := make([]analyzed, len(markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, m := range markets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, ok := forecast.YesProbability(gctx, s.forecaster, m)
			results[i] = analyzed{analysis: s.detector.Analyze(m, p, nil), prob: p, forecasted: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}
	return results, nil
}

func (s *Scanner) notifyRecommendation(a *models.EdgeAnalysis, rec models.PositionRecommendation, now time.Time) {
	if s.notifier == nil {
		return
	}
	key := a.Market.ID + "/" + string(a.RecommendedAction)
	if s.recentlySent(key, now) {
		logger.Debug("Suppressing repeat notification for %s", key)
		return
	}
	if err := s.notifier.SendRecommendation(a, rec); err != nil {
		logger.Error("Failed to send recommendation for %s: %v", a.Market.ID, err)
		return
	}
	s.notified[key] = notifiedRecord{Action: a.RecommendedAction, SentAt: now}
}

func (s *Scanner) notifyStrategy(st *models.BracketStrategy, now time.Time) {
	if s.notifier == nil {
		return
	}
	key := "bracket/" + st.Topic
	if s.recentlySent(key, now) {
		logger.Debug("Suppressing repeat strategy for %s", st.Topic)
		return
	}
	if err := s.notifier.SendStrategy(st); err != nil {
		logger.Error("Failed to send strategy for %s: %v", st.Topic, err)
		return
	}
	s.notified[key] = notifiedRecord{SentAt: now}
}

func (s *Scanner) recentlySent(key string, now time.Time) bool {
	rec, exists := s.notified[key]
	return exists && now.Sub(rec.SentAt) < s.cfg.NotifyCooldown
}

func (s *Scanner) setLast(summary report.Summary) {
	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()
}

// mergeRejections combines API skip counts, prefixed "API: ", with filter
// rejection counts, most common first.
func mergeRejections(skipped map[string]int, filtered []filter.ReasonCount) []filter.ReasonCount {
	out := make([]filter.ReasonCount, 0, len(skipped)+len(filtered))
	for reason, n := range skipped {
		out = append(out, filter.ReasonCount{Reason: "API: " + reason, Count: n})
	}
	out = append(out, filtered...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}
