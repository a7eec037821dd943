package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rewired-gh/polyedge/internal/bracket"
	"github.com/rewired-gh/polyedge/internal/config"
	"github.com/rewired-gh/polyedge/internal/edge"
	"github.com/rewired-gh/polyedge/internal/filter"
	"github.com/rewired-gh/polyedge/internal/forecast"
	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
	"github.com/rewired-gh/polyedge/internal/polymarket"
	"github.com/rewired-gh/polyedge/internal/report"
	"github.com/rewired-gh/polyedge/internal/scanner"
	"github.com/rewired-gh/polyedge/internal/storage"
	"github.com/rewired-gh/polyedge/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	once       = flag.Bool("once", false, "Run a single scan, print the summary and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s (mode: %s)", *configPath, cfg.Mode)

	// Initialize storage
	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	forecaster, err := forecast.New(cfg.Forecast)
	if err != nil {
		logger.Fatal("Failed to initialize forecaster: %v", err)
	}

	var brackets *bracket.Generator
	if cfg.Bracket.Enabled {
		brackets = bracket.NewGenerator(cfg.Bracket)
	}

	scan := scanner.New(
		cfg.Scanner,
		polymarket.NewClient(cfg.Polymarket.APIBaseURL, cfg.Polymarket.Timeout),
		filter.New(cfg.Filter),
		forecaster,
		edge.New(cfg.Edge, nil),
		cfg.Position,
		brackets,
		store,
	)

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		scan.WithNotifier(telegramClient)
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if *once {
		summary, err := runScanCycle(ctx, scan)
		if err != nil {
			logger.Fatal("Scan failed: %v", err)
		}
		fmt.Print(report.Daily(summary))
		return
	}

	// Start Telegram command listener
	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, scan)
	}

	// Daily summary
	if cfg.Telegram.DailySummaryCron != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Telegram.DailySummaryCron, func() {
			sendDailySummary(ctx, scan, store, telegramClient)
		}); err != nil {
			logger.Fatal("Failed to schedule daily summary: %v", err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
	}

	logger.Info("Starting scanner (interval: %v, max_markets: %d, analyze_top: %d, bankroll: $%.2f)",
		cfg.Polymarket.PollInterval,
		cfg.Scanner.MaxMarkets,
		cfg.Scanner.AnalyzeTop,
		cfg.Scanner.Bankroll,
	)

	ticker := time.NewTicker(cfg.Polymarket.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Scan cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	// Run initial scan immediately
	_, err = runScanCycle(ctx, scan)
	handleCycleResult(err)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled scan cycle")
			_, err := runScanCycle(ctx, scan)
			handleCycleResult(err)

			// Rotate old decisions
			if n, err := store.RotateDecisions(ctx, cfg.Storage.MaxDecisions); err != nil {
				logger.Warn("Failed to rotate decisions: %v", err)
			} else if n > 0 {
				logger.Debug("Rotated %d old decisions", n)
			}
		}
	}
}

func runScanCycle(ctx context.Context, scan *scanner.Scanner) (report.Summary, error) {
	startTime := time.Now()
	logger.Info("Starting scan cycle")

	summary, scanErrors, err := scan.Run(ctx)
	if err != nil {
		return summary, err
	}
	if len(scanErrors) > 0 {
		logger.Warn("Scan cycle finished with %d per-market errors", len(scanErrors))
	}

	logger.Info("Scan cycle completed in %v", time.Since(startTime))
	return summary, nil
}

// sendDailySummary prints the latest scan summary and forwards it to
// Telegram when enabled.
func sendDailySummary(ctx context.Context, scan *scanner.Scanner, store *storage.Store, telegramClient *telegram.Client) {
	summary, ok := scan.LastSummary()
	if !ok {
		logger.Info("Daily summary skipped: no scan has completed yet")
		return
	}

	decisions, err := store.ListDecisions(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		logger.Warn("Failed to list decisions for daily summary: %v", err)
	} else {
		trades := 0
		for _, d := range decisions {
			if d.Verdict == models.VerdictTrade {
				trades++
			}
		}
		logger.Info("Last 24h: %d decisions, %d trades recommended", len(decisions), trades)
	}

	fmt.Print(report.Daily(summary))
	if telegramClient != nil {
		if err := telegramClient.SendSummary(summary); err != nil {
			logger.Error("Failed to send daily summary: %v", err)
		}
	}
}
