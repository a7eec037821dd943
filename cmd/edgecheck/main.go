// Command edgecheck analyses a single market against a supplied model
// probability and prints the trade recommendation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rewired-gh/polyedge/internal/config"
	"github.com/rewired-gh/polyedge/internal/edge"
	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
	"github.com/rewired-gh/polyedge/internal/polymarket"
	"github.com/rewired-gh/polyedge/internal/report"
	"github.com/rewired-gh/polyedge/internal/sizing"
	"github.com/rewired-gh/polyedge/internal/storage"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	marketID   = flag.String("market", "", "Polymarket market ID")
	yesProb    = flag.Float64("prob", -1, "Model YES probability (0-1 or percent)")
	noProb     = flag.Float64("no", -1, "Model NO probability; derived from -prob when omitted")
	record     = flag.Bool("record", false, "Persist the decision to storage")
)

func main() {
	flag.Parse()
	if *marketID == "" || *yesProb < 0 {
		fmt.Fprintln(os.Stderr, "usage: edgecheck -config path -market ID -prob P [-no P] [-record]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Polymarket.Timeout)
	defer cancel()

	client := polymarket.NewClient(cfg.Polymarket.APIBaseURL, cfg.Polymarket.Timeout)
	market, err := client.FetchMarket(ctx, *marketID)
	if err != nil {
		logger.Fatal("Failed to fetch market: %v", err)
	}

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	positions, deployed, err := store.PortfolioState(ctx)
	if err != nil {
		logger.Fatal("Failed to load portfolio state: %v", err)
	}

	var modelNo *float64
	if *noProb >= 0 {
		modelNo = noProb
	}

	analysis := edge.New(cfg.Edge, nil).Analyze(market, *yesProb, modelNo)
	rec := sizing.New(cfg.Scanner.Bankroll, positions, deployed, cfg.Position).Calculate(&analysis)

	now := time.Now()
	fmt.Print(report.Recommendation(&analysis, rec, now))

	if *record {
		d := models.NewDecision(uuid.NewString(), &analysis, &rec, now)
		if err := store.AddDecision(ctx, d); err != nil {
			logger.Fatal("Failed to record decision: %v", err)
		}
		logger.Info("Recorded decision %s", d.ID)
	}
}
