// Command analyze-modes fetches the live market list once and shows how each
// filter preset would treat it, to help pick a scanner mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/polyedge/internal/filter"
	"github.com/rewired-gh/polyedge/internal/logger"
	"github.com/rewired-gh/polyedge/internal/models"
	"github.com/rewired-gh/polyedge/internal/polymarket"
)

var (
	apiURL     = flag.String("api", polymarket.DefaultBaseURL, "Gamma API base URL")
	maxMarkets = flag.Int("max", 500, "Maximum markets to fetch")
	timeout    = flag.Duration("timeout", 30*time.Second, "HTTP timeout")
)

var modes = []string{"strict", "relaxed", "eoy", "test"}

type categoryStats struct {
	name      string
	count     int
	volume24h float64
	maxVolume float64
}

func main() {
	flag.Parse()
	logger.Init("warn", "text")
	defer logger.Sync()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("POLYMARKET MODE ANALYSIS - Filter presets against live markets")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("\nSTEP 1: Fetching active markets...")
	fmt.Println(strings.Repeat("-", 80))
	client := polymarket.NewClient(*apiURL, *timeout)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	markets, err := client.FetchActiveMarkets(ctx, *maxMarkets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching markets: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fetched %d binary markets\n", len(markets))
	for reason, n := range client.SkippedSummary() {
		fmt.Printf("  skipped (%s): %d\n", reason, n)
	}

	fmt.Println("\nSTEP 2: Category distribution...")
	fmt.Println(strings.Repeat("-", 80))
	printCategories(markets)

	fmt.Println("\nSTEP 3: Testing mode presets...")
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("%-10s %-10s %-10s %-30s\n", "Mode", "Passed", "Pass %", "Top rejection")
	fmt.Println(strings.Repeat("-", 70))
	results := make(map[string]filter.Result, len(modes))
	for _, mode := range modes {
		cfg, _ := filter.ConfigForMode(mode)
		res := filter.New(cfg).Apply(markets)
		results[mode] = res

		top := "-"
		if summary := res.Summary(); len(summary) > 0 {
			top = fmt.Sprintf("%s (%d)", summary[0].Reason, summary[0].Count)
		}
		fmt.Printf("%-10s %-10d %-10.1f %-30s\n", mode, len(res.Passed), percent(len(res.Passed), len(markets)), top)
	}

	fmt.Println("\nSTEP 4: Markets passing each preset...")
	fmt.Println(strings.Repeat("-", 80))
	for _, mode := range modes {
		res := results[mode]
		fmt.Printf("\n%s:\n", mode)
		for i, m := range res.Passed {
			if i == 5 {
				fmt.Printf("    ... and %d more\n", len(res.Passed)-5)
				break
			}
			fmt.Printf("    %d. $%s 24h | Yes %.0f%% | %s\n", i+1, humanize.Comma(int64(m.Volume24h)), m.YesPrice()*100, truncate(m.Question, 50))
		}
		for i, nm := range res.NearMisses {
			if i == 0 {
				fmt.Println("  Near misses:")
			}
			fmt.Printf("    - %s (%s)\n", truncate(nm.Question, 50), nm.Reason)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("ANALYSIS COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
}

func printCategories(markets []*models.Market) {
	byName := make(map[string]*categoryStats)
	for _, m := range markets {
		name := filter.InferCategory(m.Question)
		if name == "" {
			name = "Other"
		}
		s, ok := byName[name]
		if !ok {
			s = &categoryStats{name: name}
			byName[name] = s
		}
		s.count++
		s.volume24h += m.Volume24h
		s.maxVolume = max(s.maxVolume, m.Volume24h)
	}

	stats := make([]*categoryStats, 0, len(byName))
	for _, s := range byName {
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].volume24h > stats[j].volume24h })

	fmt.Printf("%-20s %-10s %-20s %-20s\n", "Category", "Markets", "Total 24hr Volume", "Max 24hr Volume")
	fmt.Println(strings.Repeat("-", 70))
	for _, s := range stats {
		fmt.Printf("%-20s %-10d $%-19s $%-19s\n", s.name, s.count,
			humanize.Comma(int64(s.volume24h)), humanize.Comma(int64(s.maxVolume)))
	}
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
