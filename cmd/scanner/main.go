// Command scanner runs a one-shot full-market scan. Prints ranked candidates
// with scores and reasons, then exits. Public endpoints only, no
// credentials needed.
//
// Usage:
//
//	go run ./cmd/scanner --min-score=60 --top=10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coinhero/internal/scanner"
	"coinhero/internal/strategy"
	"coinhero/pkg/upbit"
)

func main() {
	log.SetFlags(log.LstdFlags)

	minScore := flag.Float64("min-score", scanner.DefaultMinScore, "minimum combined score")
	minValue := flag.Float64("min-value", scanner.DefaultMinTradeValue, "minimum daily turnover in KRW")
	top := flag.Int("top", 20, "max candidates to print")
	names := flag.String("strategies", "", "comma-separated strategy names (default: all)")
	flag.Parse()

	var selected []string
	if *names != "" {
		for _, n := range strings.Split(*names, ",") {
			if n = strings.TrimSpace(n); n != "" {
				selected = append(selected, n)
			}
		}
	}
	strategies := strategy.Select(selected)
	if len(strategies) == 0 {
		strategies = strategy.Select(strategy.DefaultStrategyNames)
	}

	client := upbit.New(upbit.Config{})
	scan := scanner.New(client, strategy.NewScorer(strategies, 0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cands, err := scan.Scan(ctx, scanner.Config{
		MinScore:      *minScore,
		MinTradeValue: *minValue,
		MaxCandidates: *top,
	})
	if err != nil {
		log.Fatalf("[scanner] scan failed: %v", err)
	}

	if len(cands) == 0 {
		fmt.Println("매수 후보 없음")
		return
	}
	fmt.Printf("%-12s %14s %8s %10s  %s\n", "MARKET", "PRICE", "SCORE", "COND", "REASONS")
	for _, c := range cands {
		fmt.Printf("%-12s %14.1f %8.0f %10s  %s\n",
			c.Market, c.Price, c.Signal.Score, c.Context.Condition,
			strings.Join(c.Signal.Reasons, "; "))
	}
}
