// Command backtest replays daily candles through the strategy set and
// position manager with paper fills. Candles come from the Upbit public
// API (up to 200 days per market), so no credentials are needed.
//
// Usage:
//
//	go run ./cmd/backtest --markets=KRW-BTC,KRW-ETH --days=200
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"coinhero/internal/backtest"
	"coinhero/internal/model"
	"coinhero/internal/strategy"
	"coinhero/pkg/upbit"
)

func main() {
	log.SetFlags(log.LstdFlags)

	markets := flag.String("markets", "KRW-BTC", "comma-separated markets to replay")
	days := flag.Int("days", 200, "daily candles per market (max 200)")
	initial := flag.Float64("initial", 1_000_000, "starting bankroll in KRW")
	amount := flag.Float64("amount", 100_000, "KRW per entry")
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

	runner := backtest.New(strategy.NewScorer(strategies, 0, 0), backtest.Config{
		InitialKRW:     *initial,
		OrderAmountKRW: *amount,
	})
	client := upbit.New(upbit.Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var totalProfit float64
	for _, market := range strings.Split(*markets, ",") {
		market = strings.TrimSpace(market)
		if market == "" {
			continue
		}

		candles, err := client.Candles(ctx, market, model.IntervalDay, *days)
		if err != nil {
			log.Printf("[backtest] %s: candles: %v", market, err)
			continue
		}

		res, err := runner.Run(market, candles)
		if err != nil {
			log.Printf("[backtest] %s: %v", market, err)
			continue
		}
		totalProfit += res.ProfitKRW

		fmt.Printf("\n=== %s (%d캔들) ===\n", market, res.Candles)
		fmt.Printf("매수 %d회, 매도 %d회 (승 %d / 패 %d, 승률 %.0f%%)\n",
			res.Buys, res.Sells, res.Wins, res.Losses, res.WinRate)
		fmt.Printf("손익 %+.0f원 (%+.2f%%), 최종 잔고 %.0f원\n",
			res.ProfitKRW, res.ReturnPct, res.FinalKRW)
		for _, tr := range res.Trades {
			switch tr.Action {
			case model.ActionBuy:
				fmt.Printf("  %s 매수 %10.1f원  %s\n", tr.TS.Format("2006-01-02"), tr.Price, tr.Rationale)
			case model.ActionSell:
				fmt.Printf("  %s 매도 %10.1f원  %+.2f%%  %s\n", tr.TS.Format("2006-01-02"), tr.Price, *tr.ProfitRate, tr.Rationale)
			}
		}
	}
	fmt.Printf("\n합계 손익: %+.0f원\n", totalProfit)
}
