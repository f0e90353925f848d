// Command replay runs a recorded day of 1-minute candles through a
// paper session. The engine and governor share the replay's synthetic
// clock, so staleness and day-rollover behave exactly as they did live;
// the same recording always produces the same trades.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"options-scalping-bot/internal/execution"
	"options-scalping-bot/internal/feed"
	"options-scalping-bot/internal/logging"
	"options-scalping-bot/internal/risk"
	"options-scalping-bot/internal/session"
	"options-scalping-bot/internal/signal"
)

func main() {
	var (
		file    = flag.String("file", "", "path to a JSON candle recording")
		symbol  = flag.String("symbol", "NSE_INDEX|Nifty Bank", "instrument key")
		speed   = flag.Float64("speed", 0, "playback speed, 0 = as fast as possible")
		capital = flag.Float64("capital", 25000, "capital for strike selection")
		lots    = flag.Int("lots", 15, "order quantity")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: replay -file recording.json [-symbol KEY] [-speed N]")
		os.Exit(2)
	}

	logger := logging.New(&logging.Config{Level: "info"})

	candles, err := feed.LoadRecording(*file)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load recording")
	}
	logger.Info().Int("candles", len(candles)).Str("symbol", *symbol).Msg("replay loaded")

	source := feed.NewReplayFeed(*symbol, candles, *speed)
	clock := source.Clock()

	engine := signal.NewEngine(nil, logging.Component(logger, "engine"))
	engine.SetClock(clock.Now)

	governor := risk.NewGovernor("replay", nil, risk.NewMemoryCounterStore(), logging.Component(logger, "risk"))
	governor.SetClock(clock.Now)

	trader := session.NewTrader("replay", session.Settings{
		InstrumentKey: *symbol,
		LotSize:       *lots,
		Capital:       *capital,
		Paper:         true,
	}, session.Deps{
		Source:   source,
		Engine:   engine,
		Governor: governor,
		Executor: execution.NewPaperExecutor(logging.Component(logger, "paper")),
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trader.Start(ctx)
	<-trader.Done()

	stats, err := governor.Stats(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read final stats")
	}
	logger.Info().Int("trades", stats.Trades).Float64("pnl", stats.PnL).Bool("locked", stats.Locked).Msg("replay complete")
}
