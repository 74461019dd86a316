package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/execution"
	"cryptocom-momo-bot-go/internal/journal"
	"cryptocom-momo-bot-go/internal/logger"
	"cryptocom-momo-bot-go/internal/models"
	"cryptocom-momo-bot-go/internal/replay"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	data := flag.String("data", "data/historical", "Binance trades CSV file or directory of CSV files")
	scenario := flag.String("sentiment", string(models.SentimentBullish), "fixed sentiment: Bullish, Bearish or Neutral")
	tradesOut := flag.String("trades", "", "optional CSV file receiving the simulated trades")
	flag.Parse()

	_ = godotenv.Load() // best-effort

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	files, err := replay.CollectFiles(*data)
	if err != nil {
		log.Fatal("No historical data", zap.String("data", *data), zap.Error(err))
	}

	var sinks []execution.TradeSink
	if *tradesOut != "" {
		sinks = append(sinks, journal.NewCSVLog(*tradesOut))
	}

	label := models.ParseSentiment(*scenario)
	log.Info("Starting backtest",
		zap.String("strategy", cfg.Strategy.Name),
		zap.String("sentiment", string(label)),
		zap.Int("files", len(files)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := replay.New(cfg, label, log, sinks...).Run(ctx, files)
	if err != nil {
		log.Error("Backtest aborted", zap.Error(err))
	}
	fmt.Println(report.String())
}
