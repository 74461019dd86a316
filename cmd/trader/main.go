package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cryptocom-momo-bot-go/internal/config"
	"cryptocom-momo-bot-go/internal/database"
	"cryptocom-momo-bot-go/internal/execution"
	"cryptocom-momo-bot-go/internal/journal"
	"cryptocom-momo-bot-go/internal/logger"
	"cryptocom-momo-bot-go/internal/notify"
	"cryptocom-momo-bot-go/internal/sentiment"
	"cryptocom-momo-bot-go/internal/trader"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	_ = godotenv.Load() // best-effort

	// Load application configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded", zap.String("file", *configPath))

	// Initialize database
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.", zap.String("driver", cfg.Database.Driver))

	snapshot := journal.NewSnapshot(cfg.Files.LiveData, cfg.Files.SnapshotInterval, log)
	components := trader.Components{
		Sentiment: newAnalyzer(cfg, log),
		Prices:    snapshot,
		Sinks: []execution.TradeSink{
			journal.NewCSVLog(cfg.Files.TradesCSV),
			snapshot,
			database.NewTradeStore(db),
		},
	}

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tg, err := notify.NewTelegram(cfg.Telegram, log)
		if err != nil {
			log.Error("Telegram notifications disabled", zap.Error(err))
		} else {
			components.Notifier = tg
		}
	}

	// Setup context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize and run the trading engine
	tradeEngine, err := trader.NewEngine(log, cfg, components)
	if err != nil {
		log.Fatal("Failed to create trading engine", zap.Error(err))
	}
	if err := tradeEngine.Run(ctx); err != nil {
		log.Error("Trading engine stopped with error", zap.Error(err))
	}

	log.Info("Bot has been shut down.")
}

func newAnalyzer(cfg *config.Config, log *zap.Logger) *sentiment.Analyzer {
	var client sentiment.ClientInterface
	if cfg.Sentiment.APIKey != "" {
		client = sentiment.NewClient(cfg.Sentiment, log)
	} else {
		log.Warn("No sentiment API key configured, sentiment stays Neutral")
	}
	return sentiment.NewAnalyzer(client, cfg.Sentiment.CacheTTL, cfg.Sentiment.Timeout, cfg.Files.AIStatus, log)
}
