package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"spot-trading-bot/internal/broker"
	"spot-trading-bot/internal/broker/brokerobs"
	"spot-trading-bot/internal/engine"
	"spot-trading-bot/internal/engine/engineobs"
	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/market"
	"spot-trading-bot/internal/notify"
	"spot-trading-bot/internal/store"
	"spot-trading-bot/internal/trace"
	"spot-trading-bot/internal/tradelog"
)

// initializeSystem loads the environment and brings up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	path := os.Getenv("BOT_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		n, _ := strconv.Atoi(v)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeEngine builds the decision core with observability.
func initializeEngine(cfg *store.Config) interfaces.Engine {
	return engineobs.Wrap(engine.New(cfg.MinOrderValue))
}

// initializeBroker selects the paper broker in DRY_RUN mode and the Binance
// spot broker in LIVE mode, both wrapped with observability.
func initializeBroker(ctx context.Context, cfg *store.Config) interfaces.Broker {
	if cfg.Mode == "LIVE" {
		brk := broker.NewBinance(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"), cfg.QuoteAsset)
		logger.Info(ctx, "Broker initialized", "mode", "live", "quote_asset", cfg.QuoteAsset)
		return brokerobs.Wrap(brk, "live")
	}

	starting := 1000.0
	if v := os.Getenv("PAPER_STARTING_BALANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			starting = f
		}
	}
	logger.Info(ctx, "Broker initialized", "mode", "paper", "starting_balance", starting)
	return brokerobs.Wrap(broker.NewPaper(starting), "paper")
}

func initializeMarket() interfaces.MarketData {
	return market.NewBinance(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"))
}

// initializeNotifier builds the Telegram notifier; without credentials it is
// a no-op.
func initializeNotifier(ctx context.Context) interfaces.Notifier {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	ntf, err := notify.NewTelegram(token, chatID)
	if err != nil {
		logger.Warn(ctx, "Telegram notifier disabled", "error", err)
		ntf, _ = notify.NewTelegram("", 0)
	}
	return ntf
}

func statePath() string {
	if v := os.Getenv("BOT_STATE_FILE"); v != "" {
		return v
	}
	return "state.json"
}
