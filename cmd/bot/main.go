package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spot-trading-bot/internal/eod"
	"spot-trading-bot/internal/logger"
	"spot-trading-bot/internal/metrics"
	"spot-trading-bot/internal/state"
	"spot-trading-bot/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx)

	states, err := state.Open(statePath())
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open state file", err)
		os.Exit(1)
	}

	r := &runner{
		cfg:      cfg,
		eng:      initializeEngine(cfg),
		brk:      initializeBroker(ctx, cfg),
		mkt:      initializeMarket(),
		states:   states,
		notifier: initializeNotifier(ctx),
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			logger.Warn(ctx, "Metrics endpoint stopped", "addr", cfg.MetricsAddr, "error", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	logger.Info(ctx, "Bot started",
		"mode", cfg.Mode,
		"pairs", len(cfg.Pairs),
		"poll_seconds", cfg.PollSeconds,
		"metrics_addr", cfg.MetricsAddr,
	)

	lastDay := time.Now().UTC().Day()
	for {
		select {
		case <-tick.C:
			r.tick(ctx)

			if day := time.Now().UTC().Day(); day != lastDay {
				lastDay = day
				if p, err := eod.SummarizeDay(time.Now().UTC().AddDate(0, 0, -1)); err == nil && p != "" {
					logger.Info(ctx, "EOD summary written", "path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down")
			if p, err := eod.SummarizeToday(); err == nil && p != "" {
				logger.Info(ctx, "EOD summary written", "path", p)
			}
			_ = trace.Shutdown(ctx)
			return
		case <-ctx.Done():
			_ = trace.Shutdown(ctx)
			return
		}
	}
}
