package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"CryptoPulse/internal/collector"
	"CryptoPulse/internal/config"
	"CryptoPulse/internal/logger"
	"CryptoPulse/internal/notifier"
	"CryptoPulse/internal/pipeline"
	"CryptoPulse/internal/recorder"
	"CryptoPulse/internal/scheduler"
	"CryptoPulse/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "config file (default $CONFIG_PATH or configs/config.yaml)")
	once := flag.Bool("once", false, "run a single refresh and exit")
	history := flag.Int("history", 0, "print the last N recorded runs and exit")
	flag.Parse()

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	log := logger.GetLogger()
	mainLog := log.WithComponent("main")

	path := *cfgPath
	if path == "" {
		path = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		mainLog.WithError(err).Error("load config")
		return 1
	}
	if err := cfg.Validate(); err != nil {
		mainLog.WithError(err).Error("config validation")
		return 1
	}
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		mainLog.WithError(err).Error("configure logging")
		return 1
	}
	mainLog.WithFields(logger.Fields{"config": path}).Info("CryptoPulse starting")

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			mainLog.WithError(err).Warn("init sqlite recorder failed, using noop")
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	if *history > 0 {
		runs, err := rec.RecentRuns(*history)
		if err != nil {
			mainLog.WithError(err).Error("load run history")
			return 1
		}
		fmt.Print(notifier.FormatRecentRunsText(runs, cfg.Location()))
		return 0
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		mainLog.WithError(err).Error("init output store")
		return 1
	}
	mainLog.WithFields(logger.Fields{"destination": store.Name()}).Info("output destination ready")

	market, sentiment := newSources(cfg, log)
	mainLog.WithFields(logger.Fields{"market": market.Name(), "sentiment": sentiment.Name()}).Info("data sources ready")

	col := collector.NewCollector(market, sentiment, collector.Options{
		Tracked:   cfg.Coins.Tracked,
		Top:       cfg.Coins.Top,
		History:   cfg.Coins.History,
		Portfolio: cfg.Coins.Portfolio,
		Days:      cfg.LookbackDays,
	}, log)

	runner := pipeline.NewRunner(col, store, rec, pipeline.Options{
		FileName:           cfg.Output.FileName,
		Parquet:            cfg.Output.Parquet,
		ParquetCompression: cfg.Output.ParquetCompression,
		Location:           cfg.Location(),
		Currency:           cfg.CoinGecko.VsCurrency,
		ReplaceCorrupt:     cfg.Output.ReplaceCorrupt,
	}, log)

	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		runner.Notifier = tn
	}

	if *once {
		if _, err := runner.Run(ctx, "once"); err != nil {
			return 1
		}
		return 0
	}

	// Init scheduler
	sched := scheduler.NewScheduler(ctx, runner, rec, cfg.Location(), log)
	if err := sched.Register(cfg.Schedule.Cron); err != nil {
		mainLog.WithError(err).Error("register cron task")
		return 1
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		mainLog.Info("telegram polling started")
	}

	if cfg.Schedule.RunOnStart {
		mainLog.Info("run_on_start enabled, refreshing now")
		go sched.RunNow()
	}

	mainLog.Info("CryptoPulse is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	mainLog.Info("shutdown signal received, stopping...")
	return 0
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Output.Mode == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	}
	return storage.NewLocalStore(cfg.Output.Dir)
}

func newSources(cfg *config.Config, log *logger.Log) (collector.MarketSource, collector.SentimentSource) {
	if cfg.CoinGecko.Source == "mock" {
		m := collector.NewMockSource()
		return m, m
	}
	client := collector.NewClient(cfg.CoinGecko.Timeout, cfg.Proxy,
		cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst,
		collector.RetryPolicy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
		}, log)
	market := collector.NewCoinGecko(client, cfg.CoinGecko.BaseURL, cfg.CoinGecko.VsCurrency, cfg.CoinGecko.APIKey, cfg.CoinGecko.APIKeyType)
	// Alternative.me gets its own limiter and no API key header.
	fngClient := collector.NewClient(cfg.CoinGecko.Timeout, cfg.Proxy,
		cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, client.Retry, log)
	return market, collector.NewFearGreed(fngClient, cfg.Sentiment.BaseURL)
}
