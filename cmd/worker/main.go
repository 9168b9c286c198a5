package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"notitrade/internal/config"
	"notitrade/internal/database"
	"notitrade/internal/dispatch"
	"notitrade/internal/exchange"
	"notitrade/internal/logging"
	"notitrade/internal/metrics"
	"notitrade/internal/queue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("Failed to load config")
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Starting trade worker...")

	if err := cfg.Credentials.Validate(); err != nil {
		log.WithError(err).Fatal("Exchange credentials are not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		log.WithError(err).Fatal("Failed to migrate database")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Failed to connect to redis")
	}

	exch, err := exchange.New(cfg.Exchange, cfg.Credentials, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize exchange")
	}
	log.WithField("url", cfg.Exchange.URL).Info("Exchange initialized")

	consumer := dispatch.NewConsumer(
		exch,
		queue.NewClaimStore(rdb, cfg.Queue.Name, cfg.Queue.ParsedLease, cfg.Queue.ParsedDedup),
		db,
		dispatch.ConsumerConfig{
			LeverRate:      cfg.Trading.LeverRate,
			OrderPriceType: cfg.Trading.OrderPriceType,
			MarginAccount:  cfg.Trading.MarginAccount,
			OpenVolume:     cfg.Trading.OpenVolume,
		},
		log,
	)

	metricsSrv := metrics.Serve(cfg.Server.MetricsListen, log)
	defer metricsSrv.Close()

	q := queue.NewRedisQueue(rdb, queue.Options{
		Name:         cfg.Queue.Name,
		PollInterval: cfg.Queue.ParsedPoll,
		RetryDelay:   cfg.Queue.ParsedRetry,
		MaxAttempts:  cfg.Queue.MaxAttempts,
	}, log)

	log.WithField("queue", cfg.Queue.Name).Info("Consuming trade messages")
	if err := q.Consume(ctx, consumer.Handle); err != nil {
		log.WithError(err).Fatal("Consumer stopped")
	}
	log.Info("Worker stopped")
}
