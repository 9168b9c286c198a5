package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"notitrade/internal/config"
	"notitrade/internal/database"
	"notitrade/internal/dispatch"
	"notitrade/internal/logging"
	"notitrade/internal/queue"
	"notitrade/internal/server"
	tradesignal "notitrade/internal/signal"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("info", "text").WithError(err).Fatal("Failed to load config")
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Starting notification ingress...")

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
	log.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("Failed to connect to redis")
	}

	q := queue.NewRedisQueue(rdb, queue.Options{
		Name:         cfg.Queue.Name,
		PollInterval: cfg.Queue.ParsedPoll,
		RetryDelay:   cfg.Queue.ParsedRetry,
		MaxAttempts:  cfg.Queue.MaxAttempts,
	}, log)
	mapper := tradesignal.NewMapper(cfg.Exchange.Name, tradesignal.DefaultTickers, tradesignal.DefaultTable)
	producer := dispatch.NewProducer(mapper, q, cfg.Queue.ParsedDelay, log)

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.New(producer, db, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Failed to shut down server")
		}
	}()

	log.WithField("listen", cfg.Server.Listen).Info("Listening for notifications")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server failed")
	}
	log.Info("Ingress stopped")
}
