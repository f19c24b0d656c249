// Command aggregator drains the shared Redis click counter into Postgres.
// Run it when shortener instances are started with RUN_AGGREGATOR=false.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/atinyakov/shortlink/internal/cache"
	"github.com/atinyakov/shortlink/internal/config"
	"github.com/atinyakov/shortlink/internal/counter"
	"github.com/atinyakov/shortlink/internal/logger"
	"github.com/atinyakov/shortlink/internal/repository"
	"github.com/atinyakov/shortlink/internal/worker"
)

func main() {
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, log.Component("aggregator")); err != nil {
		log.Log.Error("aggregator stopped with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, options *config.Options, logger *zap.Logger) error {
	if options.DatabaseDSN == "" || options.RedisURL == "" {
		return errors.New("aggregator needs DATABASE_DSN and REDIS_URL")
	}

	db, err := repository.InitDB(ctx, options.DatabaseDSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	client, err := cache.NewRedisClient(ctx, options.RedisURL)
	if err != nil {
		return err
	}
	defer client.Close()

	agg := worker.NewClickAggregator(logger,
		repository.CreateLinkRepository(db, logger),
		counter.NewRedisCounter(client),
		options.FlushInterval,
	)

	return agg.Run(ctx)
}
