package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/logger"
)

func main() {
	// Initialize structured logger
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Warn("failed to close dependencies", "error", err)
		}
	}()

	a, err := app.New(cfg, deps, log)
	if err != nil {
		return err
	}

	// Worker (metadata consumer)
	if cfg.EnableEventConsumer {
		consumer, err := nsq.NewConsumer(config.TopicDocumentIngested, "backend", nsq.NewConfig())
		if err != nil {
			log.Error("failed to create NSQ consumer for document events", "error", err)
		} else {
			consumer.AddHandler(a.MetadataConsumer)
			if cfg.NSQLookupd != "" {
				err = consumer.ConnectToNSQLookupd(cfg.NSQLookupd)
			} else {
				err = consumer.ConnectToNSQD(cfg.NSQDHost)
			}
			if err != nil {
				log.Error("failed to connect NSQ consumer", "error", err)
			} else {
				log.Info("NSQ document consumer connected", "topic", config.TopicDocumentIngested)
			}
			defer consumer.Stop()
		}
	}

	return a.Run(ctx)
}
