package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"petshop/internal/config"
	"petshop/internal/messaging"
	"petshop/internal/notify"
	"petshop/internal/telemetry"
)

const (
	serviceName   = "petshop-notifier"
	consumerGroup = "petshop-notifier"
)

func main() {
	telemetry.InitLogger(serviceName)
	cfg := config.New()

	if len(cfg.Kafka.Brokers) == 0 {
		slog.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, "1.0.0")
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	mailer := notify.NewMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.User, cfg.SMTP.Password)
	h := notify.NewHandler(mailer, cfg.AdminEmail)

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, consumerGroup)
	defer consumer.Close()

	slog.Info("starting notifier", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic, "smtp", cfg.SMTP.Host+":"+cfg.SMTP.Port)

	if err := consumer.Consume(ctx, h.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("consumer stopped", "error", err)
		os.Exit(1)
	}

	slog.Info("notifier stopped")
}
