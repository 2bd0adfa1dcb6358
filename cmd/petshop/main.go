package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"petshop/internal/cache"
	"petshop/internal/config"
	"petshop/internal/database"
	"petshop/internal/handler"
	"petshop/internal/messaging"
	"petshop/internal/service"
	"petshop/internal/storage"
	"petshop/internal/telemetry"
	"petshop/internal/worker"
	"petshop/internal/zalopay"
)

const (
	serviceName    = "petshop"
	serviceVersion = "1.0.0"
)

func main() {
	telemetry.InitLogger(serviceName)
	cfg := config.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		slog.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(db)

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to migrate DB schema", "error", err)
		os.Exit(1)
	}

	// Optional backends
	var catalogCache service.Cache
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisCache(cfg.RedisAddr, serviceName)
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("redis unavailable, catalog cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			catalogCache = rc
			defer rc.Close()
		}
	}

	var events service.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		events = producer
		defer producer.Close()
	}

	var objects service.ObjectStore
	if cfg.S3.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, storage.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			slog.Warn("s3 unavailable, uploads disabled", "error", err)
		} else {
			objects = uploader
		}
	}

	var gateway service.PaymentGateway
	var zpClient *zalopay.Client
	if cfg.ZaloPay.Enabled() {
		zpClient = zalopay.NewClient(zalopay.Config{
			AppID:       cfg.ZaloPay.AppID,
			Key1:        cfg.ZaloPay.Key1,
			Key2:        cfg.ZaloPay.Key2,
			Endpoint:    cfg.ZaloPay.Endpoint,
			CallbackURL: cfg.ZaloPay.PublicURL + "/api/payment/zalopay/callback",
			RedirectURL: cfg.ZaloPay.RedirectURL,
		}, &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)})
		gateway = zpClient
	} else {
		slog.Warn("zalopay keys not set, online payment disabled")
	}

	// Services
	authSvc := service.NewAuthService(db)
	userSvc := service.NewUserService(db, authSvc)
	catalogSvc := service.NewCatalogService(db, catalogCache)
	taxonomySvc := service.NewTaxonomyService(db)
	paymentSvc := service.NewPaymentService(db, gateway, events)
	orderSvc := service.NewOrderService(db, paymentSvc, events, catalogSvc)
	uploadSvc := service.NewUploadService(objects)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			slog.Error("failed to seed admin", "error", err)
			os.Exit(1)
		}
	}

	// Router
	r := handler.NewRouter(handler.Services{
		JWTSecret: cfg.JWTSecret,
		Auth:      authSvc,
		Orders:    orderSvc,
		Payments:  paymentSvc,
		Catalog:   catalogSvc,
		Taxonomy:  taxonomySvc,
		Users:     userSvc,
		Uploads:   uploadSvc,
	})
	r.Handle("/metrics", metricsHandler)
	r.Get("/healthz", healthHandler(db))

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      otelhttp.NewHandler(r, serviceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if zpClient != nil {
		go worker.NewPaymentWorker(paymentSvc, zpClient).Start(ctx)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop worker
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	if err := shutdownMeter(ctxShut); err != nil {
		slog.Error("meter shutdown failed", "error", err)
	}
	if err := shutdownTracer(ctxShut); err != nil {
		slog.Error("tracer shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
