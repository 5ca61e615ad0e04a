package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pos-terminal/config"
	"pos-terminal/internal/api"
	"pos-terminal/internal/broker"
	"pos-terminal/internal/checkout"
	"pos-terminal/internal/controller"
	"pos-terminal/internal/posapi"
	"pos-terminal/internal/pricing"
	"pos-terminal/internal/redisclient"
	"pos-terminal/internal/stock"
	"pos-terminal/internal/store"
	"pos-terminal/internal/util"
	"pos-terminal/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.TerminalID); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting POS terminal")

	tp, err := util.InitTracer(util.DefaultServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	taxRate, err := decimal.NewFromString(cfg.Checkout.TaxRatePercent)
	if err != nil {
		logger.Fatal("Invalid TAX_RATE_PERCENT", zap.String("value", cfg.Checkout.TaxRatePercent), zap.Error(err))
	}

	posClient, err := posapi.NewClient(posapi.Config{
		BaseURL:       cfg.POSAPI.BaseURL,
		ProductsURL:   cfg.POSAPI.ProductsURL,
		CSRFToken:     cfg.POSAPI.CSRFToken,
		SessionCookie: cfg.POSAPI.SessionCookie,
		Timeout:       cfg.POSAPI.Timeout,
	})
	if err != nil {
		logger.Fatal("Failed to create POS API client", zap.Error(err))
	}

	mirror := stock.NewMirror(posClient)
	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.POSAPI.Timeout)
	if err := mirror.Reconcile(startCtx, nil); err != nil {
		logger.Warn("Initial product load failed, starting with an empty catalog", zap.Error(err))
	}
	startCancel()

	deps := map[string]api.Pinger{}
	ctrlOpts := controller.Options{
		Formatter:      pricing.NewFormatter(cfg.Display.CurrencySymbol, cfg.Display.ThousandSeparator, cfg.Display.DecimalPlaces),
		TaxRatePercent: taxRate,
		OrderStatus:    cfg.Checkout.OrderStatus,
		Receipts:       posClient,
	}
	ctrlOpts.Policy = pricing.CheckoutPolicy{
		DecimalPlaces:  ctrlOpts.Formatter.DecimalPlaces,
		RequirePayment: cfg.Checkout.RequirePayment,
	}
	subOpts := checkout.Options{Cooldown: cfg.Checkout.Cooldown}

	var sales api.SalesReport
	if cfg.Database.URL != "" {
		db, err := store.NewStore(cfg.Database.URL, cfg.Server.TerminalID)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		logger.Info("Sales journal connected")

		ctrlOpts.Journal = db
		sales = db
		deps["database"] = db
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Server.TerminalID)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		ctrlOpts.Cache = redisClient
		subOpts.Lock = redisClient
		subOpts.LockKey = "checkout"
		deps["redis"] = redisClient
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var producer *broker.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicTerminalEvents)
		defer producer.Close()
		ctrlOpts.Publisher = broker.NewEventPublisher(producer, cfg.Server.TerminalID)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicTerminalEvents))
	}

	submitter := checkout.NewSubmitter(posClient, subOpts)
	ctrl := controller.New(mirror, submitter, ctrlOpts)

	var catalogWorker *worker.CatalogWorker
	if producer != nil {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicProductEvents, cfg.Kafka.ConsumerGroup)
		catalogWorker = worker.NewCatalogWorker(consumer, ctrl)
		go func() {
			if err := catalogWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Catalog worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(ctrl, sales, deps)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if catalogWorker != nil {
		catalogWorker.Stop()
	}

	logger.Info("Server exited")
}
