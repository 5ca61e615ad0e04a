package worker

import (
	"context"

	"pos-terminal/internal/broker"
	"pos-terminal/internal/models"
	"pos-terminal/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Refresher reconciles the stock mirror with the server
type Refresher interface {
	Refresh(ctx context.Context) error
}

// MessageSource is the consuming side of a Kafka topic
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// CatalogWorker reconciles the terminal whenever the catalog announces a
// product or stock change
type CatalogWorker struct {
	consumer     MessageSource
	eventHandler *broker.EventHandler
	refresher    Refresher
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(consumer MessageSource, refresher Refresher) *CatalogWorker {
	w := &CatalogWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		refresher:    refresher,
		logger:       util.ComponentLogger("worker"),
	}
	w.eventHandler.OnProductChanged(w.handleProductChanged)
	return w
}

// handleProductChanged refreshes the mirror. A failed refresh is already
// surfaced to the cashier, so the message is still committed.
func (w *CatalogWorker) handleProductChanged(ctx context.Context, event *models.ProductEvent) error {
	w.logger.Info("Catalog changed, refreshing product info",
		zap.String("event_type", event.EventType),
		zap.String("product_id", string(event.ProductID)))

	if err := w.refresher.Refresh(ctx); err != nil {
		w.logger.Warn("Refresh after catalog event failed", zap.Error(err))
	}
	return nil
}

// Handle processes one message; exposed for the consumer loop
func (w *CatalogWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start starts the worker
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}
