package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pos-terminal/internal/models"
	"pos-terminal/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter is the part of Producer the publisher needs
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher publishes terminal events keyed by terminal id
type EventPublisher struct {
	writer     EventWriter
	terminalID string
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter, terminalID string) *EventPublisher {
	return &EventPublisher{writer: writer, terminalID: terminalID}
}

func (ep *EventPublisher) base(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
		TerminalID: ep.terminalID,
	}
}

func (ep *EventPublisher) key() string {
	return fmt.Sprintf("terminal-%s", ep.terminalID)
}

// PublishSaleCompleted publishes SaleCompleted event
func (ep *EventPublisher) PublishSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	event.BaseEvent = ep.base(models.EventTypeSaleCompleted)
	return ep.writer.PublishEvent(ctx, ep.key(), event)
}

// PublishReceiptFailed publishes ReceiptFailed event
func (ep *EventPublisher) PublishReceiptFailed(ctx context.Context, event *models.ReceiptFailedEvent) error {
	event.BaseEvent = ep.base(models.EventTypeReceiptFailed)
	return ep.writer.PublishEvent(ctx, ep.key(), event)
}

// PublishReconciliationFailed publishes ReconciliationFailed event
func (ep *EventPublisher) PublishReconciliationFailed(ctx context.Context, event *models.ReconciliationFailedEvent) error {
	event.BaseEvent = ep.base(models.EventTypeReconciliationFailed)
	return ep.writer.PublishEvent(ctx, ep.key(), event)
}

// EventHandler handles incoming catalog events
type EventHandler struct {
	onProductChanged func(context.Context, *models.ProductEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.ComponentLogger("events")}
}

// OnProductChanged registers a handler for product and stock change events
func (eh *EventHandler) OnProductChanged(handler func(context.Context, *models.ProductEvent) error) {
	eh.onProductChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.ProductEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal product event: %w", err)
	}

	switch event.EventType {
	case models.EventTypeProductUpdated, models.EventTypeStockChanged:
		if eh.onProductChanged != nil {
			return eh.onProductChanged(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("type", event.EventType))
	}

	return nil
}
