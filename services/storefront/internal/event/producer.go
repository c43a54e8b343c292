package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/utafrali/EcommerceGo/pkg/kafka"
	"github.com/utafrali/EcommerceGo/pkg/logger"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/session"
	"github.com/utafrali/EcommerceGo/services/storefront/internal/store"
)

// Kafka topics for storefront cart events.
var (
	TopicCartUpdated = pkgkafka.Topic("storefront", "cart.updated")
	TopicCartCleared = pkgkafka.Topic("storefront", "cart.cleared")
)

// Event types and envelope identifiers.
const (
	EventCartUpdated  = "cart.updated"
	EventCartCleared  = "cart.cleared"
	AggregateTypeCart = "storefront_cart"
	SourceStorefront  = "storefront"
)

const publishTimeout = 2 * time.Second

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	SessionID   string            `json:"session_id"`
	Items       []domain.CartItem `json:"items"`
	ItemCount   int               `json:"item_count"`
	TotalAmount domain.Money      `json:"total_amount"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes storefront cart events to Kafka.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer for the storefront.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishCartUpdated publishes a cart.updated event keyed by session id.
func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, cart domain.Cart) error {
	data := CartUpdatedData{
		SessionID:   sessionID,
		Items:       cart.Items,
		ItemCount:   cart.ItemCount(),
		TotalAmount: cart.TotalAmount(),
	}
	return p.publish(ctx, TopicCartUpdated, EventCartUpdated, sessionID, data)
}

// PublishCartCleared publishes a cart.cleared event keyed by session id.
func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	return p.publish(ctx, TopicCartCleared, EventCartCleared, sessionID, CartClearedData{SessionID: sessionID})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, sessionID string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, sessionID, AggregateTypeCart, SourceStorefront, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}
	return nil
}

// CartListener returns a store listener that publishes every committed cart
// change of the session. Failures are logged and never reach the caller.
func (p *Producer) CartListener(sessionID string) store.Listener[domain.Cart] {
	return func(ctx context.Context, cart domain.Cart) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()

		var err error
		if len(cart.Items) == 0 {
			err = p.PublishCartCleared(ctx, sessionID)
		} else {
			err = p.PublishCartUpdated(ctx, sessionID, cart)
		}
		if err != nil {
			p.logger.WarnContext(ctx, "failed to publish cart event",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Attach subscribes the producer to a new session's cart. It is registered
// with session.Registry.OnCreate.
func (p *Producer) Attach(sess *session.Session) {
	sess.Cart.Subscribe(p.CartListener(sess.ID))
}
