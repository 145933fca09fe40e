package broker

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sand/digiseba/backend/internal/entities"
)

type RabbitMQ struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
	URL        string
	Exchange   string
}

func NewRabbitMQ(url, exchange string) *RabbitMQ {
	return &RabbitMQ{URL: url, Exchange: exchange}
}

// Connect dials the broker and declares the durable topic exchange events
// are published to.
func (r *RabbitMQ) Connect() error {
	conn, err := amqp.Dial(r.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err = ch.ExchangeDeclare(r.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("rabbitmq exchange %q: %w", r.Exchange, err)
	}

	r.Connection = conn
	r.Channel = ch

	return nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Connection != nil {
		r.Connection.Close()
	}
}

// RabbitMQPublisher publishes outbox events as persistent JSON messages.
// The routing key is "<prefix>.<event type>".
type RabbitMQPublisher struct {
	logger *slog.Logger
	mq     *RabbitMQ
	prefix string
}

func NewRabbitMQPublisher(logger *slog.Logger, mq *RabbitMQ, routingPrefix string) *RabbitMQPublisher {
	return &RabbitMQPublisher{logger: logger, mq: mq, prefix: routingPrefix}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, event *entities.OutboxEvent) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.CreatedAt,
		Type:         event.Type,
		Headers: amqp.Table{
			"event_type":   event.Type,
			"aggregate_id": event.AggregateID,
		},
		Body: []byte(event.Payload),
	}

	key := RoutingKey(p.prefix, event.Type)
	if err := p.mq.Channel.PublishWithContext(ctx, p.mq.Exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", event.ID, err)
	}

	p.logger.DebugContext(ctx, "Event published to RabbitMQ", "event_id", event.ID, "routing_key", key)
	return nil
}

func RoutingKey(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}
