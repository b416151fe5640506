package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// DialAMQP opens a named connection and one channel on it.
func DialAMQP(url, connectionName string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Properties: amqp.Table{"connection_name": connectionName},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return conn, ch, nil
}

// DeclareExchange makes sure the durable topic exchange exists.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

// AMQPPublisher publishes events to a topic exchange; the topic passed to
// Publish is the routing key.
type AMQPPublisher struct {
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(ch *amqp.Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{channel: ch, exchange: exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey, eventType string, data any) error {
	event := newEvent(eventType, data)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Type:         eventType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

type AMQPConsumerConfig struct {
	Exchange    string
	Queue       string
	BindingKey  string
	ConsumerTag string
	Prefetch    int
	Handler     Handler
}

// AMQPConsumer drains a durable queue bound to a topic exchange with manual
// acknowledgements: undecodable messages are dropped, handler failures are
// requeued.
type AMQPConsumer struct {
	channel *amqp.Channel
	cfg     AMQPConsumerConfig
}

func NewAMQPConsumer(ch *amqp.Channel, cfg AMQPConsumerConfig) *AMQPConsumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &AMQPConsumer{channel: ch, cfg: cfg}
}

// Start blocks until ctx is cancelled or the broker closes the channel.
func (c *AMQPConsumer) Start(ctx context.Context) error {
	if err := c.channel.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	if err := DeclareExchange(c.channel, c.cfg.Exchange); err != nil {
		return err
	}
	q, err := c.channel.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.cfg.Queue, err)
	}
	if err := c.channel.QueueBind(q.Name, c.cfg.BindingKey, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
	}
	deliveries, err := c.channel.Consume(q.Name, c.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	closed := c.channel.NotifyClose(make(chan *amqp.Error, 1))
	log.Info().Str("queue", q.Name).Str("binding", c.cfg.BindingKey).Msg("amqp consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return fmt.Errorf("amqp channel closed: %w", amqpErr)
			}
			return errors.New("amqp channel closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("amqp delivery channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *AMQPConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		log.Warn().Err(err).Str("routing_key", d.RoutingKey).Msg("dropping undecodable message")
		if err := d.Nack(false, false); err != nil {
			log.Error().Err(err).Msg("failed to nack message")
		}
		return
	}

	if err := c.cfg.Handler(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("handler failed, requeueing")
		if err := d.Nack(false, true); err != nil {
			log.Error().Err(err).Msg("failed to nack message")
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("failed to ack message")
	}
}
