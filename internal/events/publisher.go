// Package events publishes committed ledger mutations to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fund_ledger/internal/ledger"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// publishTimeout bounds a single publish so a slow broker cannot stall a request.
const publishTimeout = 5 * time.Second

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends ledger events to a topic exchange, routed by event type.
type Publisher struct {
	conn     *amqp091.Connection
	channel  channel
	exchange string
}

var _ ledger.Notifier = (*Publisher)(nil)

// NewPublisher dials url and declares a durable topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Notify publishes event as a persistent JSON message with the event type as routing key.
func (p *Publisher) Notify(ctx context.Context, event ledger.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	logrus.WithFields(logrus.Fields{
		"type":     event.Type,
		"fund_id":  event.FundID,
		"exchange": p.exchange,
	}).Debug("Published ledger event")
	return nil
}

// Close releases the channel and the connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
