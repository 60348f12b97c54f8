// Package service holds outbound integrations used by the HTTP layer.
// Publishing errors are logged and returned so callers can ignore failures
// without interrupting the main request flow.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/noxly/redemptions/internal/queue"
)

// Publisher sends redemption change notifications to RabbitMQ.  A fresh
// connection is dialled per event; verifications are rare compared to reads
// and this keeps the publisher free of reconnect state.
type Publisher struct {
	URL string
	Log zerolog.Logger
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, logger zerolog.Logger) *Publisher {
	return &Publisher{URL: url, Log: logger}
}

// PublishRedemptionConsumed publishes ev to the durable redemption.consumed
// queue as a persistent JSON message.
func (p *Publisher) PublishRedemptionConsumed(ctx context.Context, ev queue.RedemptionConsumedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Warn().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// idempotent; durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(
		queue.RedemptionConsumedQueue, // name
		true,                          // durable
		false,                         // autoDelete
		false,                         // exclusive
		false,                         // noWait
		nil,                           // args
	); err != nil {
		p.Log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.RedemptionID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                            // default exchange
		queue.RedemptionConsumedQueue, // routing key = queue name
		false,                         // mandatory
		false,                         // immediate
		pub,
	); err != nil {
		p.Log.Warn().Err(err).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}
