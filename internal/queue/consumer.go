// Package queue contains the background consumer that listens to the
// redemption.consumed queue and appends an audit line per event to
// <dir>/redemption.log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/noxly/redemptions/internal/logging"
)

// Consumer reads RedemptionConsumedEvents and writes them to the audit log.
type Consumer struct {
	URL    string         // broker URL
	LogDir string         // directory holding redemption.log
	Dev    bool           // keep codes unredacted in the audit log
	Log    zerolog.Logger // operational logging
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes until
// ctx is cancelled.  Connection failures are retried with exponential
// backoff capped at 30s; a message that cannot be handled is rejected
// without requeue so the loop keeps going.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("redemption-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("redemption-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("redemption-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(RedemptionConsumedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, RedemptionConsumedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		ev, err := c.HandleMessage(d.Body)
		if err != nil {
			c.Log.Error().Err(err).Msg("redemption-consumer: handle message failed")
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		c.Log.Info().Str("redemption_id", ev.RedemptionID).Uint64("venue_id", ev.VenueID).Msg("redemption consumed")
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage decodes one event and appends it to the audit log.
func (c *Consumer) HandleMessage(body []byte) (RedemptionConsumedEvent, error) {
	var ev RedemptionConsumedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal: %w", err)
	}
	if ev.RedemptionID == "" {
		return ev, errors.New("event without redemption_id")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return ev, fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, "redemption.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return ev, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(c.FormatLine(ev)); err != nil {
		return ev, fmt.Errorf("write log: %w", err)
	}
	return ev, nil
}

// FormatLine renders the single-line audit entry for ev.
func (c *Consumer) FormatLine(ev RedemptionConsumedEvent) string {
	return fmt.Sprintf("[%s] Redemption consumed | redemption_id=%s | coupon_id=%d | venue_id=%d | user_id=%d | staff_id=%d | code=%s | created_at=%s\n",
		ev.ConsumedAt, ev.RedemptionID, ev.CouponID, ev.VenueID, ev.UserID, ev.StaffID,
		logging.RedactCode(ev.Code, c.Dev), ev.CreatedAt)
}
