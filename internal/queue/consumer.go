package queue

import (
	"context"
	"errors"
	"time"

	"github.com/bio-nexus/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

type Handler func(ctx context.Context, body []byte) error

// Consumer processes one queue one message at a time. Failed messages go to
// the retry queue with an incremented x-retries header until MaxRetries is
// reached, then to the dead letter queue.
type Consumer struct {
	queue   string
	ch      publisher
	handler Handler
	timeout time.Duration
}

func NewConsumer(ch publisher, queueName string, handler Handler, timeout time.Duration) *Consumer {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Consumer{queue: queueName, ch: ch, handler: handler, timeout: timeout}
}

// Run consumes deliveries until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp091.Delivery) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue][Consume] Stopping consumer", "queue", c.queue)
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Info("[Queue][Consume] Delivery channel closed", "queue", c.queue)
				return
			}
			c.Handle(ctx, d)
		}
	}
}

func (c *Consumer) Handle(ctx context.Context, d amqp091.Delivery) {
	start := time.Now()
	hCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.handler(hCtx, d.Body)
	cancel()

	if err == nil {
		if err := d.Ack(false); err != nil {
			logger.Error("[Queue][Consume] Failed to ack message", "queue", c.queue, "err", err)
		}
		logger.Debug("[Queue][Consume] Message processed", "queue", c.queue, "duration", time.Since(start))
		return
	}

	logger.Error("[Queue][Consume] Error processing message", "queue", c.queue, "err", err)
	retries := Retries(d.Headers)
	if errors.Is(err, ErrMalformed) || retries >= MaxRetries {
		c.forward(ctx, d, c.queue+"_dlq", d.Headers)
		return
	}

	headers := amqp091.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries + 1)
	c.forward(ctx, d, c.queue+"_retry", headers)
}

func (c *Consumer) forward(ctx context.Context, d amqp091.Delivery, target string, headers amqp091.Table) {
	if err := PublishFIFO(ctx, c.ch, target, d.Body, headers); err != nil {
		logger.Error("[Queue][Consume] Failed to forward message", "target", target, "err", err)
		_ = d.Nack(false, true)
		return
	}
	logger.Info("[Queue][Consume] Forwarded message", "target", target, "retries", Retries(headers))
	_ = d.Ack(false)
}

// Retries reads the x-retries header of any integer width.
func Retries(h amqp091.Table) int {
	switch v := h[retriesHeader].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	}
	return 0
}
