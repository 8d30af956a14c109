package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/bio-nexus/backend/internal/util"
	"github.com/bio-nexus/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	GraphSyncQueue = "graph_sync_queue"

	// MaxRetries is the number of redeliveries through the retry queue
	// before a message is dead-lettered.
	MaxRetries = 10
	RetryDelay = 10 * time.Second

	retriesHeader = "x-retries"
)

// publisher is the publishing side of *amqp091.Channel.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// URLFromEnv builds the broker URL from RABBITMQ_URL or the RABBITMQ_USER,
// RABBITMQ_PASSWORD, RABBITMQ_HOST and RABBITMQ_PORT variables.
func URLFromEnv() string {
	if u := util.GetEnv("RABBITMQ_URL"); u != "" {
		return u
	}
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnvString("RABBITMQ_USER", "guest"),
		util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

func Init() *amqp091.Connection {
	conn, err := amqp091.Dial(URLFromEnv())
	if err != nil {
		logger.Fatal("[Queue][Init] Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

// SetupQueues declares each queue with its _dlq and its _retry queue. The
// retry queue holds messages for RetryDelay and then dead-letters them back
// onto the main queue.
func SetupQueues(ch *amqp091.Channel, queueNames ...string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			amqp091.Table{
				"x-message-ttl":             int32(RetryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	return nil
}

// PublishFIFO sends a persistent message to queueName on the default
// exchange.
func PublishFIFO(ctx context.Context, ch publisher, queueName string, data []byte, headers amqp091.Table) error {
	return ch.PublishWithContext(ctx, "", queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}
