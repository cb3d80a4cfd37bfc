package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes a single delivery. It should be idempotent.
// Return nil => ACK; return error => NACK with requeue.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}

// JSONHandler adapts a typed function into a raw Delivery handler.
type JSONHandler[T any] struct {
	HandleFunc func(ctx context.Context, msg T) error
}

func (h JSONHandler[T]) Handle(ctx context.Context, d amqp.Delivery) error {
	var v T
	if err := json.Unmarshal(d.Body, &v); err != nil {
		return err
	}
	return h.HandleFunc(ctx, v)
}

// Consumer consumes one queue with manual acks. Malformed messages are
// dropped (poison), handler errors are requeued for the broker to retry.
type Consumer struct {
	ch          *amqp.Channel
	queueName   string
	handler     Handler
	log         *slog.Logger
	prefetch    int
	callTimeout time.Duration
}

func NewConsumer(ch *amqp.Channel, queueName string, h Handler, log *slog.Logger) *Consumer {
	return &Consumer{
		ch:          ch,
		queueName:   queueName,
		handler:     h,
		log:         log,
		prefetch:    50,
		callTimeout: 10 * time.Second,
	}
}

// Start begins consuming; non-blocking (spawns a goroutine).
func (c *Consumer) Start() error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return err
	}

	msgs, err := c.ch.Consume(
		c.queueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			ctx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
			err := c.handler.Handle(ctx, d)
			cancel()

			if err != nil {
				c.log.Error("consumer handler error", "queue", c.queueName, "err", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
		c.log.Info("consumer stopped", "queue", c.queueName)
	}()
	return nil
}
