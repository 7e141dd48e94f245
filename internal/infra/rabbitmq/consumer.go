package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxBackoff = 60 * time.Second

var ErrDeliveriesClosed = errors.New("delivery channel closed")

type MessageHandler func(ctx context.Context, body []byte) error

// Consumer feeds analysis requests to a fixed pool of workers. A handler error
// requeues the delivery after an exponential backoff; success acks it.
type Consumer struct {
	channel     *amqp.Channel
	queue       string
	workerCount int
	baseDelay   time.Duration
	handler     MessageHandler
	logger      *zap.Logger
	wg          sync.WaitGroup
}

type ConsumerConfig struct {
	Topology    Topology
	Prefetch    int
	WorkerCount int
	BaseDelayMs int
}

func NewConsumer(conn *amqp.Connection, cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := cfg.Topology.Declare(ch); err != nil {
		ch.Close()
		return nil, err
	}

	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}

	return &Consumer{
		channel:     ch,
		queue:       cfg.Topology.RequestQueue,
		workerCount: workers,
		baseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		handler:     handler,
		logger:      logger,
	}, nil
}

// Start blocks until ctx is cancelled and every worker has returned. If the broker closes the
// delivery channel first, Start returns ErrDeliveriesClosed once the workers have drained.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(
		ctx,
		c.queue,
		"",
		false, // autoAck=false
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("starting worker pool",
		zap.Int("workers", c.workerCount),
		zap.String("queue", c.queue),
	)
	return c.run(ctx, deliveries)
}

func (c *Consumer) run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	workersDone := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(workersDone)
	}()

	select {
	case <-ctx.Done():
		c.logger.Info("context cancelled, waiting for workers to finish")
		<-workersDone
		return nil
	case <-workersDone:
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error("all workers exited, delivery channel closed by broker")
		return ErrDeliveriesClosed
	}
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	log := c.logger.With(zap.Int("worker_id", id))
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return
			}
			c.processDelivery(ctx, d, log)
		}
	}
}

func (c *Consumer) processDelivery(ctx context.Context, d amqp.Delivery, log *zap.Logger) {
	err := c.handler(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	attempt := deliveryAttempt(d)
	delay := backoff(c.baseDelay, attempt)
	log.Warn("analysis request failed, requeueing after backoff",
		zap.Error(err),
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
	)

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		// shutting down; hand the message back for another instance
		_ = d.Nack(false, true)
		return
	}

	_ = d.Nack(false, true)
}

// deliveryAttempt estimates how many times this message has been delivered.
func deliveryAttempt(d amqp.Delivery) int {
	if deaths, ok := d.Headers["x-death"].([]interface{}); ok {
		total := 0
		for _, entry := range deaths {
			if t, ok := entry.(amqp.Table); ok {
				if n, ok := t["count"].(int64); ok {
					total += int(n)
				}
			}
		}
		if total > 0 {
			return total + 1
		}
	}
	if d.Redelivered {
		return 2
	}
	return 1
}

func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return min(delay, maxBackoff)
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		return c.channel.Close()
	}
	return nil
}
