package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RequestRoutingKey = "analysis.request"
	StatusRoutingKey  = "analysis.status"
)

// Topology names the exchange and queues the analysis service relies on.
type Topology struct {
	Exchange     string
	RequestQueue string
	StatusQueue  string
	DLQ          string
}

// Declare creates the topic exchange, the three durable queues and their bindings. It is idempotent.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{t.RequestQueue, t.DLQ, t.StatusQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	bindings := []struct{ queue, key string }{
		{t.RequestQueue, RequestRoutingKey},
		{t.StatusQueue, StatusRoutingKey},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.key, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}
	return nil
}
