package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"restaurant_pos/pkg/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpExchange = "pos_events"

// AMQPTransport routes events through a topic exchange keyed by channel.
type AMQPTransport struct {
	mu   sync.Mutex
	url  string
	conn *amqp.Connection
}

// NewAMQPTransport dials the broker at url.
func NewAMQPTransport(url string) (*AMQPTransport, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return &AMQPTransport{url: url, conn: conn}, nil
}

func (t *AMQPTransport) channel() (*amqp.Channel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.conn.IsClosed() {
		conn, err := amqp.Dial(t.url)
		if err != nil {
			return nil, fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
		}
		t.conn = conn
	}
	ch, err := t.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(amqpExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return ch, nil
}

// Publish sends evt with its channel as routing key.
func (t *AMQPTransport) Publish(ctx context.Context, evt Event) error {
	ch, err := t.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = ch.PublishWithContext(ctx, amqpExchange, string(evt.Channel), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Name, err)
	}
	return nil
}

// Subscribe binds a temporary exclusive queue to the requested channels.
func (t *AMQPTransport) Subscribe(ctx context.Context, channels ...Channel) (<-chan Event, error) {
	ch, err := t.channel()
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, c := range channels {
		if err := ch.QueueBind(q.Name, string(c), amqpExchange, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", c, err)
		}
	}
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	closeChan := ch.NotifyClose(make(chan *amqp.Error, 1))
	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-closeChan:
				if err != nil {
					utils.LogError(err, "AMQP subscriber: channel closed")
				}
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				evt, err := decode(msg.Body)
				if err != nil {
					utils.LogError(err, "AMQP subscriber: malformed payload")
					continue
				}
				if !send(ctx, out, evt) {
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the broker connection.
func (t *AMQPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.conn.IsClosed() {
		return nil
	}
	return t.conn.Close()
}
