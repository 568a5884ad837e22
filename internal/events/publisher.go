// Package events publishes wallet events to a RabbitMQ topic exchange.
package events

import (
	"context"       // Context propagation
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error matching
	"fmt"           // Error and message formatting
	"net/url"       // URL parsing
	"strings"       // String manipulation
	"sync"          // Mutex
	"time"          // Time and durations

	"github.com/rabbitmq/amqp091-go" // RabbitMQ client
	"github.com/sirupsen/logrus"     // Logging library
)

// Routing keys
const (
	TransactionCompleted = "transaction.completed"
	TransferCompleted    = "transfer.completed"
	PaymentFailed        = "payment.failed"
	WalletLocked         = "wallet.locked"
)

// Publisher is implemented by anything that can publish events
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// AMQPPublisher holds the RabbitMQ connection and channel for one exchange
type AMQPPublisher struct {
	mu       sync.Mutex
	url      string
	dial     func(addr string) (*amqp091.Connection, error)
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NoopPublisher is used when RabbitMQ is not configured or unreachable at startup
type NoopPublisher struct{}

// Publish drops the event
func (NoopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	logrus.WithField("routing_key", routingKey).Debug("Event publish skipped")
	return nil
}

// Close does nothing
func (NoopPublisher) Close() {}

// New connects to url, or returns a NoopPublisher when url is empty or the broker is down
func New(rawURL, exchange string) Publisher {
	if strings.TrimSpace(rawURL) == "" {
		logrus.Info("RABBITMQ_URL not set, events disabled")
		return NoopPublisher{}
	}
	p, err := NewAMQPPublisher(rawURL, exchange)
	if err != nil {
		logrus.WithError(err).Warn("RabbitMQ unavailable, events disabled")
		return NoopPublisher{}
	}
	return p
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPPublisher dials the broker and declares the exchange
func NewAMQPPublisher(rawURL, exchange string) (*AMQPPublisher, error) {
	clean, err := sanitizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	p := &AMQPPublisher{url: clean, dial: dial, exchange: exchange}
	if err := p.reopen(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func dial(addr string) (*amqp091.Connection, error) {
	return amqp091.DialConfig(addr, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
}

// reopen replaces the channel and re-declares the durable topic exchange, redialing first
// when the connection is gone. Caller holds mu.
func (p *AMQPPublisher) reopen() error {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial(p.url)
		if err != nil {
			return fmt.Errorf("dial broker: %w", err)
		}
		if p.conn != nil {
			logrus.WithField("exchange", p.exchange).Info("Reconnected to RabbitMQ")
		}
		p.conn, p.channel = conn, nil // Channels die with their connection
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return err
	}
	if p.channel != nil {
		p.channel.Close()
	}
	p.channel = ch
	return nil
}

// Publish sends body as JSON. A closed channel or connection is reopened first, and a
// failed publish reopens and retries once.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.channel.IsClosed() {
		if err := p.reopen(); err != nil {
			return err
		}
	}
	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	logrus.WithFields(logrus.Fields{
		"exchange":    p.exchange,
		"routing_key": routingKey,
	}).WithError(err).Warn("Publish failed, reopening channel")
	if err := p.reopen(); err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

// Close releases the channel and connection
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
