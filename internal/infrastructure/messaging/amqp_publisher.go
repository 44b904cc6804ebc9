package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange sync events are published to.
const DefaultExchange = "quiz.bridge"

const (
	defaultDialTimeout   = 2 * time.Second
	defaultRetryInterval = 5 * time.Second
)

var (
	// ErrPublisherClosed is returned after Close.
	ErrPublisherClosed = errors.New("messaging: publisher is closed")

	// ErrNotConnected is returned while the broker connection is down.
	// A reconnect runs in the background.
	ErrNotConnected = errors.New("messaging: broker not connected")
)

// AMQPConfig contains configuration for the RabbitMQ publisher.
type AMQPConfig struct {
	URL      string
	Exchange string

	// DialTimeout bounds the TCP dial and the AMQP handshake.
	DialTimeout time.Duration

	// RetryInterval is the minimum gap between background reconnects.
	RetryInterval time.Duration

	Logger *slog.Logger
}

type dialFunc func() (*amqp.Connection, *amqp.Channel, error)

// AMQPPublisher publishes persistent JSON messages to a durable topic exchange.
// Publish never dials: a broken connection fails fast with ErrNotConnected
// and is re-dialed by a single background goroutine.
type AMQPPublisher struct {
	config AMQPConfig
	logger *slog.Logger
	dial   dialFunc

	mu          sync.Mutex
	conn        *amqp.Connection
	ch          *amqp.Channel
	closed      bool
	redialing   bool
	lastAttempt time.Time
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(config AMQPConfig) (*AMQPPublisher, error) {
	p := newAMQPPublisher(config, nil)

	conn, ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch

	return p, nil
}

func newAMQPPublisher(config AMQPConfig, dial dialFunc) *AMQPPublisher {
	if config.Exchange == "" {
		config.Exchange = DefaultExchange
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = defaultDialTimeout
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaultRetryInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	p := &AMQPPublisher{
		config: config,
		logger: config.Logger.With("component", "amqp_publisher"),
		dial:   dial,
	}
	if p.dial == nil {
		p.dial = p.connect
	}
	return p
}

func (p *AMQPPublisher) connect() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.config.URL, amqp.Config{
		Dial:      amqp.DefaultDial(p.config.DialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		p.config.Exchange, // name
		"topic",           // kind
		true,              // durable
		false,             // autoDelete
		false,             // internal
		false,             // noWait
		nil,               // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}

	return conn, ch, nil
}

// redialLocked starts a background reconnect unless one is running or the
// last attempt was less than RetryInterval ago. p.mu must be held.
func (p *AMQPPublisher) redialLocked() {
	if p.closed || p.redialing || time.Since(p.lastAttempt) < p.config.RetryInterval {
		return
	}
	p.redialing = true
	p.lastAttempt = time.Now()

	go func() {
		conn, ch, err := p.dial()

		p.mu.Lock()
		defer p.mu.Unlock()
		p.redialing = false

		if err != nil {
			p.logger.Warn("rabbitmq reconnect failed", "error", err)
			return
		}
		if p.closed {
			_ = ch.Close()
			_ = conn.Close()
			return
		}
		if p.conn != nil {
			_ = p.conn.Close()
		}
		p.conn, p.ch = conn, ch
		p.logger.Info("rabbitmq reconnected")
	}()
}

func (p *AMQPPublisher) connectedLocked() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed()
}

// Publish sends the event with its type as routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event failed: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	if !p.connectedLocked() {
		p.redialLocked()
		p.mu.Unlock()
		return ErrNotConnected
	}
	ch := p.ch
	p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		p.config.Exchange,  // exchange
		string(event.Type), // routing key
		false,              // mandatory
		false,              // immediate
		msg,
	); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}

	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
