package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	dlxExchangeName  = "claims.dlx"
	connectionName   = "claim-workflow"
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	connectTimeout   = 15 * time.Second
)

var errNotConnected = errors.New("rabbitmq is not connected")

// RabbitMQ owns the broker connection. The activity topology is declared
// once per connection, right after dialing.
type RabbitMQ struct {
	url string

	dialMu sync.Mutex
	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}

	r := &RabbitMQ{url: url}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.closed = true
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}

	return conn.Close()
}

// Check reports whether the broker connection is currently open.
func (r *RabbitMQ) Check(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return errNotConnected
	}
	return nil
}

func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err == nil {
		return ch, nil
	}

	// The connection may have dropped between the check and Channel().
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
	}
	r.mu.Unlock()

	conn, err = r.connection(ctx)
	if err != nil {
		return nil, err
	}
	ch, err = conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create rabbitmq channel after reconnect: %w", err)
	}
	return ch, nil
}

// connection returns the open connection, dialing with exponential backoff
// until ctx expires when there is none.
func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn, err := r.current(); err != nil || conn != nil {
		return conn, err
	}

	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	if conn, err := r.current(); err != nil || conn != nil {
		return conn, err
	}

	wait := reconnectBackoff
	for {
		conn, err := r.dial()
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.mu.Unlock()
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connect canceled after %v: %w", err, ctx.Err())
		case <-time.After(wait):
		}

		wait = min(wait*2, maxBackoff)
	}
}

// current returns the open connection, nil when a dial is needed, or an
// error once the client is closed.
func (r *RabbitMQ) current() (*amqp.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errNotConnected
	}
	if r.conn != nil && !r.conn.IsClosed() {
		return r.conn, nil
	}
	return nil, nil
}

func (r *RabbitMQ) dial() (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)

	conn, err := amqp.DialConfig(r.url, amqp.Config{Properties: props})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open topology channel: %w", err)
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

// declareTopology sets up claims.activity with its dead-letter exchange and
// queue. Rejected deliveries land in dlq.claims.activity.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	dlqName := DLQName(ActivityQueue)
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlq %q: %w", dlqName, err)
	}
	if err := ch.QueueBind(dlqName, activityRoutingKey, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind dlq %q: %w", dlqName, err)
	}

	if _, err := ch.QueueDeclare(ActivityQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": activityRoutingKey,
	}); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", ActivityQueue, err)
	}

	return nil
}
