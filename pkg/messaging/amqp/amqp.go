package amqp

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/headstart-tech/admissions-api/pkg/circuitbreaker"
	"github.com/headstart-tech/admissions-api/pkg/logger"
	"github.com/headstart-tech/admissions-api/pkg/messaging"
)

const exchangeKind = "fanout"

type Config struct {
	URL         string
	DialTimeout time.Duration
}

// channel is the subset of *amqp.Channel the broker uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

type connection interface {
	Channel() (channel, error)
	Close() error
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (channel, error) {
	return c.conn.Channel()
}

func (c *amqpConnection) Close() error {
	return c.conn.Close()
}

// Broker opens a fresh connection and channel per call; nothing is held between calls.
type Broker struct {
	cfg    Config
	cb     *circuitbreaker.CircuitBreaker
	logger *logger.Logger
	dial   func(cfg Config) (connection, error)
}

func NewBroker(cfg Config, log *logger.Logger) messaging.Broker {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Broker{
		cfg: cfg,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "amqp-fanout",
			MaxFailures: 5,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
		}),
		logger: log,
		dial:   dialAMQP,
	}
}

func dialAMQP(cfg Config) (connection, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Dial: amqp.DefaultDial(cfg.DialTimeout),
	})
	if err != nil {
		return nil, err
	}
	return &amqpConnection{conn: conn}, nil
}

func declareFanout(ch channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, exchangeKind, true, false, false, false, nil)
}

func (b *Broker) PublishFanout(ctx context.Context, exchange string, body []byte) error {
	return b.cb.Execute(func() error {
		conn, err := b.dial(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open channel: %w", err)
		}
		defer ch.Close()

		if err := declareFanout(ch, exchange); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}

		// Fanout exchanges ignore the routing key.
		err = ch.PublishWithContext(ctx, exchange, "", false, false, amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("failed to publish to %s: %w", exchange, err)
		}
		return nil
	})
}

// Subscribe binds an exclusive auto-delete queue to the exchange. The connection lives
// until ctx is cancelled, then the returned channel is closed.
func (b *Broker) Subscribe(ctx context.Context, exchange string) (<-chan []byte, error) {
	conn, err := b.dial(b.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	deliveries, err := bindConsumer(ch, exchange)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	msgChan := make(chan []byte, 16)
	go func() {
		defer func() {
			ch.Close()
			conn.Close()
			close(msgChan)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					b.logger.Debug("broker closed subscription", "exchange", exchange)
					return
				}
				select {
				case msgChan <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return msgChan, nil
}

func bindConsumer(ch channel, exchange string) (<-chan amqp.Delivery, error) {
	if err := declareFanout(ch, exchange); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue to %s: %w", exchange, err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", q.Name, err)
	}
	return deliveries, nil
}

// Close is a no-op; connections are per call.
func (b *Broker) Close() error {
	return nil
}
