// Package amqp publishes every record as one message to a RabbitMQ
// exchange or queue.
//
// Options:
//
//	url             amqp:// or amqps:// broker URL (required)
//	exchange        exchange name; "" publishes through the default exchange
//	routing_key     routing key, or the queue name with the default exchange
//	declare_queue   declare routing_key as a durable queue before publishing
//	confirm         put the channel in confirm mode and wait for broker acks
//	confirm_window  outstanding confirmations before the sink waits, default 1000
package amqp

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/hashicorp/go-multierror"
	amqp "github.com/rabbitmq/amqp091-go"

	"extimport/internal/sink"
)

const (
	DefaultConfirmWindow = 1000
	confirmTimeout       = 30 * time.Second
)

// channel is the subset of *amqp.Channel the sink uses.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Confirm(noWait bool) error
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// dial is a test hook; it returns the connection and an open channel.
var dial = func(url string) (io.Closer, channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// Sink publishes records on one channel.
type Sink struct {
	conn     io.Closer
	ch       channel
	exchange string
	key      string
	headers  amqp.Table
	trim     func(string) string

	window  int
	pending []*amqp.DeferredConfirmation
	n       int64
}

var _ sink.Sink = (*Sink)(nil)

// New connects, optionally declares the queue and enables confirms.
func New(_ context.Context, cfg sink.Config) (*Sink, error) {
	url := cfg.Options.String("url", "")
	if url == "" {
		return nil, fmt.Errorf("amqp sink: options.url is required")
	}
	exchange := cfg.Options.String("exchange", "")
	key := cfg.Options.String("routing_key", "")
	if exchange == "" && key == "" {
		return nil, fmt.Errorf("amqp sink: an exchange or a routing_key is required")
	}

	conn, ch, err := dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp sink: dial: %w", err)
	}
	s := &Sink{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		key:      key,
		headers: amqp.Table{
			"job":             cfg.Job,
			"partition":       int32(cfg.Partition.ID),
			"partition_count": int32(cfg.Partition.Count),
		},
		trim:   cfg.TrimRecord,
		window: cfg.Options.Int("confirm_window", DefaultConfirmWindow),
	}
	if s.window < 1 {
		s.window = 1
	}

	if cfg.Options.Bool("declare_queue", false) && key != "" {
		if _, err := ch.QueueDeclare(key, true, false, false, false, nil); err != nil {
			s.release()
			return nil, fmt.Errorf("amqp sink: declare queue %s: %w", key, err)
		}
	}
	if cfg.Options.Bool("confirm", false) {
		if err := ch.Confirm(false); err != nil {
			s.release()
			return nil, fmt.Errorf("amqp sink: confirm mode: %w", err)
		}
	}
	return s, nil
}

// Forward implements exttable.Sink.
func (s *Sink) Forward(ctx context.Context, record string) error {
	dc, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, s.exchange, s.key, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Headers:      s.headers,
		Body:         []byte(s.trim(record)),
	})
	if err != nil {
		return fmt.Errorf("amqp sink: publish: %w", err)
	}
	s.n++
	// dc is nil unless the channel is in confirm mode.
	if dc == nil {
		return nil
	}
	s.pending = append(s.pending, dc)
	if len(s.pending) >= s.window {
		return s.waitConfirms(ctx)
	}
	return nil
}

func (s *Sink) waitConfirms(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()
	for _, dc := range s.pending {
		ok, err := dc.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("amqp sink: confirm: %w", err)
		}
		if !ok {
			return fmt.Errorf("amqp sink: broker nacked delivery %d", dc.DeliveryTag)
		}
	}
	s.pending = s.pending[:0]
	return nil
}

// Close waits for outstanding confirmations and closes the connection.
func (s *Sink) Close() error {
	var result error
	if len(s.pending) > 0 {
		if err := s.waitConfirms(context.Background()); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := s.release(); err != nil {
		result = multierror.Append(result, err)
	}
	log.Printf("sink: amqp exchange=%q key=%q published=%d", s.exchange, s.key, s.n)
	return result
}

func (s *Sink) release() error {
	var result error
	if err := s.ch.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("amqp sink: close channel: %w", err))
	}
	if err := s.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("amqp sink: close connection: %w", err))
	}
	return result
}

// Published returns the number of records published.
func (s *Sink) Published() int64 { return s.n }

func init() {
	sink.Register("amqp", func(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(ctx, cfg)
	})
}
