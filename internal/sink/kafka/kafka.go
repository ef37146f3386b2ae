// Package kafka produces records to a Kafka topic in batches. Messages are
// keyed by partition id, so with the hash balancer all records of one
// partition land on the same topic partition in order.
//
// Options:
//
//	brokers      list of host:port (required)
//	topic        target topic (required)
//	batch_size   messages per WriteMessages call, default 500
//	acks         "all" (default), "one" or "none"
//	compression  "", "gzip", "snappy", "lz4", "zstd"
package kafka

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"extimport/internal/sink"
)

const (
	DefaultBatchSize = 500
	flushTimeout     = 30 * time.Second
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WriterConfig is what newWriter needs to build a producer.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	RequiredAcks kafka.RequiredAcks
	Compression  kafka.Compression
}

// newWriter is a test hook that builds the real producer by default.
var newWriter = func(cfg WriterConfig) messageWriter {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: cfg.RequiredAcks,
		Compression:  cfg.Compression,
	}
}

// Sink buffers records and writes them batch by batch.
type Sink struct {
	w       messageWriter
	topic   string
	key     []byte
	headers []kafka.Header
	trim    func(string) string
	batch   []kafka.Message
	size    int
	n       int64
}

var _ sink.Sink = (*Sink)(nil)

// New validates options and creates the writer.
func New(_ context.Context, cfg sink.Config) (*Sink, error) {
	brokers := cfg.Options.StringSlice("brokers")
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: options.brokers is required")
	}
	topic := cfg.Options.String("topic", "")
	if topic == "" {
		return nil, fmt.Errorf("kafka sink: options.topic is required")
	}
	size := cfg.Options.Int("batch_size", DefaultBatchSize)
	if size < 1 {
		return nil, fmt.Errorf("kafka sink: batch_size must be >= 1, got %d", size)
	}
	acks, err := parseAcks(cfg.Options.String("acks", "all"))
	if err != nil {
		return nil, err
	}
	codec, err := parseCompression(cfg.Options.String("compression", ""))
	if err != nil {
		return nil, err
	}

	w := newWriter(WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		BatchSize:    size,
		RequiredAcks: acks,
		Compression:  codec,
	})
	return &Sink{
		w:     w,
		topic: topic,
		key:   []byte(strconv.Itoa(cfg.Partition.ID)),
		headers: []kafka.Header{
			{Key: "job", Value: []byte(cfg.Job)},
			{Key: "partition_count", Value: []byte(strconv.Itoa(cfg.Partition.Count))},
		},
		trim:  cfg.TrimRecord,
		batch: make([]kafka.Message, 0, size),
		size:  size,
	}, nil
}

// Forward implements exttable.Sink.
func (s *Sink) Forward(ctx context.Context, record string) error {
	s.batch = append(s.batch, kafka.Message{
		Key:     s.key,
		Value:   []byte(s.trim(record)),
		Headers: s.headers,
	})
	if len(s.batch) >= s.size {
		return s.flush(ctx)
	}
	return nil
}

func (s *Sink) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	if err := s.w.WriteMessages(ctx, s.batch...); err != nil {
		return fmt.Errorf("kafka sink: write %d messages to %s: %w", len(s.batch), s.topic, err)
	}
	s.n += int64(len(s.batch))
	s.batch = s.batch[:0]
	return nil
}

// Close writes the final batch and closes the writer.
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	ferr := s.flush(ctx)
	if err := s.w.Close(); err != nil && ferr == nil {
		ferr = fmt.Errorf("kafka sink: close: %w", err)
	}
	log.Printf("sink: kafka topic=%s key=%s written=%d", s.topic, s.key, s.n)
	return ferr
}

// Written returns the number of messages acknowledged by the writer.
func (s *Sink) Written() int64 { return s.n }

func parseAcks(s string) (kafka.RequiredAcks, error) {
	switch s {
	case "all", "":
		return kafka.RequireAll, nil
	case "one":
		return kafka.RequireOne, nil
	case "none":
		return kafka.RequireNone, nil
	}
	return 0, fmt.Errorf("kafka sink: unknown acks %q", s)
}

func parseCompression(s string) (kafka.Compression, error) {
	switch s {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka sink: unknown compression %q", s)
}

func init() {
	sink.Register("kafka", func(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(ctx, cfg)
	})
}
