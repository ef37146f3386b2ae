package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"extimport/internal/config"
	"extimport/internal/exttable"
	"extimport/internal/sink"
)

type fakeWriter struct {
	calls  [][]kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	cp := append([]kafka.Message(nil), msgs...)
	f.calls = append(f.calls, cp)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func withFakeWriter(t *testing.T, fw *fakeWriter) *WriterConfig {
	t.Helper()
	orig := newWriter
	t.Cleanup(func() { newWriter = orig })
	got := new(WriterConfig)
	newWriter = func(cfg WriterConfig) messageWriter {
		*got = cfg
		return fw
	}
	return got
}

// Not parallel: swaps the package-level newWriter hook.
func TestKafkaSink_BatchesAndKeys(t *testing.T) {
	fw := &fakeWriter{}
	wc := withFakeWriter(t, fw)

	s, err := sink.New(context.Background(), sink.Config{
		Kind:      "kafka",
		Job:       "cities",
		Partition: exttable.Partition{ID: 3, Count: 4},
		Options: config.Options{
			"brokers":     []any{"k1:9092", "k2:9092"},
			"topic":       "cities",
			"batch_size":  float64(2),
			"acks":        "one",
			"compression": "zstd",
		},
	})
	if err != nil {
		t.Fatalf("sink.New: %v", err)
	}
	for _, r := range []string{"a\n", "b\n", "c\n"} {
		if err := s.Forward(context.Background(), r); err != nil {
			t.Fatalf("Forward: %v", err)
		}
	}
	if len(fw.calls) != 1 {
		t.Fatalf("writes before Close = %d, want 1", len(fw.calls))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if len(wc.Brokers) != 2 || wc.Topic != "cities" || wc.BatchSize != 2 || wc.RequiredAcks != kafka.RequireOne || wc.Compression != kafka.Zstd {
		t.Fatalf("writer config = %+v", *wc)
	}
	if len(fw.calls) != 2 || len(fw.calls[0]) != 2 || len(fw.calls[1]) != 1 {
		t.Fatalf("write calls = %+v", fw.calls)
	}
	m := fw.calls[1][0]
	if string(m.Key) != "3" || string(m.Value) != "c" {
		t.Fatalf("message = key %q value %q", m.Key, m.Value)
	}
	if len(m.Headers) != 2 || m.Headers[0].Key != "job" || string(m.Headers[0].Value) != "cities" {
		t.Fatalf("headers = %+v", m.Headers)
	}
	if !fw.closed {
		t.Fatal("writer not closed")
	}
	if n := s.(*Sink).Written(); n != 3 {
		t.Fatalf("Written = %d, want 3", n)
	}
}

// Not parallel: swaps the package-level newWriter hook.
func TestKafkaSink_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	fw := &fakeWriter{err: boom}
	withFakeWriter(t, fw)

	s, err := New(context.Background(), sink.Config{Options: config.Options{
		"brokers": []any{"k:9092"}, "topic": "t", "batch_size": 1,
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Forward(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("Forward = %v, want %v", err, boom)
	}
	if !errors.Is(s.Close(), boom) {
		t.Fatal("Close should report the unflushed batch")
	}
}

func TestKafkaSink_OptionErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]config.Options{
		"no brokers": {"topic": "t"},
		"no topic":   {"brokers": []any{"k:9092"}},
		"bad batch":  {"brokers": []any{"k:9092"}, "topic": "t", "batch_size": 0},
		"bad acks":   {"brokers": []any{"k:9092"}, "topic": "t", "acks": "most"},
		"bad codec":  {"brokers": []any{"k:9092"}, "topic": "t", "compression": "brotli"},
	}
	for name, opts := range cases {
		if _, err := New(context.Background(), sink.Config{Options: opts}); err == nil {
			t.Errorf("%s: New succeeded, want error", name)
		}
	}
}
