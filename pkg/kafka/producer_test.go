package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "gzip")

	err := p.Publish(context.Background(), "trades", []byte("TSLA"), map[string]interface{}{"qty": 3})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	m := w.msgs[0]
	if m.Topic != "trades" || string(m.Key) != "TSLA" || string(m.Value) != `{"qty":3}` {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("boom")
	p := newProducer(&fakeWriter{err: boom}, "gzip")
	if err := p.Publish(context.Background(), "trades", nil, "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
