package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	return headerCarrier{headers: &msg.Headers}.Get(key)
}

func TestNewEvent(t *testing.T) {
	type payload struct {
		ReviewID string `json:"review_id"`
	}
	event, err := NewEvent("evotags", "review.submitted", Aggregate{Type: "review", ID: "r-1"}, payload{ReviewID: "r-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, SchemaVersion, event.Version)
	assert.Equal(t, "review", event.AggregateType)
	assert.Empty(t, event.CorrelationID)
	assert.WithinDuration(t, time.Now().UTC(), event.OccurredAt, 2*time.Second)

	var got payload
	require.NoError(t, event.Decode(&got))
	assert.Equal(t, "r-1", got.ReviewID)
}

func TestNewEvent_Options(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	event, err := NewEvent("evotags", "account.registered", Aggregate{Type: "account", ID: "acc-1"}, nil,
		WithCorrelationID(""), WithCorrelationID("corr-9"), WithCorrelationID(""), OccurredAt(at))
	require.NoError(t, err)

	assert.Equal(t, "corr-9", event.CorrelationID)
	assert.Equal(t, at.UTC(), event.OccurredAt)
	assert.Equal(t, time.UTC, event.OccurredAt.Location())
}

func TestEvent_DecodeError(t *testing.T) {
	event := &Event{EventType: "review.submitted", Data: []byte(`[1,2]`)}
	var target struct{ ReviewID string }
	err := event.Decode(&target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode review.submitted payload")
}

func TestNewEvent_UnserializablePayload(t *testing.T) {
	_, err := NewEvent("evotags", "x", Aggregate{Type: "t", ID: "a"}, make(chan int))
	require.Error(t, err)
}

func TestProducer_Publish(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	event, err := NewEvent("evotags", "review.submitted", Aggregate{Type: "review", ID: "target-1"},
		map[string]bool{"updated": false}, WithCorrelationID("corr-1"))
	require.NoError(t, err)

	require.NoError(t, p.Publish(ctx, "evotags.review.submitted", event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "evotags.review.submitted", msg.Topic)
	assert.Equal(t, "target-1", string(msg.Key))
	assert.Equal(t, "review.submitted", header(msg, "event_type"))
	assert.Equal(t, "corr-1", header(msg, "correlation_id"))
	assert.Contains(t, header(msg, "traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
}

func TestProducer_PublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	event, err := NewEvent("evotags", "account.registered", Aggregate{Type: "account", ID: "acc-1"}, nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "evotags.account.registered", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPingBrokers_NoneConfigured(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
}

func TestHeaderCarrier_SetOverwrites(t *testing.T) {
	headers := []kafka.Header{{Key: "a", Value: []byte("1")}}
	c := headerCarrier{headers: &headers}
	c.Set("a", "2")
	c.Set("b", "3")

	assert.Equal(t, "2", c.Get("a"))
	assert.Equal(t, "3", c.Get("b"))
	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())
}
