package kafka

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
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

func newTestProducer(w messageWriter, brokers ...string) *Producer {
	return &Producer{
		writer:  w,
		brokers: brokers,
		logger:  slog.New(slog.DiscardHandler),
	}
}

func cartEvent(t *testing.T, sessionID string) *Event {
	t.Helper()
	evt, err := NewEvent("cart.updated", sessionID, "storefront_cart", "storefront", map[string]int{"item_count": 1})
	require.NoError(t, err)
	return evt
}

func TestProducerConfig_Defaults(t *testing.T) {
	cfg := ProducerConfig{Brokers: []string{"kafka:9092"}}.withDefaults()

	assert.Equal(t, defaultBatchSize, cfg.BatchSize)
	assert.Equal(t, defaultBatchTimeout, cfg.BatchTimeout)
	assert.Equal(t, defaultWriteTimeout, cfg.WriteTimeout)

	custom := ProducerConfig{BatchSize: 1, BatchTimeout: time.Second, WriteTimeout: time.Minute}.withDefaults()
	assert.Equal(t, 1, custom.BatchSize)
	assert.Equal(t, time.Second, custom.BatchTimeout)
	assert.Equal(t, time.Minute, custom.WriteTimeout)
}

func TestNewProducer_DoesNotDial(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:19092"}, Async: true}, nil)

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
	assert.NotNil(t, w.Completion)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPublish_BuildsKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)
	topic := Topic("storefront", "test.keyed")
	evt := cartEvent(t, "sess-42").WithCorrelationID("corr-7")

	require.NoError(t, p.Publish(t.Context(), topic, evt))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, topic, msg.Topic)
	assert.Equal(t, "sess-42", string(msg.Key))
	assert.Equal(t, "cart.updated", headerValue(msg.Headers, HeaderEventType))
	assert.Equal(t, "storefront", headerValue(msg.Headers, HeaderSource))
	assert.Equal(t, "corr-7", headerValue(msg.Headers, HeaderCorrelationID))

	raw, err := evt.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(msg.Value))
	assert.InDelta(t, 1, testutil.ToFloat64(messagesPublished.WithLabelValues(topic, "cart.updated")), 1e-9)
}

func TestPublish_NoCorrelationHeader(t *testing.T) {
	w := &fakeWriter{}

	require.NoError(t, newTestProducer(w).Publish(t.Context(), Topic("storefront", "test.plain"), cartEvent(t, "s")))

	require.Len(t, w.msgs, 1)
	assert.NotContains(t, headerCarrier{headers: &w.msgs[0].Headers}.Keys(), HeaderCorrelationID)
}

func TestPublish_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(t.Context(), sc)
	w := &fakeWriter{}

	require.NoError(t, newTestProducer(w).Publish(ctx, Topic("storefront", "test.traced"), cartEvent(t, "s")))

	require.Len(t, w.msgs, 1)
	extracted := propagation.TraceContext{}.Extract(context.Background(), headerCarrier{headers: &w.msgs[0].Headers})
	got := trace.SpanContextFromContext(extracted)
	assert.Equal(t, sc.TraceID(), got.TraceID())
	assert.Equal(t, sc.SpanID(), got.SpanID())
}

func TestPublish_WriteFailure(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	topic := Topic("storefront", "test.failing")

	err := newTestProducer(w).Publish(t.Context(), topic, cartEvent(t, "s"))

	require.Error(t, err)
	assert.ErrorContains(t, err, "publish event to "+topic)
	assert.ErrorIs(t, err, w.err)
	assert.InDelta(t, 1, testutil.ToFloat64(publishErrors.WithLabelValues(topic, "cart.updated")), 1e-9)
	assert.Zero(t, testutil.ToFloat64(messagesPublished.WithLabelValues(topic, "cart.updated")))
}

func TestPublish_NilEvent(t *testing.T) {
	w := &fakeWriter{}

	err := newTestProducer(w).Publish(t.Context(), "t", nil)

	require.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestPing_NoBrokers(t *testing.T) {
	err := newTestProducer(&fakeWriter{}).Ping(t.Context())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}

func TestPing_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	err = newTestProducer(&fakeWriter{}, addr).Ping(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all brokers unreachable")
}

func TestClose_ClosesWriter(t *testing.T) {
	w := &fakeWriter{}

	require.NoError(t, newTestProducer(w).Close())

	assert.True(t, w.closed)
}
