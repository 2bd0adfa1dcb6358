package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

// withTracing installs a recording provider; package tracers delegate to it.
func withTracing(t *testing.T) {
	t.Helper()
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})
}

func TestMessageCarrier(t *testing.T) {
	msg := &kafka.Message{}
	c := NewMessageCarrier(msg)

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("baggage", "k=v")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.Equal(t, []string{"traceparent", "baggage"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

func TestProducer_PublishInjectsTraceContext(t *testing.T) {
	withTracing(t)
	w := &fakeWriter{}
	p := &Producer{writer: w, topic: "order.events"}

	err := p.Publish(context.Background(), "o-1", map[string]string{"type": "order.created"})

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("o-1"), w.msgs[0].Key)
	assert.JSONEq(t, `{"type":"order.created"}`, string(w.msgs[0].Value))
	assert.NotEmpty(t, NewMessageCarrier(&w.msgs[0]).Get("traceparent"))
}

func TestProducer_PublishWrapsWriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, topic: "order.events"}

	err := p.Publish(context.Background(), "o-1", struct{}{})

	assert.ErrorContains(t, err, "broker down")
}

func TestConsumer_ContinuesTraceAndCommits(t *testing.T) {
	withTracing(t)

	// Produce through the real producer path so headers carry a span.
	w := &fakeWriter{}
	ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
	require.NoError(t, (&Producer{writer: w, topic: "order.events"}).Publish(ctx, "o-1", json.RawMessage(`{}`)))
	span.End()

	msgs := w.msgs
	msgs[0].Offset = 7
	r := &fakeReader{queue: msgs}
	c := &Consumer{reader: r, topic: "order.events", groupID: "notifier"}

	var gotTrace trace.TraceID
	err := c.Consume(context.Background(), func(ctx context.Context, payload []byte) error {
		gotTrace = trace.SpanContextFromContext(ctx).TraceID()
		return nil
	})

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, span.SpanContext().TraceID(), gotTrace)
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumer_SkipCommitsAndFailureStops(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := &Consumer{reader: r, topic: "order.events", groupID: "notifier"}

	calls := 0
	err := c.Consume(context.Background(), func(context.Context, []byte) error {
		calls++
		if calls == 1 {
			return ErrSkip
		}
		return errors.New("smtp down")
	})

	assert.EqualError(t, err, "smtp down")
	assert.Equal(t, 2, calls)
	assert.Equal(t, []int64{1}, r.committed)
}
