package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type recordingConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *recordingConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func TestNATSPublisher_PublishJSONWithTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	conn := &recordingConn{}
	pub := &natsPublisher{conn: conn}

	err := pub.Publish(ctx, "cart.events.item_added", map[string]string{"cart_key": "sess1"})
	require.NoError(t, err)

	require.Len(t, conn.msgs, 1)
	msg := conn.msgs[0]
	assert.Equal(t, "cart.events.item_added", msg.Subject)
	assert.JSONEq(t, `{"cart_key":"sess1"}`, string(msg.Data))
	assert.NotEmpty(t, msg.Header.Get("Traceparent"))
}

func TestNATSPublisher_Errors(t *testing.T) {
	pub := &natsPublisher{conn: &recordingConn{err: errors.New("connection closed")}}

	err := pub.PublishRaw(context.Background(), "s", []byte("x"))
	assert.ErrorContains(t, err, "connection closed")

	err = pub.Publish(context.Background(), "s", make(chan int))
	assert.ErrorContains(t, err, "failed to marshal")

	_, err = NewNATSPublisher(nil)
	assert.Error(t, err)
}
