package nats

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/adapter/memory"
	natsadapter "github.com/Abdurahmanit/GroupProject/cart-service/internal/adapter/nats"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/app/config"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/service"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

const queueGroup = "cart-service-test"

func startSubscribedHandler(t *testing.T) (*Handler, *nats.Conn) {
	t.Helper()

	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)

	conn, err := natsadapter.NewConnection(config.NATSConfig{URL: srv.ClientURL()}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	repo := memory.NewCartRepository(memory.Config{TTL: time.Hour}, logger.NewNop())
	svc := service.NewCartService(repo, nil, nil, logger.NewNop())
	h := NewHandler(svc, logger.NewNop(), time.Second)
	require.NoError(t, h.Subscribe(conn, queueGroup))
	require.NoError(t, conn.Flush())

	return h, conn
}

func request(t *testing.T, conn *nats.Conn, subject, body string) CartReply {
	t.Helper()
	msg, err := conn.Request(subject, []byte(body), time.Second)
	require.NoError(t, err)

	var reply CartReply
	require.NoError(t, json.Unmarshal(msg.Data, &reply))
	return reply
}

func TestHandler_RequestReplyOverConnection(t *testing.T) {
	_, conn := startSubscribedHandler(t)

	reply := request(t, conn, SubjectAddItem, `{"key":"sess1","product_id":"sku-42","quantity":2,"unit_price":"19.99"}`)
	require.Nil(t, reply.Error)
	require.Len(t, reply.Cart.Items, 1)
	assert.Equal(t, 2, reply.Cart.Items[0].Quantity)
	assert.Equal(t, "19.99", reply.Cart.Items[0].UnitPrice.String())

	reply = request(t, conn, SubjectUpdateQuantity, `{"key":"sess1","product_id":"ghost","quantity":1}`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, service.KindNotFound, reply.Error.Code)

	reply = request(t, conn, SubjectGet, `{broken`)
	require.NotNil(t, reply.Error)
	assert.Equal(t, service.KindInvalidArgument, reply.Error.Code)
}

func TestHandler_MessageWithoutReplyIsStillApplied(t *testing.T) {
	_, conn := startSubscribedHandler(t)

	require.NoError(t, conn.Publish(SubjectAddItem, []byte(`{"key":"quiet","product_id":"p","quantity":3,"unit_price":"1"}`)))
	require.NoError(t, conn.Flush())

	require.Eventually(t, func() bool {
		msg, err := conn.Request(SubjectGet, []byte(`{"key":"quiet"}`), time.Second)
		if err != nil {
			return false
		}
		var reply CartReply
		if err := json.Unmarshal(msg.Data, &reply); err != nil || reply.Error != nil {
			return false
		}
		return reply.Cart.TotalQuantity() == 3
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHandler_ContinuesCallerTrace(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
		otel.SetTracerProvider(noop.NewTracerProvider())
	})

	_, conn := startSubscribedHandler(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	msg := nats.NewMsg(SubjectGet)
	msg.Data = []byte(`{"key":"traced"}`)
	msg.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	resp, err := conn.RequestMsg(msg, time.Second)
	require.NoError(t, err)
	var reply CartReply
	require.NoError(t, json.Unmarshal(resp.Data, &reply))
	require.Nil(t, reply.Error)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.Equal(t, "CartService.get", spans[0].Name())
	assert.Equal(t, traceID, spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", spans[0].Parent().SpanID().String())
}

func TestHandler_UnsubscribeStopsServing(t *testing.T) {
	h, conn := startSubscribedHandler(t)

	reply := request(t, conn, SubjectGet, `{"key":"k"}`)
	require.Nil(t, reply.Error)

	h.Unsubscribe()
	assert.Empty(t, h.subs)

	require.Eventually(t, func() bool {
		_, err := conn.Request(SubjectGet, []byte(`{"key":"k"}`), 100*time.Millisecond)
		return errors.Is(err, nats.ErrNoResponders)
	}, 2*time.Second, 20*time.Millisecond)
}
