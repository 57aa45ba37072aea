package grpc

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func LoggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		startTime := time.Now()
		traceID := trace.SpanFromContext(ctx).SpanContext().TraceID().String()

		resp, err := handler(ctx, req)

		l := log.With(
			"method", info.FullMethod,
			"duration", time.Since(startTime),
			"status_code", status.Code(err).String(),
			"trace_id", traceID,
		)
		if err != nil {
			l.Errorf("gRPC request failed: %v", err)
		} else {
			l.Debug("gRPC request completed")
		}
		return resp, err
	}
}
