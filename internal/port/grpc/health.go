package grpc

import (
	"context"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/metrics"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check name reported alongside the overall "" entry.
const ServiceName = "cart.CartService"

const probeTimeout = 2 * time.Second

type Pinger interface {
	Ping(ctx context.Context) error
}

type statusSetter interface {
	SetServingStatus(service string, servingStatus healthpb.HealthCheckResponse_ServingStatus)
}

// HealthProber periodically pings the cart store and mirrors the result into
// the gRPC health service and the store health gauge.
type HealthProber struct {
	store    Pinger
	health   statusSetter
	metrics  *metrics.CartMetrics
	log      logger.Logger
	interval time.Duration
}

func NewHealthProber(store Pinger, health statusSetter, m *metrics.CartMetrics, log logger.Logger, interval time.Duration) *HealthProber {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthProber{
		store:    store,
		health:   health,
		metrics:  m,
		log:      log.With("component", "health_prober"),
		interval: interval,
	}
}

// Probe runs a single check and returns the error from the store, if any.
func (p *HealthProber) Probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := p.store.Ping(probeCtx)
	servingStatus := healthpb.HealthCheckResponse_SERVING
	gauge := 1.0
	if err != nil {
		servingStatus = healthpb.HealthCheckResponse_NOT_SERVING
		gauge = 0
		p.log.Warnf("Cart store health probe failed: %v", err)
	}

	p.health.SetServingStatus("", servingStatus)
	p.health.SetServingStatus(ServiceName, servingStatus)
	if p.metrics != nil {
		p.metrics.StoreHealthy.Set(gauge)
	}
	return err
}

// Run probes immediately and then every interval until ctx is done.
func (p *HealthProber) Run(ctx context.Context) {
	_ = p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Probe(ctx)
		}
	}
}
