package service

import (
	"context"
	"errors"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/repository"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/Abdurahmanit/GroupProject/cart-service/internal/service"

	opGet            = "get"
	opAddItem        = "add_item"
	opUpdateQuantity = "update_quantity"
	opRemoveItem     = "remove_item"
	opClear          = "clear"
)

type CartService interface {
	GetCart(ctx context.Context, key string) (*entity.Cart, error)
	AddItem(ctx context.Context, key, productID string, quantity int, unitPrice decimal.Decimal, variant ...string) (*entity.Cart, error)
	UpdateItemQuantity(ctx context.Context, key, productID string, newQuantity int, variant ...string) (*entity.Cart, error)
	RemoveItem(ctx context.Context, key, productID string, variant ...string) (*entity.Cart, error)
	ClearCart(ctx context.Context, key string) error
}

// EventPublisher is satisfied by the NATS message publisher.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, message interface{}) error
}

type cartService struct {
	cartRepo  repository.CartRepository
	publisher EventPublisher
	metrics   *metrics.CartMetrics
	tracer    trace.Tracer
	log       logger.Logger
}

// NewCartService wires the service. publisher and m may be nil.
func NewCartService(
	cartRepo repository.CartRepository,
	publisher EventPublisher,
	m *metrics.CartMetrics,
	log logger.Logger,
) CartService {
	return &cartService{
		cartRepo:  cartRepo,
		publisher: publisher,
		metrics:   m,
		tracer:    otel.Tracer(tracerName),
		log:       log.With("component", "cart_service"),
	}
}

func (s *cartService) GetCart(ctx context.Context, key string) (*entity.Cart, error) {
	ctx, done := s.start(ctx, opGet, key)
	cart, err := s.cartRepo.Get(ctx, key)
	done(err)
	if err != nil {
		s.log.Errorf("Error getting cart %s: %v", key, err)
		return nil, err
	}
	return cart, nil
}

func (s *cartService) AddItem(ctx context.Context, key, productID string, quantity int, unitPrice decimal.Decimal, variant ...string) (*entity.Cart, error) {
	s.log.Debugf("Adding item to cart: Key=%s, ProductID=%s, Quantity=%d", key, productID, quantity)
	ctx, done := s.start(ctx, opAddItem, key, attribute.String("cart.product_id", productID), attribute.Int("cart.quantity", quantity))
	cart, err := s.cartRepo.AddItem(ctx, key, productID, quantity, unitPrice, variant...)
	done(err)
	if err != nil {
		s.logFailure(opAddItem, key, err)
		return nil, err
	}

	ev := lineEvent(entity.EventItemAdded, cart, productID, variant)
	ev.Quantity = quantity
	s.publish(ctx, ev)
	return cart, nil
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, key, productID string, newQuantity int, variant ...string) (*entity.Cart, error) {
	s.log.Debugf("Updating item quantity: Key=%s, ProductID=%s, NewQuantity=%d", key, productID, newQuantity)
	ctx, done := s.start(ctx, opUpdateQuantity, key, attribute.String("cart.product_id", productID), attribute.Int("cart.quantity", newQuantity))
	cart, err := s.cartRepo.UpdateQuantity(ctx, key, productID, newQuantity, variant...)
	done(err)
	if err != nil {
		s.logFailure(opUpdateQuantity, key, err)
		return nil, err
	}

	evType := entity.EventQuantityUpdated
	if newQuantity == 0 {
		evType = entity.EventItemRemoved
	}
	ev := lineEvent(evType, cart, productID, variant)
	ev.Quantity = newQuantity
	s.publish(ctx, ev)
	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, key, productID string, variant ...string) (*entity.Cart, error) {
	s.log.Debugf("Removing item from cart: Key=%s, ProductID=%s", key, productID)
	ctx, done := s.start(ctx, opRemoveItem, key, attribute.String("cart.product_id", productID))
	cart, removed, err := s.cartRepo.RemoveItem(ctx, key, productID, variant...)
	done(err)
	if err != nil {
		s.logFailure(opRemoveItem, key, err)
		return nil, err
	}
	if !removed {
		s.log.Debugf("Nothing to remove: Key=%s, ProductID=%s", key, productID)
		return cart, nil
	}

	s.publish(ctx, lineEvent(entity.EventItemRemoved, cart, productID, variant))
	return cart, nil
}

func (s *cartService) ClearCart(ctx context.Context, key string) error {
	s.log.Debugf("Clearing cart: Key=%s", key)
	ctx, done := s.start(ctx, opClear, key)
	err := s.cartRepo.Clear(ctx, key)
	done(err)
	if err != nil {
		s.logFailure(opClear, key, err)
		return err
	}

	ev := entity.NewCartEvent(entity.EventCartCleared, nil)
	ev.CartKey = key
	s.publish(ctx, ev)
	return nil
}

// lineEvent describes a change to one line; LineQuantity is what the line
// holds afterwards, zero once it is gone.
func lineEvent(eventType entity.CartEventType, cart *entity.Cart, productID string, variant []string) entity.CartEvent {
	ev := entity.NewCartEvent(eventType, cart)
	ev.ProductID = productID
	ev.Variant = entity.NormalizeVariant(variant)
	if item, ok := cart.GetItem(productID, variant...); ok {
		ev.LineQuantity = item.Quantity
	}
	return ev
}

// start opens a span for op and returns a func that closes it and records
// the outcome in metrics.
func (s *cartService) start(ctx context.Context, op, key string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	begin := time.Now()
	attrs = append(attrs, attribute.String("cart.key", key))
	ctx, span := s.tracer.Start(ctx, "CartService."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		result := ErrorKind(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()

		if s.metrics != nil {
			s.metrics.OperationsTotal.WithLabelValues(op, result).Inc()
			s.metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(begin).Seconds())
		}
	}
}

func (s *cartService) logFailure(op, key string, err error) {
	switch ErrorKind(err) {
	case KindInvalidArgument, KindNotFound:
		s.log.Infof("Cart %s rejected for %s: %v", op, key, err)
	case KindConflict:
		s.log.Warnf("Cart %s for %s lost to concurrent updates: %v", op, key, err)
	default:
		s.log.Errorf("Cart %s failed for %s: %v", op, key, err)
	}
}

// publish never fails the call: the mutation has already committed.
func (s *cartService) publish(ctx context.Context, ev entity.CartEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev.Subject(), ev); err != nil {
		s.log.Warnf("Failed to publish %s event for cart %s: %v", ev.Type, ev.CartKey, err)
		if s.metrics != nil {
			s.metrics.EventPublishErrors.Inc()
		}
	}
}

const (
	KindOK              = "ok"
	KindInvalidArgument = "invalid_argument"
	KindNotFound        = "not_found"
	KindConflict        = "conflict"
	KindUnavailable     = "unavailable"
	KindCanceled        = "canceled"
	KindInternal        = "internal"
)

// ErrorKind classifies err into a stable label used by metrics and replies.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, repository.ErrValidation):
		return KindInvalidArgument
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrConflict):
		return KindConflict
	case errors.Is(err, repository.ErrStoreUnavailable):
		return KindUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
