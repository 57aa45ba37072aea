package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/service"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	SubjectGet            = "cart.get"
	SubjectAddItem        = "cart.add_item"
	SubjectUpdateQuantity = "cart.update_quantity"
	SubjectRemoveItem     = "cart.remove_item"
	SubjectClear          = "cart.clear"

	defaultRequestTimeout = 3 * time.Second
)

type CartRequest struct {
	Key       string          `json:"key"`
	ProductID string          `json:"product_id,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Variant   []string        `json:"variant,omitempty"`
}

type ErrorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CartReply struct {
	Cart  *entity.Cart `json:"cart,omitempty"`
	Error *ErrorReply  `json:"error,omitempty"`
}

type Handler struct {
	cartService service.CartService
	log         logger.Logger
	timeout     time.Duration
	subs        []*nats.Subscription
}

func NewHandler(cartService service.CartService, log logger.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{
		cartService: cartService,
		log:         log.With("component", "nats_cart_handler"),
		timeout:     timeout,
	}
}

// Subscribe registers one queue subscription per cart subject so that
// replicas share the request load.
func (h *Handler) Subscribe(conn *nats.Conn, queue string) error {
	for _, subject := range []string{SubjectGet, SubjectAddItem, SubjectUpdateQuantity, SubjectRemoveItem, SubjectClear} {
		sub, err := conn.QueueSubscribe(subject, queue, h.onMessage)
		if err != nil {
			h.Unsubscribe()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		h.subs = append(h.subs, sub)
	}
	h.log.Infof("Subscribed to %d cart subjects in queue group %s", len(h.subs), queue)
	return nil
}

// Unsubscribe drains every subscription, letting in-flight requests finish.
func (h *Handler) Unsubscribe() {
	for _, sub := range h.subs {
		if err := sub.Drain(); err != nil {
			h.log.Warnf("Failed to drain subscription %s: %v", sub.Subject, err)
		}
	}
	h.subs = nil
}

func (h *Handler) onMessage(msg *nats.Msg) {
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Header))
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	reply := h.Handle(ctx, msg.Subject, msg.Data)
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		h.log.Errorf("Failed to marshal reply for %s: %v", msg.Subject, err)
		return
	}
	if err := msg.Respond(data); err != nil {
		h.log.Errorf("Failed to respond on %s: %v", msg.Subject, err)
	}
}

// Handle dispatches one request by subject and always produces a reply.
func (h *Handler) Handle(ctx context.Context, subject string, data []byte) CartReply {
	var req CartRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return CartReply{Error: &ErrorReply{Code: service.KindInvalidArgument, Message: "malformed request: " + err.Error()}}
	}

	var (
		cart *entity.Cart
		err  error
	)
	switch subject {
	case SubjectGet:
		cart, err = h.cartService.GetCart(ctx, req.Key)
	case SubjectAddItem:
		cart, err = h.cartService.AddItem(ctx, req.Key, req.ProductID, req.Quantity, req.UnitPrice, req.Variant...)
	case SubjectUpdateQuantity:
		cart, err = h.cartService.UpdateItemQuantity(ctx, req.Key, req.ProductID, req.Quantity, req.Variant...)
	case SubjectRemoveItem:
		cart, err = h.cartService.RemoveItem(ctx, req.Key, req.ProductID, req.Variant...)
	case SubjectClear:
		if err = h.cartService.ClearCart(ctx, req.Key); err == nil {
			cart = entity.NewCart(req.Key)
		}
	default:
		return CartReply{Error: &ErrorReply{Code: service.KindInvalidArgument, Message: "unknown subject " + subject}}
	}

	if err != nil {
		return CartReply{Error: &ErrorReply{Code: service.ErrorKind(err), Message: err.Error()}}
	}
	return CartReply{Cart: cart}
}
