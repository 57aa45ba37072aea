package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/repository"
	"github.com/shopspring/decimal"
)

const defaultCartTTL = 30 * 24 * time.Hour

type Config struct {
	TTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// CartRepository keeps carts in process memory. A single mutex serialises
// every operation, which makes each mutation trivially atomic. Expired carts
// read as empty and are physically removed on access or by Sweep.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]*entity.Cart
	ttl   time.Duration
	now   func() time.Time
	log   logger.Logger
}

var _ repository.CartRepository = (*CartRepository)(nil)

func NewCartRepository(cfg Config, log logger.Logger) *CartRepository {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &CartRepository{
		carts: make(map[string]*entity.Cart),
		ttl:   ttl,
		now:   now,
		log:   log.With("component", "memory_cart_repository"),
	}
}

// lookup returns the live cart for key, evicting it if expired. Caller holds mu.
func (r *CartRepository) lookup(key string) *entity.Cart {
	cart, ok := r.carts[key]
	if !ok {
		return nil
	}
	if cart.Expired(r.now()) {
		delete(r.carts, key)
		return nil
	}
	return cart
}

func (r *CartRepository) Get(ctx context.Context, key string) (*entity.Cart, error) {
	if err := entity.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cart := r.lookup(key); cart != nil {
		return cart.Clone(), nil
	}
	return entity.NewCart(key), nil
}

func (r *CartRepository) AddItem(ctx context.Context, key, productID string, quantity int, unitPrice decimal.Decimal, variant ...string) (*entity.Cart, error) {
	if err := entity.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := entity.ValidateItem(productID, quantity, unitPrice); err != nil {
		return nil, err
	}
	return r.mutate(ctx, key, func(cart *entity.Cart) (bool, error) {
		return true, cart.AddItem(productID, quantity, unitPrice, variant...)
	})
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, key, productID string, newQuantity int, variant ...string) (*entity.Cart, error) {
	if err := entity.ValidateKey(key); err != nil {
		return nil, err
	}
	if newQuantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative, got %d", repository.ErrValidation, newQuantity)
	}
	return r.mutate(ctx, key, func(cart *entity.Cart) (bool, error) {
		return true, cart.UpdateItemQuantity(productID, newQuantity, variant...)
	})
}

func (r *CartRepository) RemoveItem(ctx context.Context, key, productID string, variant ...string) (*entity.Cart, bool, error) {
	if err := entity.ValidateKey(key); err != nil {
		return nil, false, err
	}
	var removed bool
	cart, err := r.mutate(ctx, key, func(cart *entity.Cart) (bool, error) {
		removed = cart.RemoveItem(productID, variant...)
		return removed, nil
	})
	if err != nil {
		return nil, false, err
	}
	return cart, removed, nil
}

func (r *CartRepository) Clear(ctx context.Context, key string) error {
	if err := entity.ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.carts, key)
	r.mu.Unlock()
	return nil
}

func (r *CartRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// mutate applies fn to a working copy and swaps it in only on success, so a
// failed mutation leaves the stored cart untouched.
func (r *CartRepository) mutate(ctx context.Context, key string, fn func(cart *entity.Cart) (bool, error)) (*entity.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	working := entity.NewCart(key)
	if cart := r.lookup(key); cart != nil {
		working = cart.Clone()
	}

	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return working, nil
	}

	if working.IsEmpty() {
		delete(r.carts, key)
		return entity.NewCart(key), nil
	}
	working.Touch(r.now(), r.ttl)
	r.carts[key] = working
	return working.Clone(), nil
}

// Sweep deletes every expired cart and returns how many were removed.
func (r *CartRepository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for key, cart := range r.carts {
		if cart.Expired(now) {
			delete(r.carts, key)
			removed++
		}
	}
	return removed
}

func (r *CartRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

// Run sweeps every interval until ctx is done.
func (r *CartRepository) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debugf("Swept %d expired carts", n)
			}
		}
	}
}
