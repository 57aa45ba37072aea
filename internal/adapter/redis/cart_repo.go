package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/domain/entity"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/platform/metrics"
	"github.com/Abdurahmanit/GroupProject/cart-service/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	cartKeyPrefix = "cart:"

	defaultCartTTL      = 30 * 24 * time.Hour
	defaultMaxAttempts  = 5
	defaultRetryBackoff = 5 * time.Millisecond
)

type CartRepositoryConfig struct {
	TTL          time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	// Metrics is optional.
	Metrics *metrics.CartMetrics
}

// stringGetter is satisfied by both *redis.Client and a watched *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// mutateFunc edits the loaded cart in place and reports whether anything
// changed. Unchanged carts are not written back.
type mutateFunc func(cart *entity.Cart) (bool, error)

type cartRepository struct {
	client       *redis.Client
	log          logger.Logger
	metrics      *metrics.CartMetrics
	ttl          time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	now          func() time.Time
}

func NewCartRepository(client *redis.Client, cfg CartRepositoryConfig, log logger.Logger) repository.CartRepository {
	return newCartRepository(client, cfg, log)
}

func newCartRepository(client *redis.Client, cfg CartRepositoryConfig, log logger.Logger) *cartRepository {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = defaultRetryBackoff
	}

	return &cartRepository{
		client:       client,
		log:          log.With("component", "redis_cart_repository"),
		metrics:      cfg.Metrics,
		ttl:          ttl,
		maxAttempts:  maxAttempts,
		retryBackoff: retryBackoff,
		now:          time.Now,
	}
}

func (r *cartRepository) getCartKey(key string) string {
	return cartKeyPrefix + key
}

func (r *cartRepository) Get(ctx context.Context, key string) (*entity.Cart, error) {
	if err := entity.ValidateKey(key); err != nil {
		return nil, err
	}
	return r.load(ctx, r.client, key)
}

func (r *cartRepository) AddItem(ctx context.Context, key, productID string, quantity int, unitPrice decimal.Decimal, variant ...string) (*entity.Cart, error) {
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

func (r *cartRepository) UpdateQuantity(ctx context.Context, key, productID string, newQuantity int, variant ...string) (*entity.Cart, error) {
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

func (r *cartRepository) RemoveItem(ctx context.Context, key, productID string, variant ...string) (*entity.Cart, bool, error) {
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

func (r *cartRepository) Clear(ctx context.Context, key string) error {
	if err := entity.ValidateKey(key); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.getCartKey(key)).Err(); err != nil {
		return storeError("clear", key, err)
	}
	return nil
}

func (r *cartRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
	}
	return nil
}

// load reads the cart through either the client or a watched transaction.
// Missing and logically expired records yield an empty cart.
func (r *cartRepository) load(ctx context.Context, cmd stringGetter, key string) (*entity.Cart, error) {
	val, err := cmd.Get(ctx, r.getCartKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.NewCart(key), nil
		}
		return nil, storeError("get", key, err)
	}

	var cart entity.Cart
	if err := json.Unmarshal(val, &cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart data for key %s: %w", key, err)
	}
	if cart.Expired(r.now()) {
		return entity.NewCart(key), nil
	}
	if cart.Items == nil {
		cart.Items = make([]entity.LineItem, 0)
	}
	cart.Key = key
	return &cart, nil
}

// mutate runs one optimistic read-modify-write cycle per attempt: WATCH the
// key, load, apply fn, then MULTI/SET/EXEC. EXEC fails with redis.TxFailedErr
// when the key changed after WATCH, in which case nothing was written.
func (r *cartRepository) mutate(ctx context.Context, key string, fn mutateFunc) (*entity.Cart, error) {
	redisKey := r.getCartKey(key)

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		var (
			result *entity.Cart
			opErr  error
		)

		txf := func(tx *redis.Tx) error {
			cart, err := r.load(ctx, tx, key)
			if err != nil {
				opErr = err
				return err
			}

			changed, err := fn(cart)
			if err != nil {
				opErr = err
				return err
			}
			result = cart
			if !changed {
				return nil
			}

			if cart.IsEmpty() {
				result = entity.NewCart(key)
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, redisKey)
					return nil
				})
				return err
			}

			cart.Touch(r.now(), r.ttl)
			data, err := json.Marshal(cart)
			if err != nil {
				opErr = fmt.Errorf("failed to marshal cart for key %s: %w", key, err)
				return opErr
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, redisKey, data, r.ttl)
				return nil
			})
			return err
		}

		err := r.client.Watch(ctx, txf, redisKey)
		switch {
		case err == nil:
			return result, nil
		case opErr != nil:
			return nil, opErr
		case errors.Is(err, redis.TxFailedErr):
			if r.metrics != nil {
				r.metrics.CASRetriesTotal.Inc()
			}
			r.log.Debugf("Cart %s changed concurrently, attempt %d/%d", key, attempt, r.maxAttempts)
			if attempt < r.maxAttempts {
				if err := r.sleep(ctx, attempt); err != nil {
					return nil, fmt.Errorf("update cart %s: %w", key, err)
				}
			}
		default:
			return nil, storeError("update", key, err)
		}
	}

	r.log.Warnf("Giving up on cart %s after %d conflicting attempts", key, r.maxAttempts)
	return nil, fmt.Errorf("%w: cart %s after %d attempts", repository.ErrConflict, key, r.maxAttempts)
}

// sleep waits a jittered, linearly growing backoff or until ctx is done.
func (r *cartRepository) sleep(ctx context.Context, attempt int) error {
	backoff := r.retryBackoff*time.Duration(attempt) + time.Duration(rand.Int64N(int64(r.retryBackoff)))
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func storeError(op, key string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s cart %s: %w", op, key, err)
	}
	return fmt.Errorf("%s cart %s: %w: %w", op, key, repository.ErrStoreUnavailable, err)
}
