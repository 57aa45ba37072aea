package repository

import (
	"context"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CartRepository owns every persisted cart. Mutations are atomic per key and
// refresh the cart's TTL; reads never do. Returned carts are copies.
type CartRepository interface {
	Get(ctx context.Context, key string) (*entity.Cart, error)
	AddItem(ctx context.Context, key, productID string, quantity int, unitPrice decimal.Decimal, variant ...string) (*entity.Cart, error)
	UpdateQuantity(ctx context.Context, key, productID string, newQuantity int, variant ...string) (*entity.Cart, error)
	// RemoveItem reports whether a line was actually removed.
	RemoveItem(ctx context.Context, key, productID string, variant ...string) (*entity.Cart, bool, error)
	Clear(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
