package entity

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Variant   []string        `json:"variant,omitempty"`
}

// Matches reports whether the line holds productID with the given variant set.
// variant must already be normalized.
func (li LineItem) Matches(productID string, variant []string) bool {
	return li.ProductID == productID && slices.Equal(li.Variant, variant)
}

type Cart struct {
	Key       string     `json:"key"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func NewCart(key string) *Cart {
	return &Cart{
		Key:   key,
		Items: make([]LineItem, 0),
	}
}

// NormalizeVariant drops empty identifiers, deduplicates and sorts the set so
// that two selections of the same options compare equal.
func NormalizeVariant(variant []string) []string {
	if len(variant) == 0 {
		return nil
	}
	out := make([]string, 0, len(variant))
	for _, v := range variant {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func LineKey(productID string, variant []string) string {
	if len(variant) == 0 {
		return productID
	}
	return productID + "|" + strings.Join(variant, ",")
}

// ValidateItem checks the arguments of an add before any store round-trip.
func ValidateItem(productID string, quantity int, unitPrice decimal.Decimal) error {
	if productID == "" {
		return fmt.Errorf("%w: product ID cannot be empty", ErrValidation)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrValidation, quantity)
	}
	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit price cannot be negative, got %s", ErrValidation, unitPrice.String())
	}
	return nil
}

func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: cart key cannot be empty", ErrValidation)
	}
	return nil
}

func (c *Cart) indexOf(productID string, variant []string) int {
	return slices.IndexFunc(c.Items, func(li LineItem) bool {
		return li.Matches(productID, variant)
	})
}

func (c *Cart) GetItem(productID string, variant ...string) (LineItem, bool) {
	idx := c.indexOf(productID, NormalizeVariant(variant))
	if idx == -1 {
		return LineItem{}, false
	}
	return c.Items[idx], true
}

// AddItem merges the line into the cart. An existing product+variant line
// keeps its original unit price snapshot and only gains quantity.
func (c *Cart) AddItem(productID string, quantity int, unitPrice decimal.Decimal, variant ...string) error {
	if err := ValidateItem(productID, quantity, unitPrice); err != nil {
		return err
	}
	variant = NormalizeVariant(variant)

	if idx := c.indexOf(productID, variant); idx != -1 {
		if quantity > math.MaxInt-c.Items[idx].Quantity {
			return fmt.Errorf("%w: quantity of %s would overflow", ErrValidation, LineKey(productID, variant))
		}
		c.Items[idx].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, LineItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Variant:   variant,
	})
	return nil
}

// UpdateItemQuantity sets the quantity of an existing line; zero removes it.
func (c *Cart) UpdateItemQuantity(productID string, newQuantity int, variant ...string) error {
	if newQuantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative, got %d", ErrValidation, newQuantity)
	}
	variant = NormalizeVariant(variant)
	idx := c.indexOf(productID, variant)
	if idx == -1 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, LineKey(productID, variant))
	}

	if newQuantity == 0 {
		c.Items = slices.Delete(c.Items, idx, idx+1)
	} else {
		c.Items[idx].Quantity = newQuantity
	}
	return nil
}

// RemoveItem reports whether a line was removed.
func (c *Cart) RemoveItem(productID string, variant ...string) bool {
	idx := c.indexOf(productID, NormalizeVariant(variant))
	if idx == -1 {
		return false
	}
	c.Items = slices.Delete(c.Items, idx, idx+1)
	return true
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalQuantity sums every line, saturating at math.MaxInt.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		if item.Quantity > math.MaxInt-total {
			return math.MaxInt
		}
		total += item.Quantity
	}
	return total
}

// Touch stamps a successful mutation and pushes the expiry out by ttl.
func (c *Cart) Touch(now time.Time, ttl time.Duration) {
	c.UpdatedAt = now.UTC()
	c.ExpiresAt = now.Add(ttl).UTC()
}

// Expired reports whether the cart's expiry has elapsed at now. A zero
// ExpiresAt never expires.
func (c *Cart) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]LineItem, len(c.Items))
	for i, item := range c.Items {
		item.Variant = slices.Clone(item.Variant)
		out.Items[i] = item
	}
	return &out
}
