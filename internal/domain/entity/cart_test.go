package entity

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVariant(t *testing.T) {
	assert.Nil(t, NormalizeVariant(nil))
	assert.Nil(t, NormalizeVariant([]string{"", "  "}))
	assert.Equal(t, []string{"red", "xl"}, NormalizeVariant([]string{"xl", "red", "xl", " "}))
}

func TestCart_AddItem_MergesSameProductAndVariant(t *testing.T) {
	cart := NewCart("sess1")
	price := decimal.RequireFromString("19.99")

	require.NoError(t, cart.AddItem("sku-42", 2, price))
	require.NoError(t, cart.AddItem("sku-42", 1, price))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, "sku-42", cart.Items[0].ProductID)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.True(t, price.Equal(cart.Items[0].UnitPrice))
}

func TestCart_AddItem_KeepsFirstPriceSnapshot(t *testing.T) {
	cart := NewCart("sess1")
	require.NoError(t, cart.AddItem("sku-1", 1, decimal.RequireFromString("10.00")))
	require.NoError(t, cart.AddItem("sku-1", 1, decimal.RequireFromString("12.50")))

	item, ok := cart.GetItem("sku-1")
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, "10", item.UnitPrice.String())
}

func TestCart_AddItem_VariantsAreDistinctLines(t *testing.T) {
	cart := NewCart("sess1")
	price := decimal.NewFromInt(5)

	require.NoError(t, cart.AddItem("shirt", 1, price, "red", "xl"))
	require.NoError(t, cart.AddItem("shirt", 1, price, "xl", "red"))
	require.NoError(t, cart.AddItem("shirt", 1, price, "blue"))
	require.NoError(t, cart.AddItem("shirt", 1, price))

	require.Len(t, cart.Items, 3)
	assert.Equal(t, "shirt|red,xl", LineKey(cart.Items[0].ProductID, cart.Items[0].Variant))
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "shirt|blue", LineKey(cart.Items[1].ProductID, cart.Items[1].Variant))
	assert.Equal(t, "shirt", LineKey(cart.Items[2].ProductID, cart.Items[2].Variant))
	assert.Equal(t, 4, cart.TotalQuantity())
}

func TestCart_AddItem_Validation(t *testing.T) {
	cart := NewCart("sess1")

	assert.ErrorIs(t, cart.AddItem("sku", 0, decimal.NewFromInt(1)), ErrValidation)
	assert.ErrorIs(t, cart.AddItem("sku", -3, decimal.NewFromInt(1)), ErrValidation)
	assert.ErrorIs(t, cart.AddItem("", 1, decimal.NewFromInt(1)), ErrValidation)
	assert.ErrorIs(t, cart.AddItem("sku", 1, decimal.NewFromInt(-1)), ErrValidation)
	assert.True(t, cart.IsEmpty())
}

func TestCart_AddItem_RejectsQuantityOverflow(t *testing.T) {
	cart := NewCart("sess1")
	require.NoError(t, cart.AddItem("sku", math.MaxInt, decimal.NewFromInt(1)))

	err := cart.AddItem("sku", 1, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrValidation)

	item, ok := cart.GetItem("sku")
	require.True(t, ok)
	assert.Equal(t, math.MaxInt, item.Quantity)

	require.NoError(t, cart.AddItem("other", 5, decimal.NewFromInt(1)))
	assert.Equal(t, math.MaxInt, cart.TotalQuantity())
}

func TestCart_UpdateItemQuantity(t *testing.T) {
	cart := NewCart("sess1")
	require.NoError(t, cart.AddItem("a", 1, decimal.NewFromInt(1)))
	require.NoError(t, cart.AddItem("b", 1, decimal.NewFromInt(1), "m"))

	require.NoError(t, cart.UpdateItemQuantity("b", 7, "m"))
	item, ok := cart.GetItem("b", "m")
	require.True(t, ok)
	assert.Equal(t, 7, item.Quantity)

	assert.ErrorIs(t, cart.UpdateItemQuantity("b", 1), ErrItemNotFound)
	assert.ErrorIs(t, cart.UpdateItemQuantity("missing", 1), ErrItemNotFound)
	assert.ErrorIs(t, cart.UpdateItemQuantity("a", -1), ErrValidation)

	require.NoError(t, cart.UpdateItemQuantity("a", 0))
	_, ok = cart.GetItem("a")
	assert.False(t, ok)
	assert.Len(t, cart.Items, 1)
}

func TestCart_UpdateToZeroEqualsRemove(t *testing.T) {
	build := func() *Cart {
		c := NewCart("k")
		_ = c.AddItem("a", 2, decimal.NewFromInt(3))
		_ = c.AddItem("b", 1, decimal.NewFromInt(4), "v")
		return c
	}

	updated := build()
	require.NoError(t, updated.UpdateItemQuantity("b", 0, "v"))
	removed := build()
	assert.True(t, removed.RemoveItem("b", "v"))

	assert.Equal(t, removed.Items, updated.Items)
}

func TestCart_RemoveItem_AbsentIsNoop(t *testing.T) {
	cart := NewCart("k")
	require.NoError(t, cart.AddItem("a", 1, decimal.NewFromInt(1)))

	assert.False(t, cart.RemoveItem("a", "other"))
	assert.False(t, cart.RemoveItem("zzz"))
	assert.Len(t, cart.Items, 1)
}

func TestCart_TouchAndExpired(t *testing.T) {
	cart := NewCart("k")
	assert.False(t, cart.Expired(time.Now()))

	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cart.Touch(t0, time.Hour)
	assert.Equal(t, t0, cart.UpdatedAt)
	assert.False(t, cart.Expired(t0.Add(59*time.Minute)))
	assert.True(t, cart.Expired(t0.Add(time.Hour)))
}

func TestCart_CloneIsIndependent(t *testing.T) {
	cart := NewCart("k")
	require.NoError(t, cart.AddItem("a", 1, decimal.NewFromInt(1), "x"))

	clone := cart.Clone()
	clone.Items[0].Quantity = 99
	clone.Items[0].Variant[0] = "y"

	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.Equal(t, []string{"x"}, cart.Items[0].Variant)
}

func TestNewCartEvent(t *testing.T) {
	cart := NewCart("sess1")
	require.NoError(t, cart.AddItem("a", 3, decimal.NewFromInt(1)))

	ev := NewCartEvent(EventItemAdded, cart)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "sess1", ev.CartKey)
	assert.Equal(t, 3, ev.TotalQuantity)
	assert.Equal(t, "cart.events.item_added", ev.Subject())
}
