package repository

import (
	"errors"

	"github.com/Abdurahmanit/GroupProject/cart-service/internal/domain/entity"
)

var (
	ErrValidation       = entity.ErrValidation
	ErrNotFound         = entity.ErrItemNotFound
	ErrConflict         = errors.New("cart update conflict: too many concurrent modifications")
	ErrStoreUnavailable = errors.New("cart store unavailable")
)
