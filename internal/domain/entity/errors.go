package entity

import "errors"

var (
	ErrValidation   = errors.New("invalid cart input")
	ErrItemNotFound = errors.New("line item not found in cart")
)
