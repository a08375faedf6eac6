package approval

import "errors"

var (
	ErrNotFound     = errors.New("approval: not found")
	ErrInvalidState = errors.New("approval: request is not pending")
	ErrValidation   = errors.New("approval: invalid input")
)
