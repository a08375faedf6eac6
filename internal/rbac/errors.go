package rbac

import "errors"

var (
	ErrNotFound         = errors.New("rbac: not found")
	ErrAlreadyAssigned  = errors.New("rbac: role already assigned")
	ErrInvalidInput     = errors.New("rbac: invalid input")
	ErrPermissionDenied = errors.New("rbac: permission denied")
)
