package storage

import "errors"

// Common storage errors
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("run already recorded")
)
