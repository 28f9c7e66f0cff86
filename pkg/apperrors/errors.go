package apperrors

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("already exists")
	ErrSchema      = errors.New("schema validation failed")
	ErrComputation = errors.New("feature computation failed")
	ErrStorage     = errors.New("failed to store feature values")
)
