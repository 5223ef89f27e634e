package genicam

import "errors"

var (
	ErrFeatureNotFound = errors.New("feature not found")
	ErrTypeMismatch    = errors.New("feature type mismatch")
	ErrAccessDenied    = errors.New("feature is read-only")
	ErrOutOfRange      = errors.New("value out of range")
	ErrRecursion       = errors.New("feature formula recursion")
	ErrInvalidNode     = errors.New("invalid feature node")
)
