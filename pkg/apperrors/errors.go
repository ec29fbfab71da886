package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNilSnapshot   = errors.New("snapshot is nil")
	ErrInvalidWindow = errors.New("window size must be positive")
	ErrUnknownRule   = errors.New("unknown data quality rule category")
	ErrNoWatermark   = errors.New("no watermark recorded")
)
