package handler

import "time"

// TimeFormat is the standard time format for API responses (RFC3339)
const TimeFormat = time.RFC3339

const (
	// IdempotencyKeyHeader may carry the idempotency key instead of the form field.
	IdempotencyKeyHeader = "Idempotency-Key"

	// DefaultListLimit is used when a list request has no limit.
	DefaultListLimit = 50
	// MaxListLimit caps list page sizes.
	MaxListLimit = 500
)
