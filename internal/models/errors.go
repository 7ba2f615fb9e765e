package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoAggregate signals that the precomputed geobucket table has no rows
// for the requested cell set, so the caller should fall back to the live
// group-by path.
var ErrNoAggregate = errors.New("no precomputed aggregate available")

// ErrNotFound is returned when a single listing lookup matches nothing.
var ErrNotFound = errors.New("property not found")

// ValidationError names the offending request field. Always a 400; the
// request never reaches the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// RateLimitError is a 429 with a retry hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// UpstreamTimeoutError is a 504: the listings store did not answer within
// the request deadline. Retryable.
type UpstreamTimeoutError struct {
	Op  string
	Err error
}

func (e *UpstreamTimeoutError) Error() string {
	return fmt.Sprintf("upstream timeout during %s: %v", e.Op, e.Err)
}

func (e *UpstreamTimeoutError) Unwrap() error { return e.Err }

// UpstreamQueryError is a 500: the store rejected or failed the query.
// Not retryable without a fix.
type UpstreamQueryError struct {
	Op  string
	Err error
}

func (e *UpstreamQueryError) Error() string {
	return fmt.Sprintf("upstream query failed during %s: %v", e.Op, e.Err)
}

func (e *UpstreamQueryError) Unwrap() error { return e.Err }
