// Package apperrors defines the error kinds every component surfaces, per
// spec.md §7. It is its own package (rather than living in internal/engine)
// so pipeline packages like retain, recall, and reflect can wrap these
// sentinels without importing the engine package that wires them together.
package apperrors

import "errors"

var (
	// ErrInvalidInput: bank id not UUID-shaped, text empty or over a length
	// bound, fact_type outside the allowed set. Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable: the LLM or embedding provider call failed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrConcurrencyConflict: a unique-index violation such as two
	// concurrent mental-model generations for the same entity. Recoverable.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrGuardrailRejected: Reflect's citations stripped to no evidence, or
	// a directive post-check failed.
	ErrGuardrailRejected = errors.New("guardrail rejected")

	// ErrTimeout: Reflect exceeded its wall clock.
	ErrTimeout = errors.New("timeout")

	// ErrFatal: an invariant violation, e.g. a cascade-delete left an
	// orphan. Callers should abort the process and alert.
	ErrFatal = errors.New("fatal invariant violation")
)
