// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (connection.go, state.go, errors.go) hold shared types and
// cross-cutting interfaces. No implementation code - just contracts.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
