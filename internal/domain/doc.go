// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (board.go, topic.go, errors.go, store.go, broker.go)
// with shared types and cross-cutting interfaces. No implementation code beyond pure helpers.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
