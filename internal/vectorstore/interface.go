// Package vectorstore provides the Qdrant-backed vector storage gateway.
//
// The gateway owns all vector-database I/O: collection lifecycle, point
// upsert, filtered search, filtered delete and payload patching. Connection
// handling is delegated to a ConnectionManager that lazily dials, retries
// with bounded exponential backoff and self-heals when a health check fails.
//
// Error semantics follow the role of each operation: indexing-path failures
// are observable (ops return false and callers abort the run), while the
// search path degrades to empty results because retrieval is advisory.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid vectorstore configuration")

	// ErrInvalidCollectionName indicates a collection name failing validation.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrConnectionFailed indicates the vector store was unreachable after
	// bounded retries.
	ErrConnectionFailed = errors.New("vector store connection failed")

	// ErrCollectionNotFound indicates the requested collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")
)

// ScoredPoint is one search hit: the stored payload plus the similarity
// score assigned by the vector store (cosine, higher is more similar).
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload *Payload
}

// Store is the vector-database surface consumed by the indexing pipeline,
// scoped search and the RAG retriever.
//
// Boolean results encode best-effort semantics: false means "did not happen"
// (empty input, invalid name, or backend error after retries) and the cause
// is logged rather than propagated, because every caller either re-runs the
// operation (indexing) or degrades gracefully (search).
type Store interface {
	// EnsureCollection creates the collection if missing. Returns true only
	// when the collection was created by this call.
	EnsureCollection(ctx context.Context, name string, dim int) bool

	// Upsert stores one point per (vector, payload) pair under fresh ids, as
	// a single batch call. Returns false on empty or mismatched input.
	Upsert(ctx context.Context, collection string, vectors [][]float32, payloads []*Payload) bool

	// Search returns up to topK nearest points, optionally narrowed by a
	// scope. topK is clamped to [1, 100]. Returns nil on any backend error.
	Search(ctx context.Context, collection string, queryVector []float32, topK int, scope Scope) []ScoredPoint

	// DeleteByField removes all points whose payload field matches value.
	// Deleting nothing is success.
	DeleteByField(ctx context.Context, collection, field, value string) bool

	// UpdatePayloadByField patches the payload of every point whose field
	// matches value. Patching nothing is success.
	UpdatePayloadByField(ctx context.Context, collection, field, value string, patch map[string]any) bool

	// CountByField returns the number of points whose payload field matches
	// value, or an error when the store is unreachable.
	CountByField(ctx context.Context, collection, field, value string) (uint64, error)

	// HealthCheck verifies the backend connection, invalidating the cached
	// handle on failure so the next call redials.
	HealthCheck(ctx context.Context) error
}
