// Package vectorstore defines the narrow interface KAIROS uses to talk to
// its vector database collaborator and provides
// a Qdrant-backed implementation plus an in-memory fake for tests.
package vectorstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Retrieve when no point exists for an id.
var ErrNotFound = errors.New("vectorstore: point not found")

// Point is a single stored vector + payload, keyed by a stable string id
// (a step's uuid). Vector is stored under a named-vector key of the form
// "vs<dim>" so the collection can host more than one embedding dimension
// over its lifetime.
type Point struct {
	ID         string
	VectorName string
	Vector     []float32
	Payload    map[string]any
}

// ScoredPoint is a Point returned from a similarity search, with its raw
// cosine similarity score.
type ScoredPoint struct {
	Point
	Score float32
}

// Filter narrows reads to a single space with
// optional additional payload equality constraints.
type Filter struct {
	SpaceID string
	Equals  map[string]string
}

// Store is the narrow vector-database collaborator interface. All methods
// take a context and are potential suspension points.
type Store interface {
	Upsert(ctx context.Context, points []Point) error
	Retrieve(ctx context.Context, id string, spaceFilter Filter) (*Point, error)
	Search(ctx context.Context, vectorName string, vector []float32, limit int, filter Filter) ([]ScoredPoint, error)
	Scroll(ctx context.Context, filter Filter, limit int) ([]Point, error)
	Delete(ctx context.Context, ids []string) error
	HealthCheck(ctx context.Context) error
}
