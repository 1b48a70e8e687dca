// Package storage defines the persistence contracts for the room service.
package storage

import (
	"context"
	"errors"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateID indicates a create collided with an existing key.
var ErrDuplicateID = errors.New("id already exists")

// ListOptions bounds and orders a collection listing.
//
// Ceiling, when non-zero, restricts results to documents whose event id is
// at or below it, making the listing reproducible against later writes.
// Skip and Limit apply after ordering; Limit zero means unbounded.
type ListOptions struct {
	Ceiling uint64
	Reverse bool
	Limit   int
	Skip    int
}

// CountOptions bounds a collection count. A non-zero Ceiling counts only
// documents whose event id is at or below it, keeping page math consistent
// with a ceiling-bound listing.
type CountOptions struct {
	Ceiling uint64
}

// GetOptions bounds a point read. A non-zero Ceiling returns the version of
// the document current at that event id; a document first written after the
// ceiling reads as missing.
type GetOptions struct {
	Ceiling uint64
}

// DocumentStore persists namespaced documents tagged with store-wide event
// ids. Every write lands as a new immutable version row, so any read bound
// to a ceiling keeps returning the same versions no matter what is written
// afterwards.
type DocumentStore interface {
	CreateDocument(ctx context.Context, namespace, collection, id string, fields map[string]any, authorTag string) (domain.Document, error)
	UpdateDocument(ctx context.Context, namespace, collection, id string, fields map[string]any, authorTag string) (domain.Document, error)
	GetDocument(ctx context.Context, namespace, collection, id string, opts GetOptions) (domain.Document, error)
	ListDocuments(ctx context.Context, namespace, collection string, opts ListOptions) ([]domain.Document, error)
	CountDocuments(ctx context.Context, namespace, collection string, opts CountOptions) (int, error)

	// LastEventID returns the most recently issued event id without
	// performing a write. It is the snapshot ceiling for consistent reads.
	LastEventID(ctx context.Context) (uint64, error)
}

// RoomDirectory maps opaque user-facing room codes to internal namespaces.
type RoomDirectory interface {
	// PutRoom registers a code for a namespace. It fails with
	// ErrDuplicateID when the code is already taken.
	PutRoom(ctx context.Context, code, namespace string) error
	// ResolveRoom returns the namespace for a code, or ErrNotFound.
	ResolveRoom(ctx context.Context, code string) (string, error)
}

// Store is the full persistence surface the room service composes over.
type Store interface {
	DocumentStore
	RoomDirectory
}
