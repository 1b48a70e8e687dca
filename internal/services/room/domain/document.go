// Package domain holds the room service's core types and collaborator
// primitives: documents, fanout events, field validation, room codes,
// author pseudonyms, and ownership challenges.
package domain

import "time"

// Collection names recognized by the room service. The storage layer accepts
// any lowercase-alpha token; semantics are defined per recognized collection.
const (
	CollectionMeta   = "meta"
	CollectionMsgs   = "msgs"
	CollectionCharas = "charas"
)

// MetaDocID is the singleton document id of a room's meta collection.
const MetaDocID = "meta"

// Document is one stored record within a (namespace, collection).
//
// Seq is the store-wide event id assigned at write time. It orders the
// document for both listing and fanout; an update reassigns it, moving the
// record's ordering position to its most recent write.
type Document struct {
	Namespace  string
	Collection string
	ID         string
	Seq        uint64
	Fields     map[string]any
	AuthorTag  string
	CreatedAt  time.Time
	UpdatedAt  time.Time // zero until the first update
}

// Payload renders the document in its wire shape: fields flattened alongside
// the identifier and event id.
func (d Document) Payload() map[string]any {
	payload := make(map[string]any, len(d.Fields)+3)
	for key, value := range d.Fields {
		payload[key] = value
	}
	payload["_id"] = d.ID
	payload["eventId"] = d.Seq
	payload["createdAt"] = d.CreatedAt.UTC().Format(time.RFC3339)
	if !d.UpdatedAt.IsZero() {
		payload["updatedAt"] = d.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

// EventKind distinguishes create and update writes in fanout frames.
type EventKind string

const (
	// EventAppend tags a document creation.
	EventAppend EventKind = "append"
	// EventPut tags a document update.
	EventPut EventKind = "put"
)

// Event is the ephemeral record handed from a completed write to the
// subscribers of its namespace. It is never persisted beyond the document
// it carries.
type Event struct {
	Namespace  string
	Seq        uint64
	Kind       EventKind
	Collection string
	Document   Document
}
