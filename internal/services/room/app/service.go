// Package server hosts the room service: document writes with live fanout,
// snapshot-consistent reads, and the HTTP surface that exposes them.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/lowrenn/inkroom/internal/errors"
	"github.com/lowrenn/inkroom/internal/platform/id"
	"github.com/lowrenn/inkroom/internal/services/room/bus"
	"github.com/lowrenn/inkroom/internal/services/room/domain"
	"github.com/lowrenn/inkroom/internal/services/room/export"
	"github.com/lowrenn/inkroom/internal/services/room/storage"
)

const (
	// latestMessageWindow is how many trailing messages a room view carries.
	latestMessageWindow = 60
	// pageSize is the number of messages per archive page.
	pageSize = 20
	// exportBatchSize bounds how many messages a transcript export loads at once.
	exportBatchSize = 200
	// roomCodeAttempts bounds retries when a generated room code collides.
	roomCodeAttempts = 5
)

// Service implements the room operations on top of a document store and an
// event bus.
type Service struct {
	store storage.Store
	bus   *bus.Bus

	// mu guards writeMu. Each namespace gets one write lock, held across
	// store write and bus publish so subscribers observe events in event
	// id order. Locks are never pruned: rooms cannot be deleted, and a
	// mutex costs a few dozen bytes per namespace ever written to.
	mu      sync.Mutex
	writeMu map[string]*sync.Mutex
}

// NewService wires a service from its collaborators.
func NewService(store storage.Store, eventBus *bus.Bus) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if eventBus == nil {
		return nil, fmt.Errorf("event bus is required")
	}
	return &Service{
		store:   store,
		bus:     eventBus,
		writeMu: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Service) namespaceLock(namespace string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.writeMu[namespace]
	if !ok {
		lock = &sync.Mutex{}
		s.writeMu[namespace] = lock
	}
	return lock
}

// CreateRoom validates meta fields, allocates a namespace, and registers a
// room code for it. The meta document is the room's first write.
func (s *Service) CreateRoom(ctx context.Context, rawMeta map[string]any, remoteAddr string) (string, error) {
	fields, err := domain.ValidateFields(domain.CollectionMeta, rawMeta)
	if err != nil {
		return "", err
	}

	suffix, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("allocate namespace: %w", err)
	}
	namespace := "rp_" + suffix
	authorTag := domain.AuthorTag(remoteAddr)

	lock := s.namespaceLock(namespace)
	lock.Lock()
	doc, err := s.store.CreateDocument(ctx, namespace, domain.CollectionMeta, domain.MetaDocID, fields, authorTag)
	if err == nil {
		s.bus.Publish(domain.Event{
			Namespace:  namespace,
			Seq:        doc.Seq,
			Kind:       domain.EventAppend,
			Collection: domain.CollectionMeta,
			Document:   doc,
		})
	}
	lock.Unlock()
	if err != nil {
		return "", mapStorageError(err, "create room meta")
	}

	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := domain.NewRoomCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		err = s.store.PutRoom(ctx, code, namespace)
		if err == nil {
			return code, nil
		}
		if !stderrors.Is(err, storage.ErrDuplicateID) {
			return "", fmt.Errorf("register room code: %w", err)
		}
	}
	return "", fmt.Errorf("register room code: retries exhausted")
}

// IssueChallenge returns a fresh ownership challenge pair.
func (s *Service) IssueChallenge() (domain.Challenge, error) {
	return domain.NewChallenge()
}

// ResolveRoom maps a room code to its namespace.
func (s *Service) ResolveRoom(ctx context.Context, code string) (string, error) {
	namespace, err := s.store.ResolveRoom(ctx, code)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return "", errors.New(errors.CodeNotFound, "room not found")
		}
		return "", fmt.Errorf("resolve room: %w", err)
	}
	return namespace, nil
}

// Append validates and stores a new document, publishing its event to the
// namespace's subscribers.
func (s *Service) Append(ctx context.Context, namespace, collection string, raw map[string]any, remoteAddr string) (domain.Document, error) {
	fields, err := domain.ValidateFields(collection, raw)
	if err != nil {
		return domain.Document{}, err
	}
	docID, err := id.NewID()
	if err != nil {
		return domain.Document{}, fmt.Errorf("allocate document id: %w", err)
	}
	authorTag := domain.AuthorTag(remoteAddr)

	lock := s.namespaceLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.store.CreateDocument(ctx, namespace, collection, docID, fields, authorTag)
	if err != nil {
		return domain.Document{}, mapStorageError(err, "append document")
	}
	s.bus.Publish(domain.Event{
		Namespace:  namespace,
		Seq:        doc.Seq,
		Kind:       domain.EventAppend,
		Collection: collection,
		Document:   doc,
	})
	return doc, nil
}

// Update replaces a document's fields under ownership rules: a document that
// carries a challenge hash only accepts updates whose secret verifies
// against it. The rewritten document moves to the end of the ordering and
// its event reaches the namespace's subscribers.
func (s *Service) Update(ctx context.Context, namespace, collection, docID string, raw map[string]any, secret, remoteAddr string) (domain.Document, error) {
	fields, err := domain.ValidateFields(collection, raw)
	if err != nil {
		return domain.Document{}, err
	}
	authorTag := domain.AuthorTag(remoteAddr)

	lock := s.namespaceLock(namespace)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.GetDocument(ctx, namespace, collection, docID, storage.GetOptions{})
	if err != nil {
		return domain.Document{}, mapStorageError(err, "load document")
	}
	if hash, ok := existing.Fields["challenge"].(string); ok && hash != "" {
		if !domain.VerifyChallenge(secret, hash) {
			return domain.Document{}, errors.New(errors.CodeUnauthorized, "document secret does not match")
		}
	}

	doc, err := s.store.UpdateDocument(ctx, namespace, collection, docID, fields, authorTag)
	if err != nil {
		return domain.Document{}, mapStorageError(err, "update document")
	}
	s.bus.Publish(domain.Event{
		Namespace:  namespace,
		Seq:        doc.Seq,
		Kind:       domain.EventPut,
		Collection: collection,
		Document:   doc,
	})
	return doc, nil
}

// RoomView is the room's landing snapshot: meta, the trailing message
// window, the character roster, and the event id it was captured at.
type RoomView struct {
	Title       string
	Desc        string
	Msgs        []domain.Document
	Charas      []domain.Document
	LastEventID uint64
}

// View captures a consistent snapshot of a room. The ceiling is read first;
// every subsequent read filters to it, so writes racing the snapshot never
// surface in it.
func (s *Service) View(ctx context.Context, namespace string) (RoomView, error) {
	ceiling, err := s.store.LastEventID(ctx)
	if err != nil {
		return RoomView{}, fmt.Errorf("read event ceiling: %w", err)
	}

	meta, err := s.store.GetDocument(ctx, namespace, domain.CollectionMeta, domain.MetaDocID, storage.GetOptions{Ceiling: ceiling})
	if err != nil {
		return RoomView{}, mapStorageError(err, "load room meta")
	}

	msgs, err := s.store.ListDocuments(ctx, namespace, domain.CollectionMsgs, storage.ListOptions{
		Ceiling: ceiling,
		Reverse: true,
		Limit:   latestMessageWindow,
	})
	if err != nil {
		return RoomView{}, fmt.Errorf("list messages: %w", err)
	}
	reverseDocs(msgs)

	charas, err := s.store.ListDocuments(ctx, namespace, domain.CollectionCharas, storage.ListOptions{Ceiling: ceiling})
	if err != nil {
		return RoomView{}, fmt.Errorf("list characters: %w", err)
	}

	title, _ := meta.Fields["title"].(string)
	desc, _ := meta.Fields["desc"].(string)
	return RoomView{
		Title:       title,
		Desc:        desc,
		Msgs:        msgs,
		Charas:      charas,
		LastEventID: ceiling,
	}, nil
}

// RoomPage is one archive page of a room's messages.
type RoomPage struct {
	Title     string
	Desc      string
	Msgs      []domain.Document
	Charas    []domain.Document
	PageCount int
}

// Page returns archive page number page, counted from 1 in event id order.
// Count and listing share one ceiling so the page math cannot drift against
// concurrent writes.
func (s *Service) Page(ctx context.Context, namespace string, page int) (RoomPage, error) {
	if page < 1 {
		return RoomPage{}, errors.New(errors.CodeBadInput, "page number must be positive")
	}

	ceiling, err := s.store.LastEventID(ctx)
	if err != nil {
		return RoomPage{}, fmt.Errorf("read event ceiling: %w", err)
	}

	meta, err := s.store.GetDocument(ctx, namespace, domain.CollectionMeta, domain.MetaDocID, storage.GetOptions{Ceiling: ceiling})
	if err != nil {
		return RoomPage{}, mapStorageError(err, "load room meta")
	}

	msgs, err := s.store.ListDocuments(ctx, namespace, domain.CollectionMsgs, storage.ListOptions{
		Ceiling: ceiling,
		Limit:   pageSize,
		Skip:    (page - 1) * pageSize,
	})
	if err != nil {
		return RoomPage{}, fmt.Errorf("list messages: %w", err)
	}

	charas, err := s.store.ListDocuments(ctx, namespace, domain.CollectionCharas, storage.ListOptions{Ceiling: ceiling})
	if err != nil {
		return RoomPage{}, fmt.Errorf("list characters: %w", err)
	}

	count, err := s.store.CountDocuments(ctx, namespace, domain.CollectionMsgs, storage.CountOptions{Ceiling: ceiling})
	if err != nil {
		return RoomPage{}, fmt.Errorf("count messages: %w", err)
	}

	title, _ := meta.Fields["title"].(string)
	desc, _ := meta.Fields["desc"].(string)
	return RoomPage{
		Title:     title,
		Desc:      desc,
		Msgs:      msgs,
		Charas:    charas,
		PageCount: (count + pageSize - 1) / pageSize,
	}, nil
}

// WriteTranscript streams the room's full transcript to w as plain text,
// loading messages in bounded batches at one ceiling.
func (s *Service) WriteTranscript(ctx context.Context, namespace string, includeOOC bool, w io.Writer) error {
	ceiling, err := s.store.LastEventID(ctx)
	if err != nil {
		return fmt.Errorf("read event ceiling: %w", err)
	}

	meta, err := s.store.GetDocument(ctx, namespace, domain.CollectionMeta, domain.MetaDocID, storage.GetOptions{Ceiling: ceiling})
	if err != nil {
		return mapStorageError(err, "load room meta")
	}

	charas, err := s.store.ListDocuments(ctx, namespace, domain.CollectionCharas, storage.ListOptions{Ceiling: ceiling})
	if err != nil {
		return fmt.Errorf("list characters: %w", err)
	}
	names := make(map[string]string, len(charas))
	for _, chara := range charas {
		if name, ok := chara.Fields["name"].(string); ok {
			names[chara.ID] = name
		}
	}

	tw := export.NewTextWriter(w, includeOOC)
	title, _ := meta.Fields["title"].(string)
	desc, _ := meta.Fields["desc"].(string)
	if err := tw.Header(title, desc); err != nil {
		return err
	}

	for skip := 0; ; skip += exportBatchSize {
		batch, err := s.store.ListDocuments(ctx, namespace, domain.CollectionMsgs, storage.ListOptions{
			Ceiling: ceiling,
			Limit:   exportBatchSize,
			Skip:    skip,
		})
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		for _, msg := range batch {
			if err := tw.Message(msg, func(id string) string { return names[id] }); err != nil {
				return err
			}
		}
		if len(batch) < exportBatchSize {
			return nil
		}
	}
}

// Subscribe registers a live subscriber for a namespace's events.
func (s *Service) Subscribe(namespace string) *bus.Subscription {
	return s.bus.Subscribe(namespace)
}

// SubscriberCount reports the live subscribers of a namespace.
func (s *Service) SubscriberCount(namespace string) int {
	return s.bus.SubscriberCount(namespace)
}

func mapStorageError(err error, action string) error {
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.New(errors.CodeNotFound, "document not found")
	case stderrors.Is(err, storage.ErrDuplicateID):
		return errors.New(errors.CodeDuplicateID, "document id already exists")
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

func reverseDocs(docs []domain.Document) {
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
}
