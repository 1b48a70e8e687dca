package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
	"github.com/lowrenn/inkroom/internal/services/room/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "room.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestCreateAndGetDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fields := map[string]any{"type": "narrator", "content": "The gates open."}
	created, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1", fields, "0a1b2c3d4e5f")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	if created.Seq == 0 {
		t.Fatal("expected non-zero seq")
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}
	if !created.UpdatedAt.IsZero() {
		t.Fatalf("expected zero updated timestamp, got %v", created.UpdatedAt)
	}

	got, err := store.GetDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1", storage.GetOptions{})
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if got.Seq != created.Seq {
		t.Errorf("seq = %d, want %d", got.Seq, created.Seq)
	}
	if got.Fields["content"] != "The gates open." {
		t.Errorf("content = %v, want original value", got.Fields["content"])
	}
	if got.AuthorTag != "0a1b2c3d4e5f" {
		t.Errorf("author tag = %q, want %q", got.AuthorTag, "0a1b2c3d4e5f")
	}
}

func TestCreateDocumentDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fields := map[string]any{"type": "ooc", "content": "hi"}
	if _, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1", fields, "tag"); err != nil {
		t.Fatalf("create document: %v", err)
	}
	_, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1", fields, "tag")
	if !errors.Is(err, storage.ErrDuplicateID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	// Same id under a different namespace is a distinct document.
	if _, err := store.CreateDocument(ctx, "rp_xyz", domain.CollectionMsgs, "m1", fields, "tag"); err != nil {
		t.Fatalf("create in second namespace: %v", err)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetDocument(context.Background(), "rp_abc", domain.CollectionMsgs, "missing", storage.GetOptions{})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestUpdateDocumentMovesToEnd(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1",
		map[string]any{"type": "narrator", "content": "one"}, "tag")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m2",
		map[string]any{"type": "narrator", "content": "two"}, "tag")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	updated, err := store.UpdateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1",
		map[string]any{"type": "narrator", "content": "one, revised"}, "tag")
	if err != nil {
		t.Fatalf("update document: %v", err)
	}
	if updated.Seq <= second.Seq {
		t.Errorf("updated seq = %d, want greater than %d", updated.Seq, second.Seq)
	}
	if !updated.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created at changed on update: %v != %v", updated.CreatedAt, first.CreatedAt)
	}
	if updated.UpdatedAt.IsZero() {
		t.Fatal("expected updated timestamp after update")
	}

	docs, err := store.ListDocuments(ctx, "rp_abc", domain.CollectionMsgs, storage.ListOptions{})
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if len(ids) != 2 || ids[0] != "m2" || ids[1] != "m1" {
		t.Errorf("order after update = %v, want [m2 m1]", ids)
	}
}

func TestUpdateDocumentNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpdateDocument(context.Background(), "rp_abc", domain.CollectionMsgs, "missing",
		map[string]any{"type": "ooc", "content": "x"}, "tag")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListDocumentsCeilingIsStable(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		if _, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, id,
			map[string]any{"type": "ooc", "content": id}, "tag"); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	ceiling, err := store.LastEventID(ctx)
	if err != nil {
		t.Fatalf("last event id: %v", err)
	}

	before, err := store.ListDocuments(ctx, "rp_abc", domain.CollectionMsgs, storage.ListOptions{Ceiling: ceiling})
	if err != nil {
		t.Fatalf("list before: %v", err)
	}

	// Writes after the ceiling must not leak into a re-read at the same ceiling.
	if _, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m4",
		map[string]any{"type": "ooc", "content": "late"}, "tag"); err != nil {
		t.Fatalf("create m4: %v", err)
	}
	if _, err := store.UpdateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1",
		map[string]any{"type": "ooc", "content": "changed"}, "tag"); err != nil {
		t.Fatalf("update m1: %v", err)
	}

	after, err := store.ListDocuments(ctx, "rp_abc", domain.CollectionMsgs, storage.ListOptions{Ceiling: ceiling})
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("ceiling read changed size: %d != %d", len(after), len(before))
	}
	for i := range before {
		if after[i].ID != before[i].ID || after[i].Seq != before[i].Seq {
			t.Errorf("ceiling read changed at %d: %s/%d != %s/%d",
				i, after[i].ID, after[i].Seq, before[i].ID, before[i].Seq)
		}
	}

	count, err := store.CountDocuments(ctx, "rp_abc", domain.CollectionMsgs, storage.CountOptions{Ceiling: ceiling})
	if err != nil {
		t.Fatalf("count at ceiling: %v", err)
	}
	if count != 3 {
		t.Errorf("count at ceiling = %d, want 3", count)
	}
}

func TestGetDocumentAtCeiling(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1",
		map[string]any{"type": "ooc", "content": "one"}, "tag"); err != nil {
		t.Fatalf("create m1: %v", err)
	}
	ceiling, err := store.LastEventID(ctx)
	if err != nil {
		t.Fatalf("last event id: %v", err)
	}
	if _, err := store.UpdateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1",
		map[string]any{"type": "ooc", "content": "two"}, "tag"); err != nil {
		t.Fatalf("update m1: %v", err)
	}
	if _, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, "m2",
		map[string]any{"type": "ooc", "content": "late"}, "tag"); err != nil {
		t.Fatalf("create m2: %v", err)
	}

	atCeiling, err := store.GetDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1", storage.GetOptions{Ceiling: ceiling})
	if err != nil {
		t.Fatalf("get m1 at ceiling: %v", err)
	}
	if atCeiling.Fields["content"] != "one" {
		t.Errorf("content at ceiling = %v, want %q", atCeiling.Fields["content"], "one")
	}

	current, err := store.GetDocument(ctx, "rp_abc", domain.CollectionMsgs, "m1", storage.GetOptions{})
	if err != nil {
		t.Fatalf("get m1: %v", err)
	}
	if current.Fields["content"] != "two" {
		t.Errorf("current content = %v, want %q", current.Fields["content"], "two")
	}

	// A document first written after the ceiling does not exist at it.
	_, err = store.GetDocument(ctx, "rp_abc", domain.CollectionMsgs, "m2", storage.GetOptions{Ceiling: ceiling})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found at ceiling, got %v", err)
	}
}

func TestListDocumentsPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, id := range ids {
		if _, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, id,
			map[string]any{"type": "ooc", "content": id}, "tag"); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	page, err := store.ListDocuments(ctx, "rp_abc", domain.CollectionMsgs, storage.ListOptions{Limit: 2, Skip: 2})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m3" || page[1].ID != "m4" {
		got := make([]string, 0, len(page))
		for _, d := range page {
			got = append(got, d.ID)
		}
		t.Errorf("page = %v, want [m3 m4]", got)
	}

	newest, err := store.ListDocuments(ctx, "rp_abc", domain.CollectionMsgs, storage.ListOptions{Reverse: true, Limit: 2})
	if err != nil {
		t.Fatalf("list newest: %v", err)
	}
	if len(newest) != 2 || newest[0].ID != "m5" || newest[1].ID != "m4" {
		got := make([]string, 0, len(newest))
		for _, d := range newest {
			got = append(got, d.ID)
		}
		t.Errorf("newest = %v, want [m5 m4]", got)
	}
}

func TestConcurrentCreatesAllocateUniqueSeqs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 5

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				id := string(rune('a'+w)) + "-" + string(rune('0'+i))
				_, err := store.CreateDocument(ctx, "rp_abc", domain.CollectionMsgs, id,
					map[string]any{"type": "ooc", "content": id}, "tag")
				if err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}

	docs, err := store.ListDocuments(ctx, "rp_abc", domain.CollectionMsgs, storage.ListOptions{})
	if err != nil {
		t.Fatalf("list documents: %v", err)
	}
	if len(docs) != writers*perWriter {
		t.Fatalf("got %d documents, want %d", len(docs), writers*perWriter)
	}

	seen := make(map[uint64]bool, len(docs))
	var max uint64
	for _, d := range docs {
		if seen[d.Seq] {
			t.Fatalf("duplicate seq %d", d.Seq)
		}
		seen[d.Seq] = true
		if d.Seq > max {
			max = d.Seq
		}
	}

	last, err := store.LastEventID(ctx)
	if err != nil {
		t.Fatalf("last event id: %v", err)
	}
	if last != max {
		t.Errorf("last event id = %d, want %d", last, max)
	}
}

func TestRoomDirectory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.PutRoom(ctx, "abcd-efgh-jkmn-pqrs", "rp_abc"); err != nil {
		t.Fatalf("put room: %v", err)
	}

	namespace, err := store.ResolveRoom(ctx, "abcd-efgh-jkmn-pqrs")
	if err != nil {
		t.Fatalf("resolve room: %v", err)
	}
	if namespace != "rp_abc" {
		t.Errorf("namespace = %q, want %q", namespace, "rp_abc")
	}

	err = store.PutRoom(ctx, "abcd-efgh-jkmn-pqrs", "rp_other")
	if !errors.Is(err, storage.ErrDuplicateID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}

	_, err = store.ResolveRoom(ctx, "no-such-code")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLastEventIDEmptyStore(t *testing.T) {
	store := newTestStore(t)

	last, err := store.LastEventID(context.Background())
	if err != nil {
		t.Fatalf("last event id: %v", err)
	}
	if last != 0 {
		t.Errorf("last event id = %d, want 0", last)
	}
}
