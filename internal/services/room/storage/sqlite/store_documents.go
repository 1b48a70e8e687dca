package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
	"github.com/lowrenn/inkroom/internal/services/room/storage"
)

// nextSeq advances the global event sequence inside tx and returns the
// issued id. A rolled-back transaction releases the id with it, so the
// counter never records an id that lacks a durable write.
//
// This must be the first statement of every write transaction: the UPDATE
// takes the database write lock up front, so concurrent writers queue on the
// busy timeout instead of failing later on a snapshot conflict.
func nextSeq(ctx context.Context, tx *sql.Tx) (uint64, error) {
	if _, err := tx.ExecContext(ctx, "UPDATE event_seq SET last_seq = last_seq + 1 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("advance event seq: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, "SELECT last_seq FROM event_seq WHERE id = 1").Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return uint64(seq), nil
}

// LastEventID returns the most recently issued event id.
func (s *Store) LastEventID(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var seq int64
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT last_seq FROM event_seq WHERE id = 1").Scan(&seq); err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return uint64(seq), nil
}

// CreateDocument persists the first version of a document under a fresh
// event id. It fails with storage.ErrDuplicateID when the key already exists.
func (s *Store) CreateDocument(ctx context.Context, namespace, collection, id string, fields map[string]any, authorTag string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Document{}, fmt.Errorf("storage is not configured")
	}
	if err := requireDocumentKey(namespace, collection, id); err != nil {
		return domain.Document{}, err
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return domain.Document{}, fmt.Errorf("marshal fields: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return domain.Document{}, err
	}

	// The primary key includes seq, so key uniqueness needs an explicit
	// check. The write lock held since nextSeq makes it atomic with the
	// insert.
	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE namespace = ? AND collection = ? AND doc_id = ? LIMIT 1`,
		namespace, collection, id,
	).Scan(&exists)
	if err == nil {
		return domain.Document{}, storage.ErrDuplicateID
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("check document key: %w", err)
	}

	createdAt := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (namespace, collection, doc_id, seq, fields_json, author_tag, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		namespace, collection, id, int64(seq), string(fieldsJSON), authorTag, toMillis(createdAt),
	); err != nil {
		if isConstraintError(err) {
			return domain.Document{}, storage.ErrDuplicateID
		}
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Document{}, fmt.Errorf("commit: %w", err)
	}

	return domain.Document{
		Namespace:  namespace,
		Collection: collection,
		ID:         id,
		Seq:        seq,
		Fields:     fields,
		AuthorTag:  authorTag,
		CreatedAt:  createdAt,
	}, nil
}

// UpdateDocument writes a new version of an existing document under a fresh
// event id, moving its ordering position to the most recent write. Earlier
// versions stay in place so ceiling-bound reads remain stable. It fails with
// storage.ErrNotFound when the key does not exist.
func (s *Store) UpdateDocument(ctx context.Context, namespace, collection, id string, fields map[string]any, authorTag string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Document{}, fmt.Errorf("storage is not configured")
	}
	if err := requireDocumentKey(namespace, collection, id); err != nil {
		return domain.Document{}, err
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return domain.Document{}, fmt.Errorf("marshal fields: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return domain.Document{}, err
	}

	var createdAt int64
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM documents
		 WHERE namespace = ? AND collection = ? AND doc_id = ?
		 ORDER BY seq DESC LIMIT 1`,
		namespace, collection, id,
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, storage.ErrNotFound
		}
		return domain.Document{}, fmt.Errorf("load document: %w", err)
	}

	updatedAt := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (namespace, collection, doc_id, seq, fields_json, author_tag, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		namespace, collection, id, int64(seq), string(fieldsJSON), authorTag, createdAt, toMillis(updatedAt),
	); err != nil {
		return domain.Document{}, fmt.Errorf("insert document version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Document{}, fmt.Errorf("commit: %w", err)
	}

	return domain.Document{
		Namespace:  namespace,
		Collection: collection,
		ID:         id,
		Seq:        seq,
		Fields:     fields,
		AuthorTag:  authorTag,
		CreatedAt:  fromMillis(createdAt),
		UpdatedAt:  updatedAt,
	}, nil
}

// GetDocument returns a document's current version, or, with a non-zero
// ceiling, the version that was current at that event id.
func (s *Store) GetDocument(ctx context.Context, namespace, collection, id string, opts storage.GetOptions) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return domain.Document{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Document{}, fmt.Errorf("storage is not configured")
	}
	if err := requireDocumentKey(namespace, collection, id); err != nil {
		return domain.Document{}, err
	}

	query := `SELECT seq, fields_json, author_tag, created_at, updated_at
	 FROM documents
	 WHERE namespace = ? AND collection = ? AND doc_id = ?`
	params := []any{namespace, collection, id}
	if opts.Ceiling > 0 {
		query += " AND seq <= ?"
		params = append(params, int64(opts.Ceiling))
	}
	query += " ORDER BY seq DESC LIMIT 1"

	row := s.sqlDB.QueryRowContext(ctx, query, params...)
	doc, err := scanDocument(row, namespace, collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, storage.ErrNotFound
		}
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns one row per document, ordered by event id. A non-zero
// ceiling makes the listing reproducible: later creates are absent and later
// updates still show the version that was current at the ceiling.
func (s *Store) ListDocuments(ctx context.Context, namespace, collection string, opts storage.ListOptions) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if err := requireCollectionKey(namespace, collection); err != nil {
		return nil, err
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("limit must not be negative")
	}
	if opts.Skip < 0 {
		return nil, fmt.Errorf("skip must not be negative")
	}

	// The correlated subquery picks each document's newest version at or
	// below the ceiling; documents first written after it have no matching
	// version and drop out.
	query := `SELECT doc_id, seq, fields_json, author_tag, created_at, updated_at
	 FROM documents
	 WHERE namespace = ? AND collection = ?
	   AND seq = (
	       SELECT MAX(v.seq) FROM documents v
	       WHERE v.namespace = documents.namespace
	         AND v.collection = documents.collection
	         AND v.doc_id = documents.doc_id`
	params := []any{namespace, collection}
	if opts.Ceiling > 0 {
		query += " AND v.seq <= ?"
		params = append(params, int64(opts.Ceiling))
	}
	query += ")"
	if opts.Reverse {
		query += " ORDER BY seq DESC"
	} else {
		query += " ORDER BY seq ASC"
	}
	// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
	limit := int64(-1)
	if opts.Limit > 0 {
		limit = int64(opts.Limit)
	}
	query += " LIMIT ? OFFSET ?"
	params = append(params, limit, int64(opts.Skip))

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			docID      string
			seq        int64
			fieldsJSON string
			authorTag  string
			createdAt  int64
			updatedAt  sql.NullInt64
		)
		if err := rows.Scan(&docID, &seq, &fieldsJSON, &authorTag, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		doc, err := buildDocument(namespace, collection, docID, seq, fieldsJSON, authorTag, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// CountDocuments returns the number of distinct documents in a collection.
// A non-zero ceiling counts only documents visible at that ceiling so page
// math stays consistent with a ceiling-bound listing.
func (s *Store) CountDocuments(ctx context.Context, namespace, collection string, opts storage.CountOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if err := requireCollectionKey(namespace, collection); err != nil {
		return 0, err
	}

	query := "SELECT COUNT(DISTINCT doc_id) FROM documents WHERE namespace = ? AND collection = ?"
	params := []any{namespace, collection}
	if opts.Ceiling > 0 {
		query += " AND seq <= ?"
		params = append(params, int64(opts.Ceiling))
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, query, params...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func requireDocumentKey(namespace, collection, id string) error {
	if err := requireCollectionKey(namespace, collection); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("document id is required")
	}
	return nil
}

func requireCollectionKey(namespace, collection string) error {
	if strings.TrimSpace(namespace) == "" {
		return fmt.Errorf("namespace is required")
	}
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("collection is required")
	}
	return nil
}

func scanDocument(row *sql.Row, namespace, collection, id string) (domain.Document, error) {
	var (
		seq        int64
		fieldsJSON string
		authorTag  string
		createdAt  int64
		updatedAt  sql.NullInt64
	)
	if err := row.Scan(&seq, &fieldsJSON, &authorTag, &createdAt, &updatedAt); err != nil {
		return domain.Document{}, err
	}
	return buildDocument(namespace, collection, id, seq, fieldsJSON, authorTag, createdAt, updatedAt)
}

func buildDocument(namespace, collection, id string, seq int64, fieldsJSON, authorTag string, createdAt int64, updatedAt sql.NullInt64) (domain.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return domain.Document{}, fmt.Errorf("unmarshal fields: %w", err)
	}
	doc := domain.Document{
		Namespace:  namespace,
		Collection: collection,
		ID:         id,
		Seq:        uint64(seq),
		Fields:     fields,
		AuthorTag:  authorTag,
		CreatedAt:  fromMillis(createdAt),
	}
	if updatedAt.Valid {
		doc.UpdatedAt = fromMillis(updatedAt.Int64)
	}
	return doc, nil
}
