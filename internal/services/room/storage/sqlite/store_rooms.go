package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lowrenn/inkroom/internal/services/room/storage"
)

// PutRoom registers a room code for a namespace. It fails with
// storage.ErrDuplicateID when the code is already taken, letting the caller
// retry with a fresh code.
func (s *Store) PutRoom(ctx context.Context, code, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	code = strings.TrimSpace(code)
	namespace = strings.TrimSpace(namespace)
	if code == "" {
		return fmt.Errorf("room code is required")
	}
	if namespace == "" {
		return fmt.Errorf("namespace is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO rooms (code, namespace, created_at) VALUES (?, ?, ?)`,
		code, namespace, toMillis(time.Now()),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrDuplicateID
		}
		return fmt.Errorf("put room: %w", err)
	}
	return nil
}

// ResolveRoom returns the namespace registered for a room code.
func (s *Store) ResolveRoom(ctx context.Context, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("room code is required")
	}

	var namespace string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT namespace FROM rooms WHERE code = ?`, code,
	).Scan(&namespace)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("resolve room: %w", err)
	}
	return namespace, nil
}
