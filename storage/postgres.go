package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const createDocumentsTable = `
	CREATE TABLE IF NOT EXISTS tournament_documents (
		key        TEXT PRIMARY KEY,
		content    BYTEA NOT NULL,
		version    TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore keeps documents in a single table; the version column is
// replaced with a fresh UUID on every write.
func NewPostgresStore(ctx context.Context, db *sql.DB) (VersionedStore, error) {
	if _, err := db.ExecContext(ctx, createDocumentsTable); err != nil {
		return nil, fmt.Errorf("failed to create tournament_documents table: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var content []byte
	var version string
	err := s.db.QueryRowContext(ctx,
		`SELECT content, version FROM tournament_documents WHERE key = $1`, key,
	).Scan(&content, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to query document %s: %w", key, err)
	}
	return content, version, nil
}

func (s *postgresStore) Put(ctx context.Context, key string, content []byte, expectedVersion string) (string, error) {
	newVersion := uuid.NewString()

	var (
		result sql.Result
		err    error
	)
	if expectedVersion == "" {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO tournament_documents (key, content, version)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO NOTHING`,
			key, content, newVersion)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE tournament_documents
			SET content = $2, version = $3, updated_at = NOW()
			WHERE key = $1 AND version = $4`,
			key, content, newVersion, expectedVersion)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write document %s: %w", key, err)
	}
	if err := checkAffectedRows(result, fmt.Errorf("%w: %s", ErrVersionConflict, key)); err != nil {
		return "", err
	}
	return newVersion, nil
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func checkAffectedRows(result sql.Result, conflictErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return conflictErr
	}
	return nil
}
