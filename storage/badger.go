package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type BadgerStoreConfig struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path     string
	InMemory bool
	// Logger receives badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// badgerStore is the embedded local backend. Content and version live under
// two keys and are always written in the same transaction.
type badgerStore struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func NewBadgerStore(cfg BadgerStoreConfig) (VersionedStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for persistent storage")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &badgerStore{db: db}, nil
}

func contentKey(key string) []byte { return []byte("doc/" + key + "/content") }
func versionKey(key string) []byte { return []byte("doc/" + key + "/version") }

func (s *badgerStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var content []byte
	var version string
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := readValue(txn, versionKey(key))
		if err != nil {
			return err
		}
		version = string(v)
		content, err = readValue(txn, contentKey(key))
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, "", fmt.Errorf("failed to read document %s: %w", key, err)
	}
	return content, version, nil
}

func (s *badgerStore) Put(ctx context.Context, key string, content []byte, expectedVersion string) (string, error) {
	newVersion := uuid.NewString()
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := readValue(txn, versionKey(key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expectedVersion != "" {
				return ErrVersionConflict
			}
		case err != nil:
			return err
		case string(current) != expectedVersion:
			return ErrVersionConflict
		}
		if err := txn.Set(contentKey(key), content); err != nil {
			return err
		}
		return txn.Set(versionKey(key), []byte(newVersion))
	})
	if err != nil {
		// badger.ErrConflict: another transaction committed the same keys first.
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, badger.ErrConflict) {
			return "", fmt.Errorf("%w: %s", ErrVersionConflict, key)
		}
		return "", fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return newVersion, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}

func readValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
