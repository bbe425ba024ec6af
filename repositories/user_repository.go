package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/popularity-cup/models"
	"github.com/Dosada05/popularity-cup/storage"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user id is already taken")
)

// DefaultUsersKey is the object key of the user registry.
const DefaultUsersKey = "users.json"

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type usersDocument struct {
	Users map[string]models.User `json:"users"`
}

// documentUserRepository keeps every user in one versioned document next to
// the tournament document, so any VersionedStore backend can hold it.
type documentUserRepository struct {
	store      storage.VersionedStore
	key        string
	maxRetries int
	logger     *slog.Logger
}

func NewUserRepository(store storage.VersionedStore, key string, maxRetries int, logger *slog.Logger) UserRepository {
	if key == "" {
		key = DefaultUsersKey
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &documentUserRepository{
		store:      store,
		key:        key,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (r *documentUserRepository) Create(ctx context.Context, user *models.User) error {
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		doc, version, err := r.load(ctx)
		if err != nil {
			return err
		}
		if _, exists := doc.Users[user.ID]; exists {
			return ErrUserExists
		}
		doc.Users[user.ID] = *user

		content, err := json.MarshalIndent(doc, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode users document: %w", err)
		}
		_, err = r.store.Put(ctx, r.key, content, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			persistenceFailures.WithLabelValues("user_save").Inc()
			return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
		}
		persistenceConflicts.Inc()
		r.logger.DebugContext(ctx, "retrying user create after conflict",
			slog.String("user_id", user.ID), slog.Int("attempt", attempt+1))
	}
	return ErrPersistenceConflict
}

func (r *documentUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	doc, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	user, ok := doc.Users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// load returns an empty registry with an empty version when the document does
// not exist yet, so the first Create is create-only.
func (r *documentUserRepository) load(ctx context.Context) (*usersDocument, string, error) {
	content, version, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return &usersDocument{Users: map[string]models.User{}}, "", nil
		}
		persistenceFailures.WithLabelValues("user_load").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	var doc usersDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		// Нечитаемый реестр не перезаписываем.
		r.logger.ErrorContext(ctx, "users document is unreadable",
			slog.String("key", r.key), slog.Any("error", err))
		return nil, "", fmt.Errorf("failed to decode users document: %w", err)
	}
	if doc.Users == nil {
		doc.Users = map[string]models.User{}
	}
	return &doc, version, nil
}
