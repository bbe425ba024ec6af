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
	ErrPersistenceConflict  = errors.New("tournament document was modified concurrently")
	ErrTransportUnavailable = errors.New("tournament storage is unavailable")
)

// DefaultDocumentKey is the object key of the tournament document.
const DefaultDocumentKey = "tournament_data.json"

// TournamentRepository persists the tournament singleton as one versioned
// document. The version token returned by Load must be passed back to Save.
type TournamentRepository interface {
	// Load never fails on transport errors: it falls back to the default
	// document with an empty version.
	Load(ctx context.Context) (*models.Tournament, string, error)
	// LoadStrict is Load without the fallback. Storage failures come back as
	// ErrTransportUnavailable.
	LoadStrict(ctx context.Context) (*models.Tournament, string, error)
	Save(ctx context.Context, t *models.Tournament, version string) (string, error)
	// Update loads the document, applies fn to a private copy and saves it,
	// retrying on version conflicts. An error from fn aborts without writing.
	Update(ctx context.Context, fn func(t *models.Tournament) error) (*models.Tournament, string, error)
}

type documentTournamentRepository struct {
	store      storage.VersionedStore
	key        string
	maxRetries int
	logger     *slog.Logger
}

func NewTournamentRepository(store storage.VersionedStore, key string, maxRetries int, logger *slog.Logger) TournamentRepository {
	if key == "" {
		key = DefaultDocumentKey
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &documentTournamentRepository{
		store:      store,
		key:        key,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (r *documentTournamentRepository) Load(ctx context.Context) (*models.Tournament, string, error) {
	t, version, err := r.LoadStrict(ctx)
	if err != nil {
		if !errors.Is(err, ErrTransportUnavailable) {
			return nil, "", err
		}
		// An empty version makes the next Save create-only, so a default
		// document can never overwrite real data.
		r.logger.ErrorContext(ctx, "failed to load tournament document, using defaults",
			slog.String("key", r.key), slog.Any("error", err))
		return models.NewTournament(), "", nil
	}
	return t, version, nil
}

func (r *documentTournamentRepository) LoadStrict(ctx context.Context) (*models.Tournament, string, error) {
	content, version, err := r.store.Get(ctx, r.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return r.seed(ctx)
		}
		persistenceFailures.WithLabelValues("load").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}

	t, err := decodeTournament(content)
	if err != nil {
		// Версию не отдаём: запись поверх нечитаемого документа получит конфликт.
		r.logger.WarnContext(ctx, "tournament document is unreadable, using defaults without a version",
			slog.String("key", r.key), slog.String("version", version), slog.Any("error", err))
		return models.NewTournament(), "", nil
	}
	return t, version, nil
}

func (r *documentTournamentRepository) seed(ctx context.Context) (*models.Tournament, string, error) {
	t := models.NewTournament()
	content, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode default tournament document: %w", err)
	}

	version, err := r.store.Put(ctx, r.key, content, "")
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "seeded tournament document", slog.String("key", r.key))
		return t, version, nil
	case errors.Is(err, storage.ErrVersionConflict):
		// Someone else seeded it between our Get and Put.
		content, version, err = r.store.Get(ctx, r.key)
		if err == nil {
			if loaded, decodeErr := decodeTournament(content); decodeErr == nil {
				return loaded, version, nil
			}
			return t, "", nil
		}
	}
	persistenceFailures.WithLabelValues("seed").Inc()
	return nil, "", fmt.Errorf("%w: seeding %s: %v", ErrTransportUnavailable, r.key, err)
}

func (r *documentTournamentRepository) Save(ctx context.Context, t *models.Tournament, version string) (string, error) {
	content, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return version, fmt.Errorf("failed to encode tournament document: %w", err)
	}

	newVersion, err := r.store.Put(ctx, r.key, content, version)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			persistenceConflicts.Inc()
			r.logger.WarnContext(ctx, "tournament document version conflict",
				slog.String("key", r.key), slog.String("version", version))
			return version, fmt.Errorf("%w: %v", ErrPersistenceConflict, err)
		}
		persistenceFailures.WithLabelValues("save").Inc()
		r.logger.ErrorContext(ctx, "failed to save tournament document",
			slog.String("key", r.key), slog.Any("error", err))
		return version, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return newVersion, nil
}

func (r *documentTournamentRepository) Update(ctx context.Context, fn func(t *models.Tournament) error) (*models.Tournament, string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		current, version, err := r.LoadStrict(ctx)
		if err != nil {
			return nil, "", err
		}
		working := current.Clone()
		if err := fn(working); err != nil {
			return current, version, err
		}

		newVersion, err := r.Save(ctx, working, version)
		if err == nil {
			return working, newVersion, nil
		}
		if !errors.Is(err, ErrPersistenceConflict) {
			return nil, "", err
		}
		lastErr = err
		r.logger.DebugContext(ctx, "retrying tournament update after conflict", slog.Int("attempt", attempt+1))
	}
	return nil, "", lastErr
}
