package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-drill/internal/config"
	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/repository"
	"github.com/stemsi/exstem-drill/internal/storage"
)

var (
	ErrExerciseNotFound    = errors.New("exercise not found")
	ErrCatalogUnavailable  = errors.New("exercise catalog requires a database")
	errInvalidDefinitionID = errors.New("exercise id is required")
)

// ExerciseRepository is the durable source of exercise definitions.
type ExerciseRepository interface {
	GetByID(ctx context.Context, id string) (*model.ExerciseDefinition, error)
	Upsert(ctx context.Context, def *model.ExerciseDefinition, authorID int) error
	ListPaginated(ctx context.Context, limit, offset int) ([]model.ExerciseSummary, int, error)
	Delete(ctx context.Context, id string) error
}

// ExerciseService resolves exercise definitions. Definitions are cached in
// the session store, which is also their only home when no database is
// configured.
type ExerciseService struct {
	repo  ExerciseRepository
	store *storage.Store
	log   zerolog.Logger
}

// NewExerciseService creates a new ExerciseService. repo may be nil.
func NewExerciseService(repo ExerciseRepository, store *storage.Store, log zerolog.Logger) *ExerciseService {
	return &ExerciseService{
		repo:  repo,
		store: store,
		log:   log.With().Str("component", "exercise_service").Logger(),
	}
}

// Get returns the definition for id.
func (s *ExerciseService) Get(ctx context.Context, id string) (*model.ExerciseDefinition, error) {
	key := config.StoreKey.ExerciseDefinition(id)
	if cached := storage.LoadAs[*model.ExerciseDefinition](ctx, s.store, key, nil, storage.LoadOptions{}); cached != nil && cached.ID == id {
		return cached, nil
	}
	if s.repo == nil {
		return nil, ErrExerciseNotFound
	}

	def, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrExerciseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exercise %s: %w", id, err)
	}

	if err := s.store.Save(ctx, key, def, storage.SaveOptions{Temporary: true, Persistent: true}); err != nil {
		s.log.Warn().Err(err).Str("exercise_id", id).Msg("Failed to cache exercise")
	}
	return def, nil
}

// Put creates or replaces a definition.
func (s *ExerciseService) Put(ctx context.Context, def *model.ExerciseDefinition, authorID int) error {
	if def.ID == "" {
		return errInvalidDefinitionID
	}
	if err := def.Validate(); err != nil {
		return err
	}
	if s.repo != nil {
		if err := s.repo.Upsert(ctx, def, authorID); err != nil {
			return fmt.Errorf("upsert exercise %s: %w", def.ID, err)
		}
	}

	// Without a repository the store is the catalog, so the write must land.
	opts := storage.SaveOptions{Temporary: true, Persistent: true, Large: s.repo == nil, Immediate: true}
	if err := s.store.Save(ctx, config.StoreKey.ExerciseDefinition(def.ID), def, opts); err != nil {
		if s.repo == nil {
			return fmt.Errorf("store exercise %s: %w", def.ID, err)
		}
		s.log.Warn().Err(err).Str("exercise_id", def.ID).Msg("Failed to cache exercise")
	}

	s.log.Info().Str("exercise_id", def.ID).Int("author_id", authorID).Int("questions", def.QuestionCount()).Msg("Exercise saved")
	return nil
}

// List returns a page of exercise summaries.
func (s *ExerciseService) List(ctx context.Context, q model.PageQuery) ([]model.ExerciseSummary, int, error) {
	if s.repo == nil {
		return nil, 0, ErrCatalogUnavailable
	}
	return s.repo.ListPaginated(ctx, q.PerPage, q.Offset())
}

// Delete removes a definition. Running sessions keep their loaded copy.
func (s *ExerciseService) Delete(ctx context.Context, id string) error {
	if s.repo != nil {
		if err := s.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrExerciseNotFound
			}
			return err
		}
	}
	s.store.Remove(ctx, config.StoreKey.ExerciseDefinition(id))
	return nil
}
