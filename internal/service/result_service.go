package service

import (
	"context"
	"errors"

	"github.com/stemsi/exstem-drill/internal/model"
)

// ErrResultsUnavailable is returned when no results database is configured.
var ErrResultsUnavailable = errors.New("results require a database")

// ResultReader reads persisted session results.
type ResultReader interface {
	ListByLearner(ctx context.Context, learnerID, limit, offset int) ([]model.StoredResult, int, error)
	ListByExercise(ctx context.Context, exerciseID string, limit, offset int) ([]model.StoredResult, int, error)
}

// ResultService serves results written by the result worker.
type ResultService struct {
	repo ResultReader
}

// NewResultService creates a new ResultService. repo may be nil.
func NewResultService(repo ResultReader) *ResultService {
	return &ResultService{repo: repo}
}

// ForLearner returns a page of the learner's own results.
func (s *ResultService) ForLearner(ctx context.Context, learnerID int, q model.PageQuery) ([]model.StoredResult, int, error) {
	if s.repo == nil {
		return nil, 0, ErrResultsUnavailable
	}
	return s.repo.ListByLearner(ctx, learnerID, q.PerPage, q.Offset())
}

// ForExercise returns a page of every learner's results for an exercise.
func (s *ResultService) ForExercise(ctx context.Context, exerciseID string, q model.PageQuery) ([]model.StoredResult, int, error) {
	if s.repo == nil {
		return nil, 0, ErrResultsUnavailable
	}
	return s.repo.ListByExercise(ctx, exerciseID, q.PerPage, q.Offset())
}
