package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-drill/internal/model"
)

// ResultRepository handles completed session results.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// UpsertResults writes a batch of results in one statement using UNNEST.
// A session completed twice keeps the latest result.
func (r *ResultRepository) UpsertResults(ctx context.Context, batch []model.CompletionResult) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	sessionIDs := make([]string, n)
	exerciseIDs := make([]string, n)
	learners := make([]int, n)
	totals := make([]int, n)
	accuracies := make([]int, n)
	grades := make([]string, n)
	times := make([]int64, n)
	completedAts := make([]time.Time, n)
	details := make([]string, n)

	for i, res := range batch {
		raw, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode result %s: %w", res.SessionID, err)
		}
		sessionIDs[i] = res.SessionID
		exerciseIDs[i] = res.ExerciseID
		learners[i] = res.LearnerID
		totals[i] = res.Score.Total
		accuracies[i] = res.Score.Accuracy
		grades[i] = res.Score.Grade
		times[i] = res.TotalTimeMs
		completedAts[i] = res.CompletedAt
		details[i] = string(raw)
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO exercise_results
			(session_id, exercise_id, learner_id, total_score, accuracy, grade,
			 total_time_ms, completed_at, detail)
		SELECT u.session_id, u.exercise_id, u.learner_id, u.total_score, u.accuracy,
		       u.grade, u.total_time_ms, u.completed_at, u.detail::jsonb
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::int[],
			$4::int[],
			$5::int[],
			$6::text[],
			$7::bigint[],
			$8::timestamptz[],
			$9::text[]
		) AS u (session_id, exercise_id, learner_id, total_score, accuracy, grade,
		        total_time_ms, completed_at, detail)
		ON CONFLICT (session_id) DO UPDATE
		SET total_score = EXCLUDED.total_score,
		    accuracy = EXCLUDED.accuracy,
		    grade = EXCLUDED.grade,
		    total_time_ms = EXCLUDED.total_time_ms,
		    completed_at = EXCLUDED.completed_at,
		    detail = EXCLUDED.detail`,
		sessionIDs, exerciseIDs, learners, totals, accuracies, grades, times, completedAts, details,
	)
	return err
}

// UpsertResult writes a single result.
func (r *ResultRepository) UpsertResult(ctx context.Context, res model.CompletionResult) error {
	return r.UpsertResults(ctx, []model.CompletionResult{res})
}

// ListByLearner returns a learner's results, newest first.
func (r *ResultRepository) ListByLearner(ctx context.Context, learnerID, limit, offset int) ([]model.StoredResult, int, error) {
	return r.list(ctx, "learner_id = $1", learnerID, limit, offset)
}

// ListByExercise returns every learner's results for an exercise.
func (r *ResultRepository) ListByExercise(ctx context.Context, exerciseID string, limit, offset int) ([]model.StoredResult, int, error) {
	return r.list(ctx, "exercise_id = $1", exerciseID, limit, offset)
}

func (r *ResultRepository) list(ctx context.Context, where string, arg any, limit, offset int) ([]model.StoredResult, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exercise_results WHERE `+where, arg,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT session_id, exercise_id, learner_id, total_score, accuracy, grade,
		        total_time_ms, completed_at
		 FROM exercise_results
		 WHERE `+where+`
		 ORDER BY completed_at DESC
		 LIMIT $2 OFFSET $3`, arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	results := []model.StoredResult{}
	for rows.Next() {
		var s model.StoredResult
		if err := rows.Scan(&s.SessionID, &s.ExerciseID, &s.LearnerID, &s.TotalScore,
			&s.Accuracy, &s.Grade, &s.TotalTimeMs, &s.CompletedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, s)
	}
	return results, total, rows.Err()
}
