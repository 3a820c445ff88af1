package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-drill/internal/model"
)

// SessionRepository records exercise sessions for reporting.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Upsert creates a session row or moves it to the reported status.
func (r *SessionRepository) Upsert(ctx context.Context, ref model.SessionRef) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exercise_sessions (id, exercise_id, learner_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET status = EXCLUDED.status, updated_at = NOW()`,
		ref.SessionID, ref.ExerciseID, ref.LearnerID, string(ref.Status), ref.CreatedAt,
	)
	return err
}
