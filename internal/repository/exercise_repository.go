package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-drill/internal/model"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ExerciseRepository handles exercise definition data access. Definitions
// are stored whole as JSONB.
type ExerciseRepository struct {
	pool *pgxpool.Pool
}

// NewExerciseRepository creates a new ExerciseRepository.
func NewExerciseRepository(pool *pgxpool.Pool) *ExerciseRepository {
	return &ExerciseRepository{pool: pool}
}

// GetByID retrieves an exercise definition by id.
func (r *ExerciseRepository) GetByID(ctx context.Context, id string) (*model.ExerciseDefinition, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT definition FROM exercises WHERE id = $1`, id,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	def := &model.ExerciseDefinition{}
	if err := json.Unmarshal(raw, def); err != nil {
		return nil, fmt.Errorf("decode exercise %s: %w", id, err)
	}
	return def, nil
}

// Upsert creates or replaces an exercise definition.
func (r *ExerciseRepository) Upsert(ctx context.Context, def *model.ExerciseDefinition, authorID int) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode exercise %s: %w", def.ID, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO exercises (id, title, type, question_count, author_id, definition)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title,
		     type = EXCLUDED.type,
		     question_count = EXCLUDED.question_count,
		     author_id = EXCLUDED.author_id,
		     definition = EXCLUDED.definition,
		     updated_at = NOW()`,
		def.ID, def.Title, string(def.Type), def.QuestionCount(), authorID, raw,
	)
	return err
}

// ListPaginated returns exercise summaries, newest first.
func (r *ExerciseRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.ExerciseSummary, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exercises`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, type, question_count, author_id, updated_at
		 FROM exercises
		 ORDER BY updated_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exercises := []model.ExerciseSummary{}
	for rows.Next() {
		var e model.ExerciseSummary
		var typ string
		if err := rows.Scan(&e.ID, &e.Title, &typ, &e.QuestionCount, &e.AuthorID, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		e.Type = model.ExerciseType(typ)
		exercises = append(exercises, e)
	}
	return exercises, total, rows.Err()
}

// Delete removes an exercise. Stored results keep their exercise id.
func (r *ExerciseRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exercises WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
