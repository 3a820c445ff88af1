package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-drill/internal/model"
)

func TestDefaultExerciseConfig(t *testing.T) {
	c := DefaultExerciseConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, 3, c.MaxHints)
	assert.Equal(t, 30*time.Second, c.AutoSaveFrequency())
	assert.Zero(t, c.TimeLimit())
	assert.True(t, c.ScoringConfig().PartialCreditEnabled)
}

func TestExerciseConfig_PartialCreditFlag(t *testing.T) {
	c := DefaultExerciseConfig()
	c.AllowPartialCredit = false
	assert.False(t, c.ScoringConfig().PartialCreditEnabled)
}

func TestExerciseConfig_Validate(t *testing.T) {
	c := DefaultExerciseConfig()
	c.TimeWarningFraction = 1
	assert.Error(t, c.Validate())

	c = DefaultExerciseConfig()
	c.MaxHints = -1
	assert.Error(t, c.Validate())

	c = DefaultExerciseConfig()
	c.Scoring.BaseScore = 0
	assert.Error(t, c.Validate())
}

func TestLoad_ReadsEnv(t *testing.T) {
	t.Setenv("MAX_HINTS", "5")
	t.Setenv("QUESTION_TIME_LIMIT_SEC", "45")
	t.Setenv("ALLOW_INCORRECT_PROGRESSION", "false")
	t.Setenv("BULK_DRIVER", "SQLite")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("STORE_FLUSH_INTERVAL_MS", "250")

	cfg := Load()
	assert.Equal(t, 5, cfg.Exercise.MaxHints)
	assert.Equal(t, 45*time.Second, cfg.Exercise.QuestionTimeLimit())
	assert.False(t, cfg.Exercise.AllowIncorrectProgression)
	assert.Equal(t, BulkDriverSQLite, cfg.BulkDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.FlushInterval)
}

func TestStoreKey(t *testing.T) {
	assert.Equal(t, "exercise:ex1:session:s1:state", StoreKey.SessionState("ex1", "s1"))
	assert.Equal(t, "exercise:ex1:session:s1:result", StoreKey.ExerciseResult("ex1", "s1"))
	assert.Equal(t, "learner:7:sessions", StoreKey.LearnerSessions(7))
}

func TestExerciseConfig_WithOverrides(t *testing.T) {
	limit, hints, base := 120, 0, 50
	progression := false

	c := DefaultExerciseConfig().WithOverrides(&model.ExerciseConfigOverrides{
		TimeLimitSec:              &limit,
		MaxHints:                  &hints,
		BaseScore:                 &base,
		AllowIncorrectProgression: &progression,
	})
	assert.Equal(t, 2*time.Minute, c.TimeLimit())
	assert.Equal(t, 0, c.MaxHints)
	assert.Equal(t, 50, c.Scoring.BaseScore)
	assert.False(t, c.AllowIncorrectProgression)
	assert.True(t, c.AllowPartialCredit)
	assert.Equal(t, 30000, c.AutoSaveFrequencyMs)

	assert.Equal(t, DefaultExerciseConfig().MaxHints, DefaultExerciseConfig().WithOverrides(nil).MaxHints)
}
