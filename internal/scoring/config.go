package scoring

import (
	"errors"
	"time"

	"github.com/stemsi/exstem-drill/internal/model"
)

// Config holds the scoring weights. Percentages are expressed as 0-100.
type Config struct {
	BaseScore             int                          `json:"base_score" binding:"omitempty,min=1"`
	DifficultyMultipliers map[model.Difficulty]float64 `json:"difficulty_multipliers,omitempty"`

	// Correct answers faster than FastAnswerThreshold earn a time bonus that
	// decays linearly from MaxTimeBonusPercent at zero to nothing at the threshold.
	FastAnswerThreshold time.Duration `json:"fast_answer_threshold"`
	MaxTimeBonusPercent float64       `json:"max_time_bonus_percent" binding:"omitempty,min=0,max=100"`

	PenaltyPerHintPercent float64 `json:"penalty_per_hint_percent" binding:"omitempty,min=0,max=100"`

	BonusPerStreakPercent float64 `json:"bonus_per_streak_percent" binding:"omitempty,min=0,max=100"`
	MaxStreak             int     `json:"max_streak" binding:"omitempty,min=0"`

	PartialCreditEnabled bool    `json:"partial_credit_enabled"`
	MinimumPartialCredit float64 `json:"minimum_partial_credit" binding:"omitempty,min=0,max=1"`

	CompletionBonusPercent float64 `json:"completion_bonus_percent" binding:"omitempty,min=0,max=100"`
}

// DefaultConfig returns the standard scoring weights.
func DefaultConfig() Config {
	return Config{
		BaseScore: 100,
		DifficultyMultipliers: map[model.Difficulty]float64{
			model.DifficultyEasy:   1.0,
			model.DifficultyMedium: 1.25,
			model.DifficultyHard:   1.5,
		},
		FastAnswerThreshold:    10 * time.Second,
		MaxTimeBonusPercent:    50,
		PenaltyPerHintPercent:  10,
		BonusPerStreakPercent:  5,
		MaxStreak:              10,
		PartialCreditEnabled:   true,
		MinimumPartialCredit:   0.1,
		CompletionBonusPercent: 10,
	}
}

// Validate rejects weights that would break the scoring invariants.
func (c Config) Validate() error {
	if c.BaseScore <= 0 {
		return errors.New("base score must be positive")
	}
	for d, m := range c.DifficultyMultipliers {
		if m <= 0 {
			return errors.New("difficulty multiplier for " + string(d) + " must be positive")
		}
	}
	if c.MaxTimeBonusPercent < 0 || c.PenaltyPerHintPercent < 0 ||
		c.BonusPerStreakPercent < 0 || c.CompletionBonusPercent < 0 {
		return errors.New("percentages cannot be negative")
	}
	if c.MaxStreak < 0 {
		return errors.New("max streak cannot be negative")
	}
	if c.MinimumPartialCredit < 0 || c.MinimumPartialCredit > 1 {
		return errors.New("minimum partial credit must be within [0,1]")
	}
	return nil
}
