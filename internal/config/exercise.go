package config

import (
	"errors"
	"time"

	"github.com/stemsi/exstem-drill/internal/model"
	"github.com/stemsi/exstem-drill/internal/scoring"
)

// ExerciseConfig is the per-session configuration handed to the engine.
type ExerciseConfig struct {
	Scoring scoring.Config `json:"scoring"`

	// Zero disables the corresponding limit.
	TimeLimitSec         int     `json:"time_limit_sec"`
	QuestionTimeLimitSec int     `json:"question_time_limit_sec"`
	TimeWarningFraction  float64 `json:"time_warning_fraction"`

	AutoSaveFrequencyMs int `json:"auto_save_frequency_ms"`
	MaxHints            int `json:"max_hints"`

	AllowPartialCredit        bool `json:"allow_partial_credit"`
	AllowIncorrectProgression bool `json:"allow_incorrect_progression"`
	AutoCompleteOnTimeout     bool `json:"auto_complete_on_timeout"`
}

// DefaultExerciseConfig returns the defaults used when a session does not
// override them.
func DefaultExerciseConfig() ExerciseConfig {
	return ExerciseConfig{
		Scoring:                   scoring.DefaultConfig(),
		TimeWarningFraction:       0.8,
		AutoSaveFrequencyMs:       30000,
		MaxHints:                  3,
		AllowPartialCredit:        true,
		AllowIncorrectProgression: true,
		AutoCompleteOnTimeout:     true,
	}
}

// WithOverrides returns a copy of c with the non-nil overrides applied.
func (c ExerciseConfig) WithOverrides(o *model.ExerciseConfigOverrides) ExerciseConfig {
	if o == nil {
		return c
	}
	setInt(&c.TimeLimitSec, o.TimeLimitSec)
	setInt(&c.QuestionTimeLimitSec, o.QuestionTimeLimitSec)
	setInt(&c.AutoSaveFrequencyMs, o.AutoSaveFrequencyMs)
	setInt(&c.MaxHints, o.MaxHints)
	setInt(&c.Scoring.BaseScore, o.BaseScore)
	if o.TimeWarningFraction != nil {
		c.TimeWarningFraction = *o.TimeWarningFraction
	}
	setBool(&c.AllowPartialCredit, o.AllowPartialCredit)
	setBool(&c.AllowIncorrectProgression, o.AllowIncorrectProgression)
	setBool(&c.AutoCompleteOnTimeout, o.AutoCompleteOnTimeout)
	return c
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// TimeLimit is the whole-session limit.
func (c ExerciseConfig) TimeLimit() time.Duration {
	return time.Duration(c.TimeLimitSec) * time.Second
}

// QuestionTimeLimit is the per-question limit.
func (c ExerciseConfig) QuestionTimeLimit() time.Duration {
	return time.Duration(c.QuestionTimeLimitSec) * time.Second
}

// AutoSaveFrequency is the period of the auto-save loop.
func (c ExerciseConfig) AutoSaveFrequency() time.Duration {
	return time.Duration(c.AutoSaveFrequencyMs) * time.Millisecond
}

// ScoringConfig returns the scoring weights with the partial credit flag
// applied.
func (c ExerciseConfig) ScoringConfig() scoring.Config {
	sc := c.Scoring
	sc.PartialCreditEnabled = sc.PartialCreditEnabled && c.AllowPartialCredit
	return sc
}

// Validate rejects inconsistent values.
func (c ExerciseConfig) Validate() error {
	if err := c.Scoring.Validate(); err != nil {
		return err
	}
	if c.TimeLimitSec < 0 || c.QuestionTimeLimitSec < 0 {
		return errors.New("time limits cannot be negative")
	}
	if c.TimeWarningFraction < 0 || c.TimeWarningFraction >= 1 {
		return errors.New("time warning fraction must be within [0,1)")
	}
	if c.AutoSaveFrequencyMs < 0 {
		return errors.New("auto save frequency cannot be negative")
	}
	if c.MaxHints < 0 {
		return errors.New("max hints cannot be negative")
	}
	return nil
}
