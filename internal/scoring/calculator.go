package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/stemsi/exstem-drill/internal/model"
)

// Context is the metadata an answer is priced against.
type Context struct {
	TimeToAnswer time.Duration
	Difficulty   model.Difficulty
	HintsUsed    int
	StreakLength int
}

// FinalInput is everything needed to aggregate a session.
type FinalInput struct {
	Answers        []model.AnswerRecord
	TotalTime      time.Duration
	QuestionsCount int
}

// Calculator prices answers and aggregates sessions.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a Calculator. Missing difficulty multipliers fall
// back to the defaults.
func NewCalculator(cfg Config) *Calculator {
	mult := make(map[model.Difficulty]float64, 3)
	for d, m := range DefaultConfig().DifficultyMultipliers {
		mult[d] = m
	}
	for d, m := range cfg.DifficultyMultipliers {
		mult[d] = m
	}
	cfg.DifficultyMultipliers = mult
	cfg.MinimumPartialCredit = clamp(cfg.MinimumPartialCredit, 0, 1)
	return &Calculator{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config {
	return c.cfg
}

func (c *Calculator) multiplier(d model.Difficulty) float64 {
	if m, ok := c.cfg.DifficultyMultipliers[d.Normalize()]; ok {
		return m
	}
	return 1.0
}

// CalculateScore prices one verdict.
func (c *Calculator) CalculateScore(v model.ValidationResult, ctx Context) model.ScoreBreakdown {
	base := float64(c.cfg.BaseScore)
	out := model.ScoreBreakdown{
		Metadata: model.ScoreMetadata{
			TimeToAnswerMs: ctx.TimeToAnswer.Milliseconds(),
			Difficulty:     ctx.Difficulty.Normalize(),
			HintsUsed:      ctx.HintsUsed,
			StreakLength:   ctx.StreakLength,
			IsCorrect:      v.IsCorrect,
		},
	}

	switch {
	case v.IsCorrect:
	case c.cfg.PartialCreditEnabled && v.PartialCredit != nil && *v.PartialCredit > 0:
		credit := math.Max(clamp(*v.PartialCredit, 0, 1), c.cfg.MinimumPartialCredit)
		base *= credit
		out.Breakdown.PartialCredit = ptr(credit)
	default:
		base = 0
	}
	out.Breakdown.Base = base

	score := base * c.multiplier(ctx.Difficulty)
	out.Breakdown.DifficultyBonus = score - base

	if v.IsCorrect && c.cfg.FastAnswerThreshold > 0 && ctx.TimeToAnswer < c.cfg.FastAnswerThreshold {
		t := ctx.TimeToAnswer
		if t < 0 {
			t = 0
		}
		ratio := 1 - float64(t)/float64(c.cfg.FastAnswerThreshold)
		bonus := score * c.cfg.MaxTimeBonusPercent / 100 * ratio
		score += bonus
		out.Breakdown.TimeBonus = ptr(bonus)
	}

	if ctx.HintsUsed > 0 {
		frac := math.Min(float64(ctx.HintsUsed)*c.cfg.PenaltyPerHintPercent/100, 1)
		penalty := score * frac
		score -= penalty
		out.Breakdown.HintPenalty = ptr(penalty)
	}

	if v.IsCorrect && ctx.StreakLength > 1 {
		steps := ctx.StreakLength - 1
		if steps > c.cfg.MaxStreak {
			steps = c.cfg.MaxStreak
		}
		bonus := score * float64(steps) * c.cfg.BonusPerStreakPercent / 100
		score += bonus
		out.Breakdown.StreakBonus = ptr(bonus)
	}

	out.Points = int(math.Round(math.Max(score, 0)))
	return out
}

// CalculateFinalScore replays the answers in question order and aggregates
// them into a FinalScore.
func (c *Calculator) CalculateFinalScore(in FinalInput) model.FinalScore {
	answers := make([]model.AnswerRecord, len(in.Answers))
	copy(answers, in.Answers)
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })

	var res model.FinalScore
	res.Answers = make([]model.ScoreBreakdown, 0, len(answers))

	streak := 0
	for _, a := range answers {
		if a.Validation.IsCorrect {
			streak++
			res.CorrectAnswers++
			if streak > res.LongestStreak {
				res.LongestStreak = streak
			}
		} else {
			streak = 0
		}
		sb := c.CalculateScore(a.Validation, Context{
			TimeToAnswer: time.Duration(a.TimeToAnswerMs) * time.Millisecond,
			Difficulty:   a.Difficulty,
			HintsUsed:    a.HintsUsed,
			StreakLength: streak,
		})
		res.RawTotal += sb.Points
		res.Answers = append(res.Answers, sb)
	}

	res.AnsweredQuestions = len(answers)
	total := in.QuestionsCount
	if total <= 0 {
		total = len(answers)
	}
	res.TotalQuestions = total

	var accuracy float64
	if total > 0 {
		accuracy = float64(res.CorrectAnswers) / float64(total)
		res.AverageTimePerQuestion = in.TotalTime.Milliseconds() / int64(total)
	}
	res.Accuracy = int(math.Round(accuracy * 100))

	speed := clamp(float64(30000-res.AverageTimePerQuestion)/20000, 0, 1)
	res.Efficiency = 0.7*accuracy + 0.3*speed

	if total > 0 && len(answers) >= total {
		res.CompletionBonus = int(math.Round(float64(res.RawTotal) * c.cfg.CompletionBonusPercent / 100))
	}
	res.Total = res.RawTotal + res.CompletionBonus

	res.Grade = Grade(accuracy)
	res.Performance = Performance((accuracy + res.Efficiency) / 2)
	res.MaximumPossible = c.MaximumPossibleScore(total)
	if res.MaximumPossible > 0 {
		res.Percentage = math.Round(float64(res.Total)/float64(res.MaximumPossible)*1000) / 10
	}
	return res
}

// MaximumPossibleScore is the ceiling for n questions: hardest difficulty,
// full time bonus, capped streak bonus and the completion bonus.
func (c *Calculator) MaximumPossibleScore(n int) int {
	if n <= 0 {
		return 0
	}
	maxMult := 1.0
	for _, m := range c.cfg.DifficultyMultipliers {
		maxMult = math.Max(maxMult, m)
	}
	perQuestion := float64(c.cfg.BaseScore) * maxMult
	if c.cfg.FastAnswerThreshold > 0 {
		perQuestion *= 1 + c.cfg.MaxTimeBonusPercent/100
	}
	perQuestion *= 1 + float64(c.cfg.MaxStreak)*c.cfg.BonusPerStreakPercent/100

	sum := float64(n) * math.Ceil(perQuestion)
	return int(sum + math.Ceil(sum*c.cfg.CompletionBonusPercent/100))
}

type gradeStep struct {
	min   float64
	grade string
}

var gradeTable = []gradeStep{
	{0.97, "A+"},
	{0.93, "A"},
	{0.90, "A-"},
	{0.87, "B+"},
	{0.83, "B"},
	{0.80, "B-"},
	{0.77, "C+"},
	{0.73, "C"},
	{0.70, "C-"},
	{0.60, "D"},
}

// Grade maps an accuracy fraction to a letter grade.
func Grade(accuracy float64) string {
	for _, s := range gradeTable {
		if accuracy >= s.min {
			return s.grade
		}
	}
	return "F"
}

// Performance maps the mean of accuracy and efficiency to a label.
func Performance(mean float64) string {
	switch {
	case mean >= 0.9:
		return "Excellent"
	case mean >= 0.8:
		return "Very Good"
	case mean >= 0.7:
		return "Good"
	case mean >= 0.6:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func ptr(v float64) *float64 { return &v }
