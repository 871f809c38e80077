package service

import (
	"github.com/praxislearn/assess-backend/internal/model"
)

// ScoringPolicy turns graded outcomes into a score. It is a pure function
// of the outcomes: a session is scored by exactly one policy, exactly once,
// at finalization. Negative marking or weighted difficulty plug in here
// without touching the finalizer.
type ScoringPolicy interface {
	Score(outcomes []model.QuestionOutcome) (correctCount int, scorePercent float64)
}

// FlatScoring awards one point per correct answer, zero otherwise.
type FlatScoring struct{}

// Score implements ScoringPolicy.
func (FlatScoring) Score(outcomes []model.QuestionOutcome) (int, float64) {
	correct := 0
	for _, o := range outcomes {
		if o.IsCorrect {
			correct++
		}
	}
	if len(outcomes) == 0 {
		return 0, 0
	}
	return correct, float64(correct) / float64(len(outcomes)) * 100
}

// NegativeMarking awards one point per correct answer and subtracts Penalty
// per wrong (answered, incorrect) one. The percentage floor is zero.
type NegativeMarking struct {
	Penalty float64
}

// Score implements ScoringPolicy.
func (p NegativeMarking) Score(outcomes []model.QuestionOutcome) (int, float64) {
	correct := 0
	points := 0.0
	for _, o := range outcomes {
		switch {
		case o.IsCorrect:
			correct++
			points++
		case o.SelectedOptionID != nil && *o.SelectedOptionID != "":
			points -= p.Penalty
		}
	}
	if len(outcomes) == 0 {
		return 0, 0
	}
	percent := points / float64(len(outcomes)) * 100
	if percent < 0 {
		percent = 0
	}
	return correct, percent
}
