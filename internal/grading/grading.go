package grading

import (
	"math"

	"github.com/yanun0323/logs"

	"main/internal/env"
)

// GradeValue is a categorical grade an analysis model gives a symbol.
type GradeValue float64

const (
	// GradeFail disqualifies the symbol outright.
	GradeFail GradeValue = -99999
	// GradePass neither helps nor hurts the symbol's score.
	GradePass GradeValue = -1

	GradeExcellent    GradeValue = 10
	GradeGreat        GradeValue = 8
	GradeGood         GradeValue = 6.5
	GradeSatisfactory GradeValue = 5
	GradeUnpromising  GradeValue = 3
	GradeRisky        GradeValue = 1
)

// Model is an externally supplied analysis model. The engine never looks
// inside an output payload; it persists it and feeds it back to the model
// for grading.
type Model interface {
	ID() string
	CalculateOutput(e *env.ExecEnv, symbol string) ([]byte, error)
	GradeSymbol(symbol string, output []byte) GradeValue
}

// Scorer weighs the grades of several models into one score per symbol.
// Strategies consult it to decide whether a symbol is viable to trade.
type Scorer struct {
	models  []Model
	weights map[string]float64
}

// NewScorer builds a scorer from model weights keyed by model id. Weights
// are expected to sum to 1.
func NewScorer(weights map[string]float64, models ...Model) *Scorer {
	if len(weights) > 0 {
		total := 0.0
		for _, w := range weights {
			total += w
		}
		if math.Abs(total-1) > 0.01 && total > 0.0001 {
			logs.Warn("model weights do not sum up to 1")
		}
	}
	return &Scorer{models: models, weights: weights}
}

// ScoreSymbols removes failing symbols and returns the survivors mapped to
// their weighted scores. A symbol graded only with passes scores zero but
// remains viable. Model outputs are persisted through the env's cache store
// so strategies can reuse them, e.g. a model-computed target price.
func (s *Scorer) ScoreSymbols(e *env.ExecEnv, symbols []string) map[string]float64 {
	scores := make(map[string]float64, len(symbols))

	for _, symbol := range symbols {
		var graded []float64
		failed := false

		for _, m := range s.models {
			// Pass/fail models carry no weight but still run.
			weight := s.weights[m.ID()]

			output, err := m.CalculateOutput(e, symbol)
			if err != nil {
				logs.Errorf("calculate %s output for %s, err: %+v", m.ID(), symbol, err)
				continue
			}
			if err := e.CacheStore().SetModelOutput(symbol, m.ID(), output); err != nil {
				logs.Errorf("persist %s output for %s, err: %+v", m.ID(), symbol, err)
			}

			switch grade := m.GradeSymbol(symbol, output); grade {
			case GradePass:
			case GradeFail:
				failed = true
			default:
				graded = append(graded, float64(grade)*weight)
			}
			if failed {
				break
			}
		}

		if failed {
			continue
		}
		score := 0.0
		for _, g := range graded {
			score += g
		}
		if len(graded) > 0 {
			score /= float64(len(graded))
		}
		scores[symbol] = score
	}

	return scores
}
