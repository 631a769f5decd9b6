package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"

	"main/internal/clock"
	"main/internal/env"
	"main/internal/model/enum"
	"main/internal/store"
)

// stubModel grades every symbol the same and remembers what it produced.
type stubModel struct {
	id     string
	grade  GradeValue
	output []byte
	err    error
	calls  int
}

func (m *stubModel) ID() string { return m.id }

func (m *stubModel) CalculateOutput(e *env.ExecEnv, symbol string) ([]byte, error) {
	m.calls++
	return m.output, m.err
}

func (m *stubModel) GradeSymbol(symbol string, output []byte) GradeValue {
	return m.grade
}

func newGradingEnv(t *testing.T) *env.ExecEnv {
	t.Helper()
	clk := clock.New(time.Now(), clock.NewTradingCalendar())
	e, err := env.New(enum.EnvTypeSimulation, clk, nil,
		env.NewSettings(nil), env.NewShared(), store.NewMemoryFactory())
	require.NoError(t, err)
	return e
}

func TestScoreSymbolsWeighsGrades(t *testing.T) {
	e := newGradingEnv(t)
	s := NewScorer(map[string]float64{"momentum": 0.75, "volume": 0.25},
		&stubModel{id: "momentum", grade: GradeExcellent},
		&stubModel{id: "volume", grade: GradeSatisfactory},
	)

	scores := s.ScoreSymbols(e, []string{"SPY"})
	require.Contains(t, scores, "SPY")
	// (10*0.75 + 5*0.25) / 2
	assert.InDelta(t, 4.375, scores["SPY"], 1e-9)
}

func TestScoreSymbolsDropsFailures(t *testing.T) {
	e := newGradingEnv(t)
	s := NewScorer(map[string]float64{"momentum": 1},
		&stubModel{id: "gate", grade: GradeFail},
		&stubModel{id: "momentum", grade: GradeExcellent},
	)

	scores := s.ScoreSymbols(e, []string{"SPY", "QQQ"})
	assert.Empty(t, scores)
}

func TestScoreSymbolsPassIsNeutral(t *testing.T) {
	e := newGradingEnv(t)
	s := NewScorer(nil, &stubModel{id: "gate", grade: GradePass})

	scores := s.ScoreSymbols(e, []string{"SPY"})
	require.Contains(t, scores, "SPY")
	assert.Zero(t, scores["SPY"], "pass-only symbols stay viable at score zero")
}

func TestScoreSymbolsNoModels(t *testing.T) {
	e := newGradingEnv(t)
	s := NewScorer(nil)

	scores := s.ScoreSymbols(e, []string{"SPY", "SPXL", "SPXS"})
	assert.Len(t, scores, 3, "with no models every symbol is viable")
}

func TestScoreSymbolsSkipsBrokenModel(t *testing.T) {
	e := newGradingEnv(t)
	broken := &stubModel{id: "broken", err: errors.New("no data")}
	s := NewScorer(map[string]float64{"momentum": 1},
		broken,
		&stubModel{id: "momentum", grade: GradeGood},
	)

	scores := s.ScoreSymbols(e, []string{"SPY"})
	require.Contains(t, scores, "SPY")
	assert.InDelta(t, 6.5, scores["SPY"], 1e-9)
	assert.Equal(t, 1, broken.calls)
}

func TestScoreSymbolsPersistsModelOutput(t *testing.T) {
	e := newGradingEnv(t)
	s := NewScorer(map[string]float64{"momentum": 1},
		&stubModel{id: "momentum", grade: GradeGreat, output: []byte(`{"target":51.20}`)})

	scores := s.ScoreSymbols(e, []string{"SPY"})
	require.Contains(t, scores, "SPY")

	stored, err := e.CacheStore().ModelOutput("SPY", "momentum")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"target":51.20}`), stored)
}
