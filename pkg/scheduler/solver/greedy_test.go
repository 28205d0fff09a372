package solver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/objective"
	"github.com/paiban/residency/pkg/validator"
)

func TestGreedySolver_Construct(t *testing.T) {
	tests := []struct {
		name   string
		params model.Params
		seed   int64
	}{
		{"默认参数", model.DefaultParams(), model.DefaultSeed},
		{"默认参数换种子", model.DefaultParams(), 7},
		{"不要求覆盖", model.Params{Residents: 2, Weeks: 2, MinPerShift: 0, MaxPerShift: 1, MinTotal: 0, MaxTotal: 10}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), tt.seed)

			x, err := NewGreedySolver().Construct(context.Background(), p, prefs)
			require.NoError(t, err)
			require.Len(t, x, p.Residents)

			detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(p))
			assert.Empty(t, detector.DetectAll(x))
		})
	}
}

func TestGreedySolver_ConstructBeatsRotation(t *testing.T) {
	p := model.DefaultParams()
	prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), model.DefaultSeed)

	x, err := NewGreedySolver().Construct(context.Background(), p, prefs)
	require.NoError(t, err)

	// 2 上 3 休的轮转模板是候选之一，返回结果不会更差
	base := rotation(p, 5, 2, []int{0, 1, 2, 3})
	assert.GreaterOrEqual(t, objective.Evaluate(prefs, x), objective.Evaluate(prefs, base))
}

func TestGreedySolver_NoFeasible(t *testing.T) {
	// 21 个班每班 1 人，2 人每人最多 7 个班
	p := model.Params{Residents: 2, Weeks: 1, MinPerShift: 1, MaxPerShift: 1, MinTotal: 5, MaxTotal: 7}
	prefs := model.NewPreferences(p.Residents, p.TotalShifts())

	x, err := NewGreedySolver().Construct(context.Background(), p, prefs)
	require.Error(t, err)
	assert.Nil(t, x)
	assert.True(t, errors.Is(err, errors.CodeNoFeasibleSolution))
}

func TestGreedySolver_Canceled(t *testing.T) {
	p := model.DefaultParams()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGreedySolver().Construct(ctx, p, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRotationOffsets(t *testing.T) {
	tests := []struct {
		name              string
		residents, period int
		on                int
		want              [][]int
	}{
		{"按上班段错开与均匀错开重合", 4, 8, 2, [][]int{{0, 1, 2, 3}, {0, 2, 4, 6}}},
		{"重复的方案只保留一个", 4, 4, 1, [][]int{{0, 1, 2, 3}}},
		{"按周期取模", 3, 2, 1, [][]int{{0, 1, 0}, {0, 0, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rotationOffsets(tt.residents, tt.period, tt.on))
		})
	}
}
