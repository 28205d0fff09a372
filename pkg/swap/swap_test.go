package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/validator"
)

func params() model.Params {
	return model.Params{Residents: 3, Weeks: 1, MinPerShift: 1, MaxPerShift: 1, MinTotal: 0, MaxTotal: 21}
}

// rotation 三人轮转：A3 B3 C3 A2 B2 C2 A2 B2 C2
func rotation() [][]bool {
	blocks := []struct{ resident, start, length int }{
		{0, 0, 3}, {1, 3, 3}, {2, 6, 3},
		{0, 9, 2}, {1, 11, 2}, {2, 13, 2},
		{0, 15, 2}, {1, 17, 2}, {2, 19, 2},
	}
	x := make([][]bool, 3)
	for r := range x {
		x[r] = make([]bool, model.ShiftsPerWeek)
	}
	for _, b := range blocks {
		for s := b.start; s < b.start+b.length; s++ {
			x[b.resident][s] = true
		}
	}
	return x
}

func ptr(v int) *int { return &v }

func TestEvaluateSwap(t *testing.T) {
	tests := []struct {
		name      string
		request   *SwapRequest
		feasible  bool
		issueType string
	}{
		{"接班", &SwapRequest{Resident: 0, Shift: 0, Target: 1}, true, ""},
		{"另一人接班", &SwapRequest{Resident: 0, Shift: 0, Target: 2}, true, ""},
		{"互换", &SwapRequest{Resident: 0, Shift: 0, Target: 2, ExchangeShift: ptr(19)}, true, ""},
		{"接班后连上 4 班", &SwapRequest{Resident: 0, Shift: 2, Target: 1}, false, string(validator.ConflictRestPattern)},
		{"空请求", nil, false, "invalid_request"},
		{"原住院医师未上此班", &SwapRequest{Resident: 0, Shift: 3, Target: 2}, false, "invalid_request"},
		{"与自己换班", &SwapRequest{Resident: 0, Shift: 0, Target: 0}, false, "invalid_request"},
		{"编号越界", &SwapRequest{Resident: 0, Shift: 0, Target: 5}, false, "invalid_request"},
		{"班次越界", &SwapRequest{Resident: 0, Shift: 21, Target: 1}, false, "invalid_request"},
		{"互换班次目标未上", &SwapRequest{Resident: 0, Shift: 0, Target: 2, ExchangeShift: ptr(3)}, false, "invalid_request"},
		{"互换班次相同", &SwapRequest{Resident: 0, Shift: 0, Target: 2, ExchangeShift: ptr(0)}, false, "invalid_request"},
	}

	e := NewSwapEvaluator(params(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := rotation()
			result := e.EvaluateSwap(x, tt.request)
			assert.Equal(t, tt.feasible, result.Feasible)
			assert.NotEmpty(t, result.Recommendation)
			assert.Equal(t, rotation(), x, "原排班不应被修改")

			if tt.feasible {
				assert.Empty(t, result.Issues)
				assert.Equal(t, baseScore, result.Score)
				return
			}
			require.NotEmpty(t, result.Issues)
			assert.Equal(t, tt.issueType, result.Issues[0].Type)
			assert.Zero(t, result.Score)
		})
	}
}

func TestEvaluateSwap_ShapeMismatch(t *testing.T) {
	e := NewSwapEvaluator(params(), nil)
	result := e.EvaluateSwap(rotation()[:2], &SwapRequest{Resident: 0, Shift: 0, Target: 1})
	assert.False(t, result.Feasible)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "invalid_request", result.Issues[0].Type)
}

func TestEvaluateSwap_RestIssueBelongsToTarget(t *testing.T) {
	e := NewSwapEvaluator(params(), nil)
	result := e.EvaluateSwap(rotation(), &SwapRequest{Resident: 0, Shift: 2, Target: 1})
	require.False(t, result.Feasible)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, 1, result.Issues[0].Resident)
	assert.Equal(t, 5, result.Issues[0].Shift)
	assert.Equal(t, 1, result.Impact.Target.NewConflicts)
	assert.Equal(t, 0, result.Impact.Source.NewConflicts)
}

func TestEvaluateSwap_Impact(t *testing.T) {
	p := params()

	t.Run("接班方有请求", func(t *testing.T) {
		prefs := model.NewPreferences(p.Residents, p.TotalShifts())
		prefs.Set(2, 0, true)

		result := NewSwapEvaluator(p, prefs).EvaluateSwap(rotation(), &SwapRequest{Resident: 0, Shift: 0, Target: 2})
		require.True(t, result.Feasible)
		assert.Equal(t, int64(1), result.Impact.ObjectiveChange)
		assert.Equal(t, 1, result.Impact.Target.HonoredChange)
		assert.Equal(t, 7, result.Impact.Source.ShiftsBefore)
		assert.Equal(t, 6, result.Impact.Source.ShiftsAfter)
		assert.Equal(t, 8, result.Impact.Target.ShiftsAfter)
		assert.Equal(t, baseScore+requestWeight, result.Score)
	})

	t.Run("让出有请求的班次", func(t *testing.T) {
		prefs := model.NewPreferences(p.Residents, p.TotalShifts())
		prefs.Set(0, 0, true)

		result := NewSwapEvaluator(p, prefs).EvaluateSwap(rotation(), &SwapRequest{Resident: 0, Shift: 0, Target: 1})
		require.True(t, result.Feasible)
		assert.Equal(t, int64(-1), result.Impact.ObjectiveChange)
		assert.Equal(t, -1, result.Impact.Source.HonoredChange)
		assert.Equal(t, baseScore-requestWeight, result.Score)
	})

	t.Run("接班方班次较少", func(t *testing.T) {
		loose := p
		loose.MinPerShift = 0
		x := rotation()
		x[2][19], x[2][20] = false, false

		result := NewSwapEvaluator(loose, nil).EvaluateSwap(x, &SwapRequest{Resident: 0, Shift: 0, Target: 2})
		require.True(t, result.Feasible)
		assert.Equal(t, baseScore+balanceBonus, result.Score)
	})

	t.Run("互换不改变总班次", func(t *testing.T) {
		result := NewSwapEvaluator(p, nil).EvaluateSwap(rotation(), &SwapRequest{Resident: 0, Shift: 0, Target: 2, ExchangeShift: ptr(19)})
		require.True(t, result.Feasible)
		assert.Equal(t, result.Impact.Source.ShiftsBefore, result.Impact.Source.ShiftsAfter)
		assert.Equal(t, result.Impact.Target.ShiftsBefore, result.Impact.Target.ShiftsAfter)
	})
}

func TestEvaluateSwap_IgnoresExistingConflicts(t *testing.T) {
	// 原排班第一人连上 4 班，换班不涉及该冲突
	x := rotation()
	x[0][3] = true
	x[1][3] = false

	e := NewSwapEvaluator(params(), nil)
	result := e.EvaluateSwap(x, &SwapRequest{Resident: 2, Shift: 20, Target: 1})
	assert.True(t, result.Feasible, "%+v", result.Issues)
}

func TestApply(t *testing.T) {
	e := NewSwapEvaluator(params(), nil)
	x := rotation()

	swapped, err := e.Apply(x, &SwapRequest{Resident: 0, Shift: 0, Target: 2, ExchangeShift: ptr(19)})
	require.NoError(t, err)
	assert.False(t, swapped[0][0])
	assert.True(t, swapped[2][0])
	assert.True(t, swapped[0][19])
	assert.False(t, swapped[2][19])
	assert.True(t, x[0][0])

	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(params()))
	assert.Empty(t, detector.DetectAll(swapped))

	_, err = e.Apply(x, &SwapRequest{Resident: 0, Shift: 2, Target: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConstraintViolation))

	ok, reason := e.CanSwap(x, &SwapRequest{Resident: 0, Shift: 2, Target: 1})
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestRecommendSwapTargets(t *testing.T) {
	p := params()
	takeOverOnly := func(mutate func(*RecommendOptions)) *RecommendOptions {
		opts := DefaultRecommendOptions()
		opts.AllowExchange = false
		if mutate != nil {
			mutate(opts)
		}
		return opts
	}

	t.Run("按编号排序", func(t *testing.T) {
		recs := NewRecommender(p, nil).RecommendSwapTargets(rotation(), 0, 0, takeOverOnly(nil))
		require.Len(t, recs, 2)
		assert.Equal(t, 1, recs[0].Target)
		assert.Equal(t, 2, recs[1].Target)
		assert.Equal(t, 1, recs[0].Rank)
		assert.Equal(t, 2, recs[1].Rank)
		assert.Equal(t, SwapTakeOver, recs[0].SwapType)
	})

	t.Run("有请求者优先", func(t *testing.T) {
		prefs := model.NewPreferences(p.Residents, p.TotalShifts())
		prefs.Set(2, 0, true)

		recs := NewRecommender(p, prefs).RecommendSwapTargets(rotation(), 0, 0, takeOverOnly(nil))
		require.NotEmpty(t, recs)
		assert.Equal(t, 2, recs[0].Target)
		assert.Equal(t, "接班方希望上此班次", recs[0].Reason)
		assert.Equal(t, "满足的请求增加", recs[0].ImpactSummary)
	})

	t.Run("优先人选加分", func(t *testing.T) {
		recs := NewRecommender(p, nil).RecommendSwapTargets(rotation(), 0, 0, takeOverOnly(func(o *RecommendOptions) {
			o.Preferred = []int{2}
		}))
		require.NotEmpty(t, recs)
		assert.Equal(t, 2, recs[0].Target)
		assert.Equal(t, baseScore+10, recs[0].Score)
	})

	t.Run("排除人选", func(t *testing.T) {
		recs := NewRecommender(p, nil).RecommendSwapTargets(rotation(), 0, 0, takeOverOnly(func(o *RecommendOptions) {
			o.Exclude = []int{1}
		}))
		require.Len(t, recs, 1)
		assert.Equal(t, 2, recs[0].Target)
	})

	t.Run("最低得分过滤", func(t *testing.T) {
		recs := NewRecommender(p, nil).RecommendSwapTargets(rotation(), 0, 0, takeOverOnly(func(o *RecommendOptions) {
			o.MinScore = 95
		}))
		assert.Empty(t, recs)
	})

	t.Run("数量上限", func(t *testing.T) {
		recs := NewRecommender(p, nil).RecommendSwapTargets(rotation(), 0, 0, takeOverOnly(func(o *RecommendOptions) {
			o.MaxRecommendations = 1
		}))
		assert.Len(t, recs, 1)
	})
}

func TestRecommendSwapTargets_Exchange(t *testing.T) {
	p := params()
	opts := DefaultRecommendOptions()
	opts.MaxRecommendations = 0

	r := NewRecommender(p, nil)
	x := rotation()
	recs := r.RecommendSwapTargets(x, 0, 0, opts)
	require.NotEmpty(t, recs)

	found := false
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].Score, rec.Score)
		}
		if rec.SwapType != SwapExchange {
			continue
		}
		require.NotNil(t, rec.ExchangeShift)
		assert.NotEqual(t, model.DayOf(0), model.DayOf(*rec.ExchangeShift))
		ok, reason := r.Evaluator().CanSwap(x, rec.Request(0, 0))
		assert.True(t, ok, reason)
		if rec.Target == 2 && *rec.ExchangeShift == 19 {
			found = true
		}
	}
	assert.True(t, found, "应包含与住院医师 2 互换班次 19")
}

func TestFindBestSwapMatch(t *testing.T) {
	r := NewRecommender(params(), nil)

	best := r.FindBestSwapMatch(rotation(), 0, 0)
	require.NotNil(t, best)
	assert.Equal(t, 1, best.Target)
	assert.Equal(t, SwapTakeOver, best.SwapType)

	assert.Nil(t, r.FindBestSwapMatch(rotation(), 1, 0), "未上的班次没有接班人")
}

func TestAutoAssignSwap(t *testing.T) {
	r := NewRecommender(params(), nil)
	x := rotation()

	swapped, best, err := r.AutoAssignSwap(x, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, 1, best.Target)
	assert.True(t, swapped[1][0])
	assert.False(t, swapped[0][0])
	assert.True(t, x[0][0])

	swapped, best, err = r.AutoAssignSwap(x, 1, 0)
	require.NoError(t, err)
	assert.Nil(t, best)
	assert.Nil(t, swapped)
}
