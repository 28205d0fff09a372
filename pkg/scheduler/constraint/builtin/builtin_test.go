package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
	"github.com/paiban/residency/pkg/scheduler/variable"
)

func singleResident() model.Params {
	return model.Params{Residents: 1, Weeks: 1, MinPerShift: 0, MaxPerShift: 1, MinTotal: 0, MaxTotal: 21}
}

func encode(t *testing.T, p model.Params, opts Options) (*cpmodel.Model, *variable.Space, *constraint.Report) {
	t.Helper()
	manager := constraint.NewManager()
	require.NoError(t, RegisterDefaultFamilies(manager, opts))

	b := cpmodel.NewBuilder()
	sp := variable.Build(b, p)
	report := manager.Encode(constraint.NewContext(b, sp))

	m, err := b.Model()
	require.NoError(t, err)
	return m, sp, report
}

// complete 按 x 推导 y 与 z 的取值，得到完整赋值
func complete(m *cpmodel.Model, sp *variable.Space, x [][]bool) []bool {
	p := sp.Params()
	shifts := p.TotalShifts()
	values := make([]bool, m.NumVars())
	for r := range x {
		for s, on := range x[r] {
			values[sp.X(r, s).Index()] = on
		}
		for s := 0; s < shifts-lookahead; s++ {
			values[sp.Y(r, s).Index()] = x[r][s] && x[r][s+1] && x[r][s+2]
		}
		for w := 0; w < p.Weeks; w++ {
			for d := 0; d < model.DaysPerWeek; d++ {
				worked := false
				for slot := 0; slot < model.ShiftsPerDay; slot++ {
					worked = worked || x[r][model.ShiftOf(w, d, slot)]
				}
				values[sp.Z(r, w, d).Index()] = worked
			}
		}
	}
	return values
}

func schedule(p model.Params, worked map[int][]int) [][]bool {
	x := make([][]bool, p.Residents)
	for r := range x {
		x[r] = make([]bool, p.TotalShifts())
		for _, s := range worked[r] {
			x[r][s] = true
		}
	}
	return x
}

func violatedNames(m *cpmodel.Model, values []bool) []string {
	var names []string
	for _, i := range m.Check(values) {
		names = append(names, m.Constraints()[i].Name)
	}
	return names
}

func TestRegisterDefaultFamilies(t *testing.T) {
	manager := constraint.NewManager()
	require.NoError(t, RegisterDefaultFamilies(manager, Options{}))
	assert.Equal(t, 4, manager.Count())

	rest, ok := manager.Get(constraint.TypeRestPattern).(*RestPatternFamily)
	require.True(t, ok)
	assert.Equal(t, PatternBigM, rest.BigM())

	weekly, ok := manager.Get(constraint.TypeWeeklyDayCap).(*WeeklyDayCapFamily)
	require.True(t, ok)
	assert.Equal(t, DayBigM, weekly.BigM())
}

func TestRegisterDefaultFamilies_BigM(t *testing.T) {
	tests := []struct {
		name    string
		bigM    int64
		wantErr bool
	}{
		{"默认常数", 0, false},
		{"兼容旧常数", LegacyBigM, false},
		{"恰好等于下限", MinBigM(), false},
		{"小于下限", 2, true},
		{"负数", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RegisterDefaultFamilies(constraint.NewManager(), Options{BigM: tt.bigM})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeConfiguration))
		})
	}
}

func TestEncode_ConstraintCounts(t *testing.T) {
	_, _, report := encode(t, singleResident(), Options{})

	counts := make(map[constraint.Type]int)
	for _, f := range report.Families {
		counts[f.Type] = f.Constraints
	}

	assert.Equal(t, 21, counts[constraint.TypeShiftCoverage])
	assert.Equal(t, 1, counts[constraint.TypeTotalWorkload])
	// 17 个窗口 × (2 条线性化 + 2 条休息) + 1 条末尾边界
	assert.Equal(t, 17*4+1, counts[constraint.TypeRestPattern])
	// 7 天 × 2 条线性化 + 1 条周上限
	assert.Equal(t, 7*2+1, counts[constraint.TypeWeeklyDayCap])
	assert.Equal(t, 21+1+69+15, report.Constraints)
	assert.Equal(t, 21+21+7, report.Variables)
}

func TestEncode_HandBuiltSchedules(t *testing.T) {
	tests := []struct {
		name     string
		params   model.Params
		worked   map[int][]int
		violated []string
	}{
		{
			name:   "空排班",
			params: singleResident(),
		},
		{
			name:   "连上 3 班后休 2 班",
			params: singleResident(),
			worked: map[int][]int{0: {0, 1, 2, 5, 6, 7, 10}},
		},
		{
			name:     "连上 4 班",
			params:   singleResident(),
			worked:   map[int][]int{0: {0, 1, 2, 3}},
			violated: []string{"rest_r0s0_3"},
		},
		{
			name:     "连上 3 班后只休 1 班",
			params:   singleResident(),
			worked:   map[int][]int{0: {0, 1, 2, 4}},
			violated: []string{"rest_r0s0_4"},
		},
		{
			name:     "周期最后 4 个班全上",
			params:   singleResident(),
			worked:   map[int][]int{0: {17, 18, 19, 20}},
			violated: []string{"pattern_edge_r0"},
		},
		{
			name:   "每周工作 6 天",
			params: singleResident(),
			worked: map[int][]int{0: {0, 3, 6, 9, 12, 15}},
		},
		{
			name:     "每周工作 7 天",
			params:   singleResident(),
			worked:   map[int][]int{0: {0, 3, 6, 9, 12, 15, 18}},
			violated: []string{"week_cap_r0w0"},
		},
		{
			name:     "班次人数超上限",
			params:   model.Params{Residents: 2, Weeks: 1, MinPerShift: 0, MaxPerShift: 1, MinTotal: 0, MaxTotal: 21},
			worked:   map[int][]int{0: {0}, 1: {0}},
			violated: []string{"coverage_s0"},
		},
		{
			name:     "总班次不足",
			params:   model.Params{Residents: 1, Weeks: 1, MinPerShift: 0, MaxPerShift: 1, MinTotal: 2, MaxTotal: 21},
			worked:   map[int][]int{0: {0}},
			violated: []string{"workload_r0"},
		},
	}

	for _, bigM := range []int64{0, LegacyBigM} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				m, sp, _ := encode(t, tt.params, Options{BigM: bigM})
				values := complete(m, sp, schedule(tt.params, tt.worked))
				assert.ElementsMatch(t, tt.violated, violatedNames(m, values), "bigM=%d", bigM)
			})
		}
	}
}

func TestRestPattern_NoIndicatorEscapes(t *testing.T) {
	p := singleResident()
	m, sp, _ := encode(t, p, Options{})
	values := complete(m, sp, schedule(p, map[int][]int{0: {0, 1, 2, 3}}))

	// 无论 y 取何值，连上 4 班都无法满足全部约束
	for _, y := range []bool{false, true} {
		values[sp.Y(0, 0).Index()] = y
		assert.NotEmpty(t, m.Check(values), "y=%v", y)
	}
}

func TestWeeklyDayCap_IndicatorMustMatch(t *testing.T) {
	p := singleResident()
	m, sp, _ := encode(t, p, Options{})
	values := complete(m, sp, schedule(p, map[int][]int{0: {0}}))
	require.Empty(t, m.Check(values))

	// 当天上班但 z = 0
	values[sp.Z(0, 0, 0).Index()] = false
	assert.Contains(t, violatedNames(m, values), "day_off_r0w0d0")

	// 当天休息但 z = 1
	values[sp.Z(0, 0, 0).Index()] = true
	values[sp.Z(0, 0, 1).Index()] = true
	assert.Contains(t, violatedNames(m, values), "day_on_r0w0d1")
}
