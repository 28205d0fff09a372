package objective

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
	"github.com/paiban/residency/pkg/scheduler/variable"
)

func TestPreference(t *testing.T) {
	p := model.Params{Residents: 2, Weeks: 1, MinPerShift: 0, MaxPerShift: 2, MinTotal: 0, MaxTotal: 21}
	prefs := model.NewPreferences(p.Residents, p.TotalShifts())
	prefs.Set(0, 0, true)
	prefs.Set(0, 5, true)
	prefs.Set(1, 20, true)

	b := cpmodel.NewBuilder()
	sp := variable.Build(b, p)
	expr := Preference(b, sp, prefs)

	m, err := b.Model()
	require.NoError(t, err)
	require.NotNil(t, m.Objective())
	assert.Equal(t, cpmodel.Maximize, m.Objective().Sense)
	assert.Len(t, expr.Terms(), 3)

	values := make([]bool, m.NumVars())
	values[sp.X(0, 0).Index()] = true
	values[sp.X(0, 1).Index()] = true
	values[sp.X(1, 20).Index()] = true
	assert.Equal(t, int64(2), m.Objective().Expr.Evaluate(values))

	// 模型中的目标值与按排班重新计算的结果一致
	assert.Equal(t, int64(2), Evaluate(prefs, sp.Assignment(values)))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		prefs model.Preferences
		x     [][]bool
		want  int64
	}{
		{"无偏好", model.Preferences{{0, 0}}, [][]bool{{true, true}}, 0},
		{"全部满足", model.Preferences{{1, 1}}, [][]bool{{true, true}}, 2},
		{"部分满足", model.Preferences{{1, 0}, {1, 1}}, [][]bool{{true, true}, {false, true}}, 2},
		{"未上班", model.Preferences{{1, 1}}, [][]bool{{false, false}}, 0},
		{"排班行数不足", model.Preferences{{1}, {1}}, [][]bool{{true}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.prefs, tt.x))
		})
	}
}
