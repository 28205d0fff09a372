// Package objective 构建偏好满足目标
package objective

import (
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
	"github.com/paiban/residency/pkg/scheduler/variable"
)

// Preference 设置最大化目标 Σ prefs[r][s]·x[r,s] 并返回目标表达式
func Preference(b *cpmodel.Builder, sp *variable.Space, prefs model.Preferences) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for r := range prefs {
		for s, want := range prefs[r] {
			if want != 0 {
				expr.AddTerm(sp.X(r, s), int64(want))
			}
		}
	}
	b.Maximize(expr)
	return expr
}

// Evaluate 按排班结果重新计算满足的偏好数
func Evaluate(prefs model.Preferences, x [][]bool) int64 {
	var total int64
	for r := range prefs {
		if r >= len(x) {
			break
		}
		for s, want := range prefs[r] {
			if s < len(x[r]) && x[r][s] {
				total += int64(want)
			}
		}
	}
	return total
}
