package builtin

import (
	"fmt"

	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// lookahead 一个窗口加上其后强制休息的班次数减一，即窗口起点到最后一个休息班的距离
const lookahead = model.RunLength + model.RestLength - 1

// RestPatternFamily 连续上满 3 个班后，紧接着的 2 个班必须休息
//
// 对每个起点 s ∈ [0, S-4)，run = x[s] + x[s+1] + x[s+2]，指示变量 y[r,s] ⇔ run == 3：
//
//	run <  3 + M·y          y = 0 时 run <= 2
//	run >= 3 - M·(1 - y)    y = 1 时 run == 3
//	y + x[s+3] <= 1
//	y + x[s+4] <= 1
//
// 周期末尾没有完整的前瞻窗口，只要求最后 4 个班不能全上。
type RestPatternFamily struct {
	*BaseFamily
	bigM int64
}

// NewRestPatternFamily 创建休息模式约束族，bigM 为 0 时使用 PatternBigM
func NewRestPatternFamily(bigM int64) *RestPatternFamily {
	if bigM == 0 {
		bigM = PatternBigM
	}
	return &RestPatternFamily{
		BaseFamily: NewBaseFamily("连班休息模式", constraint.TypeRestPattern),
		bigM:       bigM,
	}
}

// BigM 返回使用的大 M 常数
func (f *RestPatternFamily) BigM() int64 {
	return f.bigM
}

// Encode 写入指示变量线性化约束、休息约束和末尾边界约束
func (f *RestPatternFamily) Encode(ctx *constraint.Context) int {
	p := ctx.Params
	b := ctx.Builder
	sp := ctx.Space
	shifts := p.TotalShifts()
	n := 0

	for r := 0; r < p.Residents; r++ {
		for s := 0; s < shifts-lookahead; s++ {
			runVars := make([]cpmodel.BoolVar, model.RunLength)
			for k := range runVars {
				runVars[k] = sp.X(r, s+k)
			}
			run := window(runVars...)
			y := sp.Y(r, s)

			b.AddLessThan(run, cpmodel.NewConstant(model.RunLength).AddTerm(y, f.bigM)).
				WithName(fmt.Sprintf("pattern_off_r%ds%d", r, s))
			b.AddGreaterOrEqual(run, cpmodel.NewConstant(model.RunLength-f.bigM).AddTerm(y, f.bigM)).
				WithName(fmt.Sprintf("pattern_on_r%ds%d", r, s))
			n += 2

			for k := 0; k < model.RestLength; k++ {
				rest := s + model.RunLength + k
				b.AddLessOrEqual(window(y, sp.X(r, rest)), cpmodel.NewConstant(1)).
					WithName(fmt.Sprintf("rest_r%ds%d_%d", r, s, rest))
				n++
			}
		}

		edge := cpmodel.NewLinearExpr()
		for s := shifts - lookahead; s < shifts; s++ {
			edge.Add(sp.X(r, s))
		}
		b.AddLessThan(edge, cpmodel.NewConstant(lookahead)).
			WithName(fmt.Sprintf("pattern_edge_r%d", r))
		n++
	}

	return n
}
