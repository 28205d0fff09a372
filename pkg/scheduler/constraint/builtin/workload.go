package builtin

import (
	"fmt"

	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// TotalWorkloadFamily 每名住院医师在整个周期内的总班次限制在 [min_total, max_total]
type TotalWorkloadFamily struct {
	*BaseFamily
}

// NewTotalWorkloadFamily 创建总工作量约束族
func NewTotalWorkloadFamily() *TotalWorkloadFamily {
	return &TotalWorkloadFamily{
		BaseFamily: NewBaseFamily("总工作量", constraint.TypeTotalWorkload),
	}
}

// Encode 对每名住院医师 r 写入 min_total <= Σ_s x[r,s] <= max_total
func (f *TotalWorkloadFamily) Encode(ctx *constraint.Context) int {
	p := ctx.Params
	n := 0
	for r := 0; r < p.Residents; r++ {
		total := cpmodel.NewLinearExpr()
		for s := 0; s < p.TotalShifts(); s++ {
			total.Add(ctx.Space.X(r, s))
		}
		ctx.Builder.AddLinearConstraint(total, int64(p.MinTotal), int64(p.MaxTotal)).
			WithName(fmt.Sprintf("workload_r%d", r))
		n++
	}
	return n
}
