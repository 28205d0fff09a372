package builtin

import (
	"fmt"

	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// ShiftCoverageFamily 每个班次的在岗人数限制在 [min_per_shift, max_per_shift]
type ShiftCoverageFamily struct {
	*BaseFamily
}

// NewShiftCoverageFamily 创建班次覆盖约束族
func NewShiftCoverageFamily() *ShiftCoverageFamily {
	return &ShiftCoverageFamily{
		BaseFamily: NewBaseFamily("班次覆盖", constraint.TypeShiftCoverage),
	}
}

// Encode 对每个班次 s 写入 min <= Σ_r x[r,s] <= max
func (f *ShiftCoverageFamily) Encode(ctx *constraint.Context) int {
	p := ctx.Params
	n := 0
	for s := 0; s < p.TotalShifts(); s++ {
		staff := cpmodel.NewLinearExpr()
		for r := 0; r < p.Residents; r++ {
			staff.Add(ctx.Space.X(r, s))
		}
		ctx.Builder.AddLinearConstraint(staff, int64(p.MinPerShift), int64(p.MaxPerShift)).
			WithName(fmt.Sprintf("coverage_s%d", s))
		n++
	}
	return n
}
