package builtin

import (
	"fmt"

	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// WeeklyDayCapFamily 每名住院医师每周最多工作 6 天
//
// daily = 当天 3 个班之和，z[r,w,d] ⇔ daily >= 1：
//
//	daily >= 1 - M·(1 - z)
//	daily <  1 + M·z
//	Σ_d z[r,w,d] <= 6
type WeeklyDayCapFamily struct {
	*BaseFamily
	bigM    int64
	maxDays int
}

// NewWeeklyDayCapFamily 创建每周工作天数约束族，bigM 为 0 时使用 DayBigM
func NewWeeklyDayCapFamily(bigM int64) *WeeklyDayCapFamily {
	if bigM == 0 {
		bigM = DayBigM
	}
	return &WeeklyDayCapFamily{
		BaseFamily: NewBaseFamily("每周工作天数", constraint.TypeWeeklyDayCap),
		bigM:       bigM,
		maxDays:    model.MaxDaysPerWeek,
	}
}

// BigM 返回使用的大 M 常数
func (f *WeeklyDayCapFamily) BigM() int64 {
	return f.bigM
}

// Encode 写入按天指示变量约束和每周上限
func (f *WeeklyDayCapFamily) Encode(ctx *constraint.Context) int {
	p := ctx.Params
	b := ctx.Builder
	sp := ctx.Space
	n := 0

	for r := 0; r < p.Residents; r++ {
		for w := 0; w < p.Weeks; w++ {
			weekly := cpmodel.NewLinearExpr()
			for d := 0; d < model.DaysPerWeek; d++ {
				daily := cpmodel.NewLinearExpr()
				for slot := 0; slot < model.ShiftsPerDay; slot++ {
					daily.Add(sp.X(r, model.ShiftOf(w, d, slot)))
				}
				z := sp.Z(r, w, d)

				b.AddGreaterOrEqual(daily, cpmodel.NewConstant(1-f.bigM).AddTerm(z, f.bigM)).
					WithName(fmt.Sprintf("day_on_r%dw%dd%d", r, w, d))
				b.AddLessThan(daily, cpmodel.NewConstant(1).AddTerm(z, f.bigM)).
					WithName(fmt.Sprintf("day_off_r%dw%dd%d", r, w, d))
				n += 2

				weekly.Add(z)
			}
			b.AddLessOrEqual(weekly, cpmodel.NewConstant(int64(f.maxDays))).
				WithName(fmt.Sprintf("week_cap_r%dw%d", r, w))
			n++
		}
	}

	return n
}
