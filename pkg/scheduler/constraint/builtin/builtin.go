package builtin

import (
	"fmt"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/constraint"
)

// 大 M 常数取被控制表达式的最大松弛量
const (
	PatternBigM int64 = model.RunLength    // run 的取值范围 [0,3]
	DayBigM     int64 = model.ShiftsPerDay // daily 的取值范围 [0,3]
	LegacyBigM  int64 = 100
)

// MinBigM 能使两类指示变量线性化都成立的最小常数
func MinBigM() int64 {
	if PatternBigM > DayBigM {
		return PatternBigM
	}
	return DayBigM
}

// Options 默认约束族选项
type Options struct {
	// BigM 为 0 时各约束族使用各自推导的常数
	BigM int64 `json:"big_m,omitempty"`
}

// RegisterDefaultFamilies 注册覆盖、工作量、休息模式和每周天数四类约束族
func RegisterDefaultFamilies(manager *constraint.Manager, opts Options) error {
	if opts.BigM != 0 && opts.BigM < MinBigM() {
		return errors.Configuration("big_m", fmt.Sprintf("不能小于 %d", MinBigM()))
	}

	manager.Register(NewShiftCoverageFamily())
	manager.Register(NewTotalWorkloadFamily())
	manager.Register(NewRestPatternFamily(opts.BigM))
	manager.Register(NewWeeklyDayCapFamily(opts.BigM))
	return nil
}
