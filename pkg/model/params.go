// Package model 定义住院医师排班的核心数据模型
package model

// 排班网格的固定粒度
const (
	ShiftsPerDay   = 3                          // 每天班次数
	DaysPerWeek    = 7                          // 每周天数
	ShiftsPerWeek  = ShiftsPerDay * DaysPerWeek // 每周班次数
	MaxDaysPerWeek = 6                          // 每周最多工作天数
	RunLength      = 3                          // 连续工作班次上限
	RestLength     = 2                          // 连续工作满额后的强制休息班次数
)

// Params 排班参数
type Params struct {
	Residents   int `json:"residents" yaml:"residents" validate:"gte=1"`
	Weeks       int `json:"weeks" yaml:"weeks" validate:"gte=1"`
	MinPerShift int `json:"min_per_shift" yaml:"min_per_shift" validate:"gte=0,ltefield=MaxPerShift"`
	MaxPerShift int `json:"max_per_shift" yaml:"max_per_shift" validate:"gte=0,ltefield=Residents"`
	MinTotal    int `json:"min_total" yaml:"min_total" validate:"gte=0,ltefield=MaxTotal"`
	MaxTotal    int `json:"max_total" yaml:"max_total" validate:"gte=0"`
}

// DefaultParams 返回默认参数：4 名住院医师、4 周、每班 1-2 人、每人 30-40 个班
func DefaultParams() Params {
	return Params{
		Residents:   4,
		Weeks:       4,
		MinPerShift: 1,
		MaxPerShift: 2,
		MinTotal:    30,
		MaxTotal:    40,
	}
}

// TotalShifts 返回排班周期内的班次总数
func (p Params) TotalShifts() int {
	return p.Weeks * ShiftsPerWeek
}

// TotalDays 返回排班周期内的天数
func (p Params) TotalDays() int {
	return p.Weeks * DaysPerWeek
}

// DayOf 返回班次所在的天（全局编号）
func DayOf(shift int) int {
	return shift / ShiftsPerDay
}

// WeekOf 返回班次所在的周
func WeekOf(shift int) int {
	return shift / ShiftsPerWeek
}

// SlotOf 返回班次在当天的序号（0=早, 1=中, 2=夜）
func SlotOf(shift int) int {
	return shift % ShiftsPerDay
}

// ShiftOf 由周、周内天、当天序号计算班次编号
func ShiftOf(week, day, slot int) int {
	return week*ShiftsPerWeek + day*ShiftsPerDay + slot
}
