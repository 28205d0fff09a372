// Package validator 独立于求解器检查排班是否满足全部规则
package validator

import (
	"fmt"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictShape       ConflictType = "shape"        // 排班矩阵维度不符
	ConflictCoverage    ConflictType = "coverage"     // 班次人数越界
	ConflictWorkload    ConflictType = "workload"     // 总班次越界
	ConflictRestPattern ConflictType = "rest_pattern" // 连上 3 班后未休 2 班
	ConflictEdge        ConflictType = "edge"         // 周期最后 4 班全上
	ConflictWeeklyDays  ConflictType = "weekly_days"  // 每周工作天数过多
)

// Conflict 冲突信息，不涉及的下标为 -1
type Conflict struct {
	Type     ConflictType `json:"type"`
	Severity string       `json:"severity"` // error/warning
	Resident int          `json:"resident"`
	Shift    int          `json:"shift"`
	Week     int          `json:"week"`
	Message  string       `json:"message"`
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	Params         model.Params
	MaxDaysPerWeek int  // 每周最多工作天数
	CheckEdge      bool // 是否检查周期末尾边界
}

// DefaultDetectorConfig 按排班参数返回默认配置
func DefaultDetectorConfig(p model.Params) *DetectorConfig {
	return &DetectorConfig{
		Params:         p,
		MaxDaysPerWeek: model.MaxDaysPerWeek,
		CheckEdge:      true,
	}
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config *DetectorConfig) *ConflictDetector {
	return &ConflictDetector{config: config}
}

// DetectAll 检测所有冲突，x[r][s] 表示住院医师 r 上班次 s
func (d *ConflictDetector) DetectAll(x [][]bool) []Conflict {
	p := d.config.Params
	shifts := p.TotalShifts()

	if len(x) != p.Residents {
		return []Conflict{{
			Type:     ConflictShape,
			Severity: "error",
			Resident: -1, Shift: -1, Week: -1,
			Message: fmt.Sprintf("排班包含 %d 名住院医师，应为 %d", len(x), p.Residents),
		}}
	}
	for r := range x {
		if len(x[r]) != shifts {
			return []Conflict{{
				Type:     ConflictShape,
				Severity: "error",
				Resident: r, Shift: -1, Week: -1,
				Message: fmt.Sprintf("住院医师 %d 的排班包含 %d 个班次，应为 %d", r, len(x[r]), shifts),
			}}
		}
	}

	var conflicts []Conflict
	for s := 0; s < shifts; s++ {
		conflicts = append(conflicts, d.DetectShift(x, s)...)
	}
	for r := range x {
		conflicts = append(conflicts, d.DetectResident(r, x[r])...)
	}
	return conflicts
}

// DetectResident 检测单个住院医师的总班次、连班休息和每周天数
func (d *ConflictDetector) DetectResident(r int, row []bool) []Conflict {
	var conflicts []Conflict
	conflicts = append(conflicts, d.detectWorkload(r, row)...)
	conflicts = append(conflicts, d.detectRestPattern(r, row)...)
	conflicts = append(conflicts, d.detectWeeklyDays(r, row)...)
	return conflicts
}

// Validate 有冲突时返回 CONSTRAINT_VIOLATION 错误
func (d *ConflictDetector) Validate(x [][]bool) error {
	conflicts := d.DetectAll(x)
	if len(conflicts) == 0 {
		return nil
	}
	return errors.ConstraintViolation(string(conflicts[0].Type), conflicts[0].Message).
		WithField("conflicts", len(conflicts))
}

// DetectShift 检测班次 s 的在岗人数
func (d *ConflictDetector) DetectShift(x [][]bool, s int) []Conflict {
	p := d.config.Params
	staff := 0
	for r := range x {
		if x[r][s] {
			staff++
		}
	}
	if staff >= p.MinPerShift && staff <= p.MaxPerShift {
		return nil
	}
	return []Conflict{{
		Type:     ConflictCoverage,
		Severity: "error",
		Resident: -1,
		Shift:    s,
		Week:     model.WeekOf(s),
		Message:  fmt.Sprintf("班次 %d 在岗 %d 人，要求 %d-%d 人", s, staff, p.MinPerShift, p.MaxPerShift),
	}}
}

// detectWorkload 检测总班次
func (d *ConflictDetector) detectWorkload(r int, row []bool) []Conflict {
	p := d.config.Params
	total := countWorked(row)
	if total >= p.MinTotal && total <= p.MaxTotal {
		return nil
	}
	return []Conflict{{
		Type:     ConflictWorkload,
		Severity: "error",
		Resident: r,
		Shift:    -1,
		Week:     -1,
		Message:  fmt.Sprintf("住院医师 %d 共 %d 个班，要求 %d-%d 个", r, total, p.MinTotal, p.MaxTotal),
	}}
}

// detectRestPattern 检测连上 3 班后的强制休息和周期末尾边界
func (d *ConflictDetector) detectRestPattern(r int, row []bool) []Conflict {
	var conflicts []Conflict
	shifts := len(row)
	lookahead := model.RunLength + model.RestLength - 1

	for s := 0; s < shifts-lookahead; s++ {
		if !fullRun(row[s : s+model.RunLength]) {
			continue
		}
		for k := 0; k < model.RestLength; k++ {
			rest := s + model.RunLength + k
			if row[rest] {
				conflicts = append(conflicts, Conflict{
					Type:     ConflictRestPattern,
					Severity: "error",
					Resident: r,
					Shift:    rest,
					Week:     model.WeekOf(rest),
					Message:  fmt.Sprintf("住院医师 %d 从班次 %d 起连上 %d 班后在班次 %d 未休息", r, s, model.RunLength, rest),
				})
			}
		}
	}

	if d.config.CheckEdge && shifts >= lookahead && fullRun(row[shifts-lookahead:]) {
		conflicts = append(conflicts, Conflict{
			Type:     ConflictEdge,
			Severity: "error",
			Resident: r,
			Shift:    shifts - lookahead,
			Week:     model.WeekOf(shifts - 1),
			Message:  fmt.Sprintf("住院医师 %d 连上周期最后 %d 个班", r, lookahead),
		})
	}
	return conflicts
}

// detectWeeklyDays 检测每周工作天数
func (d *ConflictDetector) detectWeeklyDays(r int, row []bool) []Conflict {
	var conflicts []Conflict
	for w := 0; w < d.config.Params.Weeks; w++ {
		days := 0
		for day := 0; day < model.DaysPerWeek; day++ {
			start := model.ShiftOf(w, day, 0)
			if countWorked(row[start:start+model.ShiftsPerDay]) > 0 {
				days++
			}
		}
		if days > d.config.MaxDaysPerWeek {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictWeeklyDays,
				Severity: "error",
				Resident: r,
				Shift:    -1,
				Week:     w,
				Message:  fmt.Sprintf("住院医师 %d 第 %d 周工作 %d 天，超过 %d 天", r, w, days, d.config.MaxDaysPerWeek),
			})
		}
	}
	return conflicts
}

func countWorked(row []bool) int {
	n := 0
	for _, on := range row {
		if on {
			n++
		}
	}
	return n
}

func fullRun(row []bool) bool {
	for _, on := range row {
		if !on {
			return false
		}
	}
	return true
}
