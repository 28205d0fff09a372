// Package stats 把求解结果映射为排班表并提供统计分析
package stats

import (
	"github.com/paiban/residency/pkg/model"
)

// CellStatus 排班表单元格状态
type CellStatus string

const (
	WorkedWanted   CellStatus = "WORKED_WANTED"   // 上班且有请求
	WorkedUnwanted CellStatus = "WORKED_UNWANTED" // 上班但无请求
	NotWorked      CellStatus = "NOT_WORKED"      // 未上班
)

// ResidentSummary 住院医师统计
type ResidentSummary struct {
	Resident int `json:"resident"`
	Shifts   int `json:"shifts"`   // 总班次
	Honored  int `json:"honored"`  // 满足的请求数
	Requests int `json:"requests"` // 请求总数
}

// Schedule 排班表，求解成功后生成，之后只读
type Schedule struct {
	Params    model.Params      `json:"params"`
	Residents []ResidentSummary `json:"residents"`
	Grid      [][]CellStatus    `json:"grid"`
	Objective int64             `json:"objective"` // 满足的请求总数
	Requests  int               `json:"requests"`  // 请求总数
}

// Map 由 x 的取值生成排班表，prefs 为 nil 时视为没有任何请求
func Map(p model.Params, prefs model.Preferences, x [][]bool) *Schedule {
	shifts := p.TotalShifts()
	sched := &Schedule{
		Params:    p,
		Residents: make([]ResidentSummary, p.Residents),
		Grid:      make([][]CellStatus, p.Residents),
	}

	for r := 0; r < p.Residents; r++ {
		summary := ResidentSummary{Resident: r}
		row := make([]CellStatus, shifts)
		for s := 0; s < shifts; s++ {
			wanted := prefs != nil && prefs.Wants(r, s)
			if wanted {
				summary.Requests++
			}
			switch {
			case !x[r][s]:
				row[s] = NotWorked
			case wanted:
				row[s] = WorkedWanted
				summary.Shifts++
				summary.Honored++
			default:
				row[s] = WorkedUnwanted
				summary.Shifts++
			}
		}
		sched.Grid[r] = row
		sched.Residents[r] = summary
		sched.Objective += int64(summary.Honored)
		sched.Requests += summary.Requests
	}

	return sched
}

// Worked 住院医师 r 是否上班次 s
func (sc *Schedule) Worked(r, s int) bool {
	return sc.Grid[r][s] != NotWorked
}

// Assignment 还原为 x[r][s] 布尔矩阵
func (sc *Schedule) Assignment() [][]bool {
	x := make([][]bool, len(sc.Grid))
	for r, row := range sc.Grid {
		x[r] = make([]bool, len(row))
		for s, cell := range row {
			x[r][s] = cell != NotWorked
		}
	}
	return x
}

// ShiftCounts 每名住院医师的总班次
func (sc *Schedule) ShiftCounts() []int {
	counts := make([]int, len(sc.Residents))
	for i, rs := range sc.Residents {
		counts[i] = rs.Shifts
	}
	return counts
}
