package stats

import (
	"fmt"
	"strings"

	"github.com/paiban/residency/pkg/model"
)

// 当天班次序号名称
var slotNames = [model.ShiftsPerDay]string{"早班", "中班", "夜班"}

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	TotalShifts   int                `json:"total_shifts"`    // 总班次数
	StaffPerShift []int              `json:"staff_per_shift"` // 每班在岗人数
	AvgStaff      float64            `json:"avg_staff"`       // 平均在岗人数
	SlotStaff     map[string]float64 `json:"slot_staff"`      // 早/中/夜平均在岗人数
	WeeklyStaff   []int              `json:"weekly_staff"`    // 每周总人次
	Understaffed  []int              `json:"understaffed"`    // 低于最少人数的班次
	Overstaffed   []int              `json:"overstaffed"`     // 高于最多人数的班次
}

// Coverage 统计班次覆盖情况
func Coverage(sc *Schedule) *CoverageMetrics {
	p := sc.Params
	shifts := p.TotalShifts()
	m := &CoverageMetrics{
		TotalShifts:   shifts,
		StaffPerShift: make([]int, shifts),
		SlotStaff:     make(map[string]float64, model.ShiftsPerDay),
		WeeklyStaff:   make([]int, p.Weeks),
	}

	var slotTotals [model.ShiftsPerDay]int
	total := 0
	for s := 0; s < shifts; s++ {
		staff := 0
		for r := range sc.Grid {
			if sc.Worked(r, s) {
				staff++
			}
		}
		m.StaffPerShift[s] = staff
		slotTotals[model.SlotOf(s)] += staff
		m.WeeklyStaff[model.WeekOf(s)] += staff
		total += staff

		if staff < p.MinPerShift {
			m.Understaffed = append(m.Understaffed, s)
		}
		if staff > p.MaxPerShift {
			m.Overstaffed = append(m.Overstaffed, s)
		}
	}

	if shifts > 0 {
		m.AvgStaff = float64(total) / float64(shifts)
		perSlot := float64(shifts / model.ShiftsPerDay)
		for slot, name := range slotNames {
			m.SlotStaff[name] = float64(slotTotals[slot]) / perSlot
		}
	}
	return m
}

// GenerateCoverageReport 生成覆盖率报告
func GenerateCoverageReport(m *CoverageMetrics) string {
	var b strings.Builder
	b.WriteString("=== 覆盖率分析报告 ===\n\n")

	b.WriteString("【整体覆盖情况】\n")
	fmt.Fprintf(&b, "  总班次数: %d\n", m.TotalShifts)
	fmt.Fprintf(&b, "  平均在岗人数: %.2f\n", m.AvgStaff)
	for _, name := range slotNames {
		fmt.Fprintf(&b, "  %s平均在岗: %.2f\n", name, m.SlotStaff[name])
	}
	for w, staff := range m.WeeklyStaff {
		fmt.Fprintf(&b, "  第 %d 周总人次: %d\n", w+1, staff)
	}

	if len(m.Understaffed) > 0 {
		fmt.Fprintf(&b, "\n【人手不足班次】\n  %v\n", m.Understaffed)
	}
	if len(m.Overstaffed) > 0 {
		fmt.Fprintf(&b, "\n【人手超额班次】\n  %v\n", m.Overstaffed)
	}

	return b.String()
}
