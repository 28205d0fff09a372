package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/paiban/residency/pkg/model"
)

// 单元格符号
const (
	symbolWanted   = "#"
	symbolUnwanted = "+"
	symbolOff      = "."
)

// RenderOptions 渲染选项
type RenderOptions struct {
	Color bool // 是否输出 ANSI 颜色
}

// RenderText 以文本网格输出排班表：每行一名住院医师，每天 3 格，周之间用 | 分隔
func RenderText(w io.Writer, sc *Schedule, opts RenderOptions) error {
	wanted := fmt.Sprint
	unwanted := fmt.Sprint
	if opts.Color {
		wanted = color.New(color.FgGreen, color.Bold).Sprint
		unwanted = color.New(color.FgYellow).Sprint
	}

	weekWidth := model.DaysPerWeek*model.ShiftsPerDay + model.DaysPerWeek - 1
	var b strings.Builder

	b.WriteString("      ")
	for wk := 0; wk < sc.Params.Weeks; wk++ {
		if wk > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "%-*s", weekWidth, fmt.Sprintf("W%d", wk+1))
	}
	b.WriteString("\n")

	for r, row := range sc.Grid {
		fmt.Fprintf(&b, "R%-4d ", r)
		for s, cell := range row {
			if s > 0 {
				switch {
				case s%model.ShiftsPerWeek == 0:
					b.WriteString(" | ")
				case s%model.ShiftsPerDay == 0:
					b.WriteString(" ")
				}
			}
			switch cell {
			case WorkedWanted:
				b.WriteString(wanted(symbolWanted))
			case WorkedUnwanted:
				b.WriteString(unwanted(symbolUnwanted))
			default:
				b.WriteString(symbolOff)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\n%s 上班且有请求  %s 上班无请求  %s 休息\n", symbolWanted, symbolUnwanted, symbolOff)

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderReport 输出统计报告：满足的请求数、求解耗时和每人班次数
func RenderReport(w io.Writer, sc *Schedule, wallTime time.Duration) error {
	var b strings.Builder
	fmt.Fprintf(&b, "满足请求数 = %d (共 %d)\n", sc.Objective, sc.Requests)
	fmt.Fprintf(&b, "求解耗时 = %.3fs\n", wallTime.Seconds())
	for _, rs := range sc.Residents {
		fmt.Fprintf(&b, "住院医师 %d: %d 个班，满足请求 %d/%d\n", rs.Resident, rs.Shifts, rs.Honored, rs.Requests)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
