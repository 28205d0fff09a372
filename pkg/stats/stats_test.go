package stats

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/paiban/residency/pkg/model"
)

func testSchedule() *Schedule {
	p := model.Params{Residents: 2, Weeks: 1, MinPerShift: 0, MaxPerShift: 1, MinTotal: 0, MaxTotal: 21}
	prefs := model.NewPreferences(p.Residents, p.TotalShifts())
	prefs.Set(0, 0, true)
	prefs.Set(0, 1, true)
	prefs.Set(1, 20, true)

	x := make([][]bool, p.Residents)
	for r := range x {
		x[r] = make([]bool, p.TotalShifts())
	}
	x[0][0] = true // 有请求
	x[0][2] = true // 无请求
	x[1][20] = true
	return Map(p, prefs, x)
}

func TestMap(t *testing.T) {
	sc := testSchedule()

	if sc.Objective != 2 {
		t.Errorf("Expected objective 2, got %d", sc.Objective)
	}
	if sc.Requests != 3 {
		t.Errorf("Expected 3 requests, got %d", sc.Requests)
	}

	want := []ResidentSummary{
		{Resident: 0, Shifts: 2, Honored: 1, Requests: 2},
		{Resident: 1, Shifts: 1, Honored: 1, Requests: 1},
	}
	for i, rs := range sc.Residents {
		if rs != want[i] {
			t.Errorf("Resident %d: expected %+v, got %+v", i, want[i], rs)
		}
	}

	cells := map[[2]int]CellStatus{
		{0, 0}:  WorkedWanted,
		{0, 1}:  NotWorked,
		{0, 2}:  WorkedUnwanted,
		{1, 20}: WorkedWanted,
		{1, 0}:  NotWorked,
	}
	for rs, status := range cells {
		if got := sc.Grid[rs[0]][rs[1]]; got != status {
			t.Errorf("Cell %v: expected %s, got %s", rs, status, got)
		}
	}

	x := sc.Assignment()
	if !x[0][0] || !x[0][2] || x[0][1] {
		t.Error("Assignment should round-trip the worked cells")
	}
}

func TestMap_NilPreferences(t *testing.T) {
	p := model.Params{Residents: 1, Weeks: 1, MaxPerShift: 1, MaxTotal: 21}
	x := [][]bool{make([]bool, 21)}
	x[0][3] = true

	sc := Map(p, nil, x)
	if sc.Grid[0][3] != WorkedUnwanted || sc.Objective != 0 || sc.Requests != 0 {
		t.Errorf("Expected unwanted cell and zero objective, got %s / %d", sc.Grid[0][3], sc.Objective)
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderText(&buf, testSchedule(), RenderOptions{}); err != nil {
		t.Fatalf("RenderText failed: %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	if !strings.Contains(lines[0], "W1") {
		t.Errorf("Expected week header, got %q", lines[0])
	}
	if want := "R0    #.+ ... ... ... ... ... ..."; lines[1] != want {
		t.Errorf("Expected %q, got %q", want, lines[1])
	}
	if want := "R1    ... ... ... ... ... ... ..#"; lines[2] != want {
		t.Errorf("Expected %q, got %q", want, lines[2])
	}
}

func TestRenderText_WeekSeparator(t *testing.T) {
	p := model.Params{Residents: 1, Weeks: 2, MaxPerShift: 1, MaxTotal: 42}
	x := [][]bool{make([]bool, p.TotalShifts())}
	sc := Map(p, nil, x)

	var buf bytes.Buffer
	if err := RenderText(&buf, sc, RenderOptions{}); err != nil {
		t.Fatalf("RenderText failed: %v", err)
	}
	if got := strings.Count(strings.Split(buf.String(), "\n")[1], "|"); got != 1 {
		t.Errorf("Expected 1 week separator, got %d", got)
	}
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderReport(&buf, testSchedule(), 1500*time.Millisecond); err != nil {
		t.Fatalf("RenderReport failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"满足请求数 = 2 (共 3)", "求解耗时 = 1.500s", "住院医师 0: 2 个班", "住院医师 1: 1 个班"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFairness(t *testing.T) {
	tests := []struct {
		name     string
		shifts   []int
		wantGini float64
	}{
		{"完全平均", []int{7, 7, 7}, 0},
		{"全部为 0", []int{0, 0}, 0},
		{"一人承担全部", []int{0, 0, 0, 10}, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &Schedule{}
			for i, n := range tt.shifts {
				sc.Residents = append(sc.Residents, ResidentSummary{Resident: i, Shifts: n})
				sc.Grid = append(sc.Grid, make([]CellStatus, 0))
			}
			m := Fairness(sc)
			if math.Abs(m.ShiftGini-tt.wantGini) > 1e-9 {
				t.Errorf("Expected gini %.2f, got %.4f", tt.wantGini, m.ShiftGini)
			}
			if m.OverallScore < 0 || m.OverallScore > 100 {
				t.Errorf("Overall score out of range: %.2f", m.OverallScore)
			}
		})
	}
}

func TestFairness_Empty(t *testing.T) {
	if m := Fairness(&Schedule{}); m.OverallScore != 100 {
		t.Errorf("Expected score 100 for empty schedule, got %.2f", m.OverallScore)
	}
}

func TestCoverage(t *testing.T) {
	sc := testSchedule()
	sc.Params.MinPerShift = 1

	m := Coverage(sc)
	if m.StaffPerShift[0] != 1 || m.StaffPerShift[1] != 0 {
		t.Errorf("Unexpected staffing: %v", m.StaffPerShift[:3])
	}
	if m.WeeklyStaff[0] != 3 {
		t.Errorf("Expected 3 staff-shifts in week 1, got %d", m.WeeklyStaff[0])
	}
	if len(m.Understaffed) != 18 {
		t.Errorf("Expected 18 understaffed shifts, got %d", len(m.Understaffed))
	}
	if m.SlotStaff["夜班"] != 2.0/7 {
		t.Errorf("Expected night average 2/7, got %.4f", m.SlotStaff["夜班"])
	}

	report := GenerateCoverageReport(m)
	if !strings.Contains(report, "人手不足班次") {
		t.Errorf("Expected understaffed section in report:\n%s", report)
	}
}
