package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler"
	"github.com/paiban/residency/pkg/scheduler/solver"
	"github.com/paiban/residency/pkg/stats"
)

func testOutcome() *scheduler.Outcome {
	p := model.Params{Residents: 2, Weeks: 1, MinPerShift: 0, MaxPerShift: 1, MinTotal: 0, MaxTotal: 21}
	prefs := model.NewPreferences(p.Residents, p.TotalShifts())
	prefs.Set(0, 0, true)
	prefs.Set(1, 5, true)

	x := make([][]bool, p.Residents)
	for r := range x {
		x[r] = make([]bool, p.TotalShifts())
	}
	x[0][0] = true
	x[0][1] = true
	x[1][4] = true

	return &scheduler.Outcome{
		RunID:    uuid.New(),
		Status:   solver.StatusOptimal,
		Params:   p,
		Schedule: stats.Map(p, prefs, x),
		WallTime: 1500 * time.Millisecond,
		Rounds:   3,
	}
}

func TestNewScheduleRun(t *testing.T) {
	outcome := testOutcome()
	run := NewScheduleRun(outcome, 42)

	if run.ID != outcome.RunID {
		t.Errorf("Expected ID %s, got %s", outcome.RunID, run.ID)
	}
	if run.Status != "OPTIMAL" {
		t.Errorf("Expected status OPTIMAL, got %s", run.Status)
	}
	if run.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", run.Seed)
	}
	if run.Objective != 1 || run.Requests != 2 {
		t.Errorf("Expected objective 1 of 2 requests, got %d of %d", run.Objective, run.Requests)
	}
	if len(run.ShiftCounts) != 2 || run.ShiftCounts[0] != 2 || run.ShiftCounts[1] != 1 {
		t.Errorf("Unexpected shift counts %v", run.ShiftCounts)
	}
}

func TestNewScheduleRun_NoSchedule(t *testing.T) {
	outcome := testOutcome()
	outcome.Status = solver.StatusInfeasible
	outcome.Schedule = nil

	run := NewScheduleRun(outcome, 1)
	if run.Objective != 0 || run.Requests != 0 {
		t.Errorf("Expected zero objective, got %d", run.Objective)
	}
	if run.ShiftCounts == nil {
		t.Error("Expected non-nil shift counts for the array column")
	}
	if AssignmentsOf(run.ID, nil) != nil {
		t.Error("Expected no assignments without a schedule")
	}
}

func TestAssignmentsOf_RoundTrip(t *testing.T) {
	outcome := testOutcome()
	assignments := AssignmentsOf(outcome.RunID, outcome.Schedule)

	if len(assignments) != 3 {
		t.Fatalf("Expected 3 assignments, got %d", len(assignments))
	}

	last := assignments[2]
	if last.Resident != 1 || last.Shift != 4 || last.Day != 1 || last.Slot != 1 || last.Week != 0 {
		t.Errorf("Unexpected assignment %+v", last)
	}
	if !assignments[0].Wanted || assignments[1].Wanted {
		t.Error("Expected only the first assignment to be wanted")
	}

	x := Grid(outcome.Params, assignments)
	want := outcome.Schedule.Assignment()
	for r := range want {
		for s := range want[r] {
			if x[r][s] != want[r][s] {
				t.Errorf("Grid mismatch at r=%d s=%d", r, s)
			}
		}
	}
}

func TestListFilter_Where(t *testing.T) {
	tests := []struct {
		name    string
		filter  ListFilter
		clause  string
		args    int
		nextArg int
	}{
		{"无过滤", DefaultListFilter(), "", 0, 1},
		{"按状态", DefaultListFilter().WithStatus("OPTIMAL"), "WHERE status = $1", 1, 2},
		{"按规模", DefaultListFilter().WithSize(4, 4), "WHERE residents = $1 AND weeks = $2", 2, 3},
		{"组合", DefaultListFilter().WithStatus("FEASIBLE").WithSize(3, 0), "WHERE status = $1 AND residents = $2", 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, args, next := tt.filter.where()
			if clause != tt.clause {
				t.Errorf("Expected clause %q, got %q", tt.clause, clause)
			}
			if len(args) != tt.args {
				t.Errorf("Expected %d args, got %d", tt.args, len(args))
			}
			if next != tt.nextArg {
				t.Errorf("Expected next placeholder %d, got %d", tt.nextArg, next)
			}
		})
	}
}

func TestListFilter_OrderAndLimit(t *testing.T) {
	f := DefaultListFilter()
	if got := f.order(); got != "ORDER BY created_at DESC" {
		t.Errorf("Unexpected default order %q", got)
	}

	f.OrderBy = "objective; DROP TABLE schedule_runs"
	f.OrderDir = "asc"
	if got := f.order(); strings.Contains(got, "DROP") || got != "ORDER BY created_at ASC" {
		t.Errorf("Expected unknown column to fall back, got %q", got)
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, 20},
		{-5, 20},
		{50, 50},
		{1000, 100},
	}
	for _, tt := range tests {
		if got := f.WithLimit(tt.limit).limit(); got != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.limit, got, tt.want)
		}
	}
}
