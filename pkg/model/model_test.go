package model

import (
	"testing"

	"github.com/paiban/residency/pkg/errors"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr bool
		field   string
	}{
		{name: "默认参数，应通过", mutate: func(p *Params) {}},
		{name: "住院医师为0", mutate: func(p *Params) { p.Residents = 0 }, wantErr: true, field: "residents"},
		{name: "周数为0", mutate: func(p *Params) { p.Weeks = 0 }, wantErr: true, field: "weeks"},
		{name: "每班下限大于上限", mutate: func(p *Params) { p.MinPerShift = 3 }, wantErr: true, field: "min_per_shift"},
		{name: "每班上限大于人数", mutate: func(p *Params) { p.MaxPerShift = 5 }, wantErr: true, field: "max_per_shift"},
		{name: "每班下限为负", mutate: func(p *Params) { p.MinPerShift = -1 }, wantErr: true, field: "min_per_shift"},
		{name: "总班次下限大于上限", mutate: func(p *Params) { p.MinTotal = 41 }, wantErr: true, field: "min_total"},
		{name: "总班次上限超过周期", mutate: func(p *Params) { p.MaxTotal = 85; p.MinTotal = 0 }, wantErr: true, field: "max_total"},
		{name: "上限恰好等于周期", mutate: func(p *Params) { p.MaxTotal = 84 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)

			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if !errors.Is(err, errors.CodeConfiguration) {
				t.Errorf("期望 CONFIGURATION_ERROR, got %v", errors.GetCode(err))
			}
			appErr := err.(*errors.AppError)
			if _, ok := appErr.Fields[tt.field]; !ok {
				t.Errorf("错误字段中缺少 %s: %v", tt.field, appErr.Fields)
			}
		})
	}
}

func TestParams_ValidatePreferences(t *testing.T) {
	p := Params{Residents: 2, Weeks: 1, MinPerShift: 1, MaxPerShift: 1, MinTotal: 0, MaxTotal: 21}

	if err := p.ValidatePreferences(NewPreferences(2, 21)); err != nil {
		t.Errorf("形状正确的矩阵应通过: %v", err)
	}
	if err := p.ValidatePreferences(NewPreferences(3, 21)); err == nil {
		t.Error("行数不一致应失败")
	}
	if err := p.ValidatePreferences(NewPreferences(2, 20)); err == nil {
		t.Error("列数不一致应失败")
	}

	bad := NewPreferences(2, 21)
	bad[1][4] = 2
	if err := p.ValidatePreferences(bad); !errors.Is(err, errors.CodeConfiguration) {
		t.Errorf("非 0/1 取值应返回配置错误, got %v", err)
	}
}

func TestRandomPreferences_Deterministic(t *testing.T) {
	a := RandomPreferences(4, 84, DefaultSeed)
	b := RandomPreferences(4, 84, DefaultSeed)

	for r := range a {
		for s := range a[r] {
			if a[r][s] != b[r][s] {
				t.Fatalf("相同种子应生成相同矩阵, 差异位于 [%d][%d]", r, s)
			}
			if a[r][s] != 0 && a[r][s] != 1 {
				t.Fatalf("取值应为 0/1, got %d", a[r][s])
			}
		}
	}
	if a.Count() == 0 || a.Count() == 4*84 {
		t.Errorf("随机矩阵不应全 0 或全 1, count=%d", a.Count())
	}
}

func TestShiftIndexing(t *testing.T) {
	tests := []struct {
		shift, day, week, slot int
	}{
		{0, 0, 0, 0},
		{2, 0, 0, 2},
		{3, 1, 0, 0},
		{20, 6, 0, 2},
		{21, 7, 1, 0},
		{83, 27, 3, 2},
	}
	for _, tt := range tests {
		if got := DayOf(tt.shift); got != tt.day {
			t.Errorf("DayOf(%d) = %d, want %d", tt.shift, got, tt.day)
		}
		if got := WeekOf(tt.shift); got != tt.week {
			t.Errorf("WeekOf(%d) = %d, want %d", tt.shift, got, tt.week)
		}
		if got := SlotOf(tt.shift); got != tt.slot {
			t.Errorf("SlotOf(%d) = %d, want %d", tt.shift, got, tt.slot)
		}
	}
	if got := ShiftOf(1, 2, 1); got != 28 {
		t.Errorf("ShiftOf(1,2,1) = %d, want 28", got)
	}
}
