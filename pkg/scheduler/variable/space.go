// Package variable 从排班参数推导决策变量和辅助变量
package variable

import (
	"fmt"

	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// Kind 变量种类
type Kind string

const (
	KindAssignment Kind = "x" // x[r,s]: 住院医师 r 上班次 s
	KindPattern    Kind = "y" // y[r,s]: 从班次 s 起连续上满 3 个班
	KindDayWorked  Kind = "z" // z[r,w,d]: 第 w 周第 d 天至少上一个班
)

// Space 变量空间，按下标稠密存储
type Space struct {
	params model.Params
	x      [][]cpmodel.BoolVar
	y      [][]cpmodel.BoolVar
	z      [][][]cpmodel.BoolVar
}

// Build 在构建器中注册全部变量
func Build(b *cpmodel.Builder, p model.Params) *Space {
	shifts := p.TotalShifts()
	sp := &Space{
		params: p,
		x:      make([][]cpmodel.BoolVar, p.Residents),
		y:      make([][]cpmodel.BoolVar, p.Residents),
		z:      make([][][]cpmodel.BoolVar, p.Residents),
	}

	for r := 0; r < p.Residents; r++ {
		sp.x[r] = make([]cpmodel.BoolVar, shifts)
		for s := 0; s < shifts; s++ {
			sp.x[r][s] = b.NewBoolVar(fmt.Sprintf("x_r%ds%d", r, s))
		}
	}

	// y 覆盖全部班次；编码器只使用 [0, S-4)
	for r := 0; r < p.Residents; r++ {
		sp.y[r] = make([]cpmodel.BoolVar, shifts)
		for s := 0; s < shifts; s++ {
			sp.y[r][s] = b.NewBoolVar(fmt.Sprintf("y_r%ds%d", r, s))
		}
	}

	for r := 0; r < p.Residents; r++ {
		sp.z[r] = make([][]cpmodel.BoolVar, p.Weeks)
		for w := 0; w < p.Weeks; w++ {
			sp.z[r][w] = make([]cpmodel.BoolVar, model.DaysPerWeek)
			for d := 0; d < model.DaysPerWeek; d++ {
				sp.z[r][w][d] = b.NewBoolVar(fmt.Sprintf("z_r%dw%dd%d", r, w, d))
			}
		}
	}

	return sp
}

// Params 返回变量空间对应的参数
func (sp *Space) Params() model.Params {
	return sp.params
}

// X 返回 x[r,s]
func (sp *Space) X(r, s int) cpmodel.BoolVar {
	return sp.x[r][s]
}

// Y 返回 y[r,s]
func (sp *Space) Y(r, s int) cpmodel.BoolVar {
	return sp.y[r][s]
}

// Z 返回 z[r,w,d]
func (sp *Space) Z(r, w, d int) cpmodel.BoolVar {
	return sp.z[r][w][d]
}

// Variable 按种类和下标查找变量
func (sp *Space) Variable(kind Kind, idx ...int) (cpmodel.BoolVar, error) {
	p := sp.params
	switch kind {
	case KindAssignment, KindPattern:
		if len(idx) != 2 {
			return cpmodel.BoolVar{}, fmt.Errorf("变量 %s 需要 2 个下标, got %d", kind, len(idx))
		}
		r, s := idx[0], idx[1]
		if r < 0 || r >= p.Residents || s < 0 || s >= p.TotalShifts() {
			return cpmodel.BoolVar{}, fmt.Errorf("变量 %s[%d,%d] 越界", kind, r, s)
		}
		if kind == KindAssignment {
			return sp.x[r][s], nil
		}
		return sp.y[r][s], nil
	case KindDayWorked:
		if len(idx) != 3 {
			return cpmodel.BoolVar{}, fmt.Errorf("变量 %s 需要 3 个下标, got %d", kind, len(idx))
		}
		r, w, d := idx[0], idx[1], idx[2]
		if r < 0 || r >= p.Residents || w < 0 || w >= p.Weeks || d < 0 || d >= model.DaysPerWeek {
			return cpmodel.BoolVar{}, fmt.Errorf("变量 %s[%d,%d,%d] 越界", kind, r, w, d)
		}
		return sp.z[r][w][d], nil
	default:
		return cpmodel.BoolVar{}, fmt.Errorf("未知变量种类 %q", kind)
	}
}

// Assignment 从求解结果中提取 x 的取值
func (sp *Space) Assignment(values []bool) [][]bool {
	out := make([][]bool, sp.params.Residents)
	for r := range out {
		out[r] = make([]bool, len(sp.x[r]))
		for s, v := range sp.x[r] {
			idx := int(v.Index())
			out[r][s] = idx < len(values) && values[idx]
		}
	}
	return out
}

// AddHint 把排班矩阵 x 连同由它推出的 y、z 作为建议解写入构建器
//
// y 只在有完整前瞻窗口的起点上取连班指示值，其余位置取 false。
func (sp *Space) AddHint(b *cpmodel.Builder, x [][]bool) {
	p := sp.params
	shifts := p.TotalShifts()
	lookahead := model.RunLength + model.RestLength - 1

	for r := 0; r < p.Residents; r++ {
		for s := 0; s < shifts; s++ {
			b.AddHint(sp.x[r][s], x[r][s])
			run := s < shifts-lookahead
			for k := 0; run && k < model.RunLength; k++ {
				run = x[r][s+k]
			}
			b.AddHint(sp.y[r][s], run)
		}
		for w := 0; w < p.Weeks; w++ {
			for d := 0; d < model.DaysPerWeek; d++ {
				worked := false
				for slot := 0; slot < model.ShiftsPerDay; slot++ {
					worked = worked || x[r][model.ShiftOf(w, d, slot)]
				}
				b.AddHint(sp.z[r][w][d], worked)
			}
		}
	}
}

// AddWeekNeighborhoods 按相邻两周划分 x 的邻域；只有一周时整个周期为一个邻域
func (sp *Space) AddWeekNeighborhoods(b *cpmodel.Builder) {
	p := sp.params
	last := p.Weeks - 2
	if last < 0 {
		last = 0
	}
	for w := 0; w <= last; w++ {
		end := w + 2
		if end > p.Weeks {
			end = p.Weeks
		}
		var vars []cpmodel.BoolVar
		for r := 0; r < p.Residents; r++ {
			vars = append(vars, sp.x[r][w*model.ShiftsPerWeek:end*model.ShiftsPerWeek]...)
		}
		b.AddNeighborhood(fmt.Sprintf("weeks_%d_%d", w, end-1), vars...)
	}
}
