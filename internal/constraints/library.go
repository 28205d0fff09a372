// Package constraints 描述排班引擎内置的约束族，供 API 展示
package constraints

import (
	"strconv"

	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/constraint"
)

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        constraint.Type   `json:"type"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Variables   []string          `json:"variables"` // 用到的决策变量
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

// GetLibrary 获取完整的约束库
func GetLibrary() []ConstraintDefinition {
	return []ConstraintDefinition{
		{
			Name:        "shift_coverage",
			DisplayName: "班次人数",
			Type:        constraint.TypeShiftCoverage,
			Category:    "覆盖",
			Description: "每个班次在岗人数介于 min_per_shift 与 max_per_shift 之间。",
			Variables:   []string{"x"},
			Params: []ConstraintParam{
				{Name: "min_per_shift", Type: "int", Description: "每班最少人数", Default: "1", Min: "0"},
				{Name: "max_per_shift", Type: "int", Description: "每班最多人数", Default: "2", Min: "0"},
			},
		},
		{
			Name:        "total_workload",
			DisplayName: "总工作量",
			Type:        constraint.TypeTotalWorkload,
			Category:    "工作量",
			Description: "每名住院医师在整个周期内的班次数介于 min_total 与 max_total 之间。",
			Variables:   []string{"x"},
			Params: []ConstraintParam{
				{Name: "min_total", Type: "int", Description: "每人最少班次", Default: "30", Min: "0"},
				{Name: "max_total", Type: "int", Description: "每人最多班次", Default: "40", Min: "0"},
			},
		},
		{
			Name:        "rest_pattern",
			DisplayName: "连班休息",
			Type:        constraint.TypeRestPattern,
			Category:    "休息",
			Description: "连续工作 3 个班后必须休息 2 个班；周期最后 4 个班不能全上。",
			Variables:   []string{"x", "y"},
			Params: []ConstraintParam{
				{Name: "big_m", Type: "int", Description: "指示变量线性化常数，0 表示自动推导", Default: "0", Min: "3"},
			},
		},
		{
			Name:        "weekly_day_cap",
			DisplayName: "每周工作天数",
			Type:        constraint.TypeWeeklyDayCap,
			Category:    "休息",
			Description: "每名住院医师每周最多工作 6 天，任意一个班即算作当天上班。",
			Variables:   []string{"x", "z"},
			Params: []ConstraintParam{
				{Name: "max_days", Type: "int", Description: "每周最多工作天数", Default: strconv.Itoa(model.MaxDaysPerWeek)},
			},
		},
	}
}

// GetByType 按约束族类型查找
func GetByType(t constraint.Type) (ConstraintDefinition, bool) {
	for _, def := range GetLibrary() {
		if def.Type == t {
			return def, true
		}
	}
	return ConstraintDefinition{}, false
}
