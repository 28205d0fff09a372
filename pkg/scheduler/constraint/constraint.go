// Package constraint 定义约束族接口和管理器
package constraint

import (
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
	"github.com/paiban/residency/pkg/scheduler/variable"
)

// Type 约束族类型标识
type Type string

const (
	TypeShiftCoverage Type = "shift_coverage" // 每班人数上下限
	TypeTotalWorkload Type = "total_workload" // 每人总班次上下限
	TypeRestPattern   Type = "rest_pattern"   // 连上 3 班后强制休 2 班
	TypeWeeklyDayCap  Type = "weekly_day_cap" // 每周最多工作 6 天
)

// Family 约束族：把一条排班规则编码为一组线性约束
type Family interface {
	// Name 返回约束族名称
	Name() string

	// Type 返回约束族类型
	Type() Type

	// Encode 向模型写入约束，返回写入的约束数量
	// 编码器不判断可行性，无解由求解器报告
	Encode(ctx *Context) int
}

// Context 编码上下文
type Context struct {
	Builder *cpmodel.Builder
	Space   *variable.Space
	Params  model.Params
}

// NewContext 创建编码上下文
func NewContext(b *cpmodel.Builder, sp *variable.Space) *Context {
	return &Context{
		Builder: b,
		Space:   sp,
		Params:  sp.Params(),
	}
}

// FamilyReport 单个约束族的编码统计
type FamilyReport struct {
	Type        Type   `json:"type"`
	Name        string `json:"name"`
	Constraints int    `json:"constraints"`
}

// Report 编码统计
type Report struct {
	Families    []FamilyReport `json:"families"`
	Variables   int            `json:"variables"`
	Constraints int            `json:"constraints"`
}
