// Package builtin 提供内置约束族实现
package builtin

import (
	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// BaseFamily 约束族基类
type BaseFamily struct {
	name string
	typ  constraint.Type
}

// NewBaseFamily 创建基础约束族
func NewBaseFamily(name string, typ constraint.Type) *BaseFamily {
	return &BaseFamily{name: name, typ: typ}
}

// Name 返回约束族名称
func (f *BaseFamily) Name() string { return f.name }

// Type 返回约束族类型
func (f *BaseFamily) Type() constraint.Type { return f.typ }

// window 返回若干变量之和
func window(vars ...cpmodel.BoolVar) *cpmodel.LinearExpr {
	return cpmodel.NewLinearExpr().AddSum(vars...)
}
