// Package solver 提供排班模型求解器
package solver

import (
	"context"
	"time"

	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// Status 求解状态
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"    // 已证明最优
	StatusFeasible   Status = "FEASIBLE"   // 有可行解，未证明最优
	StatusInfeasible Status = "INFEASIBLE" // 已证明无解
	StatusUnknown    Status = "UNKNOWN"    // 超时前未找到可行解
)

// HasSolution 状态是否带有可用的赋值
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Solver 求解器接口
type Solver interface {
	// Solve 求解模型，ctx 的截止时间作为求解时限
	Solve(ctx context.Context, m *cpmodel.Model) (*Response, error)

	// Name 返回求解器名称
	Name() string
}

// Response 求解结果
type Response struct {
	Status    Status        `json:"status"`
	Values    []bool        `json:"-"`
	Objective int64         `json:"objective"`
	WallTime  time.Duration `json:"wall_time"`
	Rounds    int           `json:"rounds"`
}

// Value 返回变量取值，无解时恒为 false
func (r *Response) Value(v cpmodel.BoolVar) bool {
	idx := int(v.Index())
	return idx < len(r.Values) && r.Values[idx]
}
