package cpmodel

import (
	"fmt"
	"math"
)

// 无界时使用的边界值
const (
	MinBound int64 = math.MinInt64
	MaxBound int64 = math.MaxInt64
)

// Op 比较运算符
type Op string

const (
	OpLE Op = "<="
	OpLT Op = "<"
	OpGE Op = ">="
	OpGT Op = ">"
	OpEQ Op = "=="
)

// Sense 目标方向
type Sense string

const (
	Maximize Sense = "maximize"
	Minimize Sense = "minimize"
)

// LinearConstraint 归一化后的线性约束：Lb <= Σ terms <= Ub
type LinearConstraint struct {
	Name  string
	Terms []Term
	Lb    int64
	Ub    int64
}

// Satisfied 检查赋值是否满足约束
func (c LinearConstraint) Satisfied(values []bool) bool {
	var sum int64
	for _, t := range c.Terms {
		if int(t.Var) < len(values) && values[t.Var] {
			sum += t.Coeff
		}
	}
	return sum >= c.Lb && sum <= c.Ub
}

// Objective 目标函数
type Objective struct {
	Sense Sense
	Expr  *LinearExpr
}

// Constraint 约束句柄，用于命名
type Constraint struct {
	cp    *Builder
	index int
}

// WithName 设置约束名称
func (c Constraint) WithName(name string) Constraint {
	c.cp.constraints[c.index].Name = name
	return c
}

// Index 返回约束编号
func (c Constraint) Index() int {
	return c.index
}

// Neighborhood 一组可以一起重新求解的决策变量
type Neighborhood struct {
	Name string
	Vars []VarIndex
}

// Builder 模型构建器，由单个构建阶段独占使用，非并发安全
type Builder struct {
	names         []string
	constraints   []LinearConstraint
	objective     *Objective
	hints         map[VarIndex]bool
	neighborhoods []Neighborhood
	err           error
}

// NewBuilder 创建模型构建器
func NewBuilder() *Builder {
	return &Builder{}
}

// NewBoolVar 注册一个布尔变量
func (cp *Builder) NewBoolVar(name string) BoolVar {
	cp.names = append(cp.names, name)
	return BoolVar{index: VarIndex(len(cp.names) - 1)}
}

// NumVars 返回变量数量
func (cp *Builder) NumVars() int {
	return len(cp.names)
}

// NumConstraints 返回约束数量
func (cp *Builder) NumConstraints() int {
	return len(cp.constraints)
}

// AddLinearConstraint 添加 lb <= expr <= ub
func (cp *Builder) AddLinearConstraint(expr LinearArgument, lb, ub int64) Constraint {
	e := NewLinearExpr().Add(expr)
	c := e.Constant()
	if lb != MinBound {
		lb -= c
	}
	if ub != MaxBound {
		ub -= c
	}
	cp.constraints = append(cp.constraints, LinearConstraint{
		Terms: e.Terms(),
		Lb:    lb,
		Ub:    ub,
	})
	return Constraint{cp: cp, index: len(cp.constraints) - 1}
}

// AddLinear 添加 expr op bound
func (cp *Builder) AddLinear(expr LinearArgument, op Op, bound int64) Constraint {
	switch op {
	case OpLE:
		return cp.AddLinearConstraint(expr, MinBound, bound)
	case OpLT:
		return cp.AddLinearConstraint(expr, MinBound, bound-1)
	case OpGE:
		return cp.AddLinearConstraint(expr, bound, MaxBound)
	case OpGT:
		return cp.AddLinearConstraint(expr, bound+1, MaxBound)
	case OpEQ:
		return cp.AddLinearConstraint(expr, bound, bound)
	default:
		if cp.err == nil {
			cp.err = fmt.Errorf("未知运算符 %q", op)
		}
		return cp.AddLinearConstraint(expr, MinBound, MaxBound)
	}
}

func difference(lhs, rhs LinearArgument) *LinearExpr {
	return NewLinearExpr().Add(lhs).AddTerm(rhs, -1)
}

// AddLessOrEqual 添加 lhs <= rhs
func (cp *Builder) AddLessOrEqual(lhs, rhs LinearArgument) Constraint {
	return cp.AddLinear(difference(lhs, rhs), OpLE, 0)
}

// AddLessThan 添加 lhs < rhs
func (cp *Builder) AddLessThan(lhs, rhs LinearArgument) Constraint {
	return cp.AddLinear(difference(lhs, rhs), OpLT, 0)
}

// AddGreaterOrEqual 添加 lhs >= rhs
func (cp *Builder) AddGreaterOrEqual(lhs, rhs LinearArgument) Constraint {
	return cp.AddLinear(difference(lhs, rhs), OpGE, 0)
}

// AddEquality 添加 lhs == rhs
func (cp *Builder) AddEquality(lhs, rhs LinearArgument) Constraint {
	return cp.AddLinear(difference(lhs, rhs), OpEQ, 0)
}

// Maximize 设置最大化目标
func (cp *Builder) Maximize(obj LinearArgument) {
	cp.objective = &Objective{Sense: Maximize, Expr: NewLinearExpr().Add(obj)}
}

// Minimize 设置最小化目标
func (cp *Builder) Minimize(obj LinearArgument) {
	cp.objective = &Objective{Sense: Minimize, Expr: NewLinearExpr().Add(obj)}
}

// AddHint 为变量提供建议取值，求解器优先沿建议取值搜索
func (cp *Builder) AddHint(v BoolVar, value bool) {
	if cp.hints == nil {
		cp.hints = make(map[VarIndex]bool)
	}
	cp.hints[v.index] = value
}

// ClearHints 清除全部建议取值
func (cp *Builder) ClearHints() {
	cp.hints = nil
}

// AddNeighborhood 声明一个邻域。求解器改进解时固定其他邻域中的变量，只重新求解这一组
func (cp *Builder) AddNeighborhood(name string, vars ...BoolVar) {
	idx := make([]VarIndex, len(vars))
	for i, v := range vars {
		idx[i] = v.index
	}
	cp.neighborhoods = append(cp.neighborhoods, Neighborhood{Name: name, Vars: idx})
}

// Model 生成不可变模型，之后对 Builder 的修改不会影响返回值
func (cp *Builder) Model() (*Model, error) {
	if cp.err != nil {
		return nil, cp.err
	}
	n := VarIndex(len(cp.names))
	constraints := make([]LinearConstraint, len(cp.constraints))
	for i, c := range cp.constraints {
		for _, t := range c.Terms {
			if t.Var < 0 || t.Var >= n {
				return nil, fmt.Errorf("约束 #%d 引用了不存在的变量 %d", i, t.Var)
			}
		}
		c.Terms = append([]Term(nil), c.Terms...)
		constraints[i] = c
	}

	m := &Model{
		names:       append([]string(nil), cp.names...),
		constraints: constraints,
	}
	if len(cp.hints) > 0 {
		m.hint = make([]bool, n)
		for v, val := range cp.hints {
			if v < 0 || v >= n {
				return nil, fmt.Errorf("建议取值引用了不存在的变量 %d", v)
			}
			m.hint[v] = val
		}
	}
	for _, nb := range cp.neighborhoods {
		for _, v := range nb.Vars {
			if v < 0 || v >= n {
				return nil, fmt.Errorf("邻域 %s 引用了不存在的变量 %d", nb.Name, v)
			}
		}
		m.neighborhoods = append(m.neighborhoods, Neighborhood{Name: nb.Name, Vars: append([]VarIndex(nil), nb.Vars...)})
	}
	if cp.objective != nil {
		m.objective = &Objective{
			Sense: cp.objective.Sense,
			Expr:  NewLinearExpr().Add(cp.objective.Expr),
		}
	}
	return m, nil
}

// Model 求解器输入：变量、约束和目标，以及可选的建议解和邻域划分
type Model struct {
	names         []string
	constraints   []LinearConstraint
	objective     *Objective
	hint          []bool
	neighborhoods []Neighborhood
}

// NumVars 返回变量数量
func (m *Model) NumVars() int {
	return len(m.names)
}

// VarName 返回变量名称
func (m *Model) VarName(v VarIndex) string {
	return m.names[v]
}

// Constraints 返回所有约束
func (m *Model) Constraints() []LinearConstraint {
	return m.constraints
}

// Objective 返回目标，未设置时为 nil
func (m *Model) Objective() *Objective {
	return m.objective
}

// Hint 返回建议解，没有时为 nil。未给出建议的变量取 false
func (m *Model) Hint() []bool {
	return m.hint
}

// Neighborhoods 返回声明的邻域
func (m *Model) Neighborhoods() []Neighborhood {
	return m.neighborhoods
}

// Check 返回赋值违反的约束编号
func (m *Model) Check(values []bool) []int {
	var violated []int
	for i, c := range m.constraints {
		if !c.Satisfied(values) {
			violated = append(violated, i)
		}
	}
	return violated
}
