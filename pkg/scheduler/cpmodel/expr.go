// Package cpmodel 提供布尔变量上的线性约束模型（求解器边界）
package cpmodel

import (
	"sort"
)

// VarIndex 变量编号，在所属 Builder 内从 0 连续分配
type VarIndex int32

// LinearArgument 可以参与线性表达式的对象（BoolVar 或 *LinearExpr）
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c int64)
}

// Term 线性表达式中的一项
type Term struct {
	Var   VarIndex
	Coeff int64
}

// LinearExpr 线性表达式：Σ coeff·var + constant
type LinearExpr struct {
	terms    []Term
	constant int64
}

// NewLinearExpr 创建空表达式
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant 创建常量表达式
func NewConstant(c int64) *LinearExpr {
	return &LinearExpr{constant: c}
}

// Add 加上一个变量或表达式
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	la.addToLinearExpr(l, 1)
	return l
}

// AddTerm 加上 coeff·la
func (l *LinearExpr) AddTerm(la LinearArgument, coeff int64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddConstant 加上常量
func (l *LinearExpr) AddConstant(c int64) *LinearExpr {
	l.constant += c
	return l
}

// AddSum 加上多个变量之和
func (l *LinearExpr) AddSum(vars ...BoolVar) *LinearExpr {
	for _, v := range vars {
		v.addToLinearExpr(l, 1)
	}
	return l
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c int64) {
	for _, t := range l.terms {
		e.terms = append(e.terms, Term{Var: t.Var, Coeff: t.Coeff * c})
	}
	e.constant += l.constant * c
}

// Constant 返回常量部分
func (l *LinearExpr) Constant() int64 {
	return l.constant
}

// Terms 返回合并同类项、去掉零系数并按变量排序后的项
func (l *LinearExpr) Terms() []Term {
	merged := make(map[VarIndex]int64, len(l.terms))
	for _, t := range l.terms {
		merged[t.Var] += t.Coeff
	}
	out := make([]Term, 0, len(merged))
	for v, c := range merged {
		if c != 0 {
			out = append(out, Term{Var: v, Coeff: c})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Var < out[j].Var })
	return out
}

// Bounds 返回表达式在布尔变量上可取到的最小值和最大值
func (l *LinearExpr) Bounds() (lo, hi int64) {
	lo, hi = l.constant, l.constant
	for _, t := range l.Terms() {
		if t.Coeff > 0 {
			hi += t.Coeff
		} else {
			lo += t.Coeff
		}
	}
	return lo, hi
}

// Evaluate 在给定赋值下计算表达式的值
func (l *LinearExpr) Evaluate(values []bool) int64 {
	v := l.constant
	for _, t := range l.terms {
		if int(t.Var) < len(values) && values[t.Var] {
			v += t.Coeff
		}
	}
	return v
}

// Negated 返回 -l
func (l *LinearExpr) Negated() *LinearExpr {
	return NewLinearExpr().AddTerm(l, -1)
}

// BoolVar 布尔决策变量
type BoolVar struct {
	index VarIndex
}

// Index 返回变量编号
func (b BoolVar) Index() VarIndex {
	return b.index
}

func (b BoolVar) addToLinearExpr(e *LinearExpr, c int64) {
	e.terms = append(e.terms, Term{Var: b.index, Coeff: c})
}
