package solver

import (
	"context"
	"fmt"
	"time"

	gophersat "github.com/crillab/gophersat/solver"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/logger"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
)

// Options 求解选项
type Options struct {
	// TimeLimit 求解时限，0 表示只受 ctx 限制
	TimeLimit time.Duration
	// Limiter 限制同时运行的求解轮数，nil 时使用进程共享的限制器
	Limiter *RoundLimiter
}

// PBSolver 伪布尔求解器
//
// 线性约束逐条转换为 Σ w·lit >= k 形式后交给 gophersat。
// 模型带有可行的建议解时以它为初始解，否则先求任意可行解。
// 之后在各邻域内固定其余变量反复要求 objective > best，邻域都无法改进后
// 对整个模型的目标值做二分，直到上下界重合。
// 每轮求解在独立 goroutine 中运行，截止时间到达时放弃该轮并保留已有的最好解。
// 被放弃的一轮无法中断，会继续占用 Limiter 的名额直到自行结束；
// 被放弃的轮次占满名额时 Solve 直接返回 SOLVER_BUSY。
type PBSolver struct {
	opts   Options
	logger *logger.SchedulerLogger
}

// NewPBSolver 创建伪布尔求解器
func NewPBSolver(opts Options) *PBSolver {
	if opts.Limiter == nil {
		opts.Limiter = DefaultRoundLimiter()
	}
	return &PBSolver{
		opts:   opts,
		logger: logger.NewSchedulerLogger(),
	}
}

// Name 返回求解器名称
func (s *PBSolver) Name() string {
	return "PBSolver"
}

// Limiter 返回求解轮数限制器
func (s *PBSolver) Limiter() *RoundLimiter {
	return s.opts.Limiter
}

// Solve 求解模型
func (s *PBSolver) Solve(ctx context.Context, m *cpmodel.Model) (*Response, error) {
	start := time.Now()
	if s.opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TimeLimit)
		defer cancel()
	}

	resp, err := s.solve(ctx, m)
	if err != nil {
		return nil, err
	}
	resp.WallTime = time.Since(start)

	switch resp.Status {
	case StatusInfeasible:
		s.logger.Infeasible(resp.WallTime)
	case StatusUnknown:
		s.logger.Timeout(resp.WallTime)
	}
	return resp, nil
}

// search 一次求解过程中的搜索状态，目标统一按最大化处理
type search struct {
	m       *cpmodel.Model
	base    []gophersat.PBConstr
	target  *cpmodel.LinearExpr
	best    []bool
	lo, hi  int64
	rounds  int
	stopped bool // 截止时间已到
}

func (s *PBSolver) solve(ctx context.Context, m *cpmodel.Model) (*Response, error) {
	resp := &Response{Status: StatusUnknown}

	if limiter := s.opts.Limiter; limiter.Exhausted() {
		s.logger.RoundsExhausted(limiter.InFlight())
		return nil, errors.SolverBusy(fmt.Sprintf("%d 轮被放弃的求解仍在运行，暂不接受新的求解", limiter.Abandoned()))
	}

	base, ok := translate(m.Constraints())
	if !ok {
		resp.Status = StatusInfeasible
		return resp, nil
	}
	st := &search{m: m, base: base}

	hint := m.Hint()
	if hint != nil && len(m.Check(hint)) == 0 {
		st.best = append([]bool(nil), hint...)
	} else {
		values, status, err := s.round(ctx, base, m.NumVars(), hint)
		st.rounds++
		if err != nil {
			resp.Rounds = st.rounds
			return resp, nil
		}
		resp.Rounds = st.rounds
		if status == gophersat.Unsat {
			resp.Status = StatusInfeasible
			return resp, nil
		}
		if status != gophersat.Sat {
			return resp, nil
		}
		if err := verify(m, values); err != nil {
			return nil, err
		}
		st.best = values
	}

	resp.Values = st.best
	obj := m.Objective()
	if obj == nil {
		resp.Status = StatusOptimal
		resp.Rounds = st.rounds
		return resp, nil
	}

	st.target = obj.Expr
	if obj.Sense == cpmodel.Minimize {
		st.target = obj.Expr.Negated()
	}
	st.lo = st.target.Evaluate(st.best)
	_, st.hi = st.target.Bounds()

	proven, err := s.improve(ctx, st)
	if err != nil {
		return nil, err
	}

	resp.Status = StatusFeasible
	if proven {
		resp.Status = StatusOptimal
	}
	resp.Values = st.best
	resp.Objective = obj.Expr.Evaluate(st.best)
	resp.Rounds = st.rounds
	return resp, nil
}

// improve 先逐个邻域爬升，再对整个模型二分，返回是否已证明最优
func (s *PBSolver) improve(ctx context.Context, st *search) (bool, error) {
	nbs := st.m.Neighborhoods()
	// 只有一个邻域时它就是整个决策空间
	for len(nbs) > 1 {
		before := st.lo
		for i := range nbs {
			if err := s.ascend(ctx, st, nbs[i].Name, st.fixOutside(nbs, i)); err != nil {
				return false, err
			}
			if st.stopped {
				return false, nil
			}
		}
		if st.lo == before || st.lo >= st.hi {
			break
		}
	}
	return s.bisect(ctx, st)
}

// ascend 在固定 fixed 的前提下反复要求目标严格变好，直到无解或停止
func (s *PBSolver) ascend(ctx context.Context, st *search, name string, fixed []gophersat.PBConstr) error {
	for st.lo < st.hi {
		bound, ok := translateOne(st.target.Terms(), st.lo+1-st.target.Constant())
		if !ok {
			return nil
		}
		values, status, err := s.round(ctx, st.with(fixed, bound), st.m.NumVars(), st.best)
		st.rounds++
		if err != nil {
			st.stopped = true
			return nil
		}
		if status != gophersat.Sat {
			return nil
		}
		if err := verify(st.m, values); err != nil {
			return err
		}
		if !st.accept(values) {
			return nil
		}
		s.logger.Improved(name, st.lo)
	}
	return nil
}

// bisect 对整个模型的目标值二分：每轮追加 objective >= mid 重新求解
func (s *PBSolver) bisect(ctx context.Context, st *search) (bool, error) {
	for st.lo < st.hi {
		mid := st.lo + (st.hi-st.lo+1)/2

		bound, ok := translateOne(st.target.Terms(), mid-st.target.Constant())
		if !ok {
			st.hi = mid - 1
			continue
		}
		values, status, err := s.round(ctx, st.with(nil, bound), st.m.NumVars(), st.best)
		st.rounds++
		if err != nil {
			st.stopped = true
			return false, nil
		}
		if status != gophersat.Sat {
			st.hi = mid - 1
			continue
		}
		if err := verify(st.m, values); err != nil {
			return false, err
		}
		st.accept(values)
	}
	return true, nil
}

// accept 目标严格变好时替换当前最好解
func (st *search) accept(values []bool) bool {
	v := st.target.Evaluate(values)
	if v <= st.lo {
		return false
	}
	st.best, st.lo = values, v
	return true
}

// with 拼出一轮求解的约束：基础约束、固定取值和目标下界
func (st *search) with(fixed []gophersat.PBConstr, bound *gophersat.PBConstr) []gophersat.PBConstr {
	out := make([]gophersat.PBConstr, 0, len(st.base)+len(fixed)+1)
	out = append(out, st.base...)
	out = append(out, fixed...)
	if bound != nil {
		out = append(out, *bound)
	}
	return out
}

// fixOutside 把其他邻域中不属于邻域 keep 的变量固定为当前最好解的取值
func (st *search) fixOutside(nbs []cpmodel.Neighborhood, keep int) []gophersat.PBConstr {
	n := st.m.NumVars()
	free := make([]bool, n)
	for _, v := range nbs[keep].Vars {
		free[v] = true
	}
	done := make([]bool, n)
	var fixed []gophersat.PBConstr
	for i, nb := range nbs {
		if i == keep {
			continue
		}
		for _, v := range nb.Vars {
			if free[v] || done[v] {
				continue
			}
			done[v] = true
			lit := int(v) + 1
			if !st.best[v] {
				lit = -lit
			}
			fixed = append(fixed, gophersat.PropClause(lit))
		}
	}
	return fixed
}

type roundResult struct {
	status gophersat.Status
	model  []bool
}

// round 在截止时间内求解一轮，phase 不为 nil 时作为初始决策极性
func (s *PBSolver) round(ctx context.Context, constrs []gophersat.PBConstr, numVars int, phase []bool) ([]bool, gophersat.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, gophersat.Indet, err
	}

	// 没有约束时全 false 即为可行解
	if len(constrs) == 0 {
		return make([]bool, numVars), gophersat.Sat, nil
	}

	if err := s.opts.Limiter.Acquire(ctx); err != nil {
		return nil, gophersat.Indet, err
	}
	t := &ticket{limiter: s.opts.Limiter}

	// gophersat 解析时会原地重排权重，每轮使用独立副本
	owned := clonePB(constrs)
	ch := make(chan roundResult, 1)
	go func() {
		defer t.finish()
		problem := gophersat.ParsePBConstrs(owned)
		setPhase(problem, phase)
		sat := gophersat.New(problem)
		res := roundResult{status: sat.Solve()}
		if res.status == gophersat.Sat {
			res.model = sat.Model()
		}
		ch <- res
	}()

	select {
	case <-ctx.Done():
		t.abandon()
		return nil, gophersat.Indet, ctx.Err()
	case res := <-ch:
		if res.status != gophersat.Sat {
			return nil, res.status, nil
		}
		// gophersat 只返回出现在约束中的变量，其余取 false
		values := make([]bool, numVars)
		copy(values, res.model)
		return values, res.status, nil
	}
}

// setPhase 借助代价函数设定初始决策极性
//
// gophersat 在每次回溯后把代价函数中的文字重置为假，
// 因此建议为真的变量放入其否定文字，建议为假的放入正文字。
func setPhase(problem *gophersat.Problem, phase []bool) {
	if phase == nil || problem.Status == gophersat.Unsat {
		return
	}
	n := problem.NbVars
	if n > len(phase) {
		n = len(phase)
	}
	lits := make([]gophersat.Lit, n)
	for v := 0; v < n; v++ {
		lits[v] = gophersat.Var(v).SignedLit(phase[v])
	}
	problem.SetCostFunc(lits, nil)
}

func clonePB(constrs []gophersat.PBConstr) []gophersat.PBConstr {
	out := make([]gophersat.PBConstr, len(constrs))
	for i, c := range constrs {
		out[i] = gophersat.PBConstr{
			Lits:    append([]int(nil), c.Lits...),
			AtLeast: c.AtLeast,
		}
		if c.Weights != nil {
			out[i].Weights = append([]int(nil), c.Weights...)
		}
	}
	return out
}

// translate 把全部线性约束转换为伪布尔约束，遇到不可能满足的约束时返回 false
func translate(constraints []cpmodel.LinearConstraint) ([]gophersat.PBConstr, bool) {
	out := make([]gophersat.PBConstr, 0, len(constraints))
	for _, c := range constraints {
		if c.Lb != cpmodel.MinBound {
			pb, ok := translateOne(c.Terms, c.Lb)
			if !ok {
				return nil, false
			}
			if pb != nil {
				out = append(out, *pb)
			}
		}
		if c.Ub != cpmodel.MaxBound {
			negated := make([]cpmodel.Term, len(c.Terms))
			for i, t := range c.Terms {
				negated[i] = cpmodel.Term{Var: t.Var, Coeff: -t.Coeff}
			}
			pb, ok := translateOne(negated, -c.Ub)
			if !ok {
				return nil, false
			}
			if pb != nil {
				out = append(out, *pb)
			}
		}
	}
	return out, true
}

// translateOne 把 Σ coeff·x >= k 转换为正系数形式
//
// 负系数项 c·x 改写为 c + |c|·¬x，k 相应加上 |c|。
// 恒成立时返回 nil，不可能成立时返回 false。
func translateOne(terms []cpmodel.Term, k int64) (*gophersat.PBConstr, bool) {
	lits := make([]int, 0, len(terms))
	weights := make([]int64, 0, len(terms))
	for _, t := range terms {
		lit := int(t.Var) + 1
		w := t.Coeff
		if w < 0 {
			lit = -lit
			w = -w
			k += w
		}
		if w == 0 {
			continue
		}
		lits = append(lits, lit)
		weights = append(weights, w)
	}

	if k <= 0 {
		return nil, true
	}
	var sum int64
	for _, w := range weights {
		sum += w
	}
	if sum < k {
		return nil, false
	}

	// 超过 k 的系数与 k 等价
	ws := make([]int, len(weights))
	for i, w := range weights {
		if w > k {
			w = k
		}
		ws[i] = int(w)
	}
	pb := gophersat.GtEq(lits, ws, int(k))
	return &pb, true
}

// verify 校验求解器给出的赋值
func verify(m *cpmodel.Model, values []bool) error {
	violated := m.Check(values)
	if len(violated) == 0 {
		return nil
	}
	c := m.Constraints()[violated[0]]
	return errors.New(errors.CodeInternal, "求解器返回的赋值违反约束").
		WithDetails(fmt.Sprintf("%s 等 %d 条约束", c.Name, len(violated)))
}
