// Package scheduler 串联排班流程：参数校验、建模、初始解构造、求解、校验和结果映射
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/logger"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/constraint/builtin"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
	"github.com/paiban/residency/pkg/scheduler/objective"
	"github.com/paiban/residency/pkg/scheduler/optimizer"
	"github.com/paiban/residency/pkg/scheduler/solver"
	"github.com/paiban/residency/pkg/scheduler/variable"
	"github.com/paiban/residency/pkg/stats"
	"github.com/paiban/residency/pkg/validator"
)

// Cache 求解结果缓存，未命中时返回 nil, nil
type Cache interface {
	Get(ctx context.Context, key string) (*Outcome, error)
	Set(ctx context.Context, key string, outcome *Outcome) error
}

// Outcome 一次排班求解的结果
type Outcome struct {
	RunID    uuid.UUID          `json:"run_id"`
	Status   solver.Status      `json:"status"`
	Params   model.Params       `json:"params"`
	Schedule *stats.Schedule    `json:"schedule,omitempty"` // 仅在 OPTIMAL/FEASIBLE 时非空
	Report   *constraint.Report `json:"report"`
	WallTime time.Duration      `json:"wall_time"`
	Rounds   int                `json:"rounds"`
	CacheHit bool               `json:"cache_hit"`
}

// Err 把无解和超时转换为错误
func (o *Outcome) Err() error {
	switch o.Status {
	case solver.StatusInfeasible:
		return errors.NoFeasibleSolution("约束之间相互矛盾，不存在满足全部规则的排班")
	case solver.StatusUnknown:
		return errors.SolverTimeout(fmt.Sprintf("%s 内未找到可行解", o.WallTime.Round(time.Millisecond)))
	default:
		return nil
	}
}

// Option 引擎选项
type Option func(*Engine)

// WithBigM 指定大 M 常数，0 表示使用推导值
func WithBigM(bigM int64) Option {
	return func(e *Engine) { e.bigM = bigM }
}

// WithSolver 替换求解器
func WithSolver(s solver.Solver) Option {
	return func(e *Engine) { e.solver = s }
}

// WithTimeLimit 设置求解时限
func WithTimeLimit(d time.Duration) Option {
	return func(e *Engine) { e.timeLimit = d }
}

// WithWarmStart 是否先构造初始排班交给求解器，默认开启
func WithWarmStart(enabled bool) Option {
	return func(e *Engine) { e.warmStart = enabled }
}

// WithCache 设置结果缓存
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// Engine 排班引擎，可并发调用，每次 Run 使用独立的模型构建器
type Engine struct {
	solver    solver.Solver
	greedy    *solver.GreedySolver
	cache     Cache
	bigM      int64
	timeLimit time.Duration
	warmStart bool
	logger    *logger.SchedulerLogger
}

// NewEngine 创建排班引擎
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		greedy:    solver.NewGreedySolver(),
		warmStart: true,
		logger:    logger.NewSchedulerLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.solver == nil {
		e.solver = solver.NewPBSolver(solver.Options{})
	}
	return e
}

// Run 校验参数、构建模型并求解
//
// 参数错误在建模前返回 CONFIGURATION_ERROR；无解和超时通过 Outcome.Status 报告。
func (e *Engine) Run(ctx context.Context, p model.Params, prefs model.Preferences) (*Outcome, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.ValidatePreferences(prefs); err != nil {
		return nil, err
	}

	runID := uuid.New()
	log := e.logger.With(runID.String())
	log.StartSolve(p.Residents, p.Weeks, p.TotalShifts())

	key := CacheKey(p, prefs, e.bigM)
	if e.cache != nil {
		cached, err := e.cache.Get(ctx, key)
		if err != nil {
			logger.WithError(err).Str("run_id", runID.String()).Msg("读取结果缓存失败")
		} else if cached != nil {
			// 每次调用都是一次独立的求解记录
			hit := *cached
			hit.RunID = runID
			hit.CacheHit = true
			return &hit, nil
		}
	}

	manager := constraint.NewManager()
	if err := builtin.RegisterDefaultFamilies(manager, builtin.Options{BigM: e.bigM}); err != nil {
		return nil, err
	}

	start := time.Now()
	solveCtx := ctx
	if e.timeLimit > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, e.timeLimit)
		defer cancel()
	}

	b := cpmodel.NewBuilder()
	sp := variable.Build(b, p)
	report := manager.Encode(constraint.NewContext(b, sp))
	objective.Preference(b, sp, prefs)
	sp.AddWeekNeighborhoods(b)
	if e.warmStart {
		if x := e.initialSchedule(solveCtx, log, p, prefs); x != nil {
			sp.AddHint(b, x)
		}
	}

	m, err := b.Model()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "构建模型失败")
	}
	log.ModelBuilt(report.Variables, report.Constraints)

	resp, err := e.solver.Solve(solveCtx, m)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		RunID:    runID,
		Status:   resp.Status,
		Params:   p,
		Report:   report,
		WallTime: time.Since(start),
		Rounds:   resp.Rounds,
	}
	if !resp.Status.HasSolution() {
		return outcome, nil
	}

	x := sp.Assignment(resp.Values)
	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(p))
	if conflicts := detector.DetectAll(x); len(conflicts) > 0 {
		for _, c := range conflicts {
			log.ConstraintViolation(string(c.Type), c.Message)
		}
		return nil, errors.ConstraintViolation(string(conflicts[0].Type), "求解结果未通过校验: "+conflicts[0].Message)
	}

	outcome.Schedule = stats.Map(p, prefs, x)
	log.SolveComplete(string(outcome.Status), outcome.WallTime, outcome.Schedule.Objective, int64(outcome.Schedule.Requests))

	// 非最优解与时限有关，不缓存
	if e.cache != nil && outcome.Status == solver.StatusOptimal {
		if err := e.cache.Set(ctx, key, outcome); err != nil {
			logger.WithError(err).Str("run_id", runID.String()).Msg("写入结果缓存失败")
		}
	}
	return outcome, nil
}

// initialSchedule 贪心构造可行排班并做局部搜索，构造失败时返回 nil
func (e *Engine) initialSchedule(ctx context.Context, log *logger.SchedulerLogger, p model.Params, prefs model.Preferences) [][]bool {
	x, err := e.greedy.Construct(ctx, p, prefs)
	if err != nil {
		return nil
	}

	cfg := optimizer.DefaultOptConfig()
	if deadline, ok := ctx.Deadline(); ok {
		if budget := time.Until(deadline) / 5; budget < cfg.MaxTime {
			cfg.MaxTime = budget
		}
	}
	// ctx 到期时 Optimize 仍返回目前最好的可行排班
	best, _ := optimizer.NewLocalSearchOptimizer(cfg, p, prefs).Optimize(ctx, x)
	log.WarmStart("local_search", best.Score)
	return best.X
}

// CacheKey 由参数、偏好矩阵和大 M 常数计算缓存键
func CacheKey(p model.Params, prefs model.Preferences, bigM int64) string {
	payload, _ := json.Marshal(struct {
		Params model.Params      `json:"params"`
		Prefs  model.Preferences `json:"prefs"`
		BigM   int64             `json:"big_m"`
	}{p, prefs, bigM})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
