package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/cpmodel"
	"github.com/paiban/residency/pkg/scheduler/objective"
	"github.com/paiban/residency/pkg/scheduler/solver"
	"github.com/paiban/residency/pkg/validator"
)

// stubSolver 返回预设结果
type stubSolver struct {
	status solver.Status
	fill   bool
}

func (s *stubSolver) Name() string { return "stub" }

func (s *stubSolver) Solve(_ context.Context, m *cpmodel.Model) (*solver.Response, error) {
	resp := &solver.Response{Status: s.status}
	if s.status.HasSolution() {
		resp.Values = make([]bool, m.NumVars())
		for i := range resp.Values {
			resp.Values[i] = s.fill
		}
	}
	return resp, nil
}

// memoryCache 内存缓存
type memoryCache struct {
	mu   sync.Mutex
	data map[string]*Outcome
}

func (c *memoryCache) Get(_ context.Context, key string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if o, ok := c.data[key]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, nil
}

func (c *memoryCache) Set(_ context.Context, key string, o *Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = o
	return nil
}

func singleCoverage(residents int) model.Params {
	return model.Params{Residents: residents, Weeks: 1, MinPerShift: 1, MaxPerShift: 1, MinTotal: 5, MaxTotal: 7}
}

func TestEngine_Run_SingleCoverageWeek(t *testing.T) {
	p := singleCoverage(3)
	prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), model.DefaultSeed)

	outcome, err := NewEngine().Run(context.Background(), p, prefs)
	require.NoError(t, err)
	require.NoError(t, outcome.Err())
	require.Equal(t, solver.StatusOptimal, outcome.Status)
	require.NotNil(t, outcome.Schedule)

	for _, rs := range outcome.Schedule.Residents {
		assert.Equal(t, 7, rs.Shifts, "resident %d", rs.Resident)
	}
	x := outcome.Schedule.Assignment()
	assert.Empty(t, validator.NewConflictDetector(validator.DefaultDetectorConfig(p)).DetectAll(x))
	assert.Equal(t, objective.Evaluate(prefs, x), outcome.Schedule.Objective)
	assert.NotEqual(t, uuid.Nil, outcome.RunID)
}

func TestEngine_Run_Infeasible(t *testing.T) {
	// 21 个班每班 1 人，2 人每人最多 7 个班
	p := singleCoverage(2)
	prefs := model.NewPreferences(p.Residents, p.TotalShifts())

	outcome, err := NewEngine().Run(context.Background(), p, prefs)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusInfeasible, outcome.Status)
	assert.Nil(t, outcome.Schedule)
	assert.True(t, errors.Is(outcome.Err(), errors.CodeNoFeasibleSolution))
}

func TestEngine_Run_ConfigurationError(t *testing.T) {
	tests := []struct {
		name   string
		params model.Params
		prefs  func(p model.Params) model.Preferences
		opts   []Option
	}{
		{
			name:   "没有住院医师",
			params: model.Params{Residents: 0, Weeks: 1},
		},
		{
			name:   "每班最少人数超过住院医师数",
			params: model.Params{Residents: 1, Weeks: 1, MinPerShift: 2, MaxPerShift: 2, MinTotal: 0, MaxTotal: 21},
		},
		{
			name:   "偏好矩阵行数不符",
			params: singleCoverage(3),
			prefs: func(p model.Params) model.Preferences {
				return model.NewPreferences(p.Residents-1, p.TotalShifts())
			},
		},
		{
			name:   "大 M 过小",
			params: singleCoverage(3),
			opts:   []Option{WithBigM(2)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prefs model.Preferences
			if tt.prefs != nil {
				prefs = tt.prefs(tt.params)
			} else if tt.params.Residents > 0 {
				prefs = model.NewPreferences(tt.params.Residents, tt.params.TotalShifts())
			}

			outcome, err := NewEngine(tt.opts...).Run(context.Background(), tt.params, prefs)
			require.Error(t, err)
			assert.Nil(t, outcome)
			assert.True(t, errors.Is(err, errors.CodeConfiguration), "got %v", err)
		})
	}
}

func TestEngine_Run_Timeout(t *testing.T) {
	p := singleCoverage(3)
	prefs := model.NewPreferences(p.Residents, p.TotalShifts())

	outcome, err := NewEngine(WithSolver(&stubSolver{status: solver.StatusUnknown})).Run(context.Background(), p, prefs)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusUnknown, outcome.Status)
	assert.Nil(t, outcome.Schedule)
	assert.True(t, errors.Is(outcome.Err(), errors.CodeSolverTimeout))

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	outcome, err = NewEngine().Run(expired, p, prefs)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusUnknown, outcome.Status)
}

func TestEngine_Run_RejectsInvalidSolution(t *testing.T) {
	p := singleCoverage(3)
	prefs := model.NewPreferences(p.Residents, p.TotalShifts())

	// 全部上班违反覆盖和休息规则
	outcome, err := NewEngine(WithSolver(&stubSolver{status: solver.StatusOptimal, fill: true})).Run(context.Background(), p, prefs)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, errors.Is(err, errors.CodeConstraintViolation))
}

func TestEngine_Run_Idempotent(t *testing.T) {
	p := model.Params{Residents: 2, Weeks: 1, MinPerShift: 0, MaxPerShift: 1, MinTotal: 3, MaxTotal: 9}
	prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), model.DefaultSeed)
	engine := NewEngine()

	first, err := engine.Run(context.Background(), p, prefs)
	require.NoError(t, err)
	second, err := engine.Run(context.Background(), p, prefs)
	require.NoError(t, err)

	require.Equal(t, solver.StatusOptimal, first.Status)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Schedule.Objective, second.Schedule.Objective)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestEngine_Run_LegacyBigM(t *testing.T) {
	p := model.Params{Residents: 2, Weeks: 1, MinPerShift: 0, MaxPerShift: 1, MinTotal: 3, MaxTotal: 9}
	prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), model.DefaultSeed)

	derived, err := NewEngine().Run(context.Background(), p, prefs)
	require.NoError(t, err)
	legacy, err := NewEngine(WithBigM(100)).Run(context.Background(), p, prefs)
	require.NoError(t, err)

	// 两种常数描述同一可行域
	assert.Equal(t, derived.Schedule.Objective, legacy.Schedule.Objective)
}

func TestEngine_Run_Cache(t *testing.T) {
	p := singleCoverage(3)
	prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), 1)
	cache := &memoryCache{data: make(map[string]*Outcome)}
	engine := NewEngine(WithCache(cache))

	first, err := engine.Run(context.Background(), p, prefs)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := engine.Run(context.Background(), p, prefs)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.NotEqual(t, first.RunID, second.RunID, "命中缓存也是一次新的求解记录")
	assert.Equal(t, first.Schedule, second.Schedule)

	// 缓存中的记录不受命中影响
	third, err := engine.Run(context.Background(), p, prefs)
	require.NoError(t, err)
	assert.NotEqual(t, second.RunID, third.RunID)
	assert.False(t, cache.data[CacheKey(p, prefs, 0)].CacheHit)
}

func TestCacheKey(t *testing.T) {
	p := singleCoverage(3)
	a := model.RandomPreferences(p.Residents, p.TotalShifts(), 1)
	b := model.RandomPreferences(p.Residents, p.TotalShifts(), 2)

	assert.Equal(t, CacheKey(p, a, 0), CacheKey(p, a, 0))
	assert.NotEqual(t, CacheKey(p, a, 0), CacheKey(p, b, 0))
	assert.NotEqual(t, CacheKey(p, a, 0), CacheKey(p, a, 100))
	assert.Len(t, CacheKey(p, a, 0), 64)
}

func TestEngine_Run_DefaultParams(t *testing.T) {
	p := model.DefaultParams()
	prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), model.DefaultSeed)

	// 独立的限制器，不受其他用例遗留的求解轮次影响
	pb := solver.NewPBSolver(solver.Options{Limiter: solver.NewRoundLimiter(1)})
	outcome, err := NewEngine(WithSolver(pb), WithTimeLimit(5*time.Second)).Run(context.Background(), p, prefs)
	require.NoError(t, err)
	require.True(t, outcome.Status.HasSolution(), "status %s", outcome.Status)

	for _, rs := range outcome.Schedule.Residents {
		assert.GreaterOrEqual(t, rs.Shifts, p.MinTotal)
		assert.LessOrEqual(t, rs.Shifts, p.MaxTotal)
	}
	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(p))
	assert.Empty(t, detector.DetectAll(outcome.Schedule.Assignment()))
	assert.Equal(t, objective.Evaluate(prefs, outcome.Schedule.Assignment()), outcome.Schedule.Objective)
}

func TestEngine_Run_WarmStart(t *testing.T) {
	p := model.DefaultParams()
	prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), model.DefaultSeed)

	// 求解器拿不到任何一轮的时间，只能返回初始解
	expired := &expiringSolver{inner: solver.NewPBSolver(solver.Options{Limiter: solver.NewRoundLimiter(1)})}
	outcome, err := NewEngine(WithSolver(expired)).Run(context.Background(), p, prefs)
	require.NoError(t, err)
	require.Equal(t, solver.StatusFeasible, outcome.Status)

	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(p))
	assert.Empty(t, detector.DetectAll(outcome.Schedule.Assignment()))

	// 关闭初始解后同样的时间内给不出排班
	outcome, err = NewEngine(WithSolver(expired), WithWarmStart(false)).Run(context.Background(), p, prefs)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusUnknown, outcome.Status)
	assert.Nil(t, outcome.Schedule)
}

// expiringSolver 在已到期的 ctx 下调用内部求解器
type expiringSolver struct {
	inner solver.Solver
}

func (s *expiringSolver) Name() string { return s.inner.Name() }

func (s *expiringSolver) Solve(ctx context.Context, m *cpmodel.Model) (*solver.Response, error) {
	expired, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancel()
	return s.inner.Solve(expired, m)
}
