package solver

import (
	"context"
	"fmt"
	"sort"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/logger"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler/objective"
	"github.com/paiban/residency/pkg/validator"
)

// GreedySolver 贪心构造初始排班
//
// 按班次顺序为每个班挑选住院医师：总班次缺口大的优先，其次是希望上此班的人。
// 另外尝试循环轮转模板，住院医师 r 在 (s + offset_r) mod period < on 的班次上班。
// 候选排班都经过冲突检测，返回其中满足偏好最多的一个。
type GreedySolver struct {
	logger    *logger.SchedulerLogger
	maxPeriod int
}

// NewGreedySolver 创建贪心求解器
func NewGreedySolver() *GreedySolver {
	return &GreedySolver{
		logger:    logger.NewSchedulerLogger(),
		maxPeriod: 12,
	}
}

// Name 返回求解器名称
func (s *GreedySolver) Name() string {
	return "GreedySolver"
}

// SetMaxPeriod 设置轮转模板的最大周期
func (s *GreedySolver) SetMaxPeriod(max int) {
	s.maxPeriod = max
}

// Construct 构造满足全部规则的排班，所有候选都不可行时返回 NO_FEASIBLE_SOLUTION
func (s *GreedySolver) Construct(ctx context.Context, p model.Params, prefs model.Preferences) ([][]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(p))
	var (
		best      [][]bool
		bestScore int64 = -1
		source    string
	)
	consider := func(name string, x [][]bool) {
		if x == nil || len(detector.DetectAll(x)) > 0 {
			return
		}
		if score := objective.Evaluate(prefs, x); score > bestScore {
			best, bestScore, source = x, score, name
		}
	}

	consider("greedy", s.fill(p, prefs, true))
	consider("greedy_balanced", s.fill(p, prefs, false))

	for on := 1; on <= model.RunLength; on++ {
		for period := on + 1; period <= s.maxPeriod && period <= p.TotalShifts(); period++ {
			if on == model.RunLength && period < on+model.RestLength {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			for _, offsets := range rotationOffsets(p.Residents, period, on) {
				consider(fmt.Sprintf("rotation_%d_%d", on, period), rotation(p, period, on, offsets))
			}
		}
	}

	if best == nil {
		return nil, errors.NoFeasibleSolution("贪心构造未找到满足全部规则的排班")
	}
	s.logger.WarmStart(source, bestScore)
	return best, nil
}

// greedyState 贪心构造的中间状态
type greedyState struct {
	p      model.Params
	prefs  model.Preferences
	x      [][]bool
	totals []int
	days   [][]int // days[r][w] 第 w 周已上班天数
}

func newGreedyState(p model.Params, prefs model.Preferences) *greedyState {
	g := &greedyState{
		p:      p,
		prefs:  prefs,
		x:      make([][]bool, p.Residents),
		totals: make([]int, p.Residents),
		days:   make([][]int, p.Residents),
	}
	for r := range g.x {
		g.x[r] = make([]bool, p.TotalShifts())
		g.days[r] = make([]int, p.Weeks)
	}
	return g
}

func (g *greedyState) wants(r, s int) bool {
	return g.prefs != nil && g.prefs.Wants(r, s)
}

// workedDay 住院医师 r 在班次 s 所在的天、s 之前是否已上班
func (g *greedyState) workedDay(r, s int) bool {
	for t := model.DayOf(s) * model.ShiftsPerDay; t < s; t++ {
		if g.x[r][t] {
			return true
		}
	}
	return false
}

// allowed 给 r 排班次 s 后不违反总班次上限、连班休息和每周天数
//
// 休息检查比规则更严：周期末尾同样要求连上 3 班后休 2 班，因此也满足末尾边界。
func (g *greedyState) allowed(r, s int) bool {
	row := g.x[r]
	if g.totals[r] >= g.p.MaxTotal {
		return false
	}
	if s >= 3 && row[s-3] && row[s-2] && row[s-1] {
		return false
	}
	if s >= 4 && row[s-4] && row[s-3] && row[s-2] {
		return false
	}
	if !g.workedDay(r, s) && g.days[r][model.WeekOf(s)] >= model.MaxDaysPerWeek {
		return false
	}
	return true
}

// closesRun 给 r 排班次 s 会凑满 3 连班
func (g *greedyState) closesRun(r, s int) bool {
	return s >= 2 && g.x[r][s-1] && g.x[r][s-2]
}

// behind 按剩余班次计算，r 的总班次缺口是否超过 2/5 的上班节奏
func (g *greedyState) behind(r, s int) bool {
	need := g.p.MinTotal - g.totals[r]
	return need*5 > (g.p.TotalShifts()-s)*2
}

func (g *greedyState) assign(r, s int) {
	if !g.workedDay(r, s) {
		g.days[r][model.WeekOf(s)]++
	}
	g.x[r][s] = true
	g.totals[r]++
}

// fill 逐班贪心分配，某个班凑不够人时返回 nil
func (s *GreedySolver) fill(p model.Params, prefs model.Preferences, preferWanted bool) [][]bool {
	g := newGreedyState(p, prefs)
	shifts := p.TotalShifts()

	for shift := 0; shift < shifts; shift++ {
		var candidates []int
		for r := 0; r < p.Residents; r++ {
			if g.allowed(r, shift) {
				candidates = append(candidates, r)
			}
		}
		if len(candidates) < p.MinPerShift {
			return nil
		}

		remaining := float64(shifts - shift)
		sort.SliceStable(candidates, func(i, j int) bool {
			a, b := candidates[i], candidates[j]
			ua := float64(p.MinTotal-g.totals[a]) / remaining
			ub := float64(p.MinTotal-g.totals[b]) / remaining
			if ua != ub {
				return ua > ub
			}
			if preferWanted && g.wants(a, shift) != g.wants(b, shift) {
				return g.wants(a, shift)
			}
			if g.closesRun(a, shift) != g.closesRun(b, shift) {
				return !g.closesRun(a, shift)
			}
			return g.totals[a] < g.totals[b]
		})

		staff := 0
		for _, r := range candidates {
			if staff >= p.MinPerShift {
				break
			}
			g.assign(r, shift)
			staff++
		}

		// 名额还有富余时加派想上此班或进度落后的人
		for _, r := range candidates {
			if staff >= p.MaxPerShift {
				break
			}
			if g.x[r][shift] || g.closesRun(r, shift) || !g.allowed(r, shift) {
				continue
			}
			if g.wants(r, shift) || g.behind(r, shift) {
				g.assign(r, shift)
				staff++
			}
		}
	}
	return g.x
}

// rotationOffsets 返回轮转模板的起点方案：相邻错开 1 个班、按周期均匀错开、按上班段长度错开
func rotationOffsets(residents, period, on int) [][]int {
	var out [][]int
	seen := make(map[string]bool)
	for _, step := range []func(r int) int{
		func(r int) int { return r },
		func(r int) int { return r * period / residents },
		func(r int) int { return r * on },
	} {
		offsets := make([]int, residents)
		for r := range offsets {
			offsets[r] = step(r) % period
		}
		key := fmt.Sprint(offsets)
		if !seen[key] {
			seen[key] = true
			out = append(out, offsets)
		}
	}
	return out
}

// rotation 按模板生成排班
func rotation(p model.Params, period, on int, offsets []int) [][]bool {
	x := make([][]bool, p.Residents)
	for r := range x {
		x[r] = make([]bool, p.TotalShifts())
		for s := range x[r] {
			x[r][s] = (s+offsets[r])%period < on
		}
	}
	return x
}
