// Package optimizer 在可行排班附近做局部搜索，提高满足的偏好数
package optimizer

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/paiban/residency/pkg/logger"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/validator"
)

// OptimizationConfig 优化配置
type OptimizationConfig struct {
	MaxIterations    int           `json:"max_iterations"`    // 最大迭代次数
	MaxTime          time.Duration `json:"max_time"`          // 最大运行时间
	InitialTemp      float64       `json:"initial_temp"`      // 模拟退火初始温度
	CoolingRate      float64       `json:"cooling_rate"`      // 冷却速率
	TabuSize         int           `json:"tabu_size"`         // 禁忌表大小
	NeighborhoodSize int           `json:"neighborhood_size"` // 每轮生成的邻域解数
	StopOnPlateau    bool          `json:"stop_on_plateau"`   // 平台期停止
	PlateauThreshold int           `json:"plateau_threshold"` // 平台期阈值（无改进迭代次数）
	Seed             int64         `json:"seed"`              // 随机种子，相同输入得到相同结果
}

// DefaultOptConfig 默认优化配置
func DefaultOptConfig() *OptimizationConfig {
	return &OptimizationConfig{
		MaxIterations:    3000,
		MaxTime:          2 * time.Second,
		InitialTemp:      2.0,
		CoolingRate:      0.995,
		TabuSize:         50,
		NeighborhoodSize: 20,
		StopOnPlateau:    true,
		PlateauThreshold: 600,
		Seed:             1,
	}
}

// Solution 可行排班及其满足的偏好数
type Solution struct {
	X     [][]bool
	Score int64
}

// Clone 深拷贝
func (s *Solution) Clone() *Solution {
	x := make([][]bool, len(s.X))
	for r := range s.X {
		x[r] = append([]bool(nil), s.X[r]...)
	}
	return &Solution{X: x, Score: s.Score}
}

// LocalSearchOptimizer 局部搜索优化器：禁忌表加模拟退火，只在可行解之间移动
type LocalSearchOptimizer struct {
	config    *OptimizationConfig
	params    model.Params
	prefs     model.Preferences
	detector  *validator.ConflictDetector
	neighbors *NeighborhoodGenerator
	tabuList  *TabuList
	rng       *rand.Rand
	logger    *logger.SchedulerLogger
}

// NewLocalSearchOptimizer 创建局部搜索优化器
func NewLocalSearchOptimizer(config *OptimizationConfig, p model.Params, prefs model.Preferences) *LocalSearchOptimizer {
	if config == nil {
		config = DefaultOptConfig()
	}
	rng := rand.New(rand.NewSource(config.Seed))
	return &LocalSearchOptimizer{
		config:    config,
		params:    p,
		prefs:     prefs,
		detector:  validator.NewConflictDetector(validator.DefaultDetectorConfig(p)),
		neighbors: NewNeighborhoodGenerator(rng),
		tabuList:  NewTabuList(config.TabuSize),
		rng:       rng,
		logger:    logger.NewSchedulerLogger(),
	}
}

// score 计算满足的偏好数
func (o *LocalSearchOptimizer) score(x [][]bool) int64 {
	var total int64
	for r := range o.prefs {
		for s, want := range o.prefs[r] {
			if x[r][s] {
				total += int64(want)
			}
		}
	}
	return total
}

// Optimize 从可行排班 initial 出发搜索，返回找到的最好排班
//
// ctx 取消时返回目前最好的排班和 ctx 的错误。
func (o *LocalSearchOptimizer) Optimize(ctx context.Context, initial [][]bool) (*Solution, error) {
	start := time.Now()

	current := (&Solution{X: initial}).Clone()
	current.Score = o.score(current.X)
	best := current.Clone()

	temperature := o.config.InitialTemp
	noImprovementCount := 0

	for i := 0; i < o.config.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return best, ctx.Err()
		default:
		}
		if time.Since(start) > o.config.MaxTime {
			break
		}

		neighbor, move := o.bestNeighbor(current, best.Score)
		if neighbor == nil {
			noImprovementCount++
			if o.config.StopOnPlateau && noImprovementCount >= o.config.PlateauThreshold {
				break
			}
			continue
		}

		// 模拟退火接受准则
		delta := float64(neighbor.Score - current.Score)
		if delta >= 0 || o.rng.Float64() < boltzmannProbability(-delta, temperature) {
			current = neighbor
			o.tabuList.Add(hashGrid(current.X))
			if current.Score > best.Score {
				best = current.Clone()
				noImprovementCount = 0
				o.logger.Improved(moveName(move.Type), best.Score)
			} else {
				noImprovementCount++
			}
		} else {
			noImprovementCount++
		}

		if o.config.StopOnPlateau && noImprovementCount >= o.config.PlateauThreshold {
			break
		}
		temperature *= o.config.CoolingRate
	}

	return best, nil
}

// bestNeighbor 生成一批移动，返回其中可行且得分最高的邻域解
//
// 禁忌表中的解只有超过历史最好时才会被选中。
func (o *LocalSearchOptimizer) bestNeighbor(current *Solution, bestScore int64) (*Solution, *Move) {
	var (
		chosen     *Solution
		chosenMove *Move
	)
	for i := 0; i < o.config.NeighborhoodSize; i++ {
		move := o.neighbors.GenerateMove(current.X, o.prefs)
		if move == nil {
			continue
		}
		score := current.Score + move.Delta(o.prefs)
		if chosen != nil && score <= chosen.Score {
			continue
		}

		neighbor := current.Clone()
		move.Apply(neighbor.X)
		if !o.feasible(neighbor.X, move) {
			continue
		}
		neighbor.Score = score
		if o.tabuList.Contains(hashGrid(neighbor.X)) && score <= bestScore {
			continue
		}
		chosen, chosenMove = neighbor, move
	}
	return chosen, chosenMove
}

// feasible 只复查移动涉及的住院医师和班次
func (o *LocalSearchOptimizer) feasible(x [][]bool, move *Move) bool {
	for _, r := range move.Residents() {
		if len(o.detector.DetectResident(r, x[r])) > 0 {
			return false
		}
	}
	for _, s := range move.Shifts() {
		if len(o.detector.DetectShift(x, s)) > 0 {
			return false
		}
	}
	return true
}

func moveName(t MoveType) string {
	switch t {
	case MoveInsert:
		return "insert"
	case MoveRemove:
		return "remove"
	case MoveExchange:
		return "exchange"
	default:
		return "transfer"
	}
}

// hashGrid 计算排班的哈希 (使用FNV-1a算法)
func hashGrid(x [][]bool) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 0, 64)
	for _, row := range x {
		var b byte
		for s, on := range row {
			if on {
				b |= 1 << (s % 8)
			}
			if s%8 == 7 || s == len(row)-1 {
				buf = append(buf, b)
				b = 0
			}
		}
		h.Write(buf)
		buf = buf[:0]
	}
	return h.Sum64()
}

// boltzmannProbability 计算模拟退火接受较差解的概率，delta 为得分下降量
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	return math.Exp(-delta / temperature)
}

// TabuList 禁忌表（使用uint64哈希作为键提高性能）
type TabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
	mu      sync.RWMutex
}

// NewTabuList 创建禁忌表
func NewTabuList(size int) *TabuList {
	return &TabuList{
		items:   make(map[uint64]struct{}),
		order:   make([]uint64, 0, size),
		maxSize: size,
	}
}

// Add 添加到禁忌表
func (t *TabuList) Add(key uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; exists {
		return
	}
	if t.maxSize <= 0 {
		return
	}

	// 超出容量时移除最旧的
	if len(t.order) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}

	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

// Contains 检查是否在禁忌表中
func (t *TabuList) Contains(key uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.items[key]
	return exists
}

// Len 返回禁忌表中的条目数
func (t *TabuList) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
