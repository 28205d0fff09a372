package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/paiban/residency/pkg/model"
)

// BatchResult 单个种子的求解结果
type BatchResult struct {
	Index   int      `json:"index"`
	Seed    int64    `json:"seed"`
	Outcome *Outcome `json:"outcome,omitempty"`
	Err     error    `json:"-"`
}

// BatchRunner 并行求解多组随机偏好
type BatchRunner struct {
	engine  *Engine
	workers int
}

// NewBatchRunner 创建批量求解器
func NewBatchRunner(engine *Engine, workers int) *BatchRunner {
	if workers <= 0 {
		workers = 4
	}
	return &BatchRunner{engine: engine, workers: workers}
}

// RunSeeds 对每个种子生成偏好矩阵并求解，结果顺序与 seeds 一致
//
// 参数错误对所有种子相同，直接返回；其余错误记录在各自结果中。
func (b *BatchRunner) RunSeeds(ctx context.Context, p model.Params, seeds []int64) ([]BatchResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	results := make([]BatchResult, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			prefs := model.RandomPreferences(p.Residents, p.TotalShifts(), seed)
			outcome, err := b.engine.Run(gctx, p, prefs)
			results[i] = BatchResult{Index: i, Seed: seed, Outcome: outcome, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// FindBest 返回满足请求比例最高的结果，没有可用排班时返回 nil
func FindBest(results []BatchResult) *BatchResult {
	var best *BatchResult
	bestRatio := -1.0
	for i := range results {
		o := results[i].Outcome
		if results[i].Err != nil || o == nil || o.Schedule == nil {
			continue
		}
		ratio := 0.0
		if o.Schedule.Requests > 0 {
			ratio = float64(o.Schedule.Objective) / float64(o.Schedule.Requests)
		}
		if ratio > bestRatio {
			best = &results[i]
			bestRatio = ratio
		}
	}
	return best
}
