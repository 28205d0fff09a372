package swap

import (
	"sort"

	"github.com/paiban/residency/pkg/model"
)

// Recommender 换班推荐器
type Recommender struct {
	evaluator *SwapEvaluator
}

// NewRecommender 创建换班推荐器
func NewRecommender(p model.Params, prefs model.Preferences) *Recommender {
	return &Recommender{
		evaluator: NewSwapEvaluator(p, prefs),
	}
}

// Evaluator 返回内部使用的评估器
func (r *Recommender) Evaluator() *SwapEvaluator {
	return r.evaluator
}

// Recommendation 换班推荐
type Recommendation struct {
	Target        int      `json:"target"`
	ExchangeShift *int     `json:"exchange_shift,omitempty"`
	Score         float64  `json:"score"`
	Reason        string   `json:"reason"`
	SwapType      SwapType `json:"swap_type"`
	ImpactSummary string   `json:"impact_summary"`
	Rank          int      `json:"rank"`
}

// Request 还原为换班请求
func (rec *Recommendation) Request(resident, shift int) *SwapRequest {
	return &SwapRequest{
		Resident:      resident,
		Shift:         shift,
		Target:        rec.Target,
		ExchangeShift: rec.ExchangeShift,
	}
}

// RecommendOptions 推荐选项
type RecommendOptions struct {
	MaxRecommendations int     `json:"max_recommendations"`
	Preferred          []int   `json:"preferred,omitempty"` // 优先考虑的住院医师
	Exclude            []int   `json:"exclude,omitempty"`   // 排除的住院医师
	AllowExchange      bool    `json:"allow_exchange"`
	MinScore           float64 `json:"min_score"`
}

// DefaultRecommendOptions 返回默认选项
func DefaultRecommendOptions() *RecommendOptions {
	return &RecommendOptions{
		MaxRecommendations: 5,
		AllowExchange:      true,
		MinScore:           60,
	}
}

// RecommendSwapTargets 为住院医师 resident 的班次 shift 推荐接班人
func (r *Recommender) RecommendSwapTargets(x [][]bool, resident, shift int, options *RecommendOptions) []Recommendation {
	if options == nil {
		options = DefaultRecommendOptions()
	}

	excludeSet := map[int]bool{resident: true}
	for _, id := range options.Exclude {
		excludeSet[id] = true
	}
	preferredSet := make(map[int]bool)
	for _, id := range options.Preferred {
		preferredSet[id] = true
	}

	var candidates []Recommendation
	for target := range x {
		if excludeSet[target] {
			continue
		}

		// 评估接班
		evaluation := r.evaluator.EvaluateSwap(x, &SwapRequest{
			Resident: resident,
			Shift:    shift,
			Target:   target,
		})
		if evaluation.Feasible && evaluation.Score >= options.MinScore {
			candidate := Recommendation{
				Target:        target,
				Score:         evaluation.Score,
				SwapType:      SwapTakeOver,
				Reason:        r.generateReason(evaluation),
				ImpactSummary: r.generateImpactSummary(evaluation),
			}
			if preferredSet[target] {
				candidate.Score += 10
			}
			candidates = append(candidates, candidate)
		}

		if options.AllowExchange {
			candidates = append(candidates, r.findExchangeCandidates(x, resident, shift, target, options)...)
		}
	}

	// 同分时接班优先于互换，再按编号
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].SwapType != candidates[j].SwapType {
			return candidates[i].SwapType == SwapTakeOver
		}
		return candidates[i].Target < candidates[j].Target
	})

	if options.MaxRecommendations > 0 && len(candidates) > options.MaxRecommendations {
		candidates = candidates[:options.MaxRecommendations]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	return candidates
}

// findExchangeCandidates 查找与 target 互换的班次，跳过同一天
func (r *Recommender) findExchangeCandidates(x [][]bool, resident, shift, target int, options *RecommendOptions) []Recommendation {
	var candidates []Recommendation
	if target < 0 || target >= len(x) {
		return nil
	}

	for s, on := range x[target] {
		if !on || model.DayOf(s) == model.DayOf(shift) {
			continue
		}
		ex := s
		evaluation := r.evaluator.EvaluateSwap(x, &SwapRequest{
			Resident:      resident,
			Shift:         shift,
			Target:        target,
			ExchangeShift: &ex,
		})
		if !evaluation.Feasible || evaluation.Score < options.MinScore {
			continue
		}

		candidates = append(candidates, Recommendation{
			Target:        target,
			ExchangeShift: &ex,
			Score:         evaluation.Score,
			SwapType:      SwapExchange,
			Reason:        "互换班次，双方总班次不变",
			ImpactSummary: r.generateImpactSummary(evaluation),
		})
	}

	return candidates
}

// generateReason 生成推荐原因
func (r *Recommender) generateReason(evaluation *SwapEvaluation) string {
	impact := evaluation.Impact
	switch {
	case impact == nil:
		return "可以接替此班次"
	case impact.Target.HonoredChange > 0:
		return "接班方希望上此班次"
	case impact.Target.ShiftsBefore < impact.Source.ShiftsBefore:
		return "接班方班次较少，工作量更均衡"
	}
	return "无约束冲突"
}

// generateImpactSummary 生成影响摘要
func (r *Recommender) generateImpactSummary(evaluation *SwapEvaluation) string {
	if evaluation.Impact == nil {
		return "影响较小"
	}

	change := evaluation.Impact.ObjectiveChange
	if change > 0 {
		return "满足的请求增加"
	} else if change < 0 {
		return "满足的请求减少"
	}
	return "满足的请求数不变"
}

// FindBestSwapMatch 为请假的住院医师找到最佳接班人，没有时返回 nil
func (r *Recommender) FindBestSwapMatch(x [][]bool, resident, shift int) *Recommendation {
	recommendations := r.RecommendSwapTargets(x, resident, shift, &RecommendOptions{
		MaxRecommendations: 1,
		MinScore:           50,
	})
	if len(recommendations) == 0 {
		return nil
	}
	return &recommendations[0]
}

// AutoAssignSwap 自动选出接班人并返回换班后的排班，没有合适人选时返回 nil
func (r *Recommender) AutoAssignSwap(x [][]bool, resident, shift int) ([][]bool, *Recommendation, error) {
	recommendations := r.RecommendSwapTargets(x, resident, shift, &RecommendOptions{
		MaxRecommendations: 1,
		MinScore:           70, // 自动分配要求更高得分
	})
	if len(recommendations) == 0 {
		return nil, nil, nil
	}

	best := recommendations[0]
	swapped, err := r.evaluator.Apply(x, best.Request(resident, shift))
	if err != nil {
		return nil, nil, err
	}
	return swapped, &best, nil
}
