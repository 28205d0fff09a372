// Package swap 在已有排班上评估和推荐换班
package swap

import (
	"fmt"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/stats"
	"github.com/paiban/residency/pkg/validator"
)

// SwapType 换班方式
type SwapType string

const (
	SwapTakeOver SwapType = "take_over" // 目标住院医师接替班次
	SwapExchange SwapType = "exchange"  // 双方互换班次
)

// 评分常数
const (
	baseScore     = 80.0
	requestWeight = 10.0 // 每增减一个满足的请求
	balanceBonus  = 10.0 // 接班方原本班次更少
)

// SwapEvaluator 换班评估器
type SwapEvaluator struct {
	params           model.Params
	prefs            model.Preferences
	conflictDetector *validator.ConflictDetector
}

// NewSwapEvaluator 创建换班评估器，prefs 为 nil 时视为没有请求
func NewSwapEvaluator(p model.Params, prefs model.Preferences) *SwapEvaluator {
	return &SwapEvaluator{
		params:           p,
		prefs:            prefs,
		conflictDetector: validator.NewConflictDetector(validator.DefaultDetectorConfig(p)),
	}
}

// SwapRequest 换班请求：Resident 让出 Shift 给 Target
type SwapRequest struct {
	Resident      int  `json:"resident"`
	Shift         int  `json:"shift"`
	Target        int  `json:"target"`
	ExchangeShift *int `json:"exchange_shift,omitempty"` // 互换时 Target 让出的班次
}

// Type 返回换班方式
func (r *SwapRequest) Type() SwapType {
	if r.ExchangeShift != nil {
		return SwapExchange
	}
	return SwapTakeOver
}

// SwapEvaluation 换班评估结果
type SwapEvaluation struct {
	Feasible       bool        `json:"feasible"`
	Score          float64     `json:"score"`  // 0-100
	Issues         []SwapIssue `json:"issues"` // 换班引入的问题
	Impact         *SwapImpact `json:"impact"`
	Recommendation string      `json:"recommendation"`
}

// SwapIssue 换班问题
type SwapIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Resident int    `json:"resident"`
	Shift    int    `json:"shift"`
	Message  string `json:"message"`
}

// SwapImpact 换班影响
type SwapImpact struct {
	Source          *ResidentImpact `json:"source"`
	Target          *ResidentImpact `json:"target"`
	ObjectiveChange int64           `json:"objective_change"`
}

// ResidentImpact 单名住院医师受到的影响
type ResidentImpact struct {
	Resident      int `json:"resident"`
	ShiftsBefore  int `json:"shifts_before"`
	ShiftsAfter   int `json:"shifts_after"`
	HonoredChange int `json:"honored_change"`
	NewConflicts  int `json:"new_conflicts"`
}

// EvaluateSwap 评估换班可行性，x 不会被修改
func (e *SwapEvaluator) EvaluateSwap(x [][]bool, request *SwapRequest) *SwapEvaluation {
	result := &SwapEvaluation{
		Feasible: true,
		Issues:   make([]SwapIssue, 0),
	}

	// 1. 基础检查
	if msg := e.checkRequest(x, request); msg != "" {
		result.Feasible = false
		result.Issues = append(result.Issues, SwapIssue{
			Type:     "invalid_request",
			Severity: "error",
			Resident: -1,
			Shift:    -1,
			Message:  msg,
		})
		result.Recommendation = e.generateRecommendation(result)
		return result
	}

	// 2. 模拟换班，只统计换班新引入的冲突
	simulated := e.simulateSwap(x, request)
	before := conflictCounts(e.conflictDetector.DetectAll(x))
	for _, c := range e.conflictDetector.DetectAll(simulated) {
		key := keyOf(c)
		if before[key] > 0 {
			before[key]--
			continue
		}
		result.Feasible = false
		result.Issues = append(result.Issues, SwapIssue{
			Type:     string(c.Type),
			Severity: c.Severity,
			Resident: c.Resident,
			Shift:    c.Shift,
			Message:  c.Message,
		})
	}

	// 3. 计算影响与得分
	result.Impact = e.calculateImpact(x, simulated, request, result.Issues)
	result.Score = e.score(result)
	result.Recommendation = e.generateRecommendation(result)

	return result
}

// checkRequest 返回请求不合法的原因，合法时返回空串
func (e *SwapEvaluator) checkRequest(x [][]bool, request *SwapRequest) string {
	if request == nil {
		return "无效的换班请求"
	}
	p := e.params
	shifts := p.TotalShifts()
	if len(x) != p.Residents {
		return fmt.Sprintf("排班包含 %d 名住院医师，应为 %d", len(x), p.Residents)
	}
	for r := range x {
		if len(x[r]) != shifts {
			return fmt.Sprintf("住院医师 %d 的排班包含 %d 个班次，应为 %d", r, len(x[r]), shifts)
		}
	}

	inRange := func(v, n int) bool { return v >= 0 && v < n }
	switch {
	case !inRange(request.Resident, p.Residents) || !inRange(request.Target, p.Residents):
		return "住院医师编号越界"
	case !inRange(request.Shift, shifts):
		return "班次编号越界"
	case request.Resident == request.Target:
		return "不能与自己换班"
	case !x[request.Resident][request.Shift]:
		return fmt.Sprintf("住院医师 %d 未排班次 %d", request.Resident, request.Shift)
	case x[request.Target][request.Shift]:
		return fmt.Sprintf("住院医师 %d 已在班次 %d 上班", request.Target, request.Shift)
	}

	if request.ExchangeShift == nil {
		return ""
	}
	ex := *request.ExchangeShift
	switch {
	case !inRange(ex, shifts):
		return "互换班次编号越界"
	case ex == request.Shift:
		return "互换班次不能与原班次相同"
	case !x[request.Target][ex]:
		return fmt.Sprintf("住院医师 %d 未排班次 %d", request.Target, ex)
	case x[request.Resident][ex]:
		return fmt.Sprintf("住院医师 %d 已在班次 %d 上班", request.Resident, ex)
	}
	return ""
}

// simulateSwap 返回换班后的排班副本
func (e *SwapEvaluator) simulateSwap(x [][]bool, request *SwapRequest) [][]bool {
	simulated := copyGrid(x)
	simulated[request.Resident][request.Shift] = false
	simulated[request.Target][request.Shift] = true
	if request.ExchangeShift != nil {
		ex := *request.ExchangeShift
		simulated[request.Target][ex] = false
		simulated[request.Resident][ex] = true
	}
	return simulated
}

// calculateImpact 对比换班前后的排班表
func (e *SwapEvaluator) calculateImpact(x, simulated [][]bool, request *SwapRequest, issues []SwapIssue) *SwapImpact {
	beforeSched := stats.Map(e.params, e.prefs, x)
	afterSched := stats.Map(e.params, e.prefs, simulated)

	impactOf := func(r int) *ResidentImpact {
		b, a := beforeSched.Residents[r], afterSched.Residents[r]
		impact := &ResidentImpact{
			Resident:      r,
			ShiftsBefore:  b.Shifts,
			ShiftsAfter:   a.Shifts,
			HonoredChange: a.Honored - b.Honored,
		}
		for _, issue := range issues {
			if issue.Resident == r {
				impact.NewConflicts++
			}
		}
		return impact
	}

	return &SwapImpact{
		Source:          impactOf(request.Resident),
		Target:          impactOf(request.Target),
		ObjectiveChange: afterSched.Objective - beforeSched.Objective,
	}
}

// score 可行换班的得分，不可行时为 0
func (e *SwapEvaluator) score(result *SwapEvaluation) float64 {
	if !result.Feasible || result.Impact == nil {
		return 0
	}
	s := baseScore + requestWeight*float64(result.Impact.ObjectiveChange)
	if result.Impact.Target.ShiftsBefore < result.Impact.Source.ShiftsBefore &&
		result.Impact.Target.ShiftsAfter > result.Impact.Target.ShiftsBefore {
		s += balanceBonus
	}
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// generateRecommendation 生成换班建议
func (e *SwapEvaluator) generateRecommendation(result *SwapEvaluation) string {
	if !result.Feasible {
		return "不建议进行此换班，存在硬约束冲突"
	}

	if result.Score >= 90 {
		return "强烈推荐，换班后满足更多请求"
	} else if result.Score >= 70 {
		return "可以进行，对请求满足情况影响不大"
	} else if result.Score >= 50 {
		return "谨慎进行，会少满足一些请求"
	}
	return "不推荐，虽然可行但会显著减少满足的请求"
}

// CanSwap 快速检查是否可换班
func (e *SwapEvaluator) CanSwap(x [][]bool, request *SwapRequest) (bool, string) {
	result := e.EvaluateSwap(x, request)
	if !result.Feasible {
		if len(result.Issues) > 0 {
			return false, result.Issues[0].Message
		}
		return false, "无法进行换班"
	}
	return true, ""
}

// Apply 返回执行换班后的排班，换班不可行时返回错误
func (e *SwapEvaluator) Apply(x [][]bool, request *SwapRequest) ([][]bool, error) {
	if ok, reason := e.CanSwap(x, request); !ok {
		return nil, errors.ConstraintViolation("swap", "换班不可行: "+reason)
	}
	return e.simulateSwap(x, request), nil
}

type conflictKey struct {
	Type     validator.ConflictType
	Resident int
	Shift    int
	Week     int
}

func keyOf(c validator.Conflict) conflictKey {
	return conflictKey{Type: c.Type, Resident: c.Resident, Shift: c.Shift, Week: c.Week}
}

func conflictCounts(conflicts []validator.Conflict) map[conflictKey]int {
	counts := make(map[conflictKey]int, len(conflicts))
	for _, c := range conflicts {
		counts[keyOf(c)]++
	}
	return counts
}

func copyGrid(x [][]bool) [][]bool {
	out := make([][]bool, len(x))
	for r := range x {
		out[r] = append([]bool(nil), x[r]...)
	}
	return out
}
