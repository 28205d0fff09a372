package stats

import (
	"math"
	"sort"

	"github.com/paiban/residency/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	ShiftGini     float64 `json:"shift_gini"`     // 班次数基尼系数 (0=完全公平, 1=完全不公平)
	ShiftVariance float64 `json:"shift_variance"` // 班次数方差
	ShiftStdDev   float64 `json:"shift_std_dev"`  // 班次数标准差
	AvgShifts     float64 `json:"avg_shifts"`     // 人均班次
	MaxShifts     float64 `json:"max_shifts"`     // 最多班次
	MinShifts     float64 `json:"min_shifts"`     // 最少班次
	ShiftRange    float64 `json:"shift_range"`    // 班次极差
	HonoredGini   float64 `json:"honored_gini"`   // 请求满足率基尼系数
	NightGini     float64 `json:"night_gini"`     // 夜班基尼系数
	OverallScore  float64 `json:"overall_score"`  // 综合公平性评分 (0-100)
}

// Fairness 分析排班公平性
func Fairness(sc *Schedule) *FairnessMetrics {
	n := len(sc.Residents)
	if n == 0 {
		return &FairnessMetrics{OverallScore: 100}
	}

	shifts := make([]float64, n)
	honored := make([]float64, n)
	nights := make([]float64, n)
	for i, rs := range sc.Residents {
		shifts[i] = float64(rs.Shifts)
		if rs.Requests > 0 {
			honored[i] = float64(rs.Honored) / float64(rs.Requests)
		}
		for s, cell := range sc.Grid[i] {
			if cell != NotWorked && model.SlotOf(s) == model.ShiftsPerDay-1 {
				nights[i]++
			}
		}
	}

	avg := mean(shifts)
	variance := varianceOf(shifts, avg)
	stdDev := math.Sqrt(variance)
	maxV, minV := valueRange(shifts)

	m := &FairnessMetrics{
		ShiftGini:     gini(shifts),
		ShiftVariance: variance,
		ShiftStdDev:   stdDev,
		AvgShifts:     avg,
		MaxShifts:     maxV,
		MinShifts:     minV,
		ShiftRange:    maxV - minV,
		HonoredGini:   gini(honored),
		NightGini:     gini(nights),
	}
	m.OverallScore = overallScore(m)
	return m
}

// mean 计算平均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// varianceOf 计算方差
func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// valueRange 计算极值
func valueRange(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 计算基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}

	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}

// overallScore 计算综合公平性评分
func overallScore(m *FairnessMetrics) float64 {
	const (
		shiftWeight   = 0.4
		honoredWeight = 0.3
		nightWeight   = 0.2
		cvWeight      = 0.1
	)

	// 变异系数越低分数越高
	cvScore := 100.0
	if m.AvgShifts > 0 {
		cv := m.ShiftStdDev / m.AvgShifts
		cvScore = math.Max(0, 100-cv*200)
	}

	score := shiftWeight*(1-m.ShiftGini)*100 +
		honoredWeight*(1-m.HonoredGini)*100 +
		nightWeight*(1-m.NightGini)*100 +
		cvWeight*cvScore

	return math.Max(0, math.Min(100, score))
}
