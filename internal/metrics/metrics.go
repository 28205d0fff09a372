// Package metrics 以 Prometheus 文本格式导出服务指标
package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// 进程内的指标都登记在 std 上
var (
	std = NewRegistry()

	httpRequests = std.Counter("residency_http_requests_total", "HTTP请求总数",
		"method", "path", "status")
	httpLatency = std.Histogram("residency_http_request_duration_seconds", "HTTP请求延迟",
		[]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		"method", "path")

	solves = std.Counter("residency_solve_total", "求解次数", "status")
	solveLatency = std.Histogram("residency_solve_duration_seconds", "求解耗时",
		[]float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		"status")
	solverRounds   = std.Counter("residency_solver_rounds_total", "求解器求解轮数")
	solverRejected = std.Counter("residency_solver_rejected_total", "因后台求解未结束而拒绝的求解")
	objective      = std.Gauge("residency_solve_objective", "满足的偏好请求数")
	activeSolves   = std.Gauge("residency_active_solves", "当前求解任务数")

	modelSize   = std.Gauge("residency_model_size", "模型变量与约束数量", "kind")
	cacheLookup = std.Counter("residency_cache_requests_total", "结果缓存查询次数", "result")
	fairness    = std.Gauge("residency_fairness_gini", "公平性基尼系数", "metric_type")
)

// Handler 返回导出全部指标的 HTTP 处理器
func Handler() http.Handler {
	return std
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	httpRequests.Inc(method, path, strconv.Itoa(status))
	httpLatency.Observe(duration.Seconds(), method, path)
}

// RecordSolve 记录一次求解，没有解时保留上一次的目标值
func RecordSolve(status string, duration time.Duration, rounds int, obj int64) {
	solves.Inc(status)
	solveLatency.Observe(duration.Seconds(), status)
	solverRounds.Add(float64(rounds))
	if status == "OPTIMAL" || status == "FEASIBLE" {
		objective.Set(float64(obj))
	}
}

// RecordSolverBusy 记录一次被拒绝的求解
func RecordSolverBusy() {
	solverRejected.Inc()
}

// TrackSolve 增加活动求解数，返回的函数在求解结束时调用
func TrackSolve() func() {
	activeSolves.Add(1)
	return func() { activeSolves.Add(-1) }
}

// SetModelSize 设置模型规模
func SetModelSize(variables, constraints int) {
	modelSize.Set(float64(variables), "variables")
	modelSize.Set(float64(constraints), "constraints")
}

// RecordCache 记录缓存查询结果
func RecordCache(hit bool) {
	if hit {
		cacheLookup.Inc("hit")
		return
	}
	cacheLookup.Inc("miss")
}

// SetFairnessGini 设置公平性基尼系数
func SetFairnessGini(metricType string, gini float64) {
	fairness.Set(gini, metricType)
}
