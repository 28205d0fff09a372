package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paiban/residency/internal/constraints"
	"github.com/paiban/residency/internal/metrics"
	"github.com/paiban/residency/internal/repository"
	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/logger"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler"
	"github.com/paiban/residency/pkg/scheduler/constraint"
	"github.com/paiban/residency/pkg/scheduler/solver"
	"github.com/paiban/residency/pkg/stats"
	"github.com/paiban/residency/pkg/validator"
)

// maxBatchSeeds 单次批量求解的种子数上限
const maxBatchSeeds = 64

// ScheduleHandlerConfig 排班处理器配置
type ScheduleHandlerConfig struct {
	Engine   *scheduler.Engine
	Repo     repository.ScheduleRepositoryInterface // 为 nil 时不持久化
	Defaults model.Params
	Seed     int64
	Timeout  time.Duration
	Workers  int
}

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	engine   *scheduler.Engine
	batch    *scheduler.BatchRunner
	repo     repository.ScheduleRepositoryInterface
	defaults model.Params
	seed     int64
	timeout  time.Duration
}

// NewScheduleHandler 创建排班处理器
func NewScheduleHandler(cfg ScheduleHandlerConfig) *ScheduleHandler {
	engine := cfg.Engine
	if engine == nil {
		engine = scheduler.NewEngine()
	}
	return &ScheduleHandler{
		engine:   engine,
		batch:    scheduler.NewBatchRunner(engine, cfg.Workers),
		repo:     cfg.Repo,
		defaults: cfg.Defaults,
		seed:     cfg.Seed,
		timeout:  cfg.Timeout,
	}
}

// SolveRequest 求解请求，未给出偏好矩阵时按种子随机生成
type SolveRequest struct {
	Params         *model.Params     `json:"params,omitempty"`
	Preferences    model.Preferences `json:"preferences,omitempty"`
	Seed           *int64            `json:"seed,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty"`
	Persist        bool              `json:"persist,omitempty"`
}

// SolveResponse 求解响应
type SolveResponse struct {
	Success   bool                    `json:"success"`
	RunID     string                  `json:"run_id"`
	Status    solver.Status           `json:"status"`
	Seed      int64                   `json:"seed"`
	Objective int64                   `json:"objective"`
	Requests  int                     `json:"requests"`
	Residents []stats.ResidentSummary `json:"residents"`
	Grid      [][]stats.CellStatus    `json:"grid"`
	Fairness  *stats.FairnessMetrics  `json:"fairness"`
	Coverage  *stats.CoverageMetrics  `json:"coverage"`
	Report    *constraint.Report      `json:"report"`
	Rounds    int                     `json:"rounds"`
	CacheHit  bool                    `json:"cache_hit"`
	Persisted bool                    `json:"persisted"`
	Duration  string                  `json:"duration"`
}

// resolve 补全默认参数和偏好矩阵
func (h *ScheduleHandler) resolve(req *SolveRequest) (model.Params, model.Preferences, int64) {
	p := h.defaults
	if req.Params != nil {
		p = *req.Params
	}

	seed := h.seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	prefs := req.Preferences
	if prefs == nil && p.Residents > 0 && p.Weeks > 0 {
		prefs = model.RandomPreferences(p.Residents, p.TotalShifts(), seed)
	}
	return p, prefs, seed
}

// withTimeout 请求给出的时限不能超过服务端上限
func (h *ScheduleHandler) withTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	timeout := h.timeout
	if requested := time.Duration(seconds) * time.Second; requested > 0 && (timeout <= 0 || requested < timeout) {
		timeout = requested
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// Solve 求解排班
func (h *ScheduleHandler) Solve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, prefs, seed := h.resolve(&req)
	ctx, cancel := h.withTimeout(r.Context(), req.TimeoutSeconds)
	defer cancel()

	done := metrics.TrackSolve()
	outcome, err := h.engine.Run(ctx, p, prefs)
	done()
	if err != nil {
		if errors.Is(err, errors.CodeSolverBusy) {
			metrics.RecordSolverBusy()
		}
		respondError(w, err)
		return
	}
	recordOutcome(outcome)

	if err := outcome.Err(); err != nil {
		appErr, _ := errors.As(err)
		respondError(w, appErr.WithField("run_id", outcome.RunID.String()).WithField("status", outcome.Status))
		return
	}

	resp := buildSolveResponse(outcome, seed)
	if req.Persist && h.repo != nil {
		if _, err := h.repo.Save(r.Context(), outcome, seed); err != nil {
			logger.WithError(err).Str("run_id", outcome.RunID.String()).Msg("保存排班结果失败")
		} else {
			resp.Persisted = true
		}
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_ = stats.RenderReport(w, outcome.Schedule, outcome.WallTime)
		_ = stats.RenderText(w, outcome.Schedule, stats.RenderOptions{})
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func buildSolveResponse(outcome *scheduler.Outcome, seed int64) *SolveResponse {
	sc := outcome.Schedule
	return &SolveResponse{
		Success:   true,
		RunID:     outcome.RunID.String(),
		Status:    outcome.Status,
		Seed:      seed,
		Objective: sc.Objective,
		Requests:  sc.Requests,
		Residents: sc.Residents,
		Grid:      sc.Grid,
		Fairness:  stats.Fairness(sc),
		Coverage:  stats.Coverage(sc),
		Report:    outcome.Report,
		Rounds:    outcome.Rounds,
		CacheHit:  outcome.CacheHit,
		Duration:  outcome.WallTime.String(),
	}
}

// recordOutcome 记录求解指标
func recordOutcome(outcome *scheduler.Outcome) {
	var objective int64
	if outcome.Schedule != nil {
		objective = outcome.Schedule.Objective
		fairness := stats.Fairness(outcome.Schedule)
		metrics.SetFairnessGini("shifts", fairness.ShiftGini)
		metrics.SetFairnessGini("honored", fairness.HonoredGini)
		metrics.SetFairnessGini("night", fairness.NightGini)
	}
	if outcome.Report != nil {
		metrics.SetModelSize(outcome.Report.Variables, outcome.Report.Constraints)
	}
	metrics.RecordSolve(string(outcome.Status), outcome.WallTime, outcome.Rounds, objective)
}

// BatchRequest 批量求解请求，每个种子生成一组偏好
type BatchRequest struct {
	Params         *model.Params `json:"params,omitempty"`
	Seeds          []int64       `json:"seeds"`
	TimeoutSeconds int           `json:"timeout_seconds,omitempty"`
}

// BatchItem 单个种子的结果
type BatchItem struct {
	Seed      int64         `json:"seed"`
	RunID     string        `json:"run_id,omitempty"`
	Status    solver.Status `json:"status,omitempty"`
	Objective int64         `json:"objective"`
	Requests  int           `json:"requests"`
	Duration  string        `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// BatchResponse 批量求解响应
type BatchResponse struct {
	Success bool        `json:"success"`
	Best    *BatchItem  `json:"best,omitempty"`
	Results []BatchItem `json:"results"`
}

// Batch 对多个种子并行求解，返回满足率最高的结果
func (h *ScheduleHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if len(req.Seeds) == 0 || len(req.Seeds) > maxBatchSeeds {
		respondError(w, errors.InvalidInput("seeds", fmt.Sprintf("种子数必须在 1 到 %d 之间", maxBatchSeeds)))
		return
	}

	p := h.defaults
	if req.Params != nil {
		p = *req.Params
	}

	ctx, cancel := h.withTimeout(r.Context(), req.TimeoutSeconds)
	defer cancel()

	results, err := h.batch.RunSeeds(ctx, p, req.Seeds)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := BatchResponse{Success: true, Results: make([]BatchItem, len(results))}
	for i, res := range results {
		resp.Results[i] = batchItem(res)
		if res.Outcome != nil {
			recordOutcome(res.Outcome)
		}
	}
	if best := scheduler.FindBest(results); best != nil {
		item := batchItem(*best)
		resp.Best = &item
	}
	respondJSON(w, http.StatusOK, resp)
}

func batchItem(res scheduler.BatchResult) BatchItem {
	item := BatchItem{Seed: res.Seed}
	if res.Err != nil {
		item.Error = res.Err.Error()
	}
	if o := res.Outcome; o != nil {
		item.RunID = o.RunID.String()
		item.Status = o.Status
		item.Duration = o.WallTime.String()
		if o.Schedule != nil {
			item.Objective = o.Schedule.Objective
			item.Requests = o.Schedule.Requests
		}
	}
	return item
}

// ValidateRequest 排班校验请求
type ValidateRequest struct {
	Params      *model.Params     `json:"params,omitempty"`
	Schedule    [][]bool          `json:"schedule"`
	Preferences model.Preferences `json:"preferences,omitempty"`
}

// ValidateResponse 排班校验响应
type ValidateResponse struct {
	Valid     bool                   `json:"valid"`
	Conflicts []validator.Conflict   `json:"conflicts"`
	Objective int64                  `json:"objective"`
	Fairness  *stats.FairnessMetrics `json:"fairness,omitempty"`
	Coverage  *stats.CoverageMetrics `json:"coverage,omitempty"`
}

// Validate 校验给定排班是否满足全部硬约束
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p := h.defaults
	if req.Params != nil {
		p = *req.Params
	}
	if err := p.Validate(); err != nil {
		respondError(w, err)
		return
	}
	if req.Preferences != nil {
		if err := p.ValidatePreferences(req.Preferences); err != nil {
			respondError(w, err)
			return
		}
	}

	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(p))
	conflicts := detector.DetectAll(req.Schedule)

	resp := ValidateResponse{Valid: len(conflicts) == 0, Conflicts: conflicts}
	if resp.Conflicts == nil {
		resp.Conflicts = []validator.Conflict{}
	}
	if resp.Valid {
		sc := stats.Map(p, req.Preferences, req.Schedule)
		resp.Objective = sc.Objective
		resp.Fairness = stats.Fairness(sc)
		resp.Coverage = stats.Coverage(sc)
	}
	respondJSON(w, http.StatusOK, resp)
}

// RunResponse 已保存的求解记录
type RunResponse struct {
	Run      *repository.ScheduleRun `json:"run"`
	Schedule [][]bool                `json:"schedule"`
}

// ListRunsResponse 求解记录列表
type ListRunsResponse struct {
	Runs  []*repository.ScheduleRun `json:"runs"`
	Total int                       `json:"total"`
}

// requireRepo 未配置数据库时返回错误
func (h *ScheduleHandler) requireRepo(w http.ResponseWriter) bool {
	if h.repo == nil {
		respondError(w, errors.New(errors.CodeNotFound, "未启用排班结果持久化"))
		return false
	}
	return true
}

// ListRuns 列出已保存的求解记录
func (h *ScheduleHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithStatus(q.Get("status"))
	for name, dst := range map[string]*int{
		"residents": &filter.Residents,
		"weeks":     &filter.Weeks,
		"limit":     &filter.Limit,
		"offset":    &filter.Offset,
	} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				respondError(w, errors.InvalidInput(name, "必须是非负整数"))
				return
			}
			*dst = n
		}
	}
	if v := q.Get("order_by"); v != "" {
		filter.OrderBy = v
	}
	if v := q.Get("order_dir"); v != "" {
		filter.OrderDir = v
	}

	runs, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询排班记录失败"))
		return
	}
	if runs == nil {
		runs = []*repository.ScheduleRun{}
	}
	respondJSON(w, http.StatusOK, ListRunsResponse{Runs: runs, Total: total})
}

// GetRun 获取一次求解的记录和排班
func (h *ScheduleHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的记录ID格式"))
		return
	}

	run, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询排班记录失败"))
		return
	}
	if run == nil {
		respondError(w, errors.New(errors.CodeNotFound, "排班记录不存在"))
		return
	}

	assignments, err := h.repo.GetAssignments(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询排班分配失败"))
		return
	}
	respondJSON(w, http.StatusOK, RunResponse{Run: run, Schedule: repository.Grid(run.Params, assignments)})
}

// DeleteRun 删除一次求解的记录
func (h *ScheduleHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireRepo(w) {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的记录ID格式"))
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "删除排班记录失败"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConstraintLibrary 返回内置约束族说明
func ConstraintLibrary(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, constraints.LibraryResponse{Library: constraints.GetLibrary()})
}
