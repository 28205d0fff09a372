package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/paiban/residency/internal/repository"
	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/swap"
)

// SwapSource 换班所基于的排班：直接给出，或引用已保存的求解记录
type SwapSource struct {
	Params      *model.Params     `json:"params,omitempty"`
	Schedule    [][]bool          `json:"schedule,omitempty"`
	RunID       string            `json:"run_id,omitempty"`
	Preferences model.Preferences `json:"preferences,omitempty"`
}

// SwapEvaluateRequest 换班评估请求
type SwapEvaluateRequest struct {
	SwapSource
	Swap swap.SwapRequest `json:"swap"`
}

// SwapEvaluateResponse 换班评估响应
type SwapEvaluateResponse struct {
	Evaluation *swap.SwapEvaluation `json:"evaluation"`
	Schedule   [][]bool             `json:"schedule,omitempty"` // 可行时为换班后的排班
}

// SwapRecommendRequest 换班推荐请求
type SwapRecommendRequest struct {
	SwapSource
	Resident int                    `json:"resident"`
	Shift    int                    `json:"shift"`
	Options  *swap.RecommendOptions `json:"options,omitempty"`
}

// SwapRecommendResponse 换班推荐响应
type SwapRecommendResponse struct {
	Recommendations []swap.Recommendation `json:"recommendations"`
}

// load 解析出排班参数和排班矩阵
func (h *ScheduleHandler) load(r *http.Request, src *SwapSource) (model.Params, [][]bool, error) {
	if src.RunID != "" {
		if h.repo == nil {
			return model.Params{}, nil, errors.New(errors.CodeNotFound, "未启用排班持久化")
		}
		id, err := uuid.Parse(src.RunID)
		if err != nil {
			return model.Params{}, nil, errors.InvalidInput("run_id", "无效的记录ID")
		}
		run, err := h.repo.GetByID(r.Context(), id)
		if err != nil {
			return model.Params{}, nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排班记录失败")
		}
		if run == nil {
			return model.Params{}, nil, errors.New(errors.CodeNotFound, "排班记录不存在")
		}
		assignments, err := h.repo.GetAssignments(r.Context(), id)
		if err != nil {
			return model.Params{}, nil, errors.Wrap(err, errors.CodeDatabaseError, "查询排班分配失败")
		}
		return run.Params, repository.Grid(run.Params, assignments), nil
	}

	p := h.defaults
	if src.Params != nil {
		p = *src.Params
	}
	if err := p.Validate(); err != nil {
		return model.Params{}, nil, err
	}
	if src.Schedule == nil {
		return model.Params{}, nil, errors.InvalidInput("schedule", "缺少排班或记录ID")
	}
	return p, src.Schedule, nil
}

func (h *ScheduleHandler) preferences(p model.Params, src *SwapSource) (model.Preferences, error) {
	if src.Preferences == nil {
		return nil, nil
	}
	if err := p.ValidatePreferences(src.Preferences); err != nil {
		return nil, err
	}
	return src.Preferences, nil
}

// EvaluateSwap 评估一次换班
func (h *ScheduleHandler) EvaluateSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapEvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, x, err := h.load(r, &req.SwapSource)
	if err != nil {
		respondError(w, err)
		return
	}
	prefs, err := h.preferences(p, &req.SwapSource)
	if err != nil {
		respondError(w, err)
		return
	}

	evaluator := swap.NewSwapEvaluator(p, prefs)
	resp := SwapEvaluateResponse{Evaluation: evaluator.EvaluateSwap(x, &req.Swap)}
	if resp.Evaluation.Feasible {
		resp.Schedule, _ = evaluator.Apply(x, &req.Swap)
	}
	respondJSON(w, http.StatusOK, resp)
}

// RecommendSwap 为某个班次推荐接班人
func (h *ScheduleHandler) RecommendSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRecommendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	p, x, err := h.load(r, &req.SwapSource)
	if err != nil {
		respondError(w, err)
		return
	}
	prefs, err := h.preferences(p, &req.SwapSource)
	if err != nil {
		respondError(w, err)
		return
	}
	if req.Resident < 0 || req.Resident >= p.Residents {
		respondError(w, errors.InvalidInput("resident", "住院医师编号越界"))
		return
	}
	if req.Shift < 0 || req.Shift >= p.TotalShifts() {
		respondError(w, errors.InvalidInput("shift", "班次编号越界"))
		return
	}

	recs := swap.NewRecommender(p, prefs).RecommendSwapTargets(x, req.Resident, req.Shift, req.Options)
	if recs == nil {
		recs = []swap.Recommendation{}
	}
	respondJSON(w, http.StatusOK, SwapRecommendResponse{Recommendations: recs})
}
