package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"配置错误", Configuration("residents", "必须大于等于1"), CodeConfiguration},
		{"包装后的无解错误", fmt.Errorf("run: %w", NoFeasibleSolution("无可行解")), CodeNoFeasibleSolution},
		{"普通错误", fmt.Errorf("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	if got := GetHTTPStatus(Configuration("weeks", "x")); got != http.StatusBadRequest {
		t.Errorf("配置错误应返回 400, got %d", got)
	}
	if got := GetHTTPStatus(SolverTimeout("超时")); got != http.StatusGatewayTimeout {
		t.Errorf("求解超时应返回 504, got %d", got)
	}
	if got := GetHTTPStatus(SolverBusy("繁忙")); got != http.StatusServiceUnavailable {
		t.Errorf("求解器繁忙应返回 503, got %d", got)
	}
	if got := GetHTTPStatus(NoFeasibleSolution("无解")); got != http.StatusUnprocessableEntity {
		t.Errorf("无解应返回 422, got %d", got)
	}
	if got := GetHTTPStatus(New(CodeRateLimited, "限流")); got != http.StatusTooManyRequests {
		t.Errorf("限流应返回 429, got %d", got)
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("solve: %w", SolverTimeout("超时"))
	appErr, ok := As(wrapped)
	if !ok || appErr.Code != CodeSolverTimeout {
		t.Errorf("As() = %v, %v", appErr, ok)
	}
	if _, ok := As(fmt.Errorf("boom")); ok {
		t.Error("普通错误不应转换为 AppError")
	}
}

func TestValidationErrors_ToAppError(t *testing.T) {
	var ve ValidationErrors
	if ve.HasErrors() {
		t.Fatal("空集合不应有错误")
	}
	ve.Add("min_per_shift", "不能大于 max_per_shift")
	ve.Add("max_total", "不能大于总班次数")

	err := ve.ToAppError(CodeConfiguration)
	if !Is(err, CodeConfiguration) {
		t.Errorf("期望 CONFIGURATION_ERROR, got %s", err.Code)
	}
	if len(err.Fields) != 2 {
		t.Errorf("期望 2 个字段, got %d", len(err.Fields))
	}
}
