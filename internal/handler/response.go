// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/logger"
)

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.WithError(err).Msg("写入响应失败")
	}
}

// respondError 返回错误响应，非 AppError 按内部错误处理
func respondError(w http.ResponseWriter, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.Wrap(err, errors.CodeInternal, "服务器内部错误")
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.WithError(err).Str("code", string(appErr.Code)).Msg("请求处理失败")
	}

	respondJSON(w, appErr.HTTPStatus, map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
		"fields":  appErr.Fields,
	})
}

// decodeJSON 解析请求体，拒绝未知字段
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}
