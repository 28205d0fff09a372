// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	Status    string `json:"status,omitempty"`
	Residents int    `json:"residents,omitempty"` // 0 表示不限
	Weeks     int    `json:"weeks,omitempty"`     // 0 表示不限
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
	OrderBy   string `json:"order_by,omitempty"`
	OrderDir  string `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithStatus 设置状态过滤
func (f ListFilter) WithStatus(status string) ListFilter {
	f.Status = status
	return f
}

// WithSize 按问题规模过滤
func (f ListFilter) WithSize(residents, weeks int) ListFilter {
	f.Residents = residents
	f.Weeks = weeks
	return f
}

// orderColumns 允许排序的列
var orderColumns = map[string]bool{
	"created_at":   true,
	"objective":    true,
	"wall_time_ms": true,
	"residents":    true,
}

// where 生成 WHERE 子句和参数，返回下一个占位符编号
func (f ListFilter) where() (string, []interface{}, int) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, f.Status)
		argNum++
	}

	if f.Residents > 0 {
		conditions = append(conditions, fmt.Sprintf("residents = $%d", argNum))
		args = append(args, f.Residents)
		argNum++
	}

	if f.Weeks > 0 {
		conditions = append(conditions, fmt.Sprintf("weeks = $%d", argNum))
		args = append(args, f.Weeks)
		argNum++
	}

	if len(conditions) == 0 {
		return "", args, argNum
	}
	return "WHERE " + strings.Join(conditions, " AND "), args, argNum
}

// order 生成 ORDER BY 子句，非法列名回退到 created_at
func (f ListFilter) order() string {
	column := f.OrderBy
	if !orderColumns[column] {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.OrderDir, "asc") {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s", column, dir)
}

// limit 把 Limit 限制在 [1,100]
func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return 20
	case f.Limit > 100:
		return 100
	default:
		return f.Limit
	}
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}
