package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler"
	"github.com/paiban/residency/pkg/stats"
)

// ScheduleRun 一次求解的记录
type ScheduleRun struct {
	ID          uuid.UUID     `json:"id"`
	Status      string        `json:"status"`
	Params      model.Params  `json:"params"`
	Seed        int64         `json:"seed"`
	Objective   int64         `json:"objective"`
	Requests    int           `json:"requests"`
	ShiftCounts []int64       `json:"shift_counts"`
	WallTime    time.Duration `json:"wall_time"`
	Rounds      int           `json:"rounds"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ScheduleAssignment 排班分配记录，只保存上班的格子
type ScheduleAssignment struct {
	RunID    uuid.UUID `json:"run_id"`
	Resident int       `json:"resident"`
	Shift    int       `json:"shift"`
	Week     int       `json:"week"`
	Day      int       `json:"day"`
	Slot     int       `json:"slot"`
	Wanted   bool      `json:"wanted"`
}

// NewScheduleRun 由求解结果生成记录
func NewScheduleRun(outcome *scheduler.Outcome, seed int64) *ScheduleRun {
	run := &ScheduleRun{
		ID:          outcome.RunID,
		Status:      string(outcome.Status),
		Params:      outcome.Params,
		Seed:        seed,
		ShiftCounts: []int64{},
		WallTime:    outcome.WallTime,
		Rounds:      outcome.Rounds,
		CreatedAt:   time.Now(),
	}
	if sc := outcome.Schedule; sc != nil {
		run.Objective = sc.Objective
		run.Requests = sc.Requests
		for _, n := range sc.ShiftCounts() {
			run.ShiftCounts = append(run.ShiftCounts, int64(n))
		}
	}
	return run
}

// AssignmentsOf 把排班表展开为分配记录
func AssignmentsOf(runID uuid.UUID, sc *stats.Schedule) []*ScheduleAssignment {
	if sc == nil {
		return nil
	}
	var out []*ScheduleAssignment
	for r, row := range sc.Grid {
		for s, cell := range row {
			if cell == stats.NotWorked {
				continue
			}
			out = append(out, &ScheduleAssignment{
				RunID:    runID,
				Resident: r,
				Shift:    s,
				Week:     model.WeekOf(s),
				Day:      model.DayOf(s),
				Slot:     model.SlotOf(s),
				Wanted:   cell == stats.WorkedWanted,
			})
		}
	}
	return out
}

// ScheduleRepositoryInterface 排班仓储接口
type ScheduleRepositoryInterface interface {
	Save(ctx context.Context, outcome *scheduler.Outcome, seed int64) (*ScheduleRun, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduleRun, error)
	List(ctx context.Context, filter ListFilter) ([]*ScheduleRun, int, error)
	GetAssignments(ctx context.Context, runID uuid.UUID) ([]*ScheduleAssignment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ScheduleRepository 排班仓储实现
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository 创建排班仓储
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const runColumns = `id, status, residents, weeks, min_per_shift, max_per_shift,
	min_total, max_total, seed, objective, requests, shift_counts,
	wall_time_ms, rounds, created_at`

// Save 在一个事务内写入求解记录和全部分配
func (r *ScheduleRepository) Save(ctx context.Context, outcome *scheduler.Outcome, seed int64) (*ScheduleRun, error) {
	run := NewScheduleRun(outcome, seed)
	assignments := AssignmentsOf(run.ID, outcome.Schedule)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开始事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO schedule_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	p := run.Params
	_, err = tx.ExecContext(ctx, query,
		run.ID, run.Status, p.Residents, p.Weeks, p.MinPerShift, p.MaxPerShift,
		p.MinTotal, p.MaxTotal, run.Seed, run.Objective, run.Requests, pq.Array(run.ShiftCounts),
		run.WallTime.Milliseconds(), run.Rounds, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("创建排班记录失败: %w", err)
	}

	if len(assignments) > 0 {
		if err := copyAssignments(ctx, tx, assignments); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}
	return run, nil
}

// copyAssignments 用 COPY 批量写入分配
func copyAssignments(ctx context.Context, tx *sql.Tx, assignments []*ScheduleAssignment) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("schedule_assignments",
		"run_id", "resident", "shift", "week", "day", "slot", "wanted"))
	if err != nil {
		return fmt.Errorf("准备批量写入失败: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.ExecContext(ctx, a.RunID, a.Resident, a.Shift, a.Week, a.Day, a.Slot, a.Wanted); err != nil {
			return fmt.Errorf("创建排班分配失败: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("批量写入排班分配失败: %w", err)
	}
	return nil
}

// GetByID 根据ID获取求解记录，不存在时返回 nil
func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleRun, error) {
	query := `SELECT ` + runColumns + ` FROM schedule_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询排班记录失败: %w", err)
	}
	return run, nil
}

// List 列出求解记录
func (r *ScheduleRepository) List(ctx context.Context, filter ListFilter) ([]*ScheduleRun, int, error) {
	whereClause, args, argNum := filter.where()

	// 计数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM schedule_runs %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计排班数量失败: %w", err)
	}

	// 查询
	query := fmt.Sprintf(`SELECT %s FROM schedule_runs %s %s LIMIT $%d OFFSET $%d`,
		runColumns, whereClause, filter.order(), argNum, argNum+1)
	args = append(args, filter.limit(), filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询排班列表失败: %w", err)
	}
	defer rows.Close()

	var runs []*ScheduleRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("扫描排班记录失败: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

// GetAssignments 获取一次求解的全部分配
func (r *ScheduleRepository) GetAssignments(ctx context.Context, runID uuid.UUID) ([]*ScheduleAssignment, error) {
	query := `
		SELECT run_id, resident, shift, week, day, slot, wanted
		FROM schedule_assignments
		WHERE run_id = $1
		ORDER BY resident, shift
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("查询排班分配失败: %w", err)
	}
	defer rows.Close()

	var out []*ScheduleAssignment
	for rows.Next() {
		a := &ScheduleAssignment{}
		if err := rows.Scan(&a.RunID, &a.Resident, &a.Shift, &a.Week, &a.Day, &a.Slot, &a.Wanted); err != nil {
			return nil, fmt.Errorf("扫描排班分配失败: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete 删除求解记录，分配随外键级联删除
func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM schedule_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("删除排班记录失败: %w", err)
	}
	return nil
}

func scanRun(row Scanner) (*ScheduleRun, error) {
	run := &ScheduleRun{}
	var counts pq.Int64Array
	var wallMs int64
	err := row.Scan(
		&run.ID, &run.Status,
		&run.Params.Residents, &run.Params.Weeks,
		&run.Params.MinPerShift, &run.Params.MaxPerShift,
		&run.Params.MinTotal, &run.Params.MaxTotal,
		&run.Seed, &run.Objective, &run.Requests, &counts,
		&wallMs, &run.Rounds, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.ShiftCounts = counts
	run.WallTime = time.Duration(wallMs) * time.Millisecond
	return run, nil
}

// Grid 由分配记录还原 x[r][s]
func Grid(p model.Params, assignments []*ScheduleAssignment) [][]bool {
	x := make([][]bool, p.Residents)
	for r := range x {
		x[r] = make([]bool, p.TotalShifts())
	}
	for _, a := range assignments {
		if a.Resident < len(x) && a.Shift < len(x[a.Resident]) {
			x[a.Resident][a.Shift] = true
		}
	}
	return x
}
