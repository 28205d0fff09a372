package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paiban/residency/internal/config"
	"github.com/paiban/residency/internal/database"
	"github.com/paiban/residency/internal/repository"
	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/scheduler"
	"github.com/paiban/residency/pkg/scheduler/solver"
	"github.com/paiban/residency/pkg/stats"
)

// solveOptions solve 命令参数
type solveOptions struct {
	params     model.Params
	paramsFile string
	seed       int64
	seeds      []int64
	timeout    time.Duration
	bigM       int64
	workers    int
	noWarm     bool
	persist    bool
	color      bool
	jsonOut    bool
}

func newSolveCmd(c *cli) *cobra.Command {
	o := &solveOptions{}

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "生成排班",
		Long: `构建排班模型并求解，输出满足的偏好请求数和排班网格。

参数优先级: 命令行参数 > --params 文件 > SCHEDULER_* 环境变量 > 内置默认值。
网格中 # 表示上班且有请求，+ 表示上班但无请求，. 表示休息。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.resolve(cmd, c.cfg); err != nil {
				return err
			}
			return o.run(cmd.Context(), cmd.OutOrStdout(), c.cfg)
		},
	}

	defaults := model.DefaultParams()
	f := cmd.Flags()
	f.IntVar(&o.params.Residents, "residents", defaults.Residents, "住院医师人数")
	f.IntVar(&o.params.Weeks, "weeks", defaults.Weeks, "排班周数")
	f.IntVar(&o.params.MinPerShift, "min-per-shift", defaults.MinPerShift, "每班最少人数")
	f.IntVar(&o.params.MaxPerShift, "max-per-shift", defaults.MaxPerShift, "每班最多人数")
	f.IntVar(&o.params.MinTotal, "min-total", defaults.MinTotal, "每人最少班次")
	f.IntVar(&o.params.MaxTotal, "max-total", defaults.MaxTotal, "每人最多班次")
	f.StringVar(&o.paramsFile, "params", "", "YAML 参数文件")
	f.Int64Var(&o.seed, "seed", model.DefaultSeed, "偏好矩阵随机种子")
	f.Int64SliceVar(&o.seeds, "seeds", nil, "多个随机种子，并行求解并输出最佳结果")
	f.DurationVar(&o.timeout, "timeout", 0, "求解时限，0 表示使用 SCHEDULER_TIMEOUT")
	f.Int64Var(&o.bigM, "big-m", 0, "指示变量线性化常数，0 表示自动推导")
	f.IntVar(&o.workers, "workers", 0, "并行求解协程数，0 表示使用 SCHEDULER_WORKERS")
	f.BoolVar(&o.noWarm, "no-warm-start", false, "不使用贪心构造的初始解")
	f.BoolVar(&o.persist, "persist", false, "把结果保存到数据库 (需要 DB_ENABLED=true)")
	f.BoolVar(&o.color, "color", false, "彩色输出排班网格")
	f.BoolVar(&o.jsonOut, "json", false, "以 JSON 输出求解结果")

	return cmd
}

// loadParams 从 YAML 文件读取参数
func loadParams(path string) (model.Params, error) {
	var p model.Params
	data, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrap(err, errors.CodeInvalidInput, "读取参数文件失败")
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, errors.Wrap(err, errors.CodeInvalidInput, "解析参数文件失败")
	}
	return p, nil
}

// resolve 按优先级合并参数
func (o *solveOptions) resolve(cmd *cobra.Command, cfg *config.Config) error {
	p := cfg.Scheduler.Params()
	if o.paramsFile != "" {
		fp, err := loadParams(o.paramsFile)
		if err != nil {
			return err
		}
		p = fp
	}

	flags := cmd.Flags()
	for name, dst := range map[string]*int{
		"residents":     &p.Residents,
		"weeks":         &p.Weeks,
		"min-per-shift": &p.MinPerShift,
		"max-per-shift": &p.MaxPerShift,
		"min-total":     &p.MinTotal,
		"max-total":     &p.MaxTotal,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetInt(name)
			*dst = v
		}
	}
	o.params = p

	if !flags.Changed("seed") {
		o.seed = cfg.Scheduler.Seed
	}
	if !flags.Changed("big-m") {
		o.bigM = cfg.Scheduler.BigM
	}
	if o.timeout <= 0 {
		o.timeout = cfg.Scheduler.Timeout
	}
	if o.workers <= 0 {
		o.workers = cfg.Scheduler.Workers
	}
	if !cfg.Scheduler.WarmStart {
		o.noWarm = true
	}
	return nil
}

func (o *solveOptions) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	engine := scheduler.NewEngine(
		scheduler.WithBigM(o.bigM),
		scheduler.WithTimeLimit(o.timeout),
		scheduler.WithWarmStart(!o.noWarm),
		scheduler.WithSolver(solver.NewPBSolver(solver.Options{
			Limiter: solver.NewRoundLimiter(cfg.Scheduler.MaxRounds),
		})),
	)

	var (
		outcome *scheduler.Outcome
		seed    = o.seed
	)
	if len(o.seeds) > 0 {
		best, err := o.runBatch(ctx, out, engine)
		if err != nil {
			return err
		}
		outcome, seed = best.Outcome, best.Seed
	} else {
		prefs := model.RandomPreferences(o.params.Residents, o.params.TotalShifts(), o.seed)
		var err error
		outcome, err = engine.Run(ctx, o.params, prefs)
		if err != nil {
			return err
		}
	}

	if o.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(outcome); err != nil {
			return err
		}
	} else {
		printModelSize(out, outcome)
		fmt.Fprintf(out, "求解状态 = %s\n", outcome.Status)
	}
	if err := outcome.Err(); err != nil {
		return err
	}

	if !o.jsonOut {
		if err := stats.RenderReport(out, outcome.Schedule, outcome.WallTime); err != nil {
			return err
		}
		fmt.Fprintln(out)
		if err := stats.RenderText(out, outcome.Schedule, stats.RenderOptions{Color: o.color}); err != nil {
			return err
		}
	}

	if o.persist {
		return persist(ctx, out, cfg, outcome, seed)
	}
	return nil
}

// runBatch 并行求解多个种子，返回满足率最高的结果
func (o *solveOptions) runBatch(ctx context.Context, out io.Writer, engine *scheduler.Engine) (*scheduler.BatchResult, error) {
	results, err := scheduler.NewBatchRunner(engine, o.workers).RunSeeds(ctx, o.params, o.seeds)
	if err != nil {
		return nil, err
	}

	if !o.jsonOut {
		for _, res := range results {
			switch {
			case res.Err != nil:
				fmt.Fprintf(out, "种子 %-6d 失败: %v\n", res.Seed, res.Err)
			case res.Outcome.Schedule == nil:
				fmt.Fprintf(out, "种子 %-6d %s\n", res.Seed, res.Outcome.Status)
			default:
				sc := res.Outcome.Schedule
				fmt.Fprintf(out, "种子 %-6d %s 满足 %d/%d\n", res.Seed, res.Outcome.Status, sc.Objective, sc.Requests)
			}
		}
		fmt.Fprintln(out)
	}

	best := scheduler.FindBest(results)
	if best == nil {
		// 没有可用排班时返回第一个结果，让调用方报告其状态
		if results[0].Err != nil {
			return nil, results[0].Err
		}
		return &results[0], nil
	}
	if !o.jsonOut {
		fmt.Fprintf(out, "最佳种子 = %d\n", best.Seed)
	}
	return best, nil
}

func printModelSize(out io.Writer, outcome *scheduler.Outcome) {
	if outcome.Report == nil {
		return
	}
	fmt.Fprintf(out, "模型规模 = 变量 %s 个, 约束 %s 个\n",
		humanize.Comma(int64(outcome.Report.Variables)),
		humanize.Comma(int64(outcome.Report.Constraints)))
}

// persist 保存求解结果
func persist(ctx context.Context, out io.Writer, cfg *config.Config, outcome *scheduler.Outcome, seed int64) error {
	if !cfg.Database.Enabled {
		return errors.Configuration("persist", "需要设置 DB_ENABLED=true")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "连接数据库失败")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "初始化数据表失败")
	}

	run, err := repository.NewScheduleRepository(db).Save(ctx, outcome, seed)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "保存排班结果失败")
	}
	fmt.Fprintf(out, "已保存 run_id = %s\n", run.ID)
	return nil
}
