package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/swap"
)

type swapOptions struct {
	resident int
	shift    int
	target   int
	exchange int
	limit    int
}

func newSwapCmd(c *cli) *cobra.Command {
	opts := &swapOptions{}

	cmd := &cobra.Command{
		Use:   "swap <file>",
		Short: "评估换班或推荐接班人",
		Long: `读取与 validate 相同格式的排班文件。
给出 --target 时评估住院医师 --resident 把班次 --shift 让给 target，
再给出 --exchange 时 target 同时让出该班次；否则列出推荐的接班人。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := loadScheduleFile(args[0])
			if err != nil {
				return err
			}
			return runSwap(cmd.OutOrStdout(), sf, opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.resident, "resident", 0, "让出班次的住院医师")
	f.IntVar(&opts.shift, "shift", 0, "让出的班次")
	f.IntVar(&opts.target, "target", -1, "接班的住院医师，不给出时输出推荐")
	f.IntVar(&opts.exchange, "exchange", -1, "互换时接班方让出的班次")
	f.IntVar(&opts.limit, "limit", 5, "最多推荐数量")
	return cmd
}

func runSwap(out io.Writer, sf *scheduleFile, opts *swapOptions) error {
	p := sf.Params
	if err := p.Validate(); err != nil {
		return err
	}
	if sf.Preferences != nil {
		if err := p.ValidatePreferences(sf.Preferences); err != nil {
			return err
		}
	}
	x, err := sf.grid()
	if err != nil {
		return err
	}

	if opts.target < 0 {
		ro := swap.DefaultRecommendOptions()
		ro.MaxRecommendations = opts.limit
		recs := swap.NewRecommender(p, sf.Preferences).RecommendSwapTargets(x, opts.resident, opts.shift, ro)
		if len(recs) == 0 {
			fmt.Fprintln(out, "没有可行的接班人")
			return nil
		}
		for _, rec := range recs {
			fmt.Fprintf(out, "%d. 住院医师 %d %s", rec.Rank, rec.Target, rec.SwapType)
			if rec.ExchangeShift != nil {
				fmt.Fprintf(out, " 换回班次 %d", *rec.ExchangeShift)
			}
			fmt.Fprintf(out, " 得分 %.0f %s, %s\n", rec.Score, rec.Reason, rec.ImpactSummary)
		}
		return nil
	}

	req := &swap.SwapRequest{Resident: opts.resident, Shift: opts.shift, Target: opts.target}
	if opts.exchange >= 0 {
		ex := opts.exchange
		req.ExchangeShift = &ex
	}
	result := swap.NewSwapEvaluator(p, sf.Preferences).EvaluateSwap(x, req)
	for _, issue := range result.Issues {
		fmt.Fprintf(out, "[%s] %s\n", issue.Type, issue.Message)
	}
	fmt.Fprintf(out, "得分 = %.0f\n", result.Score)
	fmt.Fprintln(out, result.Recommendation)
	if !result.Feasible {
		return errors.ConstraintViolation("swap", result.Recommendation)
	}
	return nil
}
