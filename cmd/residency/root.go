package main

import (
	"github.com/spf13/cobra"

	"github.com/paiban/residency/internal/config"
	"github.com/paiban/residency/pkg/logger"
)

// cli 命令共享的状态
type cli struct {
	cfg      *config.Config
	logLevel string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "residency",
		Short: "住院医师排班求解器",
		Long: `按覆盖人数、总工作量、连班休息和每周工作天数规则生成住院医师排班，
并在满足全部规则的前提下尽量满足住院医师的班次偏好。

示例:
  residency solve                           # 使用默认参数和默认种子
  residency solve --residents 3 --weeks 1   # 指定规模
  residency solve --params params.yaml      # 从文件读取参数
  residency solve --seeds 1,2,3,4           # 多个种子并行求解
  residency validate schedule.yaml          # 校验排班`,
		Version:       Version + " (" + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg
			logger.Init(logger.Config{Level: c.logLevel, Format: "console"})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "日志级别 (debug/info/warn/error)")

	root.AddCommand(newSolveCmd(c))
	root.AddCommand(newValidateCmd(c))
	root.AddCommand(newSwapCmd(c))
	return root
}
