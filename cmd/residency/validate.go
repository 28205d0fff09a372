package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paiban/residency/pkg/errors"
	"github.com/paiban/residency/pkg/model"
	"github.com/paiban/residency/pkg/stats"
	"github.com/paiban/residency/pkg/validator"
)

// scheduleFile 待校验的排班文件，schedule[r][s] 取 0 或 1
type scheduleFile struct {
	Params      model.Params      `json:"params" yaml:"params"`
	Schedule    [][]int           `json:"schedule" yaml:"schedule"`
	Preferences model.Preferences `json:"preferences,omitempty" yaml:"preferences,omitempty"`
}

// loadScheduleFile 按扩展名解析 JSON 或 YAML
func loadScheduleFile(path string) (*scheduleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "读取排班文件失败")
	}

	sf := &scheduleFile{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, sf)
	default:
		err = yaml.Unmarshal(data, sf)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析排班文件失败")
	}
	return sf, nil
}

// grid 转换为布尔矩阵
func (sf *scheduleFile) grid() ([][]bool, error) {
	x := make([][]bool, len(sf.Schedule))
	for r, row := range sf.Schedule {
		x[r] = make([]bool, len(row))
		for s, v := range row {
			if v != 0 && v != 1 {
				return nil, errors.InvalidInput("schedule", fmt.Sprintf("[%d][%d] = %d，只允许 0 或 1", r, s, v))
			}
			x[r][s] = v == 1
		}
	}
	return x, nil
}

func newValidateCmd(c *cli) *cobra.Command {
	var colored bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "校验排班是否满足全部规则",
		Long: `读取 JSON 或 YAML 排班文件并检查覆盖人数、总工作量、连班休息和每周工作天数。

文件格式:
  params:
    residents: 3
    weeks: 1
    min_per_shift: 1
    max_per_shift: 1
    min_total: 5
    max_total: 7
  schedule:
    - [1, 1, 1, 0, 0, ...]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := loadScheduleFile(args[0])
			if err != nil {
				return err
			}
			return runValidate(cmd.OutOrStdout(), sf, colored)
		},
	}

	cmd.Flags().BoolVar(&colored, "color", false, "彩色输出排班网格")
	return cmd
}

func runValidate(out io.Writer, sf *scheduleFile, colored bool) error {
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

	detector := validator.NewConflictDetector(validator.DefaultDetectorConfig(p))
	if conflicts := detector.DetectAll(x); len(conflicts) > 0 {
		for _, c := range conflicts {
			fmt.Fprintf(out, "[%s] %s\n", c.Type, c.Message)
		}
		return errors.ConstraintViolation(string(conflicts[0].Type), fmt.Sprintf("发现 %d 个冲突", len(conflicts)))
	}

	sc := stats.Map(p, sf.Preferences, x)
	fmt.Fprintln(out, "排班满足全部规则")
	if err := stats.RenderReport(out, sc, 0); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return stats.RenderText(out, sc, stats.RenderOptions{Color: colored})
}
