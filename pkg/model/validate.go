package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/paiban/residency/pkg/errors"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func initValidator() {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})

		locale := zh.New()
		uni := ut.New(locale, locale)
		translator, _ = uni.GetTranslator("zh")
		_ = zh_translations.RegisterDefaultTranslations(validate, translator)
	})
}

// Validate 校验排班参数，失败时返回 CONFIGURATION_ERROR，包含全部失败字段
func (p Params) Validate() error {
	initValidator()

	var ve errors.ValidationErrors
	if err := validate.Struct(p); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return errors.Wrap(err, errors.CodeConfiguration, "参数校验失败")
		}
		for _, fe := range fieldErrs {
			ve.Add(fe.Field(), fe.Translate(translator))
		}
	}

	if p.Weeks >= 1 && p.MaxTotal > p.TotalShifts() {
		ve.Add("max_total", fmt.Sprintf("不能大于总班次数 %d", p.TotalShifts()))
	}

	if ve.HasErrors() {
		return ve.ToAppError(errors.CodeConfiguration)
	}
	return nil
}

// ValidatePreferences 校验偏好矩阵的形状与取值
func (p Params) ValidatePreferences(prefs Preferences) error {
	if len(prefs) != p.Residents {
		return errors.Configuration("preferences", fmt.Sprintf("行数 %d 与住院医师数 %d 不一致", len(prefs), p.Residents))
	}
	shifts := p.TotalShifts()
	for r, row := range prefs {
		if len(row) != shifts {
			return errors.Configuration("preferences", fmt.Sprintf("第 %d 行长度 %d 与班次数 %d 不一致", r, len(row), shifts))
		}
		for s, v := range row {
			if v != 0 && v != 1 {
				return errors.Configuration("preferences", fmt.Sprintf("[%d][%d] = %d，只允许 0 或 1", r, s, v))
			}
		}
	}
	return nil
}
