package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bu-reg/backend/internal/service"
)

// RegisterValidators 在 gin 的校验引擎上注册自定义 tag
//   - clock: "HH:MM" 或 "HH:MM:SS"
//
// 同时让校验错误使用 json / form 字段名，与请求体保持一致
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	v.RegisterTagNameFunc(fieldName)
	return v.RegisterValidation("clock", validateClock)
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := service.ParseClock(fl.Field().String())
	return err == nil
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return fld.Name
}
