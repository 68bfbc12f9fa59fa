package api

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator は予約・カタログAPIのリクエストを検証する
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator はフィールド名を JSON のキー名で報告するバリデーターを作成する
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate は不正なフィールドを customer_email, seats_per_row のようなキー名で列挙した 400 を返す
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	fields := make([]string, len(ve))
	for i, fe := range ve {
		fields[i] = fe.Field() + "(" + fe.Tag() + ")"
	}
	return echo.NewHTTPError(http.StatusBadRequest, "入力内容が不正です: "+strings.Join(fields, ", "))
}
