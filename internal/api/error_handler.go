package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusCode はエラー種別に対応するHTTPステータスを返す
func StatusCode(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	// apperr の種別を持たないので個別に判定する
	if errors.Is(err, worker.ErrPoolSaturated) {
		return http.StatusServiceUnavailable
	}

	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrInvalidTransition, apperr.ErrInvalidState,
		apperr.ErrSeatAlreadyPending, apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrLockTimeout, apperr.ErrOperationInterrupted:
		return http.StatusServiceUnavailable
	case apperr.ErrInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := StatusCode(err)
	resp := ErrorResponse{Code: code}

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			resp.Error = m
		} else {
			resp.Error = http.StatusText(code)
		}
	case code == http.StatusInternalServerError:
		// 内部エラーの詳細は返さない
		resp.Error = "内部サーバーエラー"
	default:
		resp.Error = err.Error()
	}
	if k := apperr.Kind(err); k != nil {
		resp.Kind = k.Error()
	} else if errors.Is(err, worker.ErrPoolSaturated) {
		resp.Kind = "pool saturated"
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
