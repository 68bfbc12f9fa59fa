package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/api"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/metrics"
)

// unmatchedPath はどのルートにも一致しなかったリクエストの path ラベル
const unmatchedPath = "unmatched"

// PrometheusMiddleware は予約APIのリクエスト数とレイテンシを記録する
// path ラベルには /api/v1/screenings/:id/seats のようなルート定義を使い、座席IDや予約IDごとに系列を作らない
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			// エラーレスポンスはこの後エラーハンドラーが書き込む
			status := c.Response().Status
			if err != nil {
				status = api.StatusCode(err)
			}
			method := c.Request().Method
			path := routePath(c, status)

			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
			return err
		}
	}
}

// routePath はルートに一致しなかった 404 を1つの系列にまとめる
func routePath(c echo.Context, status int) string {
	path := c.Path()
	if path == "" {
		return unmatchedPath
	}
	if status == http.StatusNotFound && (path == "/*" || path == c.Request().URL.Path) {
		return unmatchedPath
	}
	return path
}
