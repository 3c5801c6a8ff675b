package middleware

import (
	"net/http"
)

// HTTPMetricsRecorder はHTTPリクエストの処理結果を記録するインターフェース。
// metrics.Collectorのサブセット。
type HTTPMetricsRecorder interface {
	RecordHTTPRequest(method string, statusCode int)
}

// NewMetricsMiddleware は処理した全リクエストをメソッドとステータスコードで
// 集計するミドルウェアを返す。
func NewMetricsMiddleware(recorder HTTPMetricsRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			recorder.RecordHTTPRequest(r.Method, rec.statusCode)
		})
	}
}
