// Package metrics 定义服务的 Prometheus 指标。
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ordersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_orders_created_total",
		Help: "Total number of orders created",
	}, []string{"payment_method"})

	orderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_order_transitions_total",
		Help: "Order status transitions by action and result",
	}, []string{"action", "result"})

	walletOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_wallet_operations_total",
		Help: "Wallet ledger operations by operation and result",
	}, []string{"operation", "result"})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_gateway_request_duration_seconds",
		Help:    "Payment gateway call duration in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"operation", "result"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordOrderCreated 记录一笔新订单。
func RecordOrderCreated(paymentMethod string) {
	ordersCreatedTotal.WithLabelValues(paymentMethod).Inc()
}

// RecordTransition 记录一次状态迁移尝试。
func RecordTransition(action string, err error) {
	orderTransitionsTotal.WithLabelValues(action, result(err)).Inc()
}

// RecordWalletOperation 记录一次账本操作。
func RecordWalletOperation(operation string, err error) {
	walletOperationsTotal.WithLabelValues(operation, result(err)).Inc()
}

// ObserveGateway 记录一次网关调用的耗时。
func ObserveGateway(operation string, start time.Time, err error) {
	gatewayRequestDuration.WithLabelValues(operation, result(err)).Observe(time.Since(start).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack 让 websocket 升级可以穿过中间件。
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware 统计每个请求的次数与耗时，route 使用 ServeMux 匹配到的模式。
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
