package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notifications_total", Help: "Notifications received by outcome"},
		[]string{"outcome"},
	)
	AuditWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "audit_writes_total", Help: "Audit store writes by outcome"},
		[]string{"outcome"},
	)
	DispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatched_total", Help: "Trade messages enqueued"},
		[]string{"contract_symbol", "side"},
	)
	ExchangeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "exchange_requests_total", Help: "Exchange API calls by path and outcome"},
		[]string{"method", "path", "outcome"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Cross orders by contract, direction, offset and outcome"},
		[]string{"contract_code", "direction", "offset", "outcome"},
	)
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "queue_deliveries_total", Help: "Queue deliveries by outcome"},
		[]string{"queue", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(NotificationsTotal, AuditWritesTotal, DispatchedTotal, ExchangeRequestsTotal, OrdersTotal, DeliveriesTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr in the background. A listener failure is
// logged; it does not stop the caller.
func Serve(addr string, log logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).WithField("listen", addr).Error("Metrics server failed")
		}
	}()
	return srv
}
