// Package metrics exposes exchange activity as Prometheus collectors. The
// counter/histogram shape (orders received/rejected/cancelled, trades
// executed, notional traded, matching latency) is grounded in
// TanishqAgarwal-OrderMatchingEngine/internal/metrics, but backed by
// prometheus/client_golang instead of hand-rolled atomics and a JSON
// marshaler, so the numbers are scraped over /metrics rather than polled
// over a bespoke endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the Prometheus collectors the exchange updates as it
// processes orders. A nil *Recorder is not valid; use New.
type Recorder struct {
	ordersReceived  *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	tradesExecuted  prometheus.Counter
	notionalTraded  prometheus.Counter
	matchLatency    prometheus.Histogram
}

// New constructs a Recorder and registers its collectors with reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel test binaries.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ordersReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heimdall",
			Name:      "orders_received_total",
			Help:      "Orders submitted to the exchange, by side.",
		}, []string{"side"}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heimdall",
			Name:      "orders_rejected_total",
			Help:      "Orders rejected before reaching the matching engine, by reason.",
		}, []string{"reason"}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heimdall",
			Name:      "orders_cancelled_total",
			Help:      "Resting orders successfully cancelled.",
		}),
		tradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heimdall",
			Name:      "trades_executed_total",
			Help:      "Trades produced by the matching engine.",
		}),
		notionalTraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heimdall",
			Name:      "notional_traded_total",
			Help:      "Sum of price * quantity across every executed trade, in numeraire units.",
		}),
		matchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "heimdall",
			Name:      "match_latency_seconds",
			Help:      "Wall-clock time spent inside Exchange.SubmitOrder.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	reg.MustRegister(
		r.ordersReceived,
		r.ordersRejected,
		r.ordersCancelled,
		r.tradesExecuted,
		r.notionalTraded,
		r.matchLatency,
	)
	return r
}

// ObserveOrderReceived counts one inbound order for side ("bid" or "ask").
func (r *Recorder) ObserveOrderReceived(side string) {
	r.ordersReceived.WithLabelValues(side).Inc()
}

// ObserveOrderRejected counts one rejection, labeled by reason. The label is
// whatever string the caller passes; internal/server passes the rejecting
// error's message (e.g. "ledger: insufficient balance").
func (r *Recorder) ObserveOrderRejected(reason string) {
	r.ordersRejected.WithLabelValues(reason).Inc()
}

// ObserveOrderCancelled counts one successful cancel.
func (r *Recorder) ObserveOrderCancelled() {
	r.ordersCancelled.Inc()
}

// ObserveTrades adds count to the trades-executed counter and notional to the
// notional-traded counter. A count of zero or less records nothing.
func (r *Recorder) ObserveTrades(count int, notional uint64) {
	if count <= 0 {
		return
	}
	r.tradesExecuted.Add(float64(count))
	r.notionalTraded.Add(float64(notional))
}

// ObserveMatchLatency records how long one SubmitOrder call took, in
// seconds.
func (r *Recorder) ObserveMatchLatency(seconds float64) {
	r.matchLatency.Observe(seconds)
}
