package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_record_mutations_total",
		Help: "Successful record store mutations by operation.",
	}, []string{"op"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_store_notifications_total",
		Help: "Subscriber notifications by origin (local mutation or another process).",
	}, []string{"source"})

	records = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "attendance_records",
		Help: "Records in the last persisted snapshot.",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})
)

// Mutation counts a successful store mutation.
func Mutation(op string) { mutations.WithLabelValues(op).Inc() }

// Notification counts a subscriber fan-out.
func Notification(source string) { notifications.WithLabelValues(source).Inc() }

// Records records the size of the persisted snapshot.
func Records(n int) { records.Set(float64(n)) }

// RateLimited counts a rejected request.
func RateLimited() { rateLimited.Inc() }
