// Package metrics exposes the Prometheus counters of the interest ledger, the
// entitlement reconciler and the notification dispatcher.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
)

const namespace = "nikah"

// Collector implements the recorder interfaces of every service so one registry
// carries the whole process.
type Collector struct {
	interestsSent  *prometheus.CounterVec
	matchesCreated prometheus.Counter
	quotaRejected  prometheus.Counter
	billingEvents  *prometheus.CounterVec
	notifications  *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		interestsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interests_sent_total",
			Help:      "Interests stored, by kind and quota exemption.",
		}, []string{"kind", "exempt"}),
		matchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_created_total",
			Help:      "Interests that completed a mutual pair.",
		}),
		quotaRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interest_quota_rejections_total",
			Help:      "Sends refused because the daily quota was used up.",
		}),
		billingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_events_total",
			Help:      "Billing provider events by kind and reconcile outcome.",
		}, []string{"kind", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by kind and delivery outcome.",
		}, []string{"kind", "outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 while the named circuit breaker is not closed.",
		}, []string{"name"}),
	}

	reg.MustRegister(
		c.interestsSent,
		c.matchesCreated,
		c.quotaRejected,
		c.billingEvents,
		c.notifications,
		c.breakerState,
	)

	return c
}

func (c *Collector) InterestSent(kind enums.InterestKind, exempt bool) {
	c.interestsSent.WithLabelValues(string(kind), strconv.FormatBool(exempt)).Inc()
}

func (c *Collector) MatchCreated() {
	c.matchesCreated.Inc()
}

func (c *Collector) QuotaRejected() {
	c.quotaRejected.Inc()
}

func (c *Collector) BillingEvent(kind enums.BillingEventKind, outcome string) {
	c.billingEvents.WithLabelValues(string(kind), outcome).Inc()
}

func (c *Collector) NotificationDispatched(kind enums.NotificationKind, outcome string) {
	c.notifications.WithLabelValues(string(kind), outcome).Inc()
}

// BreakerStateChanged takes gobreaker state names; anything but "closed" counts as open.
func (c *Collector) BreakerStateChanged(name, state string) {
	value := 1.0
	if state == "closed" {
		value = 0
	}
	c.breakerState.WithLabelValues(name).Set(value)
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
