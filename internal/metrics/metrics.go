// Package metrics exposes login counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeSuccess labels a successful login.
const OutcomeSuccess = "success"

// Metrics holds the daemon's collectors and the registry they live in.
type Metrics struct {
	reg *prometheus.Registry

	Logins       *prometheus.CounterVec
	LoginLatency *prometheus.HistogramVec
	Captchas     *prometheus.CounterVec
	Rejected     *prometheus.CounterVec
	Pending      prometheus.GaugeFunc
}

// New creates the collectors and registers them in a fresh registry.
// pending reports the number of logins waiting on a captcha; it may be nil.
func New(pending func() float64) *Metrics {
	if pending == nil {
		pending = func() float64 { return 0 }
	}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warpcas_logins_total",
				Help: "Login attempts by portal and outcome",
			},
			[]string{"portal", "outcome"},
		),
		LoginLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warpcas_login_duration_seconds",
				Help:    "Wall time of a login attempt by portal",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"portal"},
		),
		Captchas: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warpcas_captcha_verifications_total",
				Help: "Slider captcha verifications by result",
			},
			[]string{"result"},
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warpcas_rejected_requests_total",
				Help: "Requests refused before reaching the identity provider",
			},
			[]string{"reason"},
		),
		Pending: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "warpcas_pending_logins",
				Help: "Logins waiting for a captcha answer",
			},
			pending,
		),
	}
	m.reg.MustRegister(m.Logins, m.LoginLatency, m.Captchas, m.Rejected, m.Pending)
	return m
}

// ObserveLogin counts one attempt. outcome is OutcomeSuccess or a failure
// type.
func (m *Metrics) ObserveLogin(portal, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(portal, outcome).Inc()
	m.LoginLatency.WithLabelValues(portal).Observe(took.Seconds())
}

// ObserveCaptcha counts one slider verification.
func (m *Metrics) ObserveCaptcha(ok bool) {
	if m == nil {
		return
	}
	result := "fail"
	if ok {
		result = "pass"
	}
	m.Captchas.WithLabelValues(result).Inc()
}

// Reject counts a refused request, e.g. "blacklist" or "ratelimit".
func (m *Metrics) Reject(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry on /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
