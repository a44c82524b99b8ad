package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements Sink over a dedicated registry.
type Prometheus struct {
	registry *prometheus.Registry

	nudgesDelivered      *prometheus.CounterVec
	notificationAttempts *prometheus.CounterVec
	notificationLatency  *prometheus.HistogramVec
	criticalActivations  prometheus.Counter
	relapses             prometheus.Counter
	tasksRescheduled     prometheus.Counter
	jobRuns              *prometheus.CounterVec
	jobFailures          *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
}

var _ Sink = (*Prometheus)(nil)

// NewPrometheus creates a sink backed by its own registry, keeping the
// default global registry out of the picture for tests.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()

	p := &Prometheus{
		registry: reg,
		nudgesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_nudges_delivered_total",
			Help: "Nudge notifications successfully delivered.",
		}, []string{"provider", "channel"}),
		notificationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_notification_attempts_total",
			Help: "Notification dispatch decisions by outcome.",
		}, []string{"provider", "channel", "outcome"}),
		notificationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cadence_notification_latency_seconds",
			Help:    "Delivery latency per provider send, including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "channel"}),
		criticalActivations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cadence_critical_mode_activations_total",
			Help: "Critical mode activations across all users.",
		}),
		relapses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cadence_relapses_detected_total",
			Help: "Relapse detections across all users.",
		}),
		tasksRescheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cadence_tasks_rescheduled_total",
			Help: "Tasks assigned a new slot by the scheduling engine.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_job_runs_total",
			Help: "Background job executions.",
		}, []string{"job"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cadence_job_failures_total",
			Help: "Background job executions that ended in error.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cadence_job_duration_seconds",
			Help:    "Background job tick duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	reg.MustRegister(
		p.nudgesDelivered,
		p.notificationAttempts,
		p.notificationLatency,
		p.criticalActivations,
		p.relapses,
		p.tasksRescheduled,
		p.jobRuns,
		p.jobFailures,
		p.jobDuration,
	)

	return p
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) NudgeDelivered(provider, channel string) {
	p.nudgesDelivered.WithLabelValues(provider, channel).Inc()
}

func (p *Prometheus) NotificationAttempt(provider, channel, outcome string) {
	p.notificationAttempts.WithLabelValues(provider, channel, outcome).Inc()
}

func (p *Prometheus) NotificationLatency(provider, channel string, d time.Duration) {
	p.notificationLatency.WithLabelValues(provider, channel).Observe(d.Seconds())
}

func (p *Prometheus) CriticalModeActivated() {
	p.criticalActivations.Inc()
}

func (p *Prometheus) RelapseDetected() {
	p.relapses.Inc()
}

func (p *Prometheus) TasksRescheduled(count int) {
	p.tasksRescheduled.Add(float64(count))
}

func (p *Prometheus) JobRun(job string) {
	p.jobRuns.WithLabelValues(job).Inc()
}

func (p *Prometheus) JobFailed(job string) {
	p.jobFailures.WithLabelValues(job).Inc()
}

func (p *Prometheus) JobDuration(job string, d time.Duration) {
	p.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
