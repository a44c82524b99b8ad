// Package metrics defines the sink the coaching core reports into and a
// Prometheus-backed implementation. The core only ever sees the Sink
// interface; process lifetime is the only lifecycle, no reset semantics.
package metrics

import "time"

// Sink receives counters and timings from the coaching core.
type Sink interface {
	NudgeDelivered(provider, channel string)
	NotificationAttempt(provider, channel, outcome string)
	NotificationLatency(provider, channel string, d time.Duration)
	CriticalModeActivated()
	RelapseDetected()
	TasksRescheduled(count int)
	JobRun(job string)
	JobFailed(job string)
	JobDuration(job string, d time.Duration)
}

// Noop discards all observations. Used in tests and tools that do not
// expose a metrics endpoint.
type Noop struct{}

func (Noop) NudgeDelivered(provider, channel string)                    {}
func (Noop) NotificationAttempt(provider, channel, outcome string)      {}
func (Noop) NotificationLatency(provider, channel string, d time.Duration) {}
func (Noop) CriticalModeActivated()                                     {}
func (Noop) RelapseDetected()                                           {}
func (Noop) TasksRescheduled(count int)                                 {}
func (Noop) JobRun(job string)                                          {}
func (Noop) JobFailed(job string)                                       {}
func (Noop) JobDuration(job string, d time.Duration)                    {}

var _ Sink = Noop{}
