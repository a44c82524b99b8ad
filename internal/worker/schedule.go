package worker

import "time"

// Schedule computes when a worker should next fire. Explicit next-run
// computation avoids the drift and redundant wakeups of coarse polling
// loops that check "is it time yet" every tick.
type Schedule interface {
	// Next returns the first fire time strictly after now.
	Next(now time.Time) time.Time
}

type every struct {
	interval time.Duration
}

// Every fires at a fixed interval.
func Every(interval time.Duration) Schedule {
	return every{interval: interval}
}

func (e every) Next(now time.Time) time.Time {
	return now.Add(e.interval)
}

type dailyAt struct {
	hour, minute int
}

// DailyAt fires once a day at the given UTC wall-clock time.
func DailyAt(hour, minute int) Schedule {
	return dailyAt{hour: hour, minute: minute}
}

func (d dailyAt) Next(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, d.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
