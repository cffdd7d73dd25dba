package cron

import (
	"sync"
	"time"
)

// Schedule yields the next fire time after now. ok is false once the
// schedule is exhausted.
type Schedule interface {
	Next(now time.Time) (next time.Time, ok bool)
}

type every struct {
	interval time.Duration
}

// Every fires repeatedly, interval after each previous trigger.
func Every(interval time.Duration) Schedule {
	return every{interval: interval}
}

func (e every) Next(now time.Time) (time.Time, bool) {
	if e.interval <= 0 {
		return time.Time{}, false
	}
	return now.Add(e.interval), true
}

type dailyAt struct {
	hour   int
	minute int
	loc    *time.Location
}

// DailyAt fires once a day at hour:minute wall-clock time in loc.
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return dailyAt{hour: hour, minute: minute, loc: loc}
}

func (d dailyAt) Next(now time.Time) (time.Time, bool) {
	local := now.In(d.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next, true
}

type after struct {
	delay time.Duration

	mu    sync.Mutex
	fired bool
}

// After fires exactly once, delay after the service starts.
func After(delay time.Duration) Schedule {
	return &after{delay: delay}
}

func (a *after) Next(now time.Time) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fired {
		return time.Time{}, false
	}
	a.fired = true
	return now.Add(a.delay), true
}
