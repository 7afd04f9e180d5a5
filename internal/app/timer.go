package app

import (
	"sync"
	"time"
)

// TickSource delivers countdown ticks to fn until the returned stop function is called.
// stop must be safe to call more than once and from within fn.
type TickSource interface {
	Start(fn func()) (stop func())
}

// IntervalTicker fires fn every Interval on its own goroutine.
type IntervalTicker struct {
	Interval time.Duration
}

func NewIntervalTicker(interval time.Duration) IntervalTicker {
	if interval <= 0 {
		interval = time.Second
	}
	return IntervalTicker{Interval: interval}
}

func (t IntervalTicker) Start(fn func()) func() {
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// stop may have raced with this tick; prefer the stop signal.
				select {
				case <-done:
					return
				default:
				}
				fn()
			case <-done:
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
