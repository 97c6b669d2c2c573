package app

import (
	"sync"
	"time"
)

// TickInterval is the period of every phase timer.
const TickInterval = time.Second

// Scheduler runs fn every interval until the returned cancel is called.
// Cancel is idempotent and never waits for an in-flight fn, so it may be
// called while holding locks fn also takes.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler backs each task with a time.Ticker and one goroutine.
type TickerScheduler struct{}

func NewTickerScheduler() TickerScheduler {
	return TickerScheduler{}
}

func (TickerScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
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

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
